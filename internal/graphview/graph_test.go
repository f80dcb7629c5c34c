package graphview

import (
	"context"
	"strings"
	"testing"

	"catalogcore/pkg/domain"
)

const catalog = `{"marketplaces":[
	{"code":"root","isInitial":true,"settingMarketplaces":[{"marketplace":"m1","displayOrder":1}]},
	{"code":"m1","name":"Main","marketplaceGroups":[{"group":"g1","displayOrder":1},{"group":"gone","displayOrder":2}]}],
	"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1.5}]}],
	"widgets":[{"code":"w1","name":"One","actions":[{"code":"open","properties":[{"code":"marketplaceId","value":"m7"}]}]}]}`

func view(t *testing.T) *domain.Snapshot {
	t.Helper()
	doc, err := domain.ParseDocument([]byte(catalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return domain.NewSnapshot(doc)
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(view(t), Options{})
	for _, want := range []string{
		`"marketplace:root" [shape=box, label="root", peripheries=2, fillcolor=lightyellow];`,
		`"marketplace:m1" [shape=box, label="m1\nMain"];`,
		`"marketplace:root" -> "marketplace:m1" [label="1"];`,
		`"group:g1" -> "widget:w1" [label="1.5"];`,
		`"marketplace:m1" -> "group:gone" [label="2", style=dashed, color=red];`,
		`"group:gone" [shape=folder, label="gone\n(missing)", style=dashed, color=red, fontcolor=red];`,
	} {
		if !strings.Contains(dot, want) {
			t.Fatalf("missing %s in:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "marketplaceId") {
		t.Fatalf("action refs should be off by default")
	}
	if ToDOT(view(t), Options{}) != dot {
		t.Fatalf("output is not deterministic")
	}
}

func TestToDOTActionRefs(t *testing.T) {
	dot := ToDOT(view(t), Options{ActionRefs: true})
	if !strings.Contains(dot, `"widget:w1" -> "marketplace:m7" [style=dotted, label="marketplaceId", color=red];`) {
		t.Fatalf("missing dangling marketplaceId edge:\n%s", dot)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(view(t), Options{}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Fatalf("expected svg output")
	}
}
