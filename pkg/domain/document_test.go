package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const scenarioDoc = `{"marketplaces":[{"code":"m1","isInitial":false,"marketplaceGroups":[{"group":"g1","displayOrder":1}]}],"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1}]}],"widgets":[{"code":"w1","name":"Widget One"}]}`

func TestParseDocumentScenario(t *testing.T) {
	doc, err := ParseDocument([]byte(scenarioDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Marketplaces) != 1 || len(doc.Groups) != 1 || len(doc.Widgets) != 1 {
		t.Fatalf("unexpected collection sizes: %+v", doc)
	}
	mp := doc.Marketplaces[0]
	if mp.Code != "m1" || mp.IsInitial() {
		t.Fatalf("unexpected marketplace %+v", mp)
	}
	if len(mp.MarketplaceGroups) != 1 || mp.MarketplaceGroups[0].Target != "g1" || mp.MarketplaceGroups[0].DisplayOrder != 1 {
		t.Fatalf("unexpected links %+v", mp.MarketplaceGroups)
	}
	if mp.SettingMarketplaces != nil {
		t.Fatalf("absent settingMarketplaces must stay nil")
	}
	if doc.Widgets[0].Name() != "Widget One" {
		t.Fatalf("expected widget name, got %q", doc.Widgets[0].Name())
	}
}

func TestParseDocumentFormatErrors(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"marketplaces":`,
		"array":          `[]`,
		"missing groups": `{"marketplaces":[],"widgets":[]}`,
		"not array":      `{"marketplaces":{},"groups":[],"widgets":[]}`,
		"null":           `{"marketplaces":null,"groups":[],"widgets":[]}`,
		"scalar entity":  `{"marketplaces":[1],"groups":[],"widgets":[]}`,
	}
	for name, input := range cases {
		_, err := ParseDocument([]byte(input))
		var fe FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected FormatError, got %v", name, err)
		}
		if CodeOf(err) != CodeFormat {
			t.Fatalf("%s: expected format code, got %s", name, CodeOf(err))
		}
	}
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	input := `{"marketplaces":[{"zeta":1,"code":"m1","name":"M","custom":{"a":[1,2]},"marketplaceGroups":[{"displayOrder":2,"group":"g1","viewTypeCode":"TILE"}]}],"groups":[],"widgets":[{"code":"w1","name":"<b>","actions":[{"type":"open","properties":[{"code":"marketplaceId","value":"m1"}]}]}],"version":3}`
	doc, err := ParseDocument([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	text := string(out)
	for _, want := range []string{`"zeta": 1`, `"custom": {`, `"viewTypeCode": "TILE"`, `"version": 3`, `"name": "<b>"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in output:\n%s", want, text)
		}
	}
	// Canonical order: code, name, marketplaceGroups, then unknown fields.
	if strings.Index(text, `"code": "m1"`) > strings.Index(text, `"zeta"`) {
		t.Fatalf("known fields must precede unknown ones:\n%s", text)
	}
	if strings.Index(text, `"zeta"`) > strings.Index(text, `"custom"`) {
		t.Fatalf("unknown fields must keep their relative order:\n%s", text)
	}
	if strings.Index(text, `"group": "g1"`) > strings.Index(text, `"displayOrder": 2`) {
		t.Fatalf("link target must precede displayOrder:\n%s", text)
	}

	again, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	out2, err := again.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(out) != string(out2) {
		t.Fatalf("encoding not stable:\n%s\n---\n%s", out, out2)
	}
}

func TestMalformedValuesSurviveRoundTrip(t *testing.T) {
	input := `{"marketplaces":[],"groups":[{"code":7,"groupWidgets":"oops"}],"widgets":[]}`
	doc, err := ParseDocument([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := doc.Groups[0]
	if g.Code != "" || g.GroupWidgets != nil {
		t.Fatalf("malformed values must not populate typed fields: %+v", g)
	}
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(out), `"code": 7`) || !strings.Contains(string(out), `"groupWidgets": "oops"`) {
		t.Fatalf("malformed values lost:\n%s", out)
	}
}

func TestEmptyLinkListIsKept(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"marketplaces":[],"groups":[{"code":"g1","groupWidgets":[]}],"widgets":[]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Groups[0].GroupWidgets == nil {
		t.Fatalf("empty list must be distinguishable from absent")
	}
	out, _ := doc.Encode()
	if !strings.Contains(string(out), `"groupWidgets": []`) {
		t.Fatalf("expected empty list in output:\n%s", out)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc, err := ParseDocument([]byte(scenarioDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	clone := doc.Clone()
	clone.Groups[0].GroupWidgets[0].Target = "changed"
	if err := clone.Widgets[0].Attributes.Set(FieldName, "other"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if doc.Groups[0].GroupWidgets[0].Target != "w1" || doc.Widgets[0].Name() != "Widget One" {
		t.Fatalf("clone shares state with original")
	}
}

func TestLinkRecordsDecodeOneByOne(t *testing.T) {
	input := `{"marketplaces":[],"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1},{"widget":"w9","displayOrder":"2"},null,{"displayOrder":4},{"widget":5}]}],"widgets":[]}`
	doc, err := ParseDocument([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := doc.Groups[0]
	if g.Attributes.Has(FieldGroupWidgets) {
		t.Fatalf("list must not fall back to an attribute")
	}
	links := g.GroupWidgets
	if len(links) != 5 {
		t.Fatalf("expected five records, got %+v", links)
	}
	if links[1].Target != "w9" || links[1].DisplayOrder != 2 || links[1].Opaque() {
		t.Fatalf("numeric string order should be read as a number: %+v", links[1])
	}
	for _, i := range []int{2, 3, 4} {
		if !links[i].Opaque() {
			t.Fatalf("record %d should be opaque: %+v", i, links[i])
		}
	}
	if IndexOfLink(links, "") >= 0 || NextDisplayOrder(links) != 3 {
		t.Fatalf("opaque records must not name children or orders")
	}

	out, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1},{"widget":"w9","displayOrder":"2"},null,{"displayOrder":4},{"widget":5}]}`
	if string(out) != want {
		t.Fatalf("round trip changed records:\n got %s\nwant %s", out, want)
	}
}

func TestDisplayOrderTextIsKept(t *testing.T) {
	input := `{"code":"g1","groupWidgets":[{"widget":"a","displayOrder":1.0},{"widget":"b","displayOrder":9007199254740993},{"widget":"c"},{"widget":"d","displayOrder":2e0}]}`
	var g Group
	if err := json.Unmarshal([]byte(input), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != input {
		t.Fatalf("displayOrder text changed:\n got %s\nwant %s", out, input)
	}

	g.GroupWidgets[0].DisplayOrder = 5
	g.GroupWidgets[2].DisplayOrder = 6
	out, err = json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`{"widget":"a","displayOrder":5}`, `{"widget":"c","displayOrder":6}`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("assigned order not written, missing %s in %s", want, out)
		}
	}
}

func TestParseDisplayOrder(t *testing.T) {
	cases := map[string]struct {
		want float64
		ok   bool
	}{
		`3`:     {3, true},
		`1.5`:   {1.5, true},
		`" 7 "`: {7, true},
		`"abc"`: {0, false},
		`null`:  {0, true},
		`{}`:    {0, false},
		`"NaN"`: {0, false},
		`-2e1`:  {-20, true},
	}
	for in, tc := range cases {
		got, ok := ParseDisplayOrder(json.RawMessage(in))
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseDisplayOrder(%s) = %v, %v; want %v, %v", in, got, ok, tc.want, tc.ok)
		}
	}
}
