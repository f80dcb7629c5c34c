package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func widgetWithActions(t *testing.T, actions string) Widget {
	t.Helper()
	var w Widget
	if err := json.Unmarshal([]byte(`{"code":"w1","actions":`+actions+`}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return w
}

func TestMarketplaceIDRefs(t *testing.T) {
	w := widgetWithActions(t, `[{"properties":[{"code":"marketplaceId","value":"m1"},{"code":"other","value":"m9"}]},"junk",{"properties":[{"code":"marketplaceId","value":5},{"code":"marketplaceId"}]}]`)
	refs := MarketplaceIDRefs(w.Attributes)
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %+v", refs)
	}
	if refs[0].Value != "m1" || !refs[0].IsString || refs[0].Action != 0 || refs[0].Property != 0 {
		t.Fatalf("unexpected first ref %+v", refs[0])
	}
	if refs[1].IsString || refs[1].Value != "5" || refs[1].Action != 2 {
		t.Fatalf("unexpected numeric ref %+v", refs[1])
	}
	if refs[2].Value != "undefined" {
		t.Fatalf("missing value must be reported, got %+v", refs[2])
	}
}

func TestRewriteMarketplaceIDs(t *testing.T) {
	w := widgetWithActions(t, `[{"type":"go","properties":[{"code":"marketplaceId","value":"m1","extra":true},{"code":"marketplaceId","value":"m2"}]}]`)
	out, n := RewriteMarketplaceIDs(w.Attributes, "m1", "mX")
	if n != 1 {
		t.Fatalf("expected one rewrite, got %d", n)
	}
	raw, _ := out.Get(FieldActions)
	if !strings.Contains(string(raw), `{"code":"marketplaceId","value":"mX","extra":true}`) {
		t.Fatalf("rewrite lost field order or extras: %s", raw)
	}
	if !strings.Contains(string(raw), `"value":"m2"`) {
		t.Fatalf("unrelated property changed: %s", raw)
	}
	orig, _ := w.Attributes.Get(FieldActions)
	if strings.Contains(string(orig), "mX") {
		t.Fatalf("input attributes were modified")
	}
	if _, n := RewriteMarketplaceIDs(w.Attributes, "absent", "x"); n != 0 {
		t.Fatalf("expected no rewrites")
	}
}

func TestLocationString(t *testing.T) {
	if got := EntityLocation(EntityGroup, "g1").String(); got != "groups[code=g1]" {
		t.Fatalf("unexpected %q", got)
	}
	loc := RefLocation(EntityMarketplace, "m1", RelationMarketplaceGroups, "g2")
	if !loc.IsReference() || loc.String() != "marketplaces[code=m1].marketplaceGroups[g2]" {
		t.Fatalf("unexpected %q", loc.String())
	}
}

func TestSnapshotLookups(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"marketplaces":[{"code":"m1"}],"groups":[{"code":"g1","name":"first"},{"code":"g1","name":"second"}],"widgets":[]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	snap := NewSnapshot(doc)
	g, ok := snap.FindGroup("g1")
	if !ok || g.Name() != "first" {
		t.Fatalf("duplicate codes must resolve to the first record, got %+v", g)
	}
	if _, ok := snap.Find(EntityWidget, "g1"); ok {
		t.Fatalf("codes are scoped per kind")
	}
	if codes := snap.Codes(EntityGroup); len(codes) != 1 || codes[0] != "g1" {
		t.Fatalf("unexpected codes %v", codes)
	}
	if snap.Len(EntityGroup) != 2 {
		t.Fatalf("expected both records listed")
	}
}

func TestRewriteMarketplaceIDsMatchesEscapedValues(t *testing.T) {
	w := widgetWithActions(t, `[{"properties":[{"code":"marketplaceId","value":"m\u0031"}]}]`)
	if refs := MarketplaceIDRefs(w.Attributes); len(refs) != 1 || refs[0].Value != "m1" {
		t.Fatalf("unexpected refs %+v", refs)
	}
	out, n := RewriteMarketplaceIDs(w.Attributes, "m1", "m2")
	if n != 1 {
		t.Fatalf("every listed reference must be rewritten, got %d", n)
	}
	if refs := MarketplaceIDRefs(out); len(refs) != 1 || refs[0].Value != "m2" {
		t.Fatalf("unexpected refs after rewrite %+v", refs)
	}
}
