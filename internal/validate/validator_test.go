package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalogcore/pkg/domain"
)

func mustView(t *testing.T, src string) *domain.Snapshot {
	t.Helper()
	doc, err := domain.ParseDocument([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return domain.NewSnapshot(doc)
}

func mustValidate(t *testing.T, view domain.CatalogView) domain.Report {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	report, err := v.Validate(context.Background(), view)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return report
}

const scenarioA = `{"marketplaces":[{"code":"m1","isInitial":false,"marketplaceGroups":[{"group":"g1","displayOrder":1}]}],"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1}]}],"widgets":[{"code":"w1","name":"Widget One"}]}`

func TestCleanCatalog(t *testing.T) {
	report := mustValidate(t, mustView(t, scenarioA))
	if !report.Clean() {
		t.Fatalf("expected no findings, got %+v", report.All())
	}
}

func TestUnlinkedWidgetIsOrphan(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],
		"groups":[{"code":"g1","groupWidgets":[]}],"widgets":[{"code":"w1","name":"Widget One"}]}`)
	report := mustValidate(t, view)
	orphans := report.ByRule(RuleOrphanWidget)
	if len(orphans) != 1 || orphans[0].Code != "w1" {
		t.Fatalf("expected w1 orphaned, got %+v", report.All())
	}
	if orphans[0].Severity != domain.SeverityWarn {
		t.Fatalf("orphans are warnings, got %s", orphans[0].Severity)
	}
	if len(report.Schema) != 0 {
		t.Fatalf("unexpected schema findings: %+v", report.Schema)
	}
}

func TestDanglingGroupReportsLocation(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1},{"group":"g2","displayOrder":2}]}],
		"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1}]}],"widgets":[{"code":"w1","name":"Widget One"}]}`)
	report := mustValidate(t, view)
	dangling := report.ByRule(RuleDanglingGroup)
	if len(dangling) != 1 {
		t.Fatalf("expected one dangling group, got %+v", report.All())
	}
	want := domain.RefLocation(domain.EntityMarketplace, "m1", domain.RelationMarketplaceGroups, "g2")
	if dangling[0].Location != want {
		t.Fatalf("unexpected location %v", dangling[0].Location)
	}
	if got := dangling[0].Location.String(); got != "marketplaces[code=m1].marketplaceGroups[g2]" {
		t.Fatalf("unexpected location text %q", got)
	}
}

func TestDanglingWidgetAndSettingMarketplaces(t *testing.T) {
	view := mustView(t, `{"marketplaces":[
		{"code":"root","isInitial":true,"settingMarketplaces":[{"marketplace":"m1","displayOrder":1},{"marketplace":"gone","displayOrder":2},{"marketplace":"hub","displayOrder":3}]},
		{"code":"hub","isInitial":true,"settingMarketplaces":[]},
		{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],
		"groups":[{"code":"g1","groupWidgets":[{"widget":"nope","displayOrder":1}]}],"widgets":[]}`)
	report := mustValidate(t, view)
	if got := report.ByRule(RuleDanglingWidget); len(got) != 1 || got[0].Location.Child != "nope" {
		t.Fatalf("dangling widget: %+v", got)
	}
	if got := report.ByRule(RuleDanglingSettingMarketplace); len(got) != 1 || got[0].Location.Child != "gone" {
		t.Fatalf("dangling setting marketplace: %+v", got)
	}
	if got := report.ByRule(RuleSettingMarketplaceInitial); len(got) != 1 || got[0].Location.Child != "hub" {
		t.Fatalf("initial target: %+v", got)
	}
	if got := report.ByRule(RuleAggregatorCycle); len(got) != 0 {
		t.Fatalf("no cycle expected: %+v", got)
	}
}

func TestDanglingMarketplaceID(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],
		"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1}]}],
		"widgets":[{"code":"w1","name":"One","actions":[{"code":"open","properties":[
			{"code":"marketplaceId","value":"m1"},
			{"code":"marketplaceId","value":"m9"},
			{"code":"marketplaceId"},
			{"code":"other","value":"m9"}]}]}]}`)
	report := mustValidate(t, view)
	got := report.ByRule(RuleDanglingMarketplaceID)
	if len(got) != 2 {
		t.Fatalf("expected two dangling marketplaceId findings, got %+v", got)
	}
	if got[0].Location.Child != "m9" || got[0].Location.Relation != domain.RelationMarketplaceID {
		t.Fatalf("unexpected first finding %+v", got[0])
	}
	if got[1].Location.Child != "undefined" {
		t.Fatalf("missing value should read undefined, got %+v", got[1])
	}
	if !strings.Contains(got[0].Message, "actions[0].properties[1]") {
		t.Fatalf("message should locate the property: %s", got[0].Message)
	}
}

func TestAggregatorCycle(t *testing.T) {
	view := mustView(t, `{"marketplaces":[
		{"code":"a","isInitial":true,"settingMarketplaces":[{"marketplace":"b","displayOrder":1}]},
		{"code":"b","isInitial":true,"settingMarketplaces":[{"marketplace":"a","displayOrder":1}]},
		{"code":"self","isInitial":true,"settingMarketplaces":[{"marketplace":"self","displayOrder":1}]}],
		"groups":[],"widgets":[]}`)
	report := mustValidate(t, view)
	cycles := report.ByRule(RuleAggregatorCycle)
	if len(cycles) != 2 {
		t.Fatalf("expected two cycles, got %+v", cycles)
	}
	var sawPair bool
	for _, c := range cycles {
		if strings.HasSuffix(c.Message, "a, b") {
			sawPair = true
		}
	}
	if !sawPair {
		t.Fatalf("pair cycle not reported: %+v", cycles)
	}
}

func TestDuplicateCodes(t *testing.T) {
	view := mustView(t, `{"marketplaces":[],"groups":[],"widgets":[
		{"code":"w1","name":"One"},{"code":"w1","name":"Again"},{"code":"w2","name":"Two"}]}`)
	report := mustValidate(t, view)
	dups := report.ByRule(RuleDuplicateCode)
	if len(dups) != 1 || dups[0].Code != "w1" || dups[0].Entity != domain.EntityWidget {
		t.Fatalf("unexpected duplicates %+v", dups)
	}
}

func TestSchemaFindings(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","isInitial":"yes"}],
		"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":"first"}]}],
		"widgets":[{"code":"w1"},{"code":"","name":"Blank"},{"code":7,"name":"Numeric"}]}`)
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	findings := v.ValidateSchema(view)
	paths := map[string]bool{}
	for _, f := range findings {
		if f.Category != domain.CategorySchema {
			t.Fatalf("unexpected category %s", f.Category)
		}
		paths[string(f.Entity)+":"+f.Code+":"+f.Path] = true
	}
	for _, want := range []string{
		"marketplace:m1:isInitial",
		"widget:w1:name",
		"widget::code",
	} {
		if !paths[want] {
			t.Fatalf("missing finding %s in %v", want, paths)
		}
	}
	var sawOrder bool
	for p := range paths {
		if strings.HasPrefix(p, "group:g1:groupWidgets") {
			sawOrder = true
		}
	}
	if !sawOrder {
		t.Fatalf("malformed displayOrder not reported: %v", paths)
	}
}

func TestCustomSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strict.cue")
	src := `#Marketplace: {code: string, ...}
#Group: {code: string, name: string, ...}
#Widget: {code: string, ...}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	schema, err := LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v, err := New(WithSchema(schema))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	findings := v.ValidateSchema(mustView(t, scenarioA))
	if len(findings) != 1 || findings[0].Code != "g1" || findings[0].Path != "name" {
		t.Fatalf("expected missing group name, got %+v", findings)
	}
}

func TestSchemaRequiresDefinitions(t *testing.T) {
	if _, err := NewCUESchema([]byte(`#Widget: {...}`), "partial.cue"); err == nil {
		t.Fatalf("expected error for schema without #Marketplace")
	}
	if _, err := NewCUESchema([]byte(`#Widget: {`), "broken.cue"); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestDisabledSchema(t *testing.T) {
	v, err := New(WithSchema(nil))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := v.ValidateSchema(mustView(t, `{"marketplaces":[],"groups":[],"widgets":[{"code":"w"}]}`)); got != nil {
		t.Fatalf("expected no schema findings, got %+v", got)
	}
}

func TestCancelledContext(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Validate(ctx, mustView(t, scenarioA)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFieldPathDropsDefinition(t *testing.T) {
	cases := map[string][]string{
		"isInitial":                   {"#Marketplace", "isInitial"},
		"groupWidgets.0.displayOrder": {"#Group", "groupWidgets", "0", "displayOrder"},
		"name":                        {"name"},
		"":                            {"#Widget"},
	}
	for want, in := range cases {
		if got := fieldPath(in); got != want {
			t.Fatalf("fieldPath(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestNullTextFieldsAreValid(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","title":null,"name":null,"description":null,"marketplaceGroups":[{"group":"g1","displayOrder":1},null]}],
		"groups":[{"code":"g1","title":null,"name":null,"groupWidgets":[{"widget":"w1","displayOrder":1}]}],
		"widgets":[{"code":"w1","name":"Widget One","description":null}]}`)
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if findings := v.ValidateSchema(view); len(findings) != 0 {
		t.Fatalf("expected no schema findings, got %+v", findings)
	}
}

func TestUnusualRecordsAreSchemaFindingsOnly(t *testing.T) {
	view := mustView(t, `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],
		"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1},{"widget":5}]}],
		"widgets":[{"code":"w1","name":"Widget One"}]}`)
	report := mustValidate(t, view)
	if len(report.Relations) != 0 {
		t.Fatalf("records without a target must not raise reference findings: %+v", report.Relations)
	}
	var flagged bool
	for _, f := range report.Schema {
		if f.Code == "g1" && strings.HasPrefix(f.Path, "groupWidgets.1") {
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("expected a schema finding for groupWidgets.1, got %+v", report.Schema)
	}
}
