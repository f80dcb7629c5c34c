package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"catalogcore/pkg/domain"
)

// Relation rule names.
const (
	RuleDanglingGroup              = "dangling_group"
	RuleDanglingWidget             = "dangling_widget"
	RuleDanglingSettingMarketplace = "dangling_setting_marketplace"
	RuleSettingMarketplaceInitial  = "setting_marketplace_initial"
	RuleOrphanGroup                = "orphan_group"
	RuleOrphanWidget               = "orphan_widget"
	RuleDanglingMarketplaceID      = "dangling_marketplace_id"
	RuleAggregatorCycle            = "aggregator_cycle"
	RuleDuplicateCode              = "duplicate_code"
)

// NewRelationsEngine builds a rules engine with every relation rule.
func NewRelationsEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(DanglingReferenceRule())
	engine.Register(OrphanRule())
	engine.Register(MarketplaceIDRule())
	engine.Register(AggregatorCycleRule())
	engine.Register(DuplicateCodeRule())
	return engine
}

func relationViolation(rule string, sev domain.Severity, loc domain.Location, msg string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Category: domain.CategoryRelation,
		Severity: sev,
		Message:  msg,
		Entity:   loc.Kind,
		Code:     loc.Code,
		Location: loc,
	}
}

// DanglingReferenceRule reports reference records whose target does not
// exist, and aggregator links that point at another aggregator.
func DanglingReferenceRule() domain.Rule { return danglingReferenceRule{} }

type danglingReferenceRule struct{}

func (danglingReferenceRule) Name() string { return "dangling_reference" }

func (danglingReferenceRule) Evaluate(_ context.Context, view domain.CatalogView) (domain.Result, error) {
	res := domain.Result{}
	for _, mp := range view.ListMarketplaces() {
		for _, link := range mp.MarketplaceGroups {
			if _, ok := view.FindGroup(link.Target); ok || link.Opaque() {
				continue
			}
			loc := domain.RefLocation(domain.EntityMarketplace, mp.Code, domain.RelationMarketplaceGroups, link.Target)
			res.Violations = append(res.Violations, relationViolation(RuleDanglingGroup, domain.SeverityError, loc,
				fmt.Sprintf("marketplace %s references missing group %s", mp.Code, link.Target)))
		}
		for _, link := range mp.SettingMarketplaces {
			if link.Opaque() {
				continue
			}
			loc := domain.RefLocation(domain.EntityMarketplace, mp.Code, domain.RelationSettingMarketplaces, link.Target)
			target, ok := view.FindMarketplace(link.Target)
			switch {
			case !ok:
				res.Violations = append(res.Violations, relationViolation(RuleDanglingSettingMarketplace, domain.SeverityError, loc,
					fmt.Sprintf("marketplace %s links missing marketplace %s", mp.Code, link.Target)))
			case target.IsInitial():
				res.Violations = append(res.Violations, relationViolation(RuleSettingMarketplaceInitial, domain.SeverityError, loc,
					fmt.Sprintf("marketplace %s links initial marketplace %s", mp.Code, link.Target)))
			}
		}
	}
	for _, g := range view.ListGroups() {
		for _, link := range g.GroupWidgets {
			if _, ok := view.FindWidget(link.Target); ok || link.Opaque() {
				continue
			}
			loc := domain.RefLocation(domain.EntityGroup, g.Code, domain.RelationGroupWidgets, link.Target)
			res.Violations = append(res.Violations, relationViolation(RuleDanglingWidget, domain.SeverityError, loc,
				fmt.Sprintf("group %s references missing widget %s", g.Code, link.Target)))
		}
	}
	return res, nil
}

// OrphanRule warns about groups no marketplace references and widgets no
// group references.
func OrphanRule() domain.Rule { return orphanRule{} }

type orphanRule struct{}

func (orphanRule) Name() string { return "orphan" }

func (orphanRule) Evaluate(_ context.Context, view domain.CatalogView) (domain.Result, error) {
	res := domain.Result{}
	usedGroups := make(map[string]struct{})
	for _, mp := range view.ListMarketplaces() {
		for _, link := range mp.MarketplaceGroups {
			if !link.Opaque() {
				usedGroups[link.Target] = struct{}{}
			}
		}
	}
	usedWidgets := make(map[string]struct{})
	for _, g := range view.ListGroups() {
		if _, ok := usedGroups[g.Code]; !ok {
			res.Violations = append(res.Violations, relationViolation(RuleOrphanGroup, domain.SeverityWarn,
				domain.EntityLocation(domain.EntityGroup, g.Code),
				fmt.Sprintf("group %s is not referenced by any marketplace", g.Code)))
		}
		for _, link := range g.GroupWidgets {
			if !link.Opaque() {
				usedWidgets[link.Target] = struct{}{}
			}
		}
	}
	for _, w := range view.ListWidgets() {
		if _, ok := usedWidgets[w.Code]; !ok {
			res.Violations = append(res.Violations, relationViolation(RuleOrphanWidget, domain.SeverityWarn,
				domain.EntityLocation(domain.EntityWidget, w.Code),
				fmt.Sprintf("widget %s is not referenced by any group", w.Code)))
		}
	}
	return res, nil
}

// MarketplaceIDRule reports marketplaceId action properties that do not
// name an existing marketplace.
func MarketplaceIDRule() domain.Rule { return marketplaceIDRule{} }

type marketplaceIDRule struct{}

func (marketplaceIDRule) Name() string { return RuleDanglingMarketplaceID }

func (marketplaceIDRule) Evaluate(_ context.Context, view domain.CatalogView) (domain.Result, error) {
	res := domain.Result{}
	check := func(kind domain.EntityType, code string, attrs domain.Attributes) {
		for _, ref := range domain.MarketplaceIDRefs(attrs) {
			if ref.IsString {
				if _, ok := view.FindMarketplace(ref.Value); ok {
					continue
				}
			}
			loc := domain.RefLocation(kind, code, domain.RelationMarketplaceID, ref.Value)
			res.Violations = append(res.Violations, relationViolation(RuleDanglingMarketplaceID, domain.SeverityError, loc,
				fmt.Sprintf("%s %s actions[%d].properties[%d] marketplaceId %s does not match any marketplace",
					kind, code, ref.Action, ref.Property, ref.Value)))
		}
	}
	for _, mp := range view.ListMarketplaces() {
		check(domain.EntityMarketplace, mp.Code, mp.Attributes)
	}
	for _, g := range view.ListGroups() {
		check(domain.EntityGroup, g.Code, g.Attributes)
	}
	for _, w := range view.ListWidgets() {
		check(domain.EntityWidget, w.Code, w.Attributes)
	}
	return res, nil
}

// AggregatorCycleRule reports each strongly connected set of initial
// marketplaces linked through settingMarketplaces, including self links.
func AggregatorCycleRule() domain.Rule { return aggregatorCycleRule{} }

type aggregatorCycleRule struct{}

func (aggregatorCycleRule) Name() string { return RuleAggregatorCycle }

func (aggregatorCycleRule) Evaluate(_ context.Context, view domain.CatalogView) (domain.Result, error) {
	edges := make(map[string][]string)
	var nodes []string
	for _, mp := range view.ListMarketplaces() {
		if !mp.IsInitial() {
			continue
		}
		if _, seen := edges[mp.Code]; seen {
			continue
		}
		nodes = append(nodes, mp.Code)
		targets := []string{}
		for _, link := range mp.SettingMarketplaces {
			if t, ok := view.FindMarketplace(link.Target); ok && t.IsInitial() && !link.Opaque() {
				targets = append(targets, link.Target)
			}
		}
		edges[mp.Code] = targets
	}

	res := domain.Result{}
	for _, component := range stronglyConnected(nodes, edges) {
		if len(component) == 1 && !contains(edges[component[0]], component[0]) {
			continue
		}
		sort.Strings(component)
		loc := domain.EntityLocation(domain.EntityMarketplace, component[0])
		res.Violations = append(res.Violations, relationViolation(RuleAggregatorCycle, domain.SeverityError, loc,
			fmt.Sprintf("initial marketplaces form a cycle: %s", strings.Join(component, ", "))))
	}
	return res, nil
}

// stronglyConnected runs Tarjan's algorithm. Components come out in reverse
// topological order.
func stronglyConnected(nodes []string, edges map[string][]string) [][]string {
	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		out     [][]string
		next    int
	)
	var visit func(n string)
	visit = func(n string) {
		index[n] = next
		low[n] = next
		next++
		stack = append(stack, n)
		onStack[n] = true
		for _, m := range edges[n] {
			if _, seen := index[m]; !seen {
				visit(m)
				low[n] = min(low[n], low[m])
			} else if onStack[m] {
				low[n] = min(low[n], index[m])
			}
		}
		if low[n] != index[n] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == n {
				break
			}
		}
		out = append(out, component)
	}
	for _, n := range nodes {
		if _, seen := index[n]; !seen {
			visit(n)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DuplicateCodeRule reports codes used by more than one entity of a kind.
func DuplicateCodeRule() domain.Rule { return duplicateCodeRule{} }

type duplicateCodeRule struct{}

func (duplicateCodeRule) Name() string { return RuleDuplicateCode }

func (duplicateCodeRule) Evaluate(_ context.Context, view domain.CatalogView) (domain.Result, error) {
	res := domain.Result{}
	report := func(kind domain.EntityType, codes []string) {
		counts := make(map[string]int, len(codes))
		var order []string
		for _, c := range codes {
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
		for _, c := range order {
			if c == "" || counts[c] < 2 {
				continue
			}
			res.Violations = append(res.Violations, relationViolation(RuleDuplicateCode, domain.SeverityError,
				domain.EntityLocation(kind, c),
				fmt.Sprintf("%s code %q is used by %d entities", kind, c, counts[c])))
		}
	}
	var codes []string
	for _, mp := range view.ListMarketplaces() {
		codes = append(codes, mp.Code)
	}
	report(domain.EntityMarketplace, codes)
	codes = nil
	for _, g := range view.ListGroups() {
		codes = append(codes, g.Code)
	}
	report(domain.EntityGroup, codes)
	codes = nil
	for _, w := range view.ListWidgets() {
		codes = append(codes, w.Code)
	}
	report(domain.EntityWidget, codes)
	return res, nil
}
