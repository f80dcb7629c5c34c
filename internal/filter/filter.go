// Package filter computes restricted catalog views from field predicates, a
// code search term and optional boolean expressions.
package filter

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"catalogcore/pkg/domain"
)

// PredicateKey selects the field a predicate tests. Field is a gjson path
// evaluated against the entity's JSON form, so nested values are addressable
// as "header.style".
type PredicateKey struct {
	Kind  domain.EntityType
	Field string
}

// Query describes a filter. Predicates with an empty value list are inactive.
type Query struct {
	Predicates map[PredicateKey][]any
	// Term is matched case-insensitively as a substring of code.
	Term string
	// Expressions holds an optional boolean expr-lang expression per kind,
	// evaluated with the entity's fields plus "code" in scope.
	Expressions map[domain.EntityType]string
}

// Where adds a predicate and returns q for chaining.
func (q Query) Where(kind domain.EntityType, field string, values ...any) Query {
	if q.Predicates == nil {
		q.Predicates = make(map[PredicateKey][]any)
	}
	key := PredicateKey{Kind: kind, Field: field}
	q.Predicates[key] = append(append([]any(nil), q.Predicates[key]...), values...)
	return q
}

type matcher struct {
	term  string
	preds map[domain.EntityType][]predicate
	exprs map[domain.EntityType]*expression
}

type predicate struct {
	field   string
	allowed []any
}

// Apply returns the entities of view visible under q. A widget is visible when
// it matches the term and its predicates. A group is visible when it passes
// its predicates and matches the term or references a visible widget. A
// marketplace is visible when it passes its predicates and matches the term,
// references a visible group, or (for aggregators) links a visible
// marketplace. The input is never modified.
func Apply(view domain.CatalogView, q Query) (*domain.Snapshot, error) {
	m, err := newMatcher(q)
	if err != nil {
		return nil, err
	}
	var out domain.Document

	visibleWidgets := map[string]bool{}
	for _, w := range view.ListWidgets() {
		ok, err := m.accepts(w, w.Attributes)
		if err != nil {
			return nil, err
		}
		if ok && m.matchesTerm(w.Code) {
			visibleWidgets[w.Code] = true
			out.Widgets = append(out.Widgets, w.Clone())
		}
	}

	visibleGroups := map[string]bool{}
	for _, g := range view.ListGroups() {
		ok, err := m.accepts(g, g.Attributes)
		if err != nil {
			return nil, err
		}
		if ok && (m.matchesTerm(g.Code) || anyVisible(g.GroupWidgets, visibleWidgets)) {
			visibleGroups[g.Code] = true
			out.Groups = append(out.Groups, g.Clone())
		}
	}

	marketplaces := view.ListMarketplaces()
	eligible := make([]bool, len(marketplaces))
	visible := make([]bool, len(marketplaces))
	visibleCodes := map[string]bool{}
	for i, mp := range marketplaces {
		ok, err := m.accepts(mp, mp.Attributes)
		if err != nil {
			return nil, err
		}
		eligible[i] = ok
		if ok && (m.matchesTerm(mp.Code) || anyVisible(mp.MarketplaceGroups, visibleGroups)) {
			visible[i] = true
			visibleCodes[mp.Code] = true
		}
	}
	// Aggregators inherit visibility from linked marketplaces; iterate until
	// stable so chains of aggregators resolve.
	for changed := true; changed; {
		changed = false
		for i, mp := range marketplaces {
			if visible[i] || !eligible[i] || !mp.IsInitial() {
				continue
			}
			if anyVisible(mp.SettingMarketplaces, visibleCodes) {
				visible[i] = true
				visibleCodes[mp.Code] = true
				changed = true
			}
		}
	}
	for i, mp := range marketplaces {
		if visible[i] {
			out.Marketplaces = append(out.Marketplaces, mp.Clone())
		}
	}
	return domain.NewSnapshot(out), nil
}

func newMatcher(q Query) (*matcher, error) {
	m := &matcher{
		term:  strings.ToLower(q.Term),
		preds: make(map[domain.EntityType][]predicate),
		exprs: make(map[domain.EntityType]*expression),
	}
	for key, values := range q.Predicates {
		if len(values) == 0 {
			continue
		}
		m.preds[key.Kind] = append(m.preds[key.Kind], predicate{field: key.Field, allowed: values})
	}
	for kind, src := range q.Expressions {
		if strings.TrimSpace(src) == "" {
			continue
		}
		compiled, err := compileExpression(kind, src)
		if err != nil {
			return nil, err
		}
		m.exprs[kind] = compiled
	}
	return m, nil
}

func (m *matcher) matchesTerm(code string) bool {
	return m.term == "" || strings.Contains(strings.ToLower(code), m.term)
}

func (m *matcher) accepts(e domain.Entity, attrs domain.Attributes) (bool, error) {
	preds := m.preds[e.Kind()]
	if len(preds) > 0 {
		data, err := json.Marshal(e)
		if err != nil {
			return false, err
		}
		for _, p := range preds {
			if !p.matches(gjson.GetBytes(data, p.field)) {
				return false, nil
			}
		}
	}
	if x := m.exprs[e.Kind()]; x != nil {
		return x.eval(e.EntityCode(), attrs)
	}
	return true, nil
}

func (p predicate) matches(res gjson.Result) bool {
	if !res.Exists() {
		return false
	}
	for _, want := range p.allowed {
		if valueEquals(res, want) {
			return true
		}
	}
	return false
}

func valueEquals(res gjson.Result, want any) bool {
	switch w := want.(type) {
	case nil:
		return res.Type == gjson.Null
	case string:
		return res.Type == gjson.String && res.Str == w
	case bool:
		return (res.Type == gjson.True && w) || (res.Type == gjson.False && !w)
	case json.Number:
		f, err := w.Float64()
		return err == nil && res.Type == gjson.Number && res.Num == f
	case float64:
		return res.Type == gjson.Number && res.Num == w
	case float32:
		return res.Type == gjson.Number && res.Num == float64(w)
	case int:
		return res.Type == gjson.Number && res.Num == float64(w)
	case int64:
		return res.Type == gjson.Number && res.Num == float64(w)
	}
	raw, err := json.Marshal(want)
	return err == nil && string(raw) == res.Raw
}

func anyVisible(links []domain.Link, visible map[string]bool) bool {
	for _, l := range links {
		if !l.Opaque() && visible[l.Target] {
			return true
		}
	}
	return false
}
