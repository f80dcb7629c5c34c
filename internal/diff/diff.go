// Package diff lists the differences between the current catalog and the
// document it was loaded from.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"catalogcore/pkg/domain"
)

// ignored fields never count as entity modifications: reference lists are
// compared as relations, the rest is bookkeeping.
var ignored = map[string]bool{
	domain.FieldMarketplaceGroups:   true,
	domain.FieldSettingMarketplaces: true,
	domain.FieldGroupWidgets:        true,
	domain.FieldDisplayOrder:        true,
	"found":                         true,
}

// Compute returns entity items per kind in marketplace, group, widget order,
// then relation items for membership changes of parents present in both.
// Within a kind, added and modified entities follow current order and deleted
// ones follow original order.
func Compute(current, original domain.CatalogView) []domain.ChangeItem {
	var out []domain.ChangeItem
	out = append(out, entities(domain.EntityMarketplace, marketplaceRecords(current), marketplaceRecords(original))...)
	out = append(out, entities(domain.EntityGroup, groupRecords(current), groupRecords(original))...)
	out = append(out, entities(domain.EntityWidget, widgetRecords(current), widgetRecords(original))...)

	for _, mp := range current.ListMarketplaces() {
		before, ok := original.FindMarketplace(mp.Code)
		if !ok {
			continue
		}
		out = append(out, relations(domain.RelationMarketplaceGroups, mp.Code, mp.MarketplaceGroups, before.MarketplaceGroups)...)
		out = append(out, relations(domain.RelationSettingMarketplaces, mp.Code, mp.SettingMarketplaces, before.SettingMarketplaces)...)
	}
	for _, g := range current.ListGroups() {
		before, ok := original.FindGroup(g.Code)
		if !ok {
			continue
		}
		out = append(out, relations(domain.RelationGroupWidgets, g.Code, g.GroupWidgets, before.GroupWidgets)...)
	}
	return out
}

type record struct {
	code  string
	attrs domain.Attributes
}

func marketplaceRecords(view domain.CatalogView) []record {
	list := view.ListMarketplaces()
	out := make([]record, len(list))
	for i, m := range list {
		out[i] = record{code: m.Code, attrs: m.Attributes}
	}
	return out
}

func groupRecords(view domain.CatalogView) []record {
	list := view.ListGroups()
	out := make([]record, len(list))
	for i, g := range list {
		out[i] = record{code: g.Code, attrs: g.Attributes}
	}
	return out
}

func widgetRecords(view domain.CatalogView) []record {
	list := view.ListWidgets()
	out := make([]record, len(list))
	for i, w := range list {
		out[i] = record{code: w.Code, attrs: w.Attributes}
	}
	return out
}

func entities(kind domain.EntityType, current, original []record) []domain.ChangeItem {
	before := make(map[string]record, len(original))
	for _, r := range original {
		if _, ok := before[r.code]; !ok {
			before[r.code] = r
		}
	}
	present := make(map[string]bool, len(current))
	var out []domain.ChangeItem
	for _, r := range current {
		if present[r.code] {
			continue
		}
		present[r.code] = true
		old, ok := before[r.code]
		if !ok {
			out = append(out, domain.ChangeItem{Kind: kind, Code: r.code, Action: domain.ChangeAdded})
			continue
		}
		if fields := changedFields(r.attrs, old.attrs); len(fields) > 0 {
			out = append(out, domain.ChangeItem{
				Kind:   kind,
				Code:   r.code,
				Action: domain.ChangeModified,
				Detail: "fields: " + strings.Join(fields, ", "),
			})
		}
	}
	for _, r := range original {
		if present[r.code] {
			continue
		}
		present[r.code] = true
		out = append(out, domain.ChangeItem{Kind: kind, Code: r.code, Action: domain.ChangeDeleted})
	}
	return out
}

// changedFields compares two attribute sets ignoring field order and the
// ignored fields, and returns the sorted names of fields that differ.
func changedFields(current, original domain.Attributes) []string {
	names := make(map[string]bool)
	for _, k := range current.Keys() {
		names[k] = true
	}
	for _, k := range original.Keys() {
		names[k] = true
	}
	var out []string
	for name := range names {
		if ignored[name] {
			continue
		}
		a, aok := current.Get(name)
		b, bok := original.Get(name)
		if aok != bok || !sameJSON(a, b) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// sameJSON compares two values structurally, so object key order and number
// spelling do not matter.
func sameJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(na, nb)
}

func normalize(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func relations(rel domain.Relation, parent string, current, original []domain.Link) []domain.ChangeItem {
	current, original = named(current), named(original)
	before := make(map[string]domain.Link, len(original))
	for _, l := range original {
		if _, ok := before[l.Target]; !ok {
			before[l.Target] = l
		}
	}
	item := func(child string, action domain.ChangeAction, detail string) domain.ChangeItem {
		return domain.ChangeItem{
			Kind:     domain.EntityRelation,
			Code:     domain.RelationCode(parent, child),
			Action:   action,
			Detail:   detail,
			Relation: rel,
		}
	}
	seen := make(map[string]bool, len(current))
	var out []domain.ChangeItem
	for _, l := range current {
		if seen[l.Target] {
			continue
		}
		seen[l.Target] = true
		old, ok := before[l.Target]
		switch {
		case !ok:
			out = append(out, item(l.Target, domain.ChangeAdded, fmt.Sprintf("%s link added", rel)))
		case l.DisplayOrder != old.DisplayOrder:
			out = append(out, item(l.Target, domain.ChangeModified,
				fmt.Sprintf("displayOrder %v → %v", old.DisplayOrder, l.DisplayOrder)))
		default:
			if fields := changedFields(l.Extra, old.Extra); len(fields) > 0 {
				out = append(out, item(l.Target, domain.ChangeModified, "fields: "+strings.Join(fields, ", ")))
			}
		}
	}
	for _, l := range original {
		if seen[l.Target] {
			continue
		}
		seen[l.Target] = true
		out = append(out, item(l.Target, domain.ChangeDeleted, fmt.Sprintf("%s link removed", rel)))
	}
	return out
}

// named drops opaque records, which name no child.
func named(links []domain.Link) []domain.Link {
	out := make([]domain.Link, 0, len(links))
	for _, l := range links {
		if !l.Opaque() {
			out = append(out, l)
		}
	}
	return out
}
