package filter

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"catalogcore/pkg/domain"
)

// FilterOption lists the distinct scalar values a field takes for a kind.
type FilterOption struct {
	Kind   domain.EntityType
	Field  string
	Values []any
}

// AvailableFilters collects, per kind and top-level field, the distinct
// scalar values present in view. Codes, reference lists and nested values are
// skipped. Output is sorted by kind, field and value.
func AvailableFilters(view domain.CatalogView) []FilterOption {
	var out []FilterOption
	collect := func(kind domain.EntityType, records []domain.Attributes) {
		fields := map[string]map[string]any{}
		for _, attrs := range records {
			for _, a := range attrs.All() {
				res := gjson.ParseBytes(a.Value)
				var v any
				switch res.Type {
				case gjson.String:
					v = res.Str
				case gjson.Number:
					v = res.Num
				case gjson.True, gjson.False:
					v = res.Bool()
				default:
					continue
				}
				if fields[a.Key] == nil {
					fields[a.Key] = map[string]any{}
				}
				fields[a.Key][res.Raw] = v
			}
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			values := make([]any, 0, len(fields[name]))
			for _, v := range fields[name] {
				values = append(values, v)
			}
			sort.Slice(values, func(i, j int) bool { return sortKey(values[i]) < sortKey(values[j]) })
			out = append(out, FilterOption{Kind: kind, Field: name, Values: values})
		}
	}

	var attrs []domain.Attributes
	for _, m := range view.ListMarketplaces() {
		attrs = append(attrs, m.Attributes)
	}
	collect(domain.EntityMarketplace, attrs)
	attrs = nil
	for _, g := range view.ListGroups() {
		attrs = append(attrs, g.Attributes)
	}
	collect(domain.EntityGroup, attrs)
	attrs = nil
	for _, w := range view.ListWidgets() {
		attrs = append(attrs, w.Attributes)
	}
	collect(domain.EntityWidget, attrs)
	return out
}

func sortKey(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
