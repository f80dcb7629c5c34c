package mutate

import (
	"encoding/json"

	"catalogcore/pkg/domain"
)

type defaultField struct {
	key   string
	value json.RawMessage
}

var (
	null      = json.RawMessage("null")
	empty     = json.RawMessage(`""`)
	falseVal  = json.RawMessage("false")
	emptyList = json.RawMessage("[]")
)

var kindDefaults = map[domain.EntityType][]defaultField{
	domain.EntityMarketplace: {
		{"title", null}, {"name", null}, {"description", null}, {"channel", empty},
		{"headerViewTypeCode", null}, {"headerBackImage", null}, {"headerBackStyleCode", null},
		{"sortingParameter", null}, {"filteringParameter", null}, {"isInitial", falseVal},
	},
	domain.EntityGroup: {
		{"title", null}, {"name", null}, {"channel", empty}, {"bhb120", falseVal},
		{"viewTypeCode", null}, {"categoryCode", null},
		{"widgetViewTypeCode", null}, {"widgetBackStyleCode", null},
	},
	domain.EntityWidget: {
		{"title", empty}, {"name", null}, {"description", null}, {"underDescription", null},
		{"channel", empty}, {"bhb120", falseVal}, {"categoryCode", null}, {"icon", null},
		{"productBackStyleCode", null}, {"actions", emptyList}, {"properties", emptyList},
	},
}

// withDefaults fills fields absent from attrs with the kind defaults. Code and
// reference lists are owned by the typed record and dropped from attrs.
func withDefaults(kind domain.EntityType, attrs domain.Attributes) (domain.Attributes, error) {
	var out domain.Attributes
	for _, f := range kindDefaults[kind] {
		if err := out.SetRaw(f.key, f.value); err != nil {
			return domain.Attributes{}, err
		}
	}
	for _, a := range attrs.All() {
		switch a.Key {
		case domain.FieldCode, domain.FieldMarketplaceGroups, domain.FieldSettingMarketplaces, domain.FieldGroupWidgets:
			continue
		}
		if err := out.SetRaw(a.Key, a.Value); err != nil {
			return domain.Attributes{}, err
		}
	}
	return out.Reorder(domain.FieldOrder(kind)), nil
}
