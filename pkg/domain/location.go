package domain

import (
	"encoding/json"
	"fmt"
)

// Location addresses an entity, or one reference held by it, by code rather
// than array position.
type Location struct {
	Kind EntityType
	Code string
	// Relation and Child identify a reference inside the entity; both are empty
	// when the location is the entity itself.
	Relation Relation
	Child    string
}

// EntityLocation addresses an entity.
func EntityLocation(kind EntityType, code string) Location {
	return Location{Kind: kind, Code: code}
}

// RefLocation addresses a reference from an entity to child through rel.
func RefLocation(kind EntityType, code string, rel Relation, child string) Location {
	return Location{Kind: kind, Code: code, Relation: rel, Child: child}
}

// IsReference reports whether l points at a reference rather than an entity.
func (l Location) IsReference() bool { return l.Relation != "" }

func (l Location) String() string {
	if l.Relation == "" {
		return fmt.Sprintf("%s[code=%s]", l.Kind.Collection(), l.Code)
	}
	return fmt.Sprintf("%s[code=%s].%s[%s]", l.Kind.Collection(), l.Code, l.Relation, l.Child)
}

// PropertyMarketplaceID is the property code whose value names a marketplace.
const PropertyMarketplaceID = "marketplaceId"

// PropertyRef is a marketplaceId property found inside an entity's actions.
type PropertyRef struct {
	Action   int
	Property int
	// Value is the property value; non-string values are kept as JSON text.
	Value    string
	IsString bool
}

// MarketplaceIDRefs lists every actions[].properties[] entry whose code is
// "marketplaceId". Malformed actions are skipped.
func MarketplaceIDRefs(attrs Attributes) []PropertyRef {
	var refs []PropertyRef
	_ = walkMarketplaceIDs(attrs, func(ai, pi int, prop []Attribute, vi int) bool {
		ref := PropertyRef{Action: ai, Property: pi}
		if vi < 0 {
			ref.Value = "undefined"
		} else {
			raw := prop[vi].Value
			var s string
			if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
				ref.Value, ref.IsString = s, true
			} else {
				ref.Value = string(raw)
			}
		}
		refs = append(refs, ref)
		return false
	})
	return refs
}

// RewriteMarketplaceIDs returns a copy of attrs where every marketplaceId
// property equal to from is set to to, with the number of rewrites.
func RewriteMarketplaceIDs(attrs Attributes, from, to string) (Attributes, int) {
	out := attrs.Clone()
	repl, _ := encodeValue(to)
	count := walkMarketplaceIDs(out, func(_, _ int, prop []Attribute, vi int) bool {
		if vi < 0 || !isStringValue(prop[vi].Value, from) {
			return false
		}
		prop[vi].Value = repl
		return true
	})
	if count == 0 {
		return attrs.Clone(), 0
	}
	return out, count
}

// walkMarketplaceIDs visits marketplaceId properties. When visit returns true
// the property was modified and the actions array is re-encoded in place.
func walkMarketplaceIDs(attrs Attributes, visit func(action, property int, prop []Attribute, valueIdx int) bool) int {
	idx := attrs.index(FieldActions)
	if idx < 0 {
		return 0
	}
	actions, err := decodeArray(attrs.entries[idx].Value)
	if err != nil {
		return 0
	}
	changed := 0
	for ai, rawAction := range actions {
		action, err := decodeObject(rawAction)
		if err != nil {
			continue
		}
		actionChanged := false
		for k, field := range action {
			if field.Key != FieldProperties {
				continue
			}
			props, err := decodeArray(field.Value)
			if err != nil {
				continue
			}
			propsChanged := false
			for pi, rawProp := range props {
				prop, err := decodeObject(rawProp)
				if err != nil || !hasStringField(prop, FieldCode, PropertyMarketplaceID) {
					continue
				}
				vi := -1
				for j, pf := range prop {
					if pf.Key == "value" {
						vi = j
					}
				}
				if visit(ai, pi, prop, vi) {
					props[pi] = encodeObject(prop)
					propsChanged = true
					changed++
				}
			}
			if propsChanged {
				action[k].Value = encodeRawArray(props)
				actionChanged = true
			}
		}
		if actionChanged {
			actions[ai] = encodeObject(action)
		}
	}
	if changed > 0 {
		attrs.entries[idx].Value = encodeRawArray(actions)
	}
	return changed
}

func hasStringField(fields []Attribute, key, want string) bool {
	for _, f := range fields {
		if f.Key != key {
			continue
		}
		return isStringValue(f.Value, want)
	}
	return false
}

// isStringValue reports whether raw is a JSON string equal to want once
// decoded, so escaped spellings compare equal.
func isStringValue(raw json.RawMessage, want string) bool {
	var s string
	return len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil && s == want
}

func encodeRawArray(items []json.RawMessage) json.RawMessage {
	out := []byte{'['}
	for i, item := range items {
		if i > 0 {
			out = append(out, ',')
		}
		compact, err := compactRaw(item)
		if err != nil {
			compact = item
		}
		out = append(out, compact...)
	}
	return append(out, ']')
}
