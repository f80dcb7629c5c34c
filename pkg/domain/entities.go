// Package domain defines the catalog entity model shared by the store, the
// resolver, the mutation engine and the validation pipeline.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EntityType identifies an entity collection (or the relation pseudo-kind used
// by change items).
type EntityType string

// Supported entity kinds.
const (
	EntityMarketplace EntityType = "marketplace"
	EntityGroup       EntityType = "group"
	EntityWidget      EntityType = "widget"
	// EntityRelation tags change items describing link membership.
	EntityRelation EntityType = "relation"
)

// EntityTypes lists the three collection kinds in document order.
func EntityTypes() []EntityType {
	return []EntityType{EntityMarketplace, EntityGroup, EntityWidget}
}

// Valid reports whether k names one of the three collections.
func (k EntityType) Valid() bool {
	switch k {
	case EntityMarketplace, EntityGroup, EntityWidget:
		return true
	}
	return false
}

// Collection returns the top-level document key holding entities of kind k.
func (k EntityType) Collection() string {
	switch k {
	case EntityMarketplace:
		return "marketplaces"
	case EntityGroup:
		return "groups"
	case EntityWidget:
		return "widgets"
	}
	return ""
}

// ParseEntityType converts user input into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	k := EntityType(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Well-known field names.
const (
	FieldCode                = "code"
	FieldName                = "name"
	FieldTitle               = "title"
	FieldDescription         = "description"
	FieldIsInitial           = "isInitial"
	FieldActions             = "actions"
	FieldProperties          = "properties"
	FieldDisplayOrder        = "displayOrder"
	FieldMarketplaceGroups   = "marketplaceGroups"
	FieldSettingMarketplaces = "settingMarketplaces"
	FieldGroupWidgets        = "groupWidgets"
)

var fieldOrder = map[EntityType][]string{
	EntityMarketplace: {
		"code", "title", "name", "description", "channel",
		"headerViewTypeCode", "headerBackImage", "headerBackStyleCode",
		"sortingParameter", "filteringParameter", "isInitial",
		"marketplaceGroups", "actions", "properties", "settingMarketplaces",
	},
	EntityGroup: {
		"code", "title", "name", "description", "channel", "bhb120",
		"viewTypeCode", "categoryCode", "widgetViewTypeCode", "widgetBackStyleCode",
		"groupWidgets", "actions", "properties",
	},
	EntityWidget: {
		"code", "title", "name", "description", "underDescription", "channel",
		"bhb120", "categoryCode", "icon", "productBackStyleCode",
		"actions", "properties",
	},
}

// FieldOrder returns the canonical field order for kind. Fields outside the
// list follow in their original relative order.
func FieldOrder(kind EntityType) []string {
	return append([]string(nil), fieldOrder[kind]...)
}

// Entity is implemented by Marketplace, Group and Widget.
type Entity interface {
	Kind() EntityType
	EntityCode() string
}

// Relation names a reference list and the kinds it connects.
type Relation string

// Reference lists carried by parent entities.
const (
	RelationMarketplaceGroups   Relation = FieldMarketplaceGroups
	RelationSettingMarketplaces Relation = FieldSettingMarketplaces
	RelationGroupWidgets        Relation = FieldGroupWidgets
	// RelationMarketplaceID is the implicit reference held by
	// actions[].properties[] entries with code "marketplaceId".
	RelationMarketplaceID Relation = "actions.marketplaceId"
)

// LinkRelations lists the relations stored as reference records.
func LinkRelations() []Relation {
	return []Relation{RelationMarketplaceGroups, RelationSettingMarketplaces, RelationGroupWidgets}
}

// Parent returns the kind owning the reference list. RelationMarketplaceID can
// live on any kind and returns "".
func (r Relation) Parent() EntityType {
	switch r {
	case RelationMarketplaceGroups, RelationSettingMarketplaces:
		return EntityMarketplace
	case RelationGroupWidgets:
		return EntityGroup
	}
	return ""
}

// Child returns the kind referenced by the relation.
func (r Relation) Child() EntityType {
	switch r {
	case RelationMarketplaceGroups:
		return EntityGroup
	case RelationGroupWidgets:
		return EntityWidget
	case RelationSettingMarketplaces, RelationMarketplaceID:
		return EntityMarketplace
	}
	return ""
}

// TargetKey returns the field of a reference record naming the child code.
func (r Relation) TargetKey() string {
	switch r {
	case RelationMarketplaceGroups:
		return "group"
	case RelationGroupWidgets:
		return "widget"
	case RelationSettingMarketplaces:
		return "marketplace"
	}
	return ""
}

// Link is a reference record inside a parent's reference list.
type Link struct {
	Target       string
	DisplayOrder float64
	// Extra holds any additional fields of the record.
	Extra Attributes
	// Raw holds a record without the reference shape: null, a non-object, or
	// an object whose target is missing or not a string. Such a record names
	// no child and is written back unchanged in its position.
	Raw json.RawMessage

	// order is the displayOrder text as read, kept so an unchanged value is
	// written back byte for byte. noOrder marks a record read without one.
	order   json.RawMessage
	noOrder bool
}

// Opaque reports whether l is a record kept verbatim because it has no
// usable target.
func (l Link) Opaque() bool { return l.Raw != nil }

// Clone returns a deep copy of l.
func (l Link) Clone() Link {
	l.Extra = l.Extra.Clone()
	l.Raw = cloneLinkRaw(l.Raw)
	l.order = cloneLinkRaw(l.order)
	return l
}

func cloneLinkRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// CloneLinks deep-copies a reference list, keeping nil as nil.
func CloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = l.Clone()
	}
	return out
}

// IndexOfLink returns the position of the first record naming target, or -1.
func IndexOfLink(links []Link, target string) int {
	for i, l := range links {
		if !l.Opaque() && l.Target == target {
			return i
		}
	}
	return -1
}

// NextDisplayOrder returns one past the largest displayOrder in links, or 1
// when no record names a child.
func NextDisplayOrder(links []Link) float64 {
	highest, found := 0.0, false
	for _, l := range links {
		if l.Opaque() {
			continue
		}
		if !found || l.DisplayOrder > highest {
			highest, found = l.DisplayOrder, true
		}
	}
	if !found {
		return 1
	}
	return highest + 1
}

// ParseDisplayOrder reads a displayOrder value. Numeric strings are accepted
// the way a loose numeric comparison would coerce them.
func ParseDisplayOrder(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// Marketplace is a top-level catalog node. Aggregators (isInitial) link other
// marketplaces through SettingMarketplaces instead of groups.
type Marketplace struct {
	Code                string
	MarketplaceGroups   []Link
	SettingMarketplaces []Link
	Attributes          Attributes
}

// Kind implements Entity.
func (m Marketplace) Kind() EntityType { return EntityMarketplace }

// EntityCode implements Entity.
func (m Marketplace) EntityCode() string { return m.Code }

// IsInitial reports whether m is an aggregator marketplace.
func (m Marketplace) IsInitial() bool { return m.Attributes.Bool(FieldIsInitial) }

// Name returns the name attribute when it is a string.
func (m Marketplace) Name() string {
	s, _ := m.Attributes.Text(FieldName)
	return s
}

// Title returns the title attribute when it is a string.
func (m Marketplace) Title() string {
	s, _ := m.Attributes.Text(FieldTitle)
	return s
}

// Clone returns a deep copy of m.
func (m Marketplace) Clone() Marketplace {
	m.MarketplaceGroups = CloneLinks(m.MarketplaceGroups)
	m.SettingMarketplaces = CloneLinks(m.SettingMarketplaces)
	m.Attributes = m.Attributes.Clone()
	return m
}

// Links returns the reference list for rel.
func (m Marketplace) Links(rel Relation) []Link {
	switch rel {
	case RelationMarketplaceGroups:
		return m.MarketplaceGroups
	case RelationSettingMarketplaces:
		return m.SettingMarketplaces
	}
	return nil
}

// SetLinks replaces the reference list for rel.
func (m *Marketplace) SetLinks(rel Relation, links []Link) {
	switch rel {
	case RelationMarketplaceGroups:
		m.MarketplaceGroups = links
	case RelationSettingMarketplaces:
		m.SettingMarketplaces = links
	}
}

// ActiveRelation is the reference list consulted for display: settingMarketplaces
// for aggregators, marketplaceGroups otherwise.
func (m Marketplace) ActiveRelation() Relation {
	if m.IsInitial() {
		return RelationSettingMarketplaces
	}
	return RelationMarketplaceGroups
}

// MarshalJSON writes fields in canonical order.
func (m Marketplace) MarshalJSON() ([]byte, error) {
	return marshalEntity(EntityMarketplace, m.Code, m.Attributes, map[string][]Link{
		FieldMarketplaceGroups:   m.MarketplaceGroups,
		FieldSettingMarketplaces: m.SettingMarketplaces,
	})
}

// UnmarshalJSON reads a marketplace keeping unknown fields.
func (m *Marketplace) UnmarshalJSON(data []byte) error {
	code, attrs, links, err := unmarshalEntity(data, RelationMarketplaceGroups, RelationSettingMarketplaces)
	if err != nil {
		return err
	}
	*m = Marketplace{
		Code:                code,
		MarketplaceGroups:   links[RelationMarketplaceGroups],
		SettingMarketplaces: links[RelationSettingMarketplaces],
		Attributes:          attrs,
	}
	return nil
}

// Group is a shared container of widgets.
type Group struct {
	Code         string
	GroupWidgets []Link
	Attributes   Attributes
}

// Kind implements Entity.
func (g Group) Kind() EntityType { return EntityGroup }

// EntityCode implements Entity.
func (g Group) EntityCode() string { return g.Code }

// Name returns the name attribute when it is a string.
func (g Group) Name() string {
	s, _ := g.Attributes.Text(FieldName)
	return s
}

// Clone returns a deep copy of g.
func (g Group) Clone() Group {
	g.GroupWidgets = CloneLinks(g.GroupWidgets)
	g.Attributes = g.Attributes.Clone()
	return g
}

// MarshalJSON writes fields in canonical order.
func (g Group) MarshalJSON() ([]byte, error) {
	return marshalEntity(EntityGroup, g.Code, g.Attributes, map[string][]Link{
		FieldGroupWidgets: g.GroupWidgets,
	})
}

// UnmarshalJSON reads a group keeping unknown fields.
func (g *Group) UnmarshalJSON(data []byte) error {
	code, attrs, links, err := unmarshalEntity(data, RelationGroupWidgets)
	if err != nil {
		return err
	}
	*g = Group{Code: code, GroupWidgets: links[RelationGroupWidgets], Attributes: attrs}
	return nil
}

// Widget is a leaf entity.
type Widget struct {
	Code       string
	Attributes Attributes
}

// Kind implements Entity.
func (w Widget) Kind() EntityType { return EntityWidget }

// EntityCode implements Entity.
func (w Widget) EntityCode() string { return w.Code }

// Name returns the name attribute when it is a string.
func (w Widget) Name() string {
	s, _ := w.Attributes.Text(FieldName)
	return s
}

// Clone returns a deep copy of w.
func (w Widget) Clone() Widget {
	w.Attributes = w.Attributes.Clone()
	return w
}

// MarshalJSON writes fields in canonical order.
func (w Widget) MarshalJSON() ([]byte, error) {
	return marshalEntity(EntityWidget, w.Code, w.Attributes, nil)
}

// UnmarshalJSON reads a widget keeping unknown fields.
func (w *Widget) UnmarshalJSON(data []byte) error {
	code, attrs, _, err := unmarshalEntity(data)
	if err != nil {
		return err
	}
	*w = Widget{Code: code, Attributes: attrs}
	return nil
}

// AttributesOf returns the attribute bag of any entity.
func AttributesOf(e Entity) Attributes {
	switch v := e.(type) {
	case Marketplace:
		return v.Attributes
	case Group:
		return v.Attributes
	case Widget:
		return v.Attributes
	case *Marketplace:
		return v.Attributes
	case *Group:
		return v.Attributes
	case *Widget:
		return v.Attributes
	}
	return Attributes{}
}

// WithCode returns a copy of e carrying a different code.
func WithCode(e Entity, code string) Entity {
	switch v := e.(type) {
	case Marketplace:
		v = v.Clone()
		v.Code = code
		return v
	case Group:
		v = v.Clone()
		v.Code = code
		return v
	case Widget:
		v = v.Clone()
		v.Code = code
		return v
	}
	return e
}

// unmarshalEntity splits an entity object into its code, reference lists and
// remaining attributes. Values that do not fit the typed shape (a numeric
// code, a reference list that is not an array) stay in the attribute bag
// untouched so they survive a round trip and surface through schema
// validation.
func unmarshalEntity(data []byte, relations ...Relation) (string, Attributes, map[Relation][]Link, error) {
	entries, err := decodeObject(data)
	if err != nil {
		return "", Attributes{}, nil, err
	}
	var (
		code  string
		attrs Attributes
		links = make(map[Relation][]Link, len(relations))
	)
	isRelation := func(key string) (Relation, bool) {
		for _, r := range relations {
			if string(r) == key {
				return r, true
			}
		}
		return "", false
	}
	for _, e := range entries {
		if e.Key == FieldCode {
			var s string
			if len(e.Value) > 0 && e.Value[0] == '"' && json.Unmarshal(e.Value, &s) == nil && s != "" {
				code = s
				continue
			}
		}
		if rel, ok := isRelation(e.Key); ok {
			if decoded, err := decodeLinks(rel, e.Value); err == nil {
				links[rel] = decoded
				continue
			}
		}
		attrs.entries = append(attrs.entries, e)
	}
	return code, attrs, links, nil
}

// decodeLinks reads a reference list record by record. Only a value that is
// not an array fails; records without the reference shape are kept opaque.
func decodeLinks(rel Relation, raw json.RawMessage) ([]Link, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(items))
	for _, item := range items {
		links = append(links, decodeLink(rel.TargetKey(), item))
	}
	return links, nil
}

func decodeLink(key string, raw json.RawMessage) Link {
	opaque := Link{Raw: raw}
	entries, err := decodeObject(raw)
	if err != nil {
		return opaque
	}
	link := Link{noOrder: true}
	hasTarget := false
	for _, e := range entries {
		switch e.Key {
		case key:
			if len(e.Value) == 0 || e.Value[0] != '"' || json.Unmarshal(e.Value, &link.Target) != nil {
				return opaque
			}
			hasTarget = true
		case FieldDisplayOrder:
			link.DisplayOrder, _ = ParseDisplayOrder(e.Value)
			link.order, link.noOrder = e.Value, false
		default:
			link.Extra.entries = append(link.Extra.entries, e)
		}
	}
	if !hasTarget {
		return opaque
	}
	return link
}

func marshalEntity(kind EntityType, code string, attrs Attributes, links map[string][]Link) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeKey(&buf, key)
		buf.Write(value)
	}
	emitted := make(map[string]bool)
	emit := func(key string) error {
		if emitted[key] {
			return nil
		}
		switch {
		case key == FieldCode && code != "":
			raw, _ := encodeValue(code)
			write(key, raw)
		case links[key] != nil:
			if attrs.Has(key) {
				return fmt.Errorf("%s: reference list would replace a non-list value", key)
			}
			raw, err := marshalLinks(Relation(key), links[key])
			if err != nil {
				return err
			}
			write(key, raw)
		default:
			raw, ok := attrs.Get(key)
			if !ok {
				return nil
			}
			write(key, raw)
		}
		emitted[key] = true
		return nil
	}
	for _, key := range fieldOrder[kind] {
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	for _, e := range attrs.entries {
		if err := emit(e.Key); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalLinks(rel Relation, links []Link) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, l := range links {
		if i > 0 {
			buf.WriteByte(',')
		}
		if l.Opaque() {
			buf.Write(l.Raw)
			continue
		}
		entries := make([]Attribute, 0, l.Extra.Len()+2)
		target, err := encodeValue(l.Target)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Attribute{Key: rel.TargetKey(), Value: target})
		order, ok, err := l.encodeOrder()
		if err != nil {
			return nil, fmt.Errorf("%s[%d].displayOrder: %w", rel, i, err)
		}
		if ok {
			entries = append(entries, Attribute{Key: FieldDisplayOrder, Value: order})
		}
		entries = append(entries, l.Extra.entries...)
		buf.Write(encodeObject(entries))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// encodeOrder returns the displayOrder text to write. The text read from the
// source is reused while DisplayOrder still holds the value it parsed to. A
// record read without displayOrder stays without one until it is assigned.
func (l Link) encodeOrder() (json.RawMessage, bool, error) {
	if l.order != nil {
		if v, _ := ParseDisplayOrder(l.order); v == l.DisplayOrder {
			return l.order, true, nil
		}
	} else if l.noOrder && l.DisplayOrder == 0 {
		return nil, false, nil
	}
	raw, err := encodeValue(l.DisplayOrder)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
