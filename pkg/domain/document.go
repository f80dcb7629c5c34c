package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document is the in-memory form of a catalog file: three flat collections
// plus any unrecognised top-level fields.
type Document struct {
	Marketplaces []Marketplace
	Groups       []Group
	Widgets      []Widget
	Extra        Attributes
}

// ParseDocument decodes a catalog file. It fails with FormatError when data is
// not a JSON object holding marketplaces, groups and widgets arrays of objects.
func ParseDocument(data []byte) (Document, error) {
	entries, err := decodeObject(data)
	if err != nil {
		return Document{}, FormatError{Reason: "document is not a JSON object", Err: err}
	}
	var (
		doc   Document
		found = make(map[string]bool, 3)
	)
	for _, e := range entries {
		switch e.Key {
		case "marketplaces":
			doc.Marketplaces, err = decodeCollection[Marketplace](e.Key, e.Value)
		case "groups":
			doc.Groups, err = decodeCollection[Group](e.Key, e.Value)
		case "widgets":
			doc.Widgets, err = decodeCollection[Widget](e.Key, e.Value)
		default:
			doc.Extra.entries = append(doc.Extra.entries, e)
			continue
		}
		if err != nil {
			return Document{}, err
		}
		found[e.Key] = true
	}
	for _, kind := range EntityTypes() {
		if !found[kind.Collection()] {
			return Document{}, FormatError{Reason: fmt.Sprintf("missing %q array", kind.Collection())}
		}
	}
	return doc, nil
}

// ReadDocument parses a catalog file from r.
func ReadDocument(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return ParseDocument(data)
}

func decodeCollection[T any, PT interface {
	*T
	json.Unmarshaler
}](key string, raw json.RawMessage) ([]T, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, FormatError{Reason: fmt.Sprintf("%q is not an array", key), Err: err}
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		if !isObject(item) {
			return nil, FormatError{Reason: fmt.Sprintf("%s[%d] is not an object", key, i)}
		}
		var v T
		if err := PT(&v).UnmarshalJSON(item); err != nil {
			return nil, FormatError{Reason: fmt.Sprintf("%s[%d] is malformed", key, i), Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Marketplaces: make([]Marketplace, len(d.Marketplaces)),
		Groups:       make([]Group, len(d.Groups)),
		Widgets:      make([]Widget, len(d.Widgets)),
		Extra:        d.Extra.Clone(),
	}
	for i, m := range d.Marketplaces {
		out.Marketplaces[i] = m.Clone()
	}
	for i, g := range d.Groups {
		out.Groups[i] = g.Clone()
	}
	for i, w := range d.Widgets {
		out.Widgets[i] = w.Clone()
	}
	return out
}

// Len returns the number of entities of kind.
func (d Document) Len(kind EntityType) int {
	switch kind {
	case EntityMarketplace:
		return len(d.Marketplaces)
	case EntityGroup:
		return len(d.Groups)
	case EntityWidget:
		return len(d.Widgets)
	}
	return 0
}

// MarshalJSON writes the three collections followed by extra top-level fields.
func (d Document) MarshalJSON() ([]byte, error) {
	entries := make([]Attribute, 0, 3+d.Extra.Len())
	for _, part := range []struct {
		key   string
		value any
	}{
		{"marketplaces", nonNil(d.Marketplaces)},
		{"groups", nonNil(d.Groups)},
		{"widgets", nonNil(d.Widgets)},
	} {
		raw, err := encodeValue(part.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", part.key, err)
		}
		entries = append(entries, Attribute{Key: part.key, Value: raw})
	}
	entries = append(entries, d.Extra.entries...)
	return encodeObject(entries), nil
}

// Encode renders d as indented JSON text without HTML escaping.
func (d Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
