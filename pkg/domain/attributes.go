package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute is a single field of an entity's open attribute bag.
type Attribute struct {
	Key   string
	Value json.RawMessage
}

// Attributes is an ordered side-table of JSON values keyed by field name.
// Fields keep the order they were first loaded or set; the zero value is empty
// and ready to use.
type Attributes struct {
	entries []Attribute
}

// Len reports the number of fields.
func (a Attributes) Len() int { return len(a.entries) }

// Keys returns field names in stored order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// All returns a copy of the stored fields.
func (a Attributes) All() []Attribute {
	out := make([]Attribute, len(a.entries))
	for i, e := range a.entries {
		out[i] = Attribute{Key: e.Key, Value: cloneRaw(e.Value)}
	}
	return out
}

func (a Attributes) index(key string) int {
	for i, e := range a.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// Has reports whether key is present (including explicit nulls).
func (a Attributes) Has(key string) bool { return a.index(key) >= 0 }

// Get returns the raw JSON stored under key.
func (a Attributes) Get(key string) (json.RawMessage, bool) {
	if i := a.index(key); i >= 0 {
		return a.entries[i].Value, true
	}
	return nil, false
}

// Decode unmarshals the value stored under key into dst.
func (a Attributes) Decode(key string, dst any) error {
	raw, ok := a.Get(key)
	if !ok {
		return fmt.Errorf("attribute %q not present", key)
	}
	return json.Unmarshal(raw, dst)
}

// Text returns the value under key when it is a JSON string.
func (a Attributes) Text(key string) (string, bool) {
	raw, ok := a.Get(key)
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Bool returns the value under key when it is a JSON boolean, false otherwise.
func (a Attributes) Bool(key string) bool {
	raw, ok := a.Get(key)
	return ok && bytes.Equal(raw, []byte("true"))
}

// Set encodes value as JSON and stores it under key, keeping the position of
// an existing field.
func (a *Attributes) Set(key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode attribute %q: %w", key, err)
	}
	a.put(key, raw)
	return nil
}

// SetRaw stores already encoded JSON under key.
func (a *Attributes) SetRaw(key string, raw json.RawMessage) error {
	compact, err := compactRaw(raw)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", key, err)
	}
	a.put(key, compact)
	return nil
}

func (a *Attributes) put(key string, raw json.RawMessage) {
	if i := a.index(key); i >= 0 {
		a.entries[i].Value = raw
		return
	}
	a.entries = append(a.entries, Attribute{Key: key, Value: raw})
}

// Delete removes key, reporting whether it was present.
func (a *Attributes) Delete(key string) bool {
	i := a.index(key)
	if i < 0 {
		return false
	}
	a.entries = append(a.entries[:i:i], a.entries[i+1:]...)
	return true
}

// With returns a copy with key set to value. It panics if value cannot be
// encoded as JSON, so it is meant for literals.
func (a Attributes) With(key string, value any) Attributes {
	out := a.Clone()
	if err := out.Set(key, value); err != nil {
		panic(err)
	}
	return out
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	if a.entries == nil {
		return Attributes{}
	}
	return Attributes{entries: a.All()}
}

// Reorder returns a copy whose fields listed in order come first, in that
// order, followed by the remaining fields in their stored relative order.
func (a Attributes) Reorder(order []string) Attributes {
	out := Attributes{entries: make([]Attribute, 0, len(a.entries))}
	placed := make(map[string]bool, len(order))
	for _, key := range order {
		if raw, ok := a.Get(key); ok && !placed[key] {
			out.entries = append(out.entries, Attribute{Key: key, Value: cloneRaw(raw)})
			placed[key] = true
		}
	}
	for _, e := range a.entries {
		if !placed[e.Key] {
			out.entries = append(out.entries, Attribute{Key: e.Key, Value: cloneRaw(e.Value)})
		}
	}
	return out
}

// Map decodes every field into a generic map, used by expression evaluation.
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.entries))
	for _, e := range a.entries {
		var v any
		if err := json.Unmarshal(e.Value, &v); err == nil {
			out[e.Key] = v
		}
	}
	return out
}

// MarshalJSON encodes the fields as a JSON object in stored order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return encodeObject(a.entries), nil
}

// UnmarshalJSON decodes a JSON object keeping field order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	entries, err := decodeObject(data)
	if err != nil {
		return err
	}
	a.entries = entries
	return nil
}

func encodeValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return compactRaw(raw)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func compactRaw(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
