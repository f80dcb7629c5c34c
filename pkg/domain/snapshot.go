package domain

import "sort"

// Snapshot is an immutable, indexed catalog view. When a collection holds
// duplicate codes, lookups resolve to the first occurrence.
type Snapshot struct {
	doc          Document
	marketplaces map[string]int
	groups       map[string]int
	widgets      map[string]int
}

var _ CatalogView = (*Snapshot)(nil)

// NewSnapshot indexes doc. The snapshot takes ownership of doc.
func NewSnapshot(doc Document) *Snapshot {
	s := &Snapshot{
		doc:          doc,
		marketplaces: make(map[string]int, len(doc.Marketplaces)),
		groups:       make(map[string]int, len(doc.Groups)),
		widgets:      make(map[string]int, len(doc.Widgets)),
	}
	for i, m := range doc.Marketplaces {
		if _, ok := s.marketplaces[m.Code]; !ok {
			s.marketplaces[m.Code] = i
		}
	}
	for i, g := range doc.Groups {
		if _, ok := s.groups[g.Code]; !ok {
			s.groups[g.Code] = i
		}
	}
	for i, w := range doc.Widgets {
		if _, ok := s.widgets[w.Code]; !ok {
			s.widgets[w.Code] = i
		}
	}
	return s
}

// Document returns a deep copy of the underlying document.
func (s *Snapshot) Document() Document { return s.doc.Clone() }

// ListMarketplaces returns marketplaces in document order. Callers must not
// modify the returned records.
func (s *Snapshot) ListMarketplaces() []Marketplace {
	return append([]Marketplace(nil), s.doc.Marketplaces...)
}

// ListGroups returns groups in document order.
func (s *Snapshot) ListGroups() []Group { return append([]Group(nil), s.doc.Groups...) }

// ListWidgets returns widgets in document order.
func (s *Snapshot) ListWidgets() []Widget { return append([]Widget(nil), s.doc.Widgets...) }

// FindMarketplace looks up a marketplace by code.
func (s *Snapshot) FindMarketplace(code string) (Marketplace, bool) {
	i, ok := s.marketplaces[code]
	if !ok {
		return Marketplace{}, false
	}
	return s.doc.Marketplaces[i], true
}

// FindGroup looks up a group by code.
func (s *Snapshot) FindGroup(code string) (Group, bool) {
	i, ok := s.groups[code]
	if !ok {
		return Group{}, false
	}
	return s.doc.Groups[i], true
}

// FindWidget looks up a widget by code.
func (s *Snapshot) FindWidget(code string) (Widget, bool) {
	i, ok := s.widgets[code]
	if !ok {
		return Widget{}, false
	}
	return s.doc.Widgets[i], true
}

// Find looks up an entity of any kind.
func (s *Snapshot) Find(kind EntityType, code string) (Entity, bool) {
	switch kind {
	case EntityMarketplace:
		if m, ok := s.FindMarketplace(code); ok {
			return m, true
		}
	case EntityGroup:
		if g, ok := s.FindGroup(code); ok {
			return g, true
		}
	case EntityWidget:
		if w, ok := s.FindWidget(code); ok {
			return w, true
		}
	}
	return nil, false
}

// Codes returns the sorted set of codes present for kind.
func (s *Snapshot) Codes(kind EntityType) []string {
	var idx map[string]int
	switch kind {
	case EntityMarketplace:
		idx = s.marketplaces
	case EntityGroup:
		idx = s.groups
	case EntityWidget:
		idx = s.widgets
	}
	out := make([]string, 0, len(idx))
	for code := range idx {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entities of kind.
func (s *Snapshot) Len(kind EntityType) int { return s.doc.Len(kind) }
