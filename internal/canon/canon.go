// Package canon puts a catalog document into its canonical shape: fields in
// the fixed per-kind order followed by unknown fields in their original
// order, and reference lists sorted by displayOrder.
package canon

import (
	"catalogcore/internal/resolve"
	"catalogcore/pkg/domain"
)

// Canonicalize returns a canonical copy of doc. Entity order within each
// collection is kept. Canonicalize is idempotent.
func Canonicalize(doc domain.Document) domain.Document {
	out := doc.Clone()
	for i := range out.Marketplaces {
		out.Marketplaces[i] = Marketplace(out.Marketplaces[i])
	}
	for i := range out.Groups {
		out.Groups[i] = Group(out.Groups[i])
	}
	for i := range out.Widgets {
		out.Widgets[i] = Widget(out.Widgets[i])
	}
	return out
}

// Marketplace canonicalizes a single marketplace.
func Marketplace(m domain.Marketplace) domain.Marketplace {
	m.Attributes = m.Attributes.Reorder(domain.FieldOrder(domain.EntityMarketplace))
	m.MarketplaceGroups = resolve.SortLinks(m.MarketplaceGroups)
	m.SettingMarketplaces = resolve.SortLinks(m.SettingMarketplaces)
	return m
}

// Group canonicalizes a single group.
func Group(g domain.Group) domain.Group {
	g.Attributes = g.Attributes.Reorder(domain.FieldOrder(domain.EntityGroup))
	g.GroupWidgets = resolve.SortLinks(g.GroupWidgets)
	return g
}

// Widget canonicalizes a single widget.
func Widget(w domain.Widget) domain.Widget {
	w.Attributes = w.Attributes.Reorder(domain.FieldOrder(domain.EntityWidget))
	return w
}
