// Package resolve materialises reference lists into expanded, display-ordered
// trees without modifying the catalog.
package resolve

import (
	"sort"

	"catalogcore/pkg/domain"
)

// ExpandedWidget is a widget resolved from a groupWidgets entry.
type ExpandedWidget struct {
	Widget       domain.Widget
	DisplayOrder float64
}

// ExpandedGroup is a group resolved from a marketplaceGroups entry, with its
// own widgets expanded.
type ExpandedGroup struct {
	Group        domain.Group
	DisplayOrder float64
	Widgets      []ExpandedWidget
}

// ExpandedMarketplace is a marketplace with its children expanded. Regular
// marketplaces carry Groups; aggregators carry Marketplaces.
type ExpandedMarketplace struct {
	Marketplace  domain.Marketplace
	DisplayOrder float64
	Groups       []ExpandedGroup
	Marketplaces []ExpandedMarketplace
	// Cycle marks an aggregator already on the current expansion path; it is
	// rendered as a leaf.
	Cycle bool
}

// Expander resolves references against a catalog view. Missing targets and
// opaque records are dropped silently; surviving entries keep their
// displayOrder.
type Expander struct {
	view domain.CatalogView
}

// New returns an Expander reading from view.
func New(view domain.CatalogView) *Expander {
	return &Expander{view: view}
}

// Group expands the widgets referenced by g.
func (e *Expander) Group(g domain.Group) []ExpandedWidget {
	out := make([]ExpandedWidget, 0, len(g.GroupWidgets))
	for _, link := range SortLinks(g.GroupWidgets) {
		w, ok := e.view.FindWidget(link.Target)
		if !ok || link.Opaque() {
			continue
		}
		out = append(out, ExpandedWidget{Widget: w, DisplayOrder: link.DisplayOrder})
	}
	return out
}

// Groups expands the marketplaceGroups of mp, including each group's widgets.
func (e *Expander) Groups(mp domain.Marketplace) []ExpandedGroup {
	out := make([]ExpandedGroup, 0, len(mp.MarketplaceGroups))
	for _, link := range SortLinks(mp.MarketplaceGroups) {
		g, ok := e.view.FindGroup(link.Target)
		if !ok || link.Opaque() {
			continue
		}
		out = append(out, ExpandedGroup{Group: g, DisplayOrder: link.DisplayOrder, Widgets: e.Group(g)})
	}
	return out
}

// Marketplace expands mp recursively. Aggregators resolve settingMarketplaces
// against the marketplace collection; a code already on the current path is
// returned with Cycle set and no children.
func (e *Expander) Marketplace(mp domain.Marketplace) ExpandedMarketplace {
	return e.expand(mp, 0, map[string]bool{})
}

func (e *Expander) expand(mp domain.Marketplace, order float64, path map[string]bool) ExpandedMarketplace {
	node := ExpandedMarketplace{Marketplace: mp, DisplayOrder: order}
	if path[mp.Code] {
		node.Cycle = true
		return node
	}
	if !mp.IsInitial() {
		node.Groups = e.Groups(mp)
		return node
	}
	path[mp.Code] = true
	defer delete(path, mp.Code)
	node.Marketplaces = make([]ExpandedMarketplace, 0, len(mp.SettingMarketplaces))
	for _, link := range SortLinks(mp.SettingMarketplaces) {
		child, ok := e.view.FindMarketplace(link.Target)
		if !ok || link.Opaque() {
			continue
		}
		node.Marketplaces = append(node.Marketplaces, e.expand(child, link.DisplayOrder, path))
	}
	return node
}

// SortLinks returns a copy of links ordered by displayOrder, keeping source
// order among equal values.
func SortLinks(links []domain.Link) []domain.Link {
	if links == nil {
		return nil
	}
	out := make([]domain.Link, len(links))
	copy(out, links)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// InitialMarketplaceLinks returns the aggregators whose settingMarketplaces
// reference code, in collection order.
func InitialMarketplaceLinks(view domain.CatalogView, code string) []domain.Marketplace {
	var out []domain.Marketplace
	for _, mp := range view.ListMarketplaces() {
		if mp.IsInitial() && domain.IndexOfLink(mp.SettingMarketplaces, code) >= 0 {
			out = append(out, mp)
		}
	}
	return out
}
