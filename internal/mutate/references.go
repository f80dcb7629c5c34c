package mutate

import (
	"context"

	"catalogcore/internal/store"
	"catalogcore/pkg/domain"
)

// References lists every location holding a reference to kind/code.
func References(view domain.CatalogView, kind domain.EntityType, code string) []domain.Location {
	var out []domain.Location
	collect := func(parent domain.EntityType, parentCode string, rel domain.Relation, links []domain.Link) {
		for _, l := range links {
			if !l.Opaque() && l.Target == code {
				out = append(out, domain.RefLocation(parent, parentCode, rel, code))
			}
		}
	}
	switch kind {
	case domain.EntityGroup:
		for _, m := range view.ListMarketplaces() {
			collect(domain.EntityMarketplace, m.Code, domain.RelationMarketplaceGroups, m.MarketplaceGroups)
		}
	case domain.EntityWidget:
		for _, g := range view.ListGroups() {
			collect(domain.EntityGroup, g.Code, domain.RelationGroupWidgets, g.GroupWidgets)
		}
	case domain.EntityMarketplace:
		for _, m := range view.ListMarketplaces() {
			collect(domain.EntityMarketplace, m.Code, domain.RelationSettingMarketplaces, m.SettingMarketplaces)
		}
		propertyRefs := func(kind domain.EntityType, owner string, attrs domain.Attributes) {
			for _, ref := range domain.MarketplaceIDRefs(attrs) {
				if ref.IsString && ref.Value == code {
					out = append(out, domain.RefLocation(kind, owner, domain.RelationMarketplaceID, code))
				}
			}
		}
		for _, m := range view.ListMarketplaces() {
			propertyRefs(domain.EntityMarketplace, m.Code, m.Attributes)
		}
		for _, g := range view.ListGroups() {
			propertyRefs(domain.EntityGroup, g.Code, g.Attributes)
		}
		for _, w := range view.ListWidgets() {
			propertyRefs(domain.EntityWidget, w.Code, w.Attributes)
		}
	}
	return out
}

// CloneForParents resolves an edit to a shared group or widget by saving the
// edited record under a new code and repointing only the listed parents to
// it. Other parents keep referencing the untouched original.
func (e *Engine) CloneForParents(ctx context.Context, code string, edited domain.Entity, parents []string) ([]domain.Change, error) {
	kind, newCode := edited.Kind(), edited.EntityCode()
	return e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		if kind != domain.EntityGroup && kind != domain.EntityWidget {
			return domain.InvalidCodeError{Kind: kind, Reason: "only groups and widgets can be cloned per parent"}
		}
		if !tx.Has(kind, code) {
			return domain.NotFoundError{Kind: kind, Code: code}
		}
		if err := tx.Insert(edited); err != nil {
			return err
		}
		for _, parent := range parents {
			if err := repoint(tx, kind, parent, code, newCode); err != nil {
				return err
			}
		}
		return nil
	})
}

func repoint(tx *store.Transaction, child domain.EntityType, parent, from, to string) error {
	swap := func(kind domain.EntityType, rel domain.Relation, links []domain.Link) error {
		i := domain.IndexOfLink(links, from)
		if i < 0 {
			return domain.NotFoundError{Kind: kind, Code: parent, Relation: rel, Child: from}
		}
		links[i].Target = to
		return nil
	}
	if child == domain.EntityGroup {
		_, err := tx.UpdateMarketplace(parent, func(m *domain.Marketplace) error {
			return swap(domain.EntityMarketplace, domain.RelationMarketplaceGroups, m.MarketplaceGroups)
		})
		return err
	}
	_, err := tx.UpdateGroup(parent, func(g *domain.Group) error {
		return swap(domain.EntityGroup, domain.RelationGroupWidgets, g.GroupWidgets)
	})
	return err
}
