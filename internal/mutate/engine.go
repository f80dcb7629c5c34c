// Package mutate applies structural edits to the entity store: whole-record
// updates with rename cascade, creation with defaults, and link maintenance.
// Every operation runs in a single store transaction.
package mutate

import (
	"context"
	"fmt"

	"catalogcore/internal/store"
	"catalogcore/pkg/domain"
)

// Engine is the only writer of the store.
type Engine struct {
	store *store.Store
}

// New returns an Engine mutating s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Draft describes an entity to create. Attributes override kind defaults and
// Children lists the codes to link from the new entity: groups for a regular
// marketplace, marketplaces for an aggregator, widgets for a group.
type Draft struct {
	Code       string
	Attributes domain.Attributes
	Children   []string
}

// UpdateEntity replaces the record stored under code with entity. When the
// code changes, every reference to the old code is rewritten in the same
// transaction.
func (e *Engine) UpdateEntity(ctx context.Context, code string, entity domain.Entity) ([]domain.Change, error) {
	return e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		return replaceWithCascade(tx, code, entity)
	})
}

func replaceWithCascade(tx *store.Transaction, code string, entity domain.Entity) error {
	kind, newCode := entity.Kind(), entity.EntityCode()
	if err := tx.Replace(code, entity); err != nil {
		return err
	}
	if newCode != code {
		cascadeRename(tx, kind, code, newCode)
	}
	return nil
}

// cascadeRename rewrites every reference to kind/from so it names to.
func cascadeRename(tx *store.Transaction, kind domain.EntityType, from, to string) {
	retarget := func(links []domain.Link) bool {
		changed := false
		for i := range links {
			if !links[i].Opaque() && links[i].Target == from {
				links[i].Target = to
				changed = true
			}
		}
		return changed
	}
	switch kind {
	case domain.EntityGroup:
		tx.EachMarketplace(func(m *domain.Marketplace) bool { return retarget(m.MarketplaceGroups) })
	case domain.EntityWidget:
		tx.EachGroup(func(g *domain.Group) bool { return retarget(g.GroupWidgets) })
	case domain.EntityMarketplace:
		tx.EachMarketplace(func(m *domain.Marketplace) bool {
			changed := retarget(m.SettingMarketplaces)
			attrs, n := domain.RewriteMarketplaceIDs(m.Attributes, from, to)
			if n > 0 {
				m.Attributes = attrs
			}
			return changed || n > 0
		})
		tx.EachGroup(func(g *domain.Group) bool {
			attrs, n := domain.RewriteMarketplaceIDs(g.Attributes, from, to)
			if n > 0 {
				g.Attributes = attrs
			}
			return n > 0
		})
		tx.EachWidget(func(w *domain.Widget) bool {
			attrs, n := domain.RewriteMarketplaceIDs(w.Attributes, from, to)
			if n > 0 {
				w.Attributes = attrs
			}
			return n > 0
		})
	}
}

// PreviewRename reports the references that renaming kind/code to newCode
// would rewrite, without changing anything.
func (e *Engine) PreviewRename(ctx context.Context, kind domain.EntityType, code, newCode string) ([]domain.Location, error) {
	var refs []domain.Location
	err := e.store.View(ctx, func(snap *domain.Snapshot) error {
		if err := checkRename(snap, kind, code, newCode); err != nil {
			return err
		}
		refs = References(snap, kind, code)
		return nil
	})
	return refs, err
}

// CommitRename changes the code of kind/code to newCode and rewrites every
// reference, keeping all other fields.
func (e *Engine) CommitRename(ctx context.Context, kind domain.EntityType, code, newCode string) ([]domain.Change, error) {
	return e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		if err := checkRename(tx.Snapshot(), kind, code, newCode); err != nil {
			return err
		}
		current, _ := tx.Get(kind, code)
		return replaceWithCascade(tx, code, domain.WithCode(current, newCode))
	})
}

func checkRename(snap *domain.Snapshot, kind domain.EntityType, code, newCode string) error {
	if !kind.Valid() {
		return domain.InvalidCodeError{Kind: kind, Reason: "unknown entity kind"}
	}
	if _, ok := snap.Find(kind, code); !ok {
		return domain.NotFoundError{Kind: kind, Code: code}
	}
	if newCode == "" {
		return domain.InvalidCodeError{Kind: kind, Reason: "code must not be empty"}
	}
	if newCode != code {
		if _, taken := snap.Find(kind, newCode); taken {
			return domain.ConflictError{Kind: kind, Code: code, NewCode: newCode}
		}
	}
	return nil
}

// CreateEntity appends a new entity of kind built from draft and kind
// defaults, linking draft.Children with displayOrder 1, 2, ...
func (e *Engine) CreateEntity(ctx context.Context, kind domain.EntityType, draft Draft) (domain.Entity, []domain.Change, error) {
	entity, err := buildEntity(kind, draft)
	if err != nil {
		return nil, nil, err
	}
	changes, err := e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		return tx.Insert(entity)
	})
	if err != nil {
		return nil, nil, err
	}
	return entity, changes, nil
}

func buildEntity(kind domain.EntityType, draft Draft) (domain.Entity, error) {
	if !kind.Valid() {
		return nil, domain.InvalidCodeError{Kind: kind, Reason: "unknown entity kind"}
	}
	if draft.Code == "" {
		return nil, domain.InvalidCodeError{Kind: kind, Reason: "code must not be empty"}
	}
	attrs, err := withDefaults(kind, draft.Attributes)
	if err != nil {
		return nil, err
	}
	links := childLinks(draft.Children)
	switch kind {
	case domain.EntityMarketplace:
		mp := domain.Marketplace{Code: draft.Code, Attributes: attrs, MarketplaceGroups: []domain.Link{}}
		if mp.IsInitial() {
			mp.SettingMarketplaces = links
		} else {
			mp.MarketplaceGroups = links
		}
		return mp, nil
	case domain.EntityGroup:
		return domain.Group{Code: draft.Code, Attributes: attrs, GroupWidgets: links}, nil
	default:
		return domain.Widget{Code: draft.Code, Attributes: attrs}, nil
	}
}

func childLinks(codes []string) []domain.Link {
	links := []domain.Link{}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		links = append(links, domain.Link{Target: code, DisplayOrder: float64(len(links) + 1)})
	}
	return links
}

// Link appends a reference from parentKind/parentCode to every child code not
// already referenced. Children are not checked for existence. Marketplaces
// link through settingMarketplaces when they are aggregators and through
// marketplaceGroups otherwise.
func (e *Engine) Link(ctx context.Context, parentKind domain.EntityType, parentCode string, childCodes []string) ([]domain.Change, error) {
	return e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		return withLinks(tx, parentKind, parentCode, func(rel domain.Relation, links []domain.Link) ([]domain.Link, error) {
			for _, child := range childCodes {
				if child == "" || domain.IndexOfLink(links, child) >= 0 {
					continue
				}
				links = append(links, domain.Link{Target: child, DisplayOrder: domain.NextDisplayOrder(links)})
			}
			return links, nil
		})
	})
}

// Unlink removes the first reference from parentKind/parentCode to childCode.
// The child entity is left untouched.
func (e *Engine) Unlink(ctx context.Context, parentKind domain.EntityType, parentCode, childCode string) ([]domain.Change, error) {
	return e.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
		if parentKind == domain.EntityMarketplace {
			return unlinkMarketplace(tx, parentCode, childCode)
		}
		return withLinks(tx, parentKind, parentCode, func(rel domain.Relation, links []domain.Link) ([]domain.Link, error) {
			i := domain.IndexOfLink(links, childCode)
			if i < 0 {
				return nil, domain.NotFoundError{Kind: parentKind, Code: parentCode, Relation: rel, Child: childCode}
			}
			return append(links[:i:i], links[i+1:]...), nil
		})
	})
}

// unlinkMarketplace searches the active list first and falls back to the
// other one, so stale entries left after toggling isInitial can be removed.
func unlinkMarketplace(tx *store.Transaction, code, child string) error {
	_, err := tx.UpdateMarketplace(code, func(m *domain.Marketplace) error {
		active := m.ActiveRelation()
		for _, rel := range []domain.Relation{active, otherRelation(active)} {
			links := m.Links(rel)
			if i := domain.IndexOfLink(links, child); i >= 0 {
				m.SetLinks(rel, append(links[:i:i], links[i+1:]...))
				return nil
			}
		}
		return domain.NotFoundError{Kind: domain.EntityMarketplace, Code: code, Relation: active, Child: child}
	})
	return err
}

func otherRelation(rel domain.Relation) domain.Relation {
	if rel == domain.RelationSettingMarketplaces {
		return domain.RelationMarketplaceGroups
	}
	return domain.RelationSettingMarketplaces
}

func withLinks(tx *store.Transaction, kind domain.EntityType, code string, edit func(domain.Relation, []domain.Link) ([]domain.Link, error)) error {
	switch kind {
	case domain.EntityMarketplace:
		_, err := tx.UpdateMarketplace(code, func(m *domain.Marketplace) error {
			rel := m.ActiveRelation()
			if err := checkListShape(kind, code, rel, m.Attributes); err != nil {
				return err
			}
			links, err := edit(rel, m.Links(rel))
			if err != nil {
				return err
			}
			m.SetLinks(rel, links)
			return nil
		})
		return err
	case domain.EntityGroup:
		_, err := tx.UpdateGroup(code, func(g *domain.Group) error {
			if err := checkListShape(kind, code, domain.RelationGroupWidgets, g.Attributes); err != nil {
				return err
			}
			links, err := edit(domain.RelationGroupWidgets, g.GroupWidgets)
			if err != nil {
				return err
			}
			g.GroupWidgets = links
			return nil
		})
		return err
	}
	return fmt.Errorf("%s entities hold no reference lists", kind)
}

// checkListShape refuses to edit a reference list whose stored value is not
// an array. The value is kept as an attribute and a fresh list would
// replace it.
func checkListShape(kind domain.EntityType, code string, rel domain.Relation, attrs domain.Attributes) error {
	if !attrs.Has(string(rel)) {
		return nil
	}
	return domain.FormatError{Reason: fmt.Sprintf("%s: %s is not a list", domain.EntityLocation(kind, code), rel)}
}
