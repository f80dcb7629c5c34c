package store

import (
	"fmt"
	"time"

	"catalogcore/pkg/domain"
)

// Transaction exposes mutation primitives over a private copy of the store
// state. It is only valid inside RunInTransaction.
type Transaction struct {
	state   state
	changes []domain.Change
	now     time.Time
}

// Now returns the transaction timestamp.
func (tx *Transaction) Now() time.Time { return tx.now }

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only copy of the transaction's current state.
func (tx *Transaction) Snapshot() *domain.Snapshot {
	return domain.NewSnapshot(tx.state.document().Clone())
}

// Get returns a copy of the entity of kind identified by code.
func (tx *Transaction) Get(kind domain.EntityType, code string) (domain.Entity, bool) {
	return tx.state.get(kind, code)
}

// Has reports whether code exists for kind.
func (tx *Transaction) Has(kind domain.EntityType, code string) bool {
	_, ok := tx.state.get(kind, code)
	return ok
}

// Insert appends a new entity, rejecting empty or taken codes.
func (tx *Transaction) Insert(entity domain.Entity) error {
	kind, code := entity.Kind(), entity.EntityCode()
	if code == "" {
		return domain.InvalidCodeError{Kind: kind, Reason: "code must not be empty"}
	}
	if tx.Has(kind, code) {
		return domain.DuplicateCodeError{Kind: kind, Code: code}
	}
	switch e := entity.(type) {
	case domain.Marketplace:
		tx.state.marketplaces.append(e.Clone())
	case domain.Group:
		tx.state.groups.append(e.Clone())
	case domain.Widget:
		tx.state.widgets.append(e.Clone())
	default:
		return fmt.Errorf("unsupported entity type %T", entity)
	}
	tx.recordChange(domain.Change{Entity: kind, Action: domain.ActionCreate, Code: code, After: entity})
	return nil
}

// Replace swaps the whole record stored under code for entity, keeping its
// position. A different code in entity renames the record; no references are
// touched here.
func (tx *Transaction) Replace(code string, entity domain.Entity) error {
	kind, newCode := entity.Kind(), entity.EntityCode()
	before, ok := tx.state.get(kind, code)
	if !ok {
		return domain.NotFoundError{Kind: kind, Code: code}
	}
	if newCode == "" {
		return domain.InvalidCodeError{Kind: kind, Reason: "code must not be empty"}
	}
	if newCode != code && tx.Has(kind, newCode) {
		return domain.ConflictError{Kind: kind, Code: code, NewCode: newCode}
	}
	switch e := entity.(type) {
	case domain.Marketplace:
		tx.state.marketplaces.replace(code, e.Clone())
	case domain.Group:
		tx.state.groups.replace(code, e.Clone())
	case domain.Widget:
		tx.state.widgets.replace(code, e.Clone())
	default:
		return fmt.Errorf("unsupported entity type %T", entity)
	}
	tx.recordChange(domain.Change{Entity: kind, Action: domain.ActionUpdate, Code: newCode, Before: before, After: entity})
	return nil
}

// Upsert inserts entity when its code is absent and replaces it otherwise.
func (tx *Transaction) Upsert(entity domain.Entity) error {
	if tx.Has(entity.Kind(), entity.EntityCode()) {
		return tx.Replace(entity.EntityCode(), entity)
	}
	return tx.Insert(entity)
}

// UpdateMarketplace applies mutator to the marketplace identified by code.
func (tx *Transaction) UpdateMarketplace(code string, mutator func(*domain.Marketplace) error) (domain.Marketplace, error) {
	current, ok := tx.state.marketplaces.get(code)
	if !ok {
		return domain.Marketplace{}, domain.NotFoundError{Kind: domain.EntityMarketplace, Code: code}
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return domain.Marketplace{}, err
	}
	if err := tx.Replace(code, next); err != nil {
		return domain.Marketplace{}, err
	}
	return next.Clone(), nil
}

// UpdateGroup applies mutator to the group identified by code.
func (tx *Transaction) UpdateGroup(code string, mutator func(*domain.Group) error) (domain.Group, error) {
	current, ok := tx.state.groups.get(code)
	if !ok {
		return domain.Group{}, domain.NotFoundError{Kind: domain.EntityGroup, Code: code}
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return domain.Group{}, err
	}
	if err := tx.Replace(code, next); err != nil {
		return domain.Group{}, err
	}
	return next.Clone(), nil
}

// EachMarketplace calls fn for every marketplace record, including duplicates.
// Records for which fn returns true are recorded as updated.
func (tx *Transaction) EachMarketplace(fn func(*domain.Marketplace) bool) {
	for i := range tx.state.marketplaces.items {
		before := tx.state.marketplaces.items[i].Clone()
		if fn(&tx.state.marketplaces.items[i]) {
			tx.recordChange(domain.Change{Entity: domain.EntityMarketplace, Action: domain.ActionUpdate, Code: before.Code, Before: before, After: tx.state.marketplaces.items[i].Clone()})
		}
	}
	tx.state.marketplaces.reindex()
}

// EachGroup calls fn for every group record.
func (tx *Transaction) EachGroup(fn func(*domain.Group) bool) {
	for i := range tx.state.groups.items {
		before := tx.state.groups.items[i].Clone()
		if fn(&tx.state.groups.items[i]) {
			tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionUpdate, Code: before.Code, Before: before, After: tx.state.groups.items[i].Clone()})
		}
	}
	tx.state.groups.reindex()
}

// EachWidget calls fn for every widget record.
func (tx *Transaction) EachWidget(fn func(*domain.Widget) bool) {
	for i := range tx.state.widgets.items {
		before := tx.state.widgets.items[i].Clone()
		if fn(&tx.state.widgets.items[i]) {
			tx.recordChange(domain.Change{Entity: domain.EntityWidget, Action: domain.ActionUpdate, Code: before.Code, Before: before, After: tx.state.widgets.items[i].Clone()})
		}
	}
	tx.state.widgets.reindex()
}

// ReplaceDocument swaps every collection, used by canonicalisation.
func (tx *Transaction) ReplaceDocument(doc domain.Document) {
	tx.state = newState(doc.Clone())
	tx.recordChange(domain.Change{Entity: "", Action: domain.ActionUpdate})
}
