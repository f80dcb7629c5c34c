// Package store holds the catalog collections for one editing session and
// applies mutations atomically.
package store

import (
	"context"
	"sync"
	"time"

	"catalogcore/pkg/domain"
)

type collection[T domain.Entity] struct {
	items []T
	index map[string]int
}

func newCollection[T domain.Entity](items []T) collection[T] {
	c := collection[T]{items: items, index: make(map[string]int, len(items))}
	c.reindex()
	return c
}

func (c *collection[T]) reindex() {
	clear(c.index)
	for i, item := range c.items {
		if _, dup := c.index[item.EntityCode()]; !dup {
			c.index[item.EntityCode()] = i
		}
	}
}

func (c collection[T]) get(code string) (T, bool) {
	i, ok := c.index[code]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *collection[T]) append(item T) {
	c.items = append(c.items, item)
	if _, dup := c.index[item.EntityCode()]; !dup {
		c.index[item.EntityCode()] = len(c.items) - 1
	}
}

// replace swaps the record stored under code, reindexing when the code moves.
func (c *collection[T]) replace(code string, item T) bool {
	i, ok := c.index[code]
	if !ok {
		return false
	}
	c.items[i] = item
	if item.EntityCode() != code {
		c.reindex()
	}
	return true
}

type state struct {
	marketplaces collection[domain.Marketplace]
	groups       collection[domain.Group]
	widgets      collection[domain.Widget]
	extra        domain.Attributes
}

func newState(doc domain.Document) state {
	return state{
		marketplaces: newCollection(doc.Marketplaces),
		groups:       newCollection(doc.Groups),
		widgets:      newCollection(doc.Widgets),
		extra:        doc.Extra,
	}
}

func (s state) document() domain.Document {
	return domain.Document{
		Marketplaces: s.marketplaces.items,
		Groups:       s.groups.items,
		Widgets:      s.widgets.items,
		Extra:        s.extra,
	}
}

func (s state) clone() state {
	return newState(s.document().Clone())
}

// Store is the in-memory entity store. Reads see a consistent state and every
// write goes through RunInTransaction, so a failed mutation leaves no trace.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(domain.Document{}), nowFn: func() time.Time { return time.Now().UTC() }}
}

// Load replaces all three collections with doc. The store takes a deep copy.
func (s *Store) Load(doc domain.Document) {
	next := newState(doc.Clone())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// RunInTransaction applies fn to a private copy of the state and commits it
// only when fn succeeds. It returns the changes recorded by fn.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) ([]domain.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	s.state = tx.state
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(*domain.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.Snapshot())
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewSnapshot(s.state.document().Clone())
}

// Document returns a deep copy of the current state as a document.
func (s *Store) Document() domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.document().Clone()
}

// GetByCode returns the entity of kind identified by code.
func (s *Store) GetByCode(kind domain.EntityType, code string) (domain.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.get(kind, code)
}

// ListAll returns the entities of kind in insertion order.
func (s *Store) ListAll(kind domain.EntityType) []domain.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list(kind)
}

// Codes returns the set of codes present for kind.
func (s *Store) Codes(kind domain.EntityType) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.codes(kind)
}

// Upsert inserts entity when its code is absent and replaces the whole record
// otherwise.
func (s *Store) Upsert(ctx context.Context, entity domain.Entity) error {
	_, err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		return tx.Upsert(entity)
	})
	return err
}

func (s state) get(kind domain.EntityType, code string) (domain.Entity, bool) {
	switch kind {
	case domain.EntityMarketplace:
		if m, ok := s.marketplaces.get(code); ok {
			return m.Clone(), true
		}
	case domain.EntityGroup:
		if g, ok := s.groups.get(code); ok {
			return g.Clone(), true
		}
	case domain.EntityWidget:
		if w, ok := s.widgets.get(code); ok {
			return w.Clone(), true
		}
	}
	return nil, false
}

func (s state) list(kind domain.EntityType) []domain.Entity {
	var out []domain.Entity
	switch kind {
	case domain.EntityMarketplace:
		for _, m := range s.marketplaces.items {
			out = append(out, m.Clone())
		}
	case domain.EntityGroup:
		for _, g := range s.groups.items {
			out = append(out, g.Clone())
		}
	case domain.EntityWidget:
		for _, w := range s.widgets.items {
			out = append(out, w.Clone())
		}
	}
	return out
}

func (s state) codes(kind domain.EntityType) map[string]struct{} {
	out := make(map[string]struct{})
	var idx map[string]int
	switch kind {
	case domain.EntityMarketplace:
		idx = s.marketplaces.index
	case domain.EntityGroup:
		idx = s.groups.index
	case domain.EntityWidget:
		idx = s.widgets.index
	}
	for code := range idx {
		out[code] = struct{}{}
	}
	return out
}
