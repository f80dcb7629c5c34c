// Package core is the editing session facade. A Service owns one entity
// store together with the originally loaded document, and exposes every
// collaborator operation: load, views, mutations, validation, diff and
// export.
package core

import (
	"context"
	"fmt"
	"sync"

	"catalogcore/internal/canon"
	"catalogcore/internal/diff"
	"catalogcore/internal/filter"
	"catalogcore/internal/mutate"
	"catalogcore/internal/resolve"
	"catalogcore/internal/store"
	"catalogcore/internal/validate"
	"catalogcore/pkg/domain"
)

// Service is one editing session.
type Service struct {
	store  *store.Store
	engine *mutate.Engine
	opts   serviceOptions

	mu       sync.RWMutex
	original *domain.Snapshot
	revision uint64
}

// NewService returns a session with an empty store.
func NewService(opts ...ServiceOption) (*Service, error) {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		v, err := validate.New()
		if err != nil {
			return nil, fmt.Errorf("default validator: %w", err)
		}
		o.validator = v
	}
	s := store.New()
	return &Service{
		store:    s,
		engine:   mutate.New(s),
		opts:     o,
		original: domain.NewSnapshot(domain.Document{}),
	}, nil
}

// Store returns the underlying entity store.
func (s *Service) Store() *store.Store { return s.store }

// Revision increases with every successful load or mutation.
func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Service) bump() {
	s.mu.Lock()
	s.revision++
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context, op string, kind domain.EntityType, code string, fn func(context.Context) error) error {
	started := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := s.opts.clock.Now().Sub(started)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		Kind:      kind,
		Code:      code,
		Status:    AuditStatusSuccess,
		StartedAt: started,
		Duration:  duration,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.opts.logger.Error("catalog operation failed", "op", op, "kind", kind, "code", code, "code_class", domain.CodeOf(err), "err", err)
	} else {
		s.opts.logger.Debug("catalog operation", "op", op, "kind", kind, "code", code, "duration", duration)
	}
	s.opts.audit.Record(ctx, entry)
	return err
}

// Load parses data and replaces the session contents. On a FormatError the
// previous contents stay in place.
func (s *Service) Load(ctx context.Context, data []byte) error {
	return s.run(ctx, "load", "", "", func(ctx context.Context) error {
		doc, err := domain.ParseDocument(data)
		if err != nil {
			return err
		}
		return s.load(ctx, doc)
	})
}

// LoadDocument replaces the session contents with doc.
func (s *Service) LoadDocument(ctx context.Context, doc domain.Document) error {
	return s.run(ctx, "load", "", "", func(ctx context.Context) error {
		return s.load(ctx, doc)
	})
}

func (s *Service) load(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized := canon.Canonicalize(doc)
	s.store.Load(normalized)
	s.mu.Lock()
	s.original = domain.NewSnapshot(normalized)
	s.revision++
	s.mu.Unlock()
	s.opts.logger.Info("catalog loaded",
		"marketplaces", len(normalized.Marketplaces),
		"groups", len(normalized.Groups),
		"widgets", len(normalized.Widgets))
	return nil
}

// Snapshot returns an immutable view of the current contents.
func (s *Service) Snapshot() *domain.Snapshot { return s.store.Snapshot() }

// Original returns the document as it was loaded.
func (s *Service) Original() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.original
}

// GetByCode looks up one entity.
func (s *Service) GetByCode(kind domain.EntityType, code string) (domain.Entity, bool) {
	return s.store.GetByCode(kind, code)
}

// ListAll returns the entities of kind in collection order.
func (s *Service) ListAll(kind domain.EntityType) []domain.Entity {
	return s.store.ListAll(kind)
}

// Codes returns the codes in use for kind.
func (s *Service) Codes(kind domain.EntityType) map[string]struct{} {
	return s.store.Codes(kind)
}

// FilteredView returns the entities visible under q.
func (s *Service) FilteredView(ctx context.Context, q filter.Query) (*domain.Snapshot, error) {
	var view *domain.Snapshot
	err := s.run(ctx, "filter", "", "", func(ctx context.Context) error {
		return s.store.View(ctx, func(snap *domain.Snapshot) error {
			var err error
			view, err = filter.Apply(snap, q)
			return err
		})
	})
	return view, err
}

// AvailableFilters lists the distinct scalar values per kind and field.
func (s *Service) AvailableFilters() []filter.FilterOption {
	return filter.AvailableFilters(s.store.Snapshot())
}

// ExpandedMarketplace resolves the marketplace code into its display tree.
func (s *Service) ExpandedMarketplace(ctx context.Context, code string) (resolve.ExpandedMarketplace, error) {
	var out resolve.ExpandedMarketplace
	err := s.run(ctx, "expand_marketplace", domain.EntityMarketplace, code, func(ctx context.Context) error {
		return s.store.View(ctx, func(snap *domain.Snapshot) error {
			mp, ok := snap.FindMarketplace(code)
			if !ok {
				return domain.NotFoundError{Kind: domain.EntityMarketplace, Code: code}
			}
			out = resolve.New(snap).Marketplace(mp)
			return nil
		})
	})
	return out, err
}

// ExpandedGroup resolves the widgets of group code in display order.
func (s *Service) ExpandedGroup(ctx context.Context, code string) ([]resolve.ExpandedWidget, error) {
	var out []resolve.ExpandedWidget
	err := s.run(ctx, "expand_group", domain.EntityGroup, code, func(ctx context.Context) error {
		return s.store.View(ctx, func(snap *domain.Snapshot) error {
			g, ok := snap.FindGroup(code)
			if !ok {
				return domain.NotFoundError{Kind: domain.EntityGroup, Code: code}
			}
			out = resolve.New(snap).Group(g)
			return nil
		})
	})
	return out, err
}

// References lists every location pointing at kind/code.
func (s *Service) References(kind domain.EntityType, code string) []domain.Location {
	return mutate.References(s.store.Snapshot(), kind, code)
}

// InitialMarketplaceLinks lists the aggregators linking marketplace code.
func (s *Service) InitialMarketplaceLinks(code string) []domain.Marketplace {
	return resolve.InitialMarketplaceLinks(s.store.Snapshot(), code)
}

func (s *Service) mutate(ctx context.Context, op string, kind domain.EntityType, code string, fn func(context.Context) ([]domain.Change, error)) ([]domain.Change, error) {
	var changes []domain.Change
	err := s.run(ctx, op, kind, code, func(ctx context.Context) error {
		var err error
		changes, err = fn(ctx)
		if err == nil {
			s.bump()
			s.opts.logger.Info("catalog updated", "op", op, "kind", kind, "code", code, "count", len(changes))
		}
		return err
	})
	return changes, err
}

// UpdateEntity replaces kind/code with entity, cascading a code change to
// every reference.
func (s *Service) UpdateEntity(ctx context.Context, code string, entity domain.Entity) ([]domain.Change, error) {
	return s.mutate(ctx, "update_entity", entity.Kind(), code, func(ctx context.Context) ([]domain.Change, error) {
		return s.engine.UpdateEntity(ctx, code, entity)
	})
}

// CreateEntity appends a new entity built from draft.
func (s *Service) CreateEntity(ctx context.Context, kind domain.EntityType, draft mutate.Draft) (domain.Entity, error) {
	var created domain.Entity
	_, err := s.mutate(ctx, "create_entity", kind, draft.Code, func(ctx context.Context) ([]domain.Change, error) {
		var (
			changes []domain.Change
			err     error
		)
		created, changes, err = s.engine.CreateEntity(ctx, kind, draft)
		return changes, err
	})
	return created, err
}

// Link attaches children to the parent, skipping ones already linked.
func (s *Service) Link(ctx context.Context, kind domain.EntityType, parent string, children []string) ([]domain.Change, error) {
	return s.mutate(ctx, "link", kind, parent, func(ctx context.Context) ([]domain.Change, error) {
		return s.engine.Link(ctx, kind, parent, children)
	})
}

// Unlink removes one reference from the parent.
func (s *Service) Unlink(ctx context.Context, kind domain.EntityType, parent, child string) ([]domain.Change, error) {
	return s.mutate(ctx, "unlink", kind, parent, func(ctx context.Context) ([]domain.Change, error) {
		return s.engine.Unlink(ctx, kind, parent, child)
	})
}

// PreviewRename returns the references a rename would rewrite.
func (s *Service) PreviewRename(ctx context.Context, kind domain.EntityType, code, newCode string) ([]domain.Location, error) {
	var refs []domain.Location
	err := s.run(ctx, "preview_rename", kind, code, func(ctx context.Context) error {
		var err error
		refs, err = s.engine.PreviewRename(ctx, kind, code, newCode)
		return err
	})
	return refs, err
}

// CommitRename renames kind/code and rewrites its references.
func (s *Service) CommitRename(ctx context.Context, kind domain.EntityType, code, newCode string) ([]domain.Change, error) {
	return s.mutate(ctx, "commit_rename", kind, code, func(ctx context.Context) ([]domain.Change, error) {
		return s.engine.CommitRename(ctx, kind, code, newCode)
	})
}

// CloneForParents saves edited under its own code and repoints only parents
// from code to it.
func (s *Service) CloneForParents(ctx context.Context, code string, edited domain.Entity, parents []string) ([]domain.Change, error) {
	return s.mutate(ctx, "clone_for_parents", edited.Kind(), code, func(ctx context.Context) ([]domain.Change, error) {
		return s.engine.CloneForParents(ctx, code, edited, parents)
	})
}

// Canonicalize rewrites the session contents into canonical field and link
// order.
func (s *Service) Canonicalize(ctx context.Context) error {
	_, err := s.mutate(ctx, "canonicalize", "", "", func(ctx context.Context) ([]domain.Change, error) {
		return s.store.RunInTransaction(ctx, func(tx *store.Transaction) error {
			tx.ReplaceDocument(canon.Canonicalize(tx.Snapshot().Document()))
			return nil
		})
	})
	return err
}

// Validate runs schema and relation validation over the current contents.
// Findings are advisory and never returned as an error.
func (s *Service) Validate(ctx context.Context) (domain.Report, error) {
	var report domain.Report
	err := s.run(ctx, "validate", "", "", func(ctx context.Context) error {
		var err error
		report, err = s.opts.validator.Validate(ctx, s.store.Snapshot())
		return err
	})
	if err == nil {
		s.opts.logger.Info("catalog validated", "schema", len(report.Schema), "relations", len(report.Relations))
	}
	return report, err
}

// DiffAgainstOriginal lists the changes since the document was loaded.
func (s *Service) DiffAgainstOriginal(ctx context.Context) ([]domain.ChangeItem, error) {
	var changes []domain.ChangeItem
	err := s.run(ctx, "diff", "", "", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		changes = diff.Compute(s.store.Snapshot(), s.Original())
		return nil
	})
	return changes, err
}

// Serialize renders the current contents as canonical, indented JSON.
func (s *Service) Serialize(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.run(ctx, "serialize", "", "", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		out, err = canon.Canonicalize(s.store.Document()).Encode()
		return err
	})
	return out, err
}
