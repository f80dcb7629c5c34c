package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"catalogcore/internal/canon"
	"catalogcore/internal/diff"
	"catalogcore/internal/journal"
	"catalogcore/internal/source"
	"catalogcore/pkg/domain"
)

// ErrStaleReview is returned when the session changed after a review was
// taken.
var ErrStaleReview = errors.New("export review is stale")

// ExportReview is what the operator acknowledges before an export: the
// exact bytes to write, the findings and the change list.
type ExportReview struct {
	Document   []byte
	Report     domain.Report
	Changes    []domain.ChangeItem
	Revision   uint64
	ReviewedAt time.Time
}

// HasFindings reports whether validation found anything.
func (r ExportReview) HasFindings() bool { return !r.Report.Clean() }

// Counts returns the number of error and warning findings.
func (r ExportReview) Counts() (errs, warnings int) {
	for _, v := range r.Report.All() {
		if v.Severity == domain.SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// ReviewExport canonicalizes, validates and diffs the current contents. The
// session itself is not modified.
func (s *Service) ReviewExport(ctx context.Context) (ExportReview, error) {
	var review ExportReview
	err := s.run(ctx, "review_export", "", "", func(ctx context.Context) error {
		revision := s.Revision()
		doc := canon.Canonicalize(s.store.Document())
		data, err := doc.Encode()
		if err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
		view := domain.NewSnapshot(doc)
		report, err := s.opts.validator.Validate(ctx, view)
		if err != nil {
			return err
		}
		review = ExportReview{
			Document:   data,
			Report:     report,
			Changes:    diff.Compute(view, s.Original()),
			Revision:   revision,
			ReviewedAt: s.opts.clock.Now(),
		}
		return nil
	})
	return review, err
}

// ConfirmExport writes the reviewed bytes to sink under key and records the
// export in the journal when one is configured. It fails with
// ErrStaleReview when the session changed since the review.
func (s *Service) ConfirmExport(ctx context.Context, review ExportReview, sink source.Store, key string) (journal.Entry, error) {
	var entry journal.Entry
	err := s.run(ctx, "confirm_export", "", key, func(ctx context.Context) error {
		if len(review.Document) == 0 {
			return errors.New("export review has no document")
		}
		if review.Revision != s.Revision() {
			return ErrStaleReview
		}
		errs, warnings := review.Counts()
		info, err := source.WriteDocument(ctx, sink, key, review.Document, map[string]string{
			"catalogcore-changes":  strconv.Itoa(len(review.Changes)),
			"catalogcore-findings": strconv.Itoa(review.Report.Len()),
		})
		if err != nil {
			return err
		}
		entry = journal.Entry{
			ID:         uuid.New(),
			Key:        key,
			Source:     string(sink.Driver()),
			ETag:       info.ETag,
			Size:       info.Size,
			Errors:     errs,
			Warnings:   warnings,
			Changes:    len(review.Changes),
			RecordedAt: s.opts.clock.Now(),
		}
		if s.opts.journal != nil {
			if err := s.opts.journal.Record(ctx, entry); err != nil {
				return fmt.Errorf("journal export: %w", err)
			}
		}
		s.opts.logger.Info("catalog exported", "key", key, "size", info.Size, "changes", len(review.Changes), "errors", errs, "warnings", warnings)
		return nil
	})
	return entry, err
}
