// Package validate checks a catalog against a structural schema and its
// relational invariants. Findings are advisory data, never errors.
package validate

import (
	"context"

	"catalogcore/pkg/domain"
)

// Validator combines a schema with the relation rules engine.
type Validator struct {
	schema    Schema
	schemaSet bool
	rules     *domain.RulesEngine
}

// Option configures a Validator.
type Option func(*Validator)

// WithSchema replaces the embedded schema. A nil schema disables structural
// checks.
func WithSchema(s Schema) Option {
	return func(v *Validator) {
		v.schema = s
		v.schemaSet = true
	}
}

// WithRules replaces the relation rules engine.
func WithRules(engine *domain.RulesEngine) Option {
	return func(v *Validator) { v.rules = engine }
}

// New builds a validator using the embedded schema and every relation rule.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{rules: NewRelationsEngine()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if !v.schemaSet {
		schema, err := DefaultSchema()
		if err != nil {
			return nil, err
		}
		v.schema = schema
	}
	return v, nil
}

// ValidateSchema returns structural findings.
func (v *Validator) ValidateSchema(view domain.CatalogView) []domain.Violation {
	if v.schema == nil {
		return nil
	}
	return v.schema.Check(view)
}

// ValidateRelations returns relational findings. An error is returned only
// when ctx is cancelled or a rule fails to run.
func (v *Validator) ValidateRelations(ctx context.Context, view domain.CatalogView) ([]domain.Violation, error) {
	res, err := v.rules.Evaluate(ctx, view)
	if err != nil {
		return nil, err
	}
	return res.Violations, nil
}

// Validate runs both passes.
func (v *Validator) Validate(ctx context.Context, view domain.CatalogView) (domain.Report, error) {
	relations, err := v.ValidateRelations(ctx, view)
	if err != nil {
		return domain.Report{}, err
	}
	return domain.Report{Schema: v.ValidateSchema(view), Relations: relations}, nil
}
