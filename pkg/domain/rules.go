package domain

import "context"

// CatalogView provides read-only access to the three collections.
type CatalogView interface {
	ListMarketplaces() []Marketplace
	ListGroups() []Group
	ListWidgets() []Widget
	FindMarketplace(code string) (Marketplace, bool)
	FindGroup(code string) (Group, bool)
	FindWidget(code string) (Widget, bool)
}

// Rule defines a relational check evaluated against a catalog view.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view CatalogView) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view CatalogView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Severity grades a validation finding. No severity blocks an operation.
type Severity string

// Finding severities.
const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Category separates schema findings from relational ones.
type Category string

// Finding categories.
const (
	CategorySchema   Category = "schema"
	CategoryRelation Category = "relation"
)

// Violation is an advisory validation finding.
type Violation struct {
	Rule     string
	Category Category
	Severity Severity
	Message  string
	Entity   EntityType
	Code     string
	// Path is a field path inside the entity for schema findings.
	Path string
	// Location points at the offending reference for relation findings.
	Location Location
}

// Result aggregates violations produced by rules.
type Result struct {
	Violations []Violation
}

// Merge appends violations from other.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasErrors reports whether any violation has error severity.
func (r Result) HasErrors() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Report is the combined output of schema and relation validation.
type Report struct {
	Schema    []Violation
	Relations []Violation
}

// Len returns the number of findings.
func (r Report) Len() int { return len(r.Schema) + len(r.Relations) }

// Clean reports whether validation found nothing.
func (r Report) Clean() bool { return r.Len() == 0 }

// All returns schema findings followed by relation findings.
func (r Report) All() []Violation {
	out := make([]Violation, 0, r.Len())
	out = append(out, r.Schema...)
	return append(out, r.Relations...)
}

// ByRule returns the findings produced by rule.
func (r Report) ByRule(rule string) []Violation {
	var out []Violation
	for _, v := range r.All() {
		if v.Rule == rule {
			out = append(out, v)
		}
	}
	return out
}
