package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"catalogcore/pkg/domain"
)

//go:embed catalog.cue
var catalogSchema []byte

// Schema checks entities for structural conformance.
type Schema interface {
	Check(view domain.CatalogView) []domain.Violation
}

// CUESchema validates each entity against a CUE definition per kind:
// #Marketplace, #Group and #Widget.
type CUESchema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[domain.EntityType]cue.Value
}

var definitions = map[domain.EntityType]string{
	domain.EntityMarketplace: "#Marketplace",
	domain.EntityGroup:       "#Group",
	domain.EntityWidget:      "#Widget",
}

// DefaultSchema compiles the embedded catalog schema.
func DefaultSchema() (*CUESchema, error) {
	return NewCUESchema(catalogSchema, "catalog.cue")
}

// LoadSchemaFile compiles a schema from path. An empty path selects the
// embedded schema.
func LoadSchemaFile(path string) (*CUESchema, error) {
	if path == "" {
		return DefaultSchema()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return NewCUESchema(src, path)
}

// NewCUESchema compiles src. The source must define #Marketplace, #Group and
// #Widget.
func NewCUESchema(src []byte, filename string) (*CUESchema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", filename, err)
	}
	s := &CUESchema{ctx: ctx, defs: make(map[domain.EntityType]cue.Value, len(definitions))}
	for kind, name := range definitions {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("schema %s: missing definition %s", filename, name)
		}
		s.defs[kind] = def
	}
	return s, nil
}

// Check unifies every entity with its kind's definition and reports each
// failure with the offending field path.
func (s *CUESchema) Check(view domain.CatalogView) []domain.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Violation
	for _, m := range view.ListMarketplaces() {
		out = append(out, s.checkEntity(m)...)
	}
	for _, g := range view.ListGroups() {
		out = append(out, s.checkEntity(g)...)
	}
	for _, w := range view.ListWidgets() {
		out = append(out, s.checkEntity(w)...)
	}
	return out
}

func (s *CUESchema) checkEntity(e domain.Entity) []domain.Violation {
	data, err := json.Marshal(e)
	if err != nil {
		return []domain.Violation{schemaViolation(e, "", err.Error())}
	}
	value := s.ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return []domain.Violation{schemaViolation(e, "", err.Error())}
	}
	err = s.defs[e.Kind()].Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var out []domain.Violation
	seen := make(map[string]bool)
	for _, ce := range cueerrors.Errors(err) {
		format, args := ce.Msg()
		path := fieldPath(ce.Path())
		msg := fmt.Sprintf(format, args...)
		if seen[path+"\x00"+msg] {
			continue
		}
		seen[path+"\x00"+msg] = true
		out = append(out, schemaViolation(e, path, msg))
	}
	return out
}

// fieldPath joins a CUE error path relative to the entity, dropping the
// definition label the value was unified with.
func fieldPath(selectors []string) string {
	if len(selectors) > 0 && strings.HasPrefix(selectors[0], "#") {
		selectors = selectors[1:]
	}
	return strings.Join(selectors, ".")
}

func schemaViolation(e domain.Entity, path, msg string) domain.Violation {
	label := domain.EntityLocation(e.Kind(), e.EntityCode()).String()
	if path != "" {
		label += "." + path
	}
	return domain.Violation{
		Rule:     "schema",
		Category: domain.CategorySchema,
		Severity: domain.SeverityError,
		Message:  fmt.Sprintf("%s: %s", label, msg),
		Entity:   e.Kind(),
		Code:     e.EntityCode(),
		Path:     path,
		Location: domain.EntityLocation(e.Kind(), e.EntityCode()),
	}
}
