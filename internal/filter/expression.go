package filter

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"catalogcore/pkg/domain"
)

type expression struct {
	kind    domain.EntityType
	source  string
	program *exprvm.Program
}

// ExpressionError reports an expression that failed to compile or evaluate.
type ExpressionError struct {
	Kind   domain.EntityType
	Source string
	Err    error
}

func (e ExpressionError) Error() string {
	return fmt.Sprintf("%s filter expression %q: %v", e.Kind, e.Source, e.Err)
}

func (e ExpressionError) Unwrap() error { return e.Err }

// CompileExpression checks that src is a valid boolean filter expression.
func CompileExpression(kind domain.EntityType, src string) error {
	_, err := compileExpression(kind, src)
	return err
}

func compileExpression(kind domain.EntityType, src string) (*expression, error) {
	program, err := exprlang.Compile(src,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, ExpressionError{Kind: kind, Source: src, Err: err}
	}
	return &expression{kind: kind, source: src, program: program}, nil
}

func (x *expression) eval(code string, attrs domain.Attributes) (bool, error) {
	env := attrs.Map()
	env["code"] = code
	out, err := exprlang.Run(x.program, env)
	if err != nil {
		return false, ExpressionError{Kind: x.kind, Source: x.source, Err: err}
	}
	ok, _ := out.(bool)
	return ok, nil
}
