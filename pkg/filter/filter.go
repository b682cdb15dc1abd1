// Package filter builds update-from-client filters from CEL expressions.
//
// An expression sees the property path being written as the string variable
// key and must evaluate to a bool:
//
//	key in ["name", "email"] || key.startsWith("address.")
package filter

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/vango-dev/nodesync/pkg/state"
)

// ErrInvalidExpression is returned for expressions that do not compile to a
// boolean program.
var ErrInvalidExpression = errors.New("filter: invalid expression")

var env = mustEnv()

func mustEnv() *cel.Env {
	e, err := cel.NewEnv(cel.Variable("key", cel.StringType))
	if err != nil {
		panic(fmt.Sprintf("filter: cel environment: %v", err))
	}
	return e
}

// Filter is a compiled expression.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile parses and checks expr.
func Compile(expr string) (*Filter, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q yields %v, want bool", ErrInvalidExpression, expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Filter {
	f, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Allow evaluates the expression for key. Evaluation errors deny.
func (f *Filter) Allow(key string) bool {
	out, _, err := f.prg.Eval(map[string]any{"key": key})
	if err != nil {
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// UpdateFilter returns the filter as a state.UpdateFilter.
func (f *Filter) UpdateFilter() state.UpdateFilter {
	return f.Allow
}
