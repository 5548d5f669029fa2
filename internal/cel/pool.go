package cel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// ErrNotPredicate is returned when an expression does not evaluate to a bool.
var ErrNotPredicate = errors.New("expression is not a boolean predicate")

// Node is the view of an element that predicates evaluate against.
type Node struct {
	Name     string
	Type     string
	Text     string
	Count    int
	IsArray  bool
	Attrs    map[string]string
	Depth    int
	Path     string
	Children int
}

// Activation returns the variable bindings for n.
func (n Node) Activation() map[string]any {
	attrs := n.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	return map[string]any{
		VarName:     n.Name,
		VarType:     n.Type,
		VarText:     n.Text,
		VarCount:    n.Count,
		VarIsArray:  n.IsArray,
		VarAttrs:    attrs,
		VarDepth:    n.Depth,
		VarPath:     n.Path,
		VarChildren: n.Children,
	}
}

// ExpressionPool caches compiled CEL expressions
type ExpressionPool struct {
	mu          sync.RWMutex
	expressions map[string]cel.Program
	env         *cel.Env
}

// NewExpressionPool creates a new expression pool with the node environment
func NewExpressionPool() (*ExpressionPool, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}
	return NewExpressionPoolWithEnv(env)
}

// NewExpressionPoolWithEnv creates a new expression pool with a custom CEL environment
func NewExpressionPoolWithEnv(env *cel.Env) (*ExpressionPool, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}
	return &ExpressionPool{
		env:         env,
		expressions: make(map[string]cel.Program),
	}, nil
}

// GetExpression retrieves or compiles an expression
func (e *ExpressionPool) GetExpression(exprStr string) (cel.Program, error) {
	e.mu.RLock()
	if program, ok := e.expressions[exprStr]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	ast, issues := e.env.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", exprStr, issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.expressions[exprStr] = program
	e.mu.Unlock()

	return program, nil
}

// GetPredicate compiles an expression and checks that it yields a bool.
func (e *ExpressionPool) GetPredicate(exprStr string) (cel.Program, error) {
	ast, issues := e.env.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", exprStr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: %q has type %s", ErrNotPredicate, exprStr, out)
	}
	return e.GetExpression(exprStr)
}

// EvaluateExpression evaluates a compiled expression with parameters
func (e *ExpressionPool) EvaluateExpression(program cel.Program, params map[string]any) (any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	activation, err := cel.NewActivation(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation: %w", err)
	}

	val, _, err := program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}
	return adaptCELResult(val), nil
}

// Match evaluates a predicate program against n.
func (e *ExpressionPool) Match(program cel.Program, n Node) (bool, error) {
	out, err := e.EvaluateExpression(program, n.Activation())
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotPredicate, out)
	}
	return b, nil
}

// adaptCELResult converts CEL result values to Go native types
func adaptCELResult(val any) any {
	switch v := val.(type) {
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.Bool:
		return bool(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case types.Null:
		return nil
	case ref.Val:
		if lister, ok := v.(traits.Lister); ok {
			size := lister.Size().(types.Int)
			result := make([]any, size)
			for i := types.Int(0); i < size; i++ {
				result[i] = adaptCELResult(lister.Get(i))
			}
			return result
		}

		if mapper, ok := v.(traits.Mapper); ok {
			result := make(map[string]any)
			iter := mapper.Iterator()
			for iter.HasNext() == types.True {
				key := iter.Next()
				keyStr, ok := key.Value().(string)
				if !ok {
					keyStr = fmt.Sprintf("%v", key.Value())
				}
				result[keyStr] = adaptCELResult(mapper.Get(key))
			}
			return result
		}

		return v.Value()
	default:
		return v
	}
}
