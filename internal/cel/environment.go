package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Variables visible to node predicates.
const (
	VarName     = "name"
	VarType     = "type_name"
	VarText     = "text"
	VarCount    = "count"
	VarIsArray  = "is_array"
	VarAttrs    = "attrs"
	VarDepth    = "depth"
	VarPath     = "path"
	VarChildren = "children"
)

// NewEnvironment creates a CEL environment declaring the node variables and
// the helper functions predicates may use.
func NewEnvironment() (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.CustomTypeAdapter(NewNodeTypeAdapter()),

		cel.Variable(VarName, cel.StringType),
		cel.Variable(VarType, cel.StringType),
		cel.Variable(VarText, cel.StringType),
		cel.Variable(VarCount, cel.IntType),
		cel.Variable(VarIsArray, cel.BoolType),
		cel.Variable(VarAttrs, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(VarDepth, cel.IntType),
		cel.Variable(VarPath, cel.StringType),
		cel.Variable(VarChildren, cel.IntType),

		cel.StdLib(),

		StringFunctions(),
		TypeConversionFunctions(),
		MathFunctions(),
		BitwiseFunctions(),
		ErrorHandlingFunctions(),
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func ErrorHandlingFunctions() cel.EnvOption {
	return cel.Lib(&errorLib{})
}

type errorLib struct{}

func (*errorLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("error",
			cel.Overload("error_string", []*cel.Type{cel.StringType}, cel.AnyType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					msg, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string for error message")
					}
					return types.NewErr("%s", msg)
				}),
			),
		),
		cel.Function("isError",
			cel.Overload("iserror_any", []*cel.Type{cel.AnyType}, cel.BoolType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return types.Bool(types.IsError(val))
				}),
			),
		),
	}
}

func (*errorLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// NodeTypeAdapter extends the default type adapter to handle Go's smaller numeric types
type NodeTypeAdapter struct {
	types.Adapter
}

func NewNodeTypeAdapter() *NodeTypeAdapter {
	return &NodeTypeAdapter{
		Adapter: types.DefaultTypeAdapter,
	}
}

// NativeToValue converts Go native types to CEL values, handling smaller integer types
func (k *NodeTypeAdapter) NativeToValue(value any) ref.Val {
	switch v := value.(type) {
	case int8:
		return types.Int(v)
	case int16:
		return types.Int(v)
	case int32:
		return types.Int(v)
	case uint8:
		return types.Int(v)
	case uint16:
		return types.Int(v)
	case uint32:
		return types.Uint(v)
	case float32:
		return types.Double(v)
	default:
		return k.Adapter.NativeToValue(value)
	}
}
