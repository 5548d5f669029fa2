package cel

import (
	"strconv"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// TypeConversionFunctions returns CEL function declarations for type conversions.
func TypeConversionFunctions() cel.EnvOption {
	return cel.Lib(&typeConversionLib{})
}

type typeConversionLib struct{}

func (*typeConversionLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("to_i",
			cel.Overload("to_i_string", []*cel.Type{cel.StringType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("unexpected type for to_i: %T", val.Value())
					}
					return stringToInt(string(str), 10)
				}),
			),
			cel.Overload("to_i_string_int", []*cel.Type{cel.StringType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(str, base ref.Val) ref.Val {
					strVal, ok := str.(types.String)
					if !ok {
						return types.NewErr("first argument must be string")
					}
					baseVal, ok := base.(types.Int)
					if !ok {
						return types.NewErr("base must be integer")
					}
					return stringToInt(string(strVal), int(baseVal))
				}),
			),
			cel.Overload("to_i_uint", []*cel.Type{cel.UintType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					if uintVal, ok := val.(types.Uint); ok {
						return types.Int(uintVal)
					}
					return types.NewErr("unexpected type for to_i: %T", val.Value())
				}),
			),
			cel.Overload("to_i_double", []*cel.Type{cel.DoubleType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					if doubleVal, ok := val.(types.Double); ok {
						return types.Int(doubleVal)
					}
					return types.NewErr("unexpected type for to_i: %T", val.Value())
				}),
			),
		),

		cel.Function("to_f",
			cel.Overload("to_f_string", []*cel.Type{cel.StringType}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("unexpected type for to_f: %T", val.Value())
					}
					f, err := strconv.ParseFloat(string(str), 64)
					if err != nil {
						return types.NewErr("invalid float format: %v", err)
					}
					return types.Double(f)
				}),
			),
			cel.Overload("to_f_int", []*cel.Type{cel.IntType}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return val.ConvertToType(types.DoubleType)
				}),
			),
		),
	}
}

func (*typeConversionLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// stringToInt converts a string to integer with the specified base
func stringToInt(str string, base int) ref.Val {
	if base < 2 || base > 36 {
		return types.NewErr("base must be between 2 and 36")
	}
	result, err := strconv.ParseInt(str, base, 64)
	if err != nil {
		return types.NewErr("invalid integer format: %v", err)
	}
	return types.Int(result)
}
