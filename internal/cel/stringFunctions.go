package cel

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// StringFunctions returns CEL function declarations for string operations.
func StringFunctions() cel.EnvOption {
	return cel.Lib(&stringLib{})
}

type stringLib struct{}

func (*stringLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("to_s",
			cel.Overload("to_s_any", []*cel.Type{cel.AnyType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return types.String(fmt.Sprintf("%v", val.Value()))
				}),
			),
		),
		cel.Function("reverse",
			cel.Overload("reverse_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string type for reverse")
					}
					return types.String(kaitai.StringReverse(string(str)))
				}),
			),
		),
		cel.Function("length",
			cel.Overload("length_string", []*cel.Type{cel.StringType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string type for length")
					}
					return types.Int(len([]rune(string(str))))
				}),
			),
			cel.Overload("length_list", []*cel.Type{cel.ListType(cel.AnyType)}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					lister, ok := val.(traits.Lister)
					if !ok {
						return types.NewErr("expected list type for length")
					}
					return lister.Size()
				}),
			),
		),
		cel.Function("substring",
			cel.Overload("substring_string_int_int", []*cel.Type{cel.StringType, cel.IntType, cel.IntType}, cel.StringType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					str, ok := args[0].(types.String)
					if !ok {
						return types.NewErr("first argument must be string")
					}
					start, ok := args[1].(types.Int)
					if !ok {
						return types.NewErr("start index must be integer")
					}
					end, ok := args[2].(types.Int)
					if !ok {
						return types.NewErr("end index must be integer")
					}

					runes := []rune(string(str))
					startIdx, endIdx := max(int(start), 0), min(int(end), len(runes))
					if startIdx >= endIdx {
						return types.String("")
					}
					return types.String(string(runes[startIdx:endIdx]))
				}),
			),
		),
		// values splits a node's text into its space separated elements
		cel.Function("values",
			cel.Overload("values_string", []*cel.Type{cel.StringType}, cel.ListType(cel.StringType),
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string type for values")
					}
					return types.NewStringList(types.DefaultTypeAdapter, strings.Fields(string(str)))
				}),
			),
		),
	}
}

func (*stringLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
