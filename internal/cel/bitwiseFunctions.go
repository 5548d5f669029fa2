package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// BitwiseFunctions returns CEL function declarations for testing flag fields.
func BitwiseFunctions() cel.EnvOption {
	return cel.Lib(&bitwiseLib{})
}

// intOp applies op to two int operands.
func intOp(lhs, rhs ref.Val, fn string, op func(int64, int64) int64) ref.Val {
	l, ok1 := lhs.(types.Int)
	r, ok2 := rhs.(types.Int)
	if !ok1 || !ok2 {
		return types.NewErr("arguments to %s must be integers, got %T and %T", fn, lhs.Value(), rhs.Value())
	}
	return types.Int(op(int64(l), int64(r)))
}

type bitwiseLib struct{}

func (*bitwiseLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("bitAnd",
			cel.Overload("bitand_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return intOp(lhs, rhs, "bitAnd", func(a, b int64) int64 { return a & b })
				}),
			),
		),
		cel.Function("bitOr",
			cel.Overload("bitor_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return intOp(lhs, rhs, "bitOr", func(a, b int64) int64 { return a | b })
				}),
			),
		),
		cel.Function("bitXor",
			cel.Overload("bitxor_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return intOp(lhs, rhs, "bitXor", func(a, b int64) int64 { return a ^ b })
				}),
			),
		),
		cel.Function("bitShiftRight",
			cel.Overload("bitshiftright_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					if n, ok := rhs.(types.Int); ok && (n < 0 || n > 63) {
						return types.NewErr("shift amount out of range: %v", n)
					}
					return intOp(lhs, rhs, "bitShiftRight", func(a, b int64) int64 { return a >> uint(b) })
				}),
			),
		),
		// bitTest reports whether bit n of v is set
		cel.Function("bitTest",
			cel.Overload("bittest_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.BoolType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					n, ok := rhs.(types.Int)
					if !ok {
						return types.NewErr("bit index must be an integer")
					}
					if n < 0 || n > 63 {
						return types.NewErr("bit index out of range: %v", n)
					}
					v, ok := lhs.(types.Int)
					if !ok {
						return types.NewErr("bitTest value must be an integer")
					}
					return types.Bool(v&(1<<uint(n)) != 0)
				}),
			),
		),
	}
}

func (*bitwiseLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
