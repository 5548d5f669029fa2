package cel

import (
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// MathFunctions returns CEL function declarations for numeric node text.
func MathFunctions() cel.EnvOption {
	return cel.Lib(&mathLib{})
}

type mathLib struct{}

func (*mathLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		// ints and floats parse the space separated elements of a node's text
		cel.Function("ints",
			cel.Overload("ints_string", []*cel.Type{cel.StringType}, cel.ListType(cel.IntType),
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string argument to ints, got %T", val)
					}
					fields := strings.Fields(string(str))
					out := make([]int64, len(fields))
					for i, f := range fields {
						n, err := strconv.ParseInt(f, 10, 64)
						if err != nil {
							return types.NewErr("invalid integer element %q: %v", f, err)
						}
						out[i] = n
					}
					return types.DefaultTypeAdapter.NativeToValue(out)
				}),
			),
		),
		cel.Function("floats",
			cel.Overload("floats_string", []*cel.Type{cel.StringType}, cel.ListType(cel.DoubleType),
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string argument to floats, got %T", val)
					}
					fields := strings.Fields(string(str))
					out := make([]float64, len(fields))
					for i, f := range fields {
						x, err := strconv.ParseFloat(f, 64)
						if err != nil {
							return types.NewErr("invalid float element %q: %v", f, err)
						}
						out[i] = x
					}
					return types.DefaultTypeAdapter.NativeToValue(out)
				}),
			),
		),

		cel.Function("abs",
			cel.Overload("abs_int", []*cel.Type{cel.IntType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					x, ok := val.(types.Int)
					if !ok {
						return types.NewErr("expected int argument to abs, got %T", val)
					}
					if x < 0 {
						return types.Int(-x)
					}
					return x
				}),
			),
			cel.Overload("abs_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					x, ok := val.(types.Double)
					if !ok {
						return types.NewErr("expected double argument to abs, got %T", val)
					}
					if x < 0 {
						return types.Double(-x)
					}
					return x
				}),
			),
		),

		cel.Function("min",
			cel.Overload("min_list_int", []*cel.Type{cel.ListType(cel.IntType)}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return extreme(val, "min", types.IntNegOne)
				}),
			),
			cel.Overload("min_list_double", []*cel.Type{cel.ListType(cel.DoubleType)}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return extreme(val, "min", types.IntNegOne)
				}),
			),
		),
		cel.Function("max",
			cel.Overload("max_list_int", []*cel.Type{cel.ListType(cel.IntType)}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return extreme(val, "max", types.IntOne)
				}),
			),
			cel.Overload("max_list_double", []*cel.Type{cel.ListType(cel.DoubleType)}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return extreme(val, "max", types.IntOne)
				}),
			),
		),

		cel.Function("sum",
			cel.Overload("sum_list_int", []*cel.Type{cel.ListType(cel.IntType)}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return sum(val, types.IntZero)
				}),
			),
			cel.Overload("sum_list_double", []*cel.Type{cel.ListType(cel.DoubleType)}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return sum(val, types.Double(0))
				}),
			),
		),
	}
}

func (*mathLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// extreme returns the element of a non-empty list that compares as want
// against every other element.
func extreme(val ref.Val, fn string, want types.Int) ref.Val {
	list, ok := val.(traits.Lister)
	if !ok {
		return types.NewErr("expected list for %s function", fn)
	}
	size := list.Size().(types.Int)
	if size == 0 {
		return types.NewErr("cannot get %s of empty list", fn)
	}

	best := list.Get(types.Int(0))
	for i := types.Int(1); i < size; i++ {
		elem := list.Get(i)
		if c, ok := elem.(traits.Comparer); ok && c.Compare(best) == want {
			best = elem
		}
	}
	return best
}

func sum(val ref.Val, zero ref.Val) ref.Val {
	list, ok := val.(traits.Lister)
	if !ok {
		return types.NewErr("expected list for sum function")
	}
	total := zero
	it := list.Iterator()
	for it.HasNext() == types.True {
		adder, ok := total.(traits.Adder)
		if !ok {
			return types.NewErr("cannot sum %T", total)
		}
		total = adder.Add(it.Next())
		if types.IsError(total) {
			return total
		}
	}
	return total
}
