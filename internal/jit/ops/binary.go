package ops

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// 有原生特化实现的数值操作数类型
var numericOperands = []types.ValueType{types.Int32, types.UInt32, types.Double}

// 与字符串拼接时有特化实现的操作数类型
var concatOperands = []types.ValueType{
	types.Undefined, types.Null, types.Boolean, types.Int32, types.UInt32, types.Double, types.String,
}

// 位运算有特化实现的操作数类型
var bitwiseOperands = []types.ValueType{types.Boolean, types.Int32, types.UInt32, types.Double}

// ============================================================================
// 原生数值读取
// ============================================================================

// numberReader 按静态标签返回读取 float64 的函数
func numberReader(t types.ValueType) func(runtime.Value) float64 {
	switch t {
	case types.Int32:
		return func(v runtime.Value) float64 { return float64(v.RawInt()) }
	case types.UInt32:
		return func(v runtime.Value) float64 { return float64(v.RawUInt()) }
	case types.Double:
		return runtime.Value.RawDouble
	}
	return runtime.ToNumber
}

// integerReader 按静态标签返回读取 int64 的函数，只用于整数标签
func integerReader(t types.ValueType) func(runtime.Value) int64 {
	if t.IsUnsigned() {
		return func(v runtime.Value) int64 { return int64(v.RawUInt()) }
	}
	return runtime.Value.RawInt
}

func arith(op Operator, x, y float64) float64 {
	switch op {
	case Add:
		return x + y
	case Sub:
		return x - y
	case Mul:
		return x * y
	case Div:
		return x / y
	}
	return math.Mod(x, y)
}

// compare 对有序值求关系运算
func compare[T constraints.Ordered](op Operator, x, y T) bool {
	switch op {
	case Less:
		return x < y
	case LessEqual:
		return x <= y
	case Greater:
		return x > y
	case GreaterEqual:
		return x >= y
	case Equal, StrictEqual:
		return x == y
	case NotEqual, StrictNotEqual:
		return x != y
	}
	return false
}

// shift 按 ECMA 规则只取低 5 位移位计数
func shift[T constraints.Integer](op Operator, x T, count uint32) T {
	count &= 0x1f
	if op == Shl {
		return x << count
	}
	return x >> count
}

// ============================================================================
// 算术
// ============================================================================

func registerArithmetic(t *Table) {
	for _, op := range []Operator{Add, Sub, Mul, Div, Mod} {
		op := op
		for _, t0 := range numericOperands {
			for _, t1 := range numericOperands {
				r0, r1 := numberReader(t0), numberReader(t1)
				t.RegisterBinary(op, t0, t1, types.Double, func(a, b runtime.Value) runtime.Value {
					return runtime.NewDouble(arith(op, r0(a), r1(b)))
				})
			}
		}
		if op == Add {
			continue
		}
		t.RegisterBinary(op, types.DValueRef, types.DValueRef, types.Double, func(a, b runtime.Value) runtime.Value {
			return runtime.NewDouble(arith(op, runtime.ToNumber(a), runtime.ToNumber(b)))
		})
	}

	concat := func(a, b runtime.Value) runtime.Value {
		return runtime.NewString(runtime.ToString(a) + runtime.ToString(b))
	}
	for _, other := range concatOperands {
		t.RegisterBinary(Add, types.String, other, types.String, concat)
		t.RegisterBinary(Add, other, types.String, types.String, concat)
	}
	t.RegisterBinary(Add, types.DValueRef, types.DValueRef, types.DValueRef, addGeneric)
}

// addGeneric ECMA-262 11.6.1
func addGeneric(a, b runtime.Value) runtime.Value {
	pa := runtime.ToPrimitive(a, "")
	pb := runtime.ToPrimitive(b, "")
	if pa.IsString() || pb.IsString() {
		return runtime.NewString(runtime.ToString(pa) + runtime.ToString(pb))
	}
	return runtime.NewDouble(runtime.ToNumber(pa) + runtime.ToNumber(pb))
}

// ============================================================================
// 位运算
// ============================================================================

func registerBitwise(t *Table) {
	for _, op := range []Operator{BitAnd, BitOr, BitXor, Shl, Shr, UShr} {
		op := op
		fn := func(a, b runtime.Value) runtime.Value {
			if op == UShr {
				return runtime.NewUInt32(shift(Shr, runtime.ToUInt32(a), runtime.ToUInt32(b)))
			}
			x, y := runtime.ToInt32(a), runtime.ToInt32(b)
			switch op {
			case BitAnd:
				return runtime.NewInt32(x & y)
			case BitOr:
				return runtime.NewInt32(x | y)
			case BitXor:
				return runtime.NewInt32(x ^ y)
			}
			return runtime.NewInt32(shift(op, x, uint32(y)))
		}
		ret := types.Int32
		if op == UShr {
			ret = types.UInt32
		}
		for _, t0 := range bitwiseOperands {
			for _, t1 := range bitwiseOperands {
				t.RegisterBinary(op, t0, t1, ret, fn)
			}
		}
		t.RegisterBinary(op, types.DValueRef, types.DValueRef, ret, fn)
	}
}

// ============================================================================
// 比较
// ============================================================================

func registerCompare(t *Table) {
	relational := []Operator{Less, LessEqual, Greater, GreaterEqual}
	equality := []Operator{Equal, NotEqual, StrictEqual, StrictNotEqual}

	for _, op := range append(relational, equality...) {
		op := op
		for _, t0 := range numericOperands {
			for _, t1 := range numericOperands {
				var fn BinaryFunc
				if t0 != types.Double && t1 != types.Double {
					r0, r1 := integerReader(t0), integerReader(t1)
					fn = func(a, b runtime.Value) runtime.Value {
						return runtime.NewBool(compare(op, r0(a), r1(b)))
					}
				} else {
					r0, r1 := numberReader(t0), numberReader(t1)
					fn = func(a, b runtime.Value) runtime.Value {
						return runtime.NewBool(compare(op, r0(a), r1(b)))
					}
				}
				t.RegisterBinary(op, t0, t1, types.Boolean, fn)
			}
		}
		t.RegisterBinary(op, types.String, types.String, types.Boolean, func(a, b runtime.Value) runtime.Value {
			return runtime.NewBool(compare(op, a.RawString(), b.RawString()))
		})
	}

	for _, op := range relational {
		op := op
		t.RegisterBinary(op, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
			return runtime.NewBool(relationalGeneric(op, a, b))
		})
	}
	t.RegisterBinary(Equal, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(runtime.LooseEquals(a, b))
	})
	t.RegisterBinary(NotEqual, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(!runtime.LooseEquals(a, b))
	})
	t.RegisterBinary(StrictEqual, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(runtime.StrictEquals(a, b))
	})
	t.RegisterBinary(StrictNotEqual, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(!runtime.StrictEquals(a, b))
	})

	t.RegisterBinary(InstanceOf, types.DValueRef, types.DValueRef, types.Boolean, instanceOf)
	t.RegisterBinary(In, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(runtime.HasKey(b, a))
	})
	t.RegisterBinary(Delete, types.DValueRef, types.DValueRef, types.Boolean, func(a, b runtime.Value) runtime.Value {
		return runtime.NewBool(runtime.DeleteKey(a, b))
	})
}

// relationalGeneric ECMA-262 11.8.5，NaN 参与时结果为 false
func relationalGeneric(op Operator, a, b runtime.Value) bool {
	pa := runtime.ToPrimitive(a, "number")
	pb := runtime.ToPrimitive(b, "number")
	if pa.IsString() && pb.IsString() {
		return compare(op, pa.RawString(), pb.RawString())
	}
	return compare(op, runtime.ToNumber(pa), runtime.ToNumber(pb))
}

func instanceOf(a, b runtime.Value) runtime.Value {
	if !b.IsFunction() {
		runtime.ThrowTypeError("Right-hand side of 'instanceof' is not callable")
	}
	if !a.IsObject() {
		return runtime.FalseValue
	}
	proto := b.Base().Get("prototype")
	if !proto.IsObject() {
		runtime.ThrowTypeError("Function has non-object prototype in instanceof check")
	}
	target := proto.Base()
	for o := a.Base().Prototype; o != nil; o = o.Prototype {
		if o == target {
			return runtime.TrueValue
		}
	}
	return runtime.FalseValue
}
