package ops

import (
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// 原始值标签，ToPrimitive 对它们是恒等
var primitiveOperands = []types.ValueType{
	types.Undefined, types.Null, types.Boolean, types.Char,
	types.Int8, types.Int16, types.Int32, types.Int64,
	types.UInt8, types.UInt16, types.UInt32, types.UInt64,
	types.Float, types.Double, types.String,
}

func identity(a runtime.Value) runtime.Value { return a }

// ============================================================================
// 一元运算
// ============================================================================

func registerUnary(t *Table) {
	negate := func(a runtime.Value) runtime.Value { return runtime.NewDouble(-runtime.ToNumber(a)) }
	for _, t0 := range numericOperands {
		t.RegisterUnary(Negate, t0, types.Double, negate)
	}
	t.RegisterUnary(Negate, types.DValueRef, types.Double, negate)

	bitNot := func(a runtime.Value) runtime.Value { return runtime.NewInt32(^runtime.ToInt32(a)) }
	for _, t0 := range bitwiseOperands {
		t.RegisterUnary(BitNot, t0, types.Int32, bitNot)
	}
	t.RegisterUnary(BitNot, types.DValueRef, types.Int32, bitNot)

	t.RegisterUnary(Not, types.Boolean, types.Boolean, func(a runtime.Value) runtime.Value {
		return runtime.NewBool(!a.RawBool())
	})
	t.RegisterUnary(Not, types.DValueRef, types.Boolean, func(a runtime.Value) runtime.Value {
		return runtime.NewBool(!runtime.ToBoolean(a))
	})

	t.RegisterUnary(TypeOf, types.DValueRef, types.String, func(a runtime.Value) runtime.Value {
		return runtime.NewString(a.TypeOf())
	})
	t.RegisterUnary(Void, types.DValueRef, types.Undefined, func(runtime.Value) runtime.Value {
		return runtime.UndefinedValue
	})

	t.RegisterUnary(EnumerateKeys, types.DValueRef, types.Array, func(a runtime.Value) runtime.Value {
		return runtime.NewArray(runtime.NewArrayObject(runtime.EnumerateKeys(a)))
	})
}

// ============================================================================
// 转换
// ============================================================================

func registerConversions(t *Table) {
	for _, t0 := range primitiveOperands {
		t.RegisterUnary(ToPrimitive, t0, t0, identity)
	}
	t.RegisterUnary(ToPrimitive, types.DValueRef, types.DValueRef, func(a runtime.Value) runtime.Value {
		return runtime.ToPrimitive(a, "")
	})

	t.RegisterUnary(ToBoolean, types.Boolean, types.Boolean, identity)
	t.RegisterUnary(ToBoolean, types.DValueRef, types.Boolean, func(a runtime.Value) runtime.Value {
		return runtime.NewBool(runtime.ToBoolean(a))
	})

	t.RegisterUnary(ToNumber, types.Int32, types.Int32, identity)
	t.RegisterUnary(ToNumber, types.Double, types.Double, identity)
	t.RegisterUnary(ToNumber, types.DValueRef, types.Double, func(a runtime.Value) runtime.Value {
		return runtime.NewDouble(runtime.ToNumber(a))
	})

	t.RegisterUnary(ToDouble, types.Double, types.Double, identity)
	t.RegisterUnary(ToDouble, types.DValueRef, types.Double, func(a runtime.Value) runtime.Value {
		return runtime.NewDouble(runtime.ToNumber(a))
	})

	toInt32 := func(a runtime.Value) runtime.Value { return runtime.NewInt32(runtime.ToInt32(a)) }
	t.RegisterUnary(ToInteger, types.Int32, types.Int32, identity)
	t.RegisterUnary(ToInteger, types.DValueRef, types.Int32, toInt32)
	t.RegisterUnary(ToInt32, types.Int32, types.Int32, identity)
	t.RegisterUnary(ToInt32, types.DValueRef, types.Int32, toInt32)

	t.RegisterUnary(ToUInt32, types.UInt32, types.UInt32, identity)
	t.RegisterUnary(ToUInt32, types.DValueRef, types.UInt32, func(a runtime.Value) runtime.Value {
		return runtime.NewUInt32(runtime.ToUInt32(a))
	})
	t.RegisterUnary(ToUInt16, types.UInt16, types.UInt16, identity)
	t.RegisterUnary(ToUInt16, types.DValueRef, types.UInt16, func(a runtime.Value) runtime.Value {
		return runtime.NewUInt16(runtime.ToUInt16(a))
	})

	t.RegisterUnary(ToString, types.String, types.String, identity)
	t.RegisterUnary(ToString, types.DValueRef, types.String, func(a runtime.Value) runtime.Value {
		return runtime.NewString(runtime.ToString(a))
	})

	for _, t0 := range []types.ValueType{types.Object, types.Function, types.Array} {
		t.RegisterUnary(ToObject, t0, t0, identity)
	}
	for _, t0 := range []types.ValueType{types.Boolean, types.Int32, types.UInt32, types.Double, types.String} {
		t.RegisterUnary(ToObject, t0, types.Object, runtime.ToObject)
	}
	t.RegisterUnary(ToObject, types.DValueRef, types.DValueRef, runtime.ToObject)

	t.RegisterUnary(ToFunction, types.Function, types.Function, identity)
	t.RegisterUnary(ToFunction, types.DValueRef, types.Function, func(a runtime.Value) runtime.Value {
		return a.As(types.Function)
	})
}
