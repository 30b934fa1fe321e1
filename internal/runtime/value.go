// Package runtime 提供运行时值表示与最小对象模型
//
// Value 是带标签的装箱值，对应类型格中的 DValue。对象模型（属性表、属性描述符、
// 原型链）只实现执行核心需要的接口。
package runtime

import (
	"math"

	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// Value 运行时值
type Value struct {
	Type types.ValueType
	num  uint64      // 数值负载：整数按位存放，浮点存放 Float64bits
	Data interface{} // string / *Object / *Function / *Array / *Property
}

// 预定义常量值
var (
	UndefinedValue = Value{Type: types.Undefined}
	NullValue      = Value{Type: types.Null}
	TrueValue      = Value{Type: types.Boolean, num: 1}
	FalseValue     = Value{Type: types.Boolean, num: 0}
	ZeroValue      = Value{Type: types.Int32, num: 0}
	NaNValue       = NewDouble(math.NaN())
)

// ============================================================================
// 构造
// ============================================================================

// NewUndefined 创建 undefined 值
func NewUndefined() Value { return UndefinedValue }

// NewNull 创建 null 值
func NewNull() Value { return NullValue }

// NewBool 创建布尔值
func NewBool(b bool) Value {
	if b {
		return TrueValue
	}
	return FalseValue
}

// NewChar 创建字符值
func NewChar(c uint16) Value { return Value{Type: types.Char, num: uint64(c)} }

// NewInt8 创建 Int8 值
func NewInt8(i int8) Value { return Value{Type: types.Int8, num: uint64(int64(i))} }

// NewInt16 创建 Int16 值
func NewInt16(i int16) Value { return Value{Type: types.Int16, num: uint64(int64(i))} }

// NewInt32 创建 Int32 值
func NewInt32(i int32) Value { return Value{Type: types.Int32, num: uint64(int64(i))} }

// NewInt64 创建 Int64 值
func NewInt64(i int64) Value { return Value{Type: types.Int64, num: uint64(i)} }

// NewUInt8 创建 UInt8 值
func NewUInt8(i uint8) Value { return Value{Type: types.UInt8, num: uint64(i)} }

// NewUInt16 创建 UInt16 值
func NewUInt16(i uint16) Value { return Value{Type: types.UInt16, num: uint64(i)} }

// NewUInt32 创建 UInt32 值
func NewUInt32(i uint32) Value { return Value{Type: types.UInt32, num: uint64(i)} }

// NewUInt64 创建 UInt64 值
func NewUInt64(i uint64) Value { return Value{Type: types.UInt64, num: i} }

// NewFloat 创建单精度浮点值
func NewFloat(f float32) Value {
	return Value{Type: types.Float, num: math.Float64bits(float64(f))}
}

// NewDouble 创建双精度浮点值
func NewDouble(f float64) Value { return Value{Type: types.Double, num: math.Float64bits(f)} }

// NewNumber 创建数值：能精确表示为 Int32 的用 Int32，否则用 Double
func NewNumber(f float64) Value {
	if i := int32(f); float64(i) == f && !(f == 0 && math.Signbit(f)) {
		return NewInt32(i)
	}
	return NewDouble(f)
}

// NewString 创建字符串值
func NewString(s string) Value { return Value{Type: types.String, Data: s} }

// NewObject 创建对象值
func NewObject(o *Object) Value {
	if o == nil {
		return NullValue
	}
	return Value{Type: types.Object, Data: o}
}

// NewFunction 创建函数值
func NewFunction(f *Function) Value {
	if f == nil {
		return NullValue
	}
	return Value{Type: types.Function, Data: f}
}

// NewArray 创建数组值
func NewArray(a *Array) Value {
	if a == nil {
		return NullValue
	}
	return Value{Type: types.Array, Data: a}
}

// NewArgumentsValue 创建 arguments 对象值，标签为 Array
func NewArgumentsValue(a *Arguments) Value {
	if a == nil {
		return NullValue
	}
	return Value{Type: types.Array, Data: a}
}

// NewProperty 创建访问器属性值
func NewProperty(p *Property) Value {
	if p == nil {
		return NullValue
	}
	return Value{Type: types.Property, Data: p}
}

// FromDObject 按对象的实际类别创建值
func FromDObject(o DObject) Value {
	switch x := o.(type) {
	case nil:
		return NullValue
	case *Function:
		return NewFunction(x)
	case *Array:
		return NewArray(x)
	case *Arguments:
		return NewArgumentsValue(x)
	case *Property:
		return NewProperty(x)
	case *Object:
		return NewObject(x)
	}
	return NewObject(o.Base())
}

// ============================================================================
// 查询
// ============================================================================

// IsUndefined 是否为 undefined
func (v Value) IsUndefined() bool { return v.Type == types.Undefined }

// IsNull 是否为 null
func (v Value) IsNull() bool { return v.Type == types.Null }

// IsNullish 是否为 undefined 或 null
func (v Value) IsNullish() bool { return v.Type == types.Undefined || v.Type == types.Null }

// IsNumber 是否为数值
func (v Value) IsNumber() bool { return v.Type.IsNumber() }

// IsString 是否为字符串（含 Char）
func (v Value) IsString() bool { return v.Type == types.String || v.Type == types.Char }

// IsObject 是否为对象族
func (v Value) IsObject() bool { return v.Type.IsObject() }

// IsFunction 是否为函数
func (v Value) IsFunction() bool { return v.Type == types.Function }

// ============================================================================
// 原始负载访问（调用方保证标签正确）
// ============================================================================

// RawBool 布尔负载
func (v Value) RawBool() bool { return v.num != 0 }

// RawInt 有符号整数负载
func (v Value) RawInt() int64 { return int64(v.num) }

// RawUInt 无符号整数负载
func (v Value) RawUInt() uint64 { return v.num }

// RawDouble 浮点负载
func (v Value) RawDouble() float64 { return math.Float64frombits(v.num) }

// RawString 字符串负载
func (v Value) RawString() string {
	if v.Type == types.Char {
		return string(rune(uint16(v.num)))
	}
	s, _ := v.Data.(string)
	return s
}

// DObject 对象族负载
func (v Value) DObject() DObject {
	o, _ := v.Data.(DObject)
	return o
}

// Base 对象族的基础对象
func (v Value) Base() *Object {
	if o := v.DObject(); o != nil {
		return o.Base()
	}
	return nil
}

// ============================================================================
// 类型相关
// ============================================================================

// TypeOf 返回 typeof 结果
func (v Value) TypeOf() string {
	switch v.Type {
	case types.Undefined:
		return "undefined"
	case types.Null:
		return "object"
	case types.Boolean:
		return "boolean"
	case types.String, types.Char:
		return "string"
	case types.Function:
		return "function"
	case types.Object, types.Array, types.Property:
		return "object"
	}
	if v.Type.IsNumber() {
		return "number"
	}
	return "undefined"
}

// SameValue 严格相等中对象按身份比较、数值按数学值比较
func (v Value) SameValue(o Value) bool {
	return StrictEquals(v, o)
}

func (v Value) String() string { return ToString(v) }
