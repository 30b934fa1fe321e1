package runtime

import (
	"math"
	"strconv"
	"strings"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 基本转换（ECMA-262 第 9 章）
// ============================================================================

// ToBoolean 转换为布尔值
func ToBoolean(v Value) bool {
	switch v.Type {
	case types.Undefined, types.Null:
		return false
	case types.Boolean:
		return v.num != 0
	case types.String:
		return v.RawString() != ""
	case types.Char:
		return true
	case types.Float, types.Double:
		// 经由整数测试：0 和 NaN 为假
		d := v.RawDouble()
		return d != 0 && !math.IsNaN(d)
	}
	if v.Type.IsInteger() {
		return v.num != 0
	}
	if v.Type.IsObject() {
		return true
	}
	errors.Fail(errors.I0004, v.Type, types.Boolean)
	return false
}

// ToNumber 转换为双精度数值
func ToNumber(v Value) float64 {
	switch v.Type {
	case types.Undefined:
		return math.NaN()
	case types.Null:
		return 0
	case types.Boolean:
		if v.num != 0 {
			return 1
		}
		return 0
	case types.String, types.Char:
		return StringToNumber(v.RawString())
	case types.Float, types.Double:
		return v.RawDouble()
	}
	if v.Type.IsSigned() {
		return float64(int64(v.num))
	}
	if v.Type.IsUnsigned() {
		return float64(v.num)
	}
	if v.Type.IsObject() {
		return ToNumber(ToPrimitive(v, "number"))
	}
	errors.Fail(errors.I0004, v.Type, types.Double)
	return 0
}

// ToInteger 截断为整数值（仍以 float64 表示）
func ToInteger(v Value) float64 {
	d := ToNumber(v)
	switch {
	case math.IsNaN(d):
		return 0
	case math.IsInf(d, 0) || d == 0:
		return d
	}
	return math.Trunc(d)
}

// ToInt32 转换为 32 位有符号整数（模 2^32）
func ToInt32(v Value) int32 {
	if v.Type == types.Int32 || v.Type == types.Int16 || v.Type == types.Int8 {
		return int32(int64(v.num))
	}
	return DoubleToInt32(ToNumber(v))
}

// DoubleToInt32 ECMA ToInt32
func DoubleToInt32(d float64) int32 {
	return int32(DoubleToUInt32(d))
}

// ToUInt32 转换为 32 位无符号整数（模 2^32）
func ToUInt32(v Value) uint32 {
	if v.Type == types.UInt32 || v.Type == types.UInt16 || v.Type == types.UInt8 {
		return uint32(v.num)
	}
	return DoubleToUInt32(ToNumber(v))
}

// DoubleToUInt32 ECMA ToUint32
func DoubleToUInt32(d float64) uint32 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	d = math.Trunc(d)
	d = math.Mod(d, 4294967296)
	if d < 0 {
		d += 4294967296
	}
	return uint32(d)
}

// ToUInt16 转换为 16 位无符号整数
func ToUInt16(v Value) uint16 {
	return uint16(ToUInt32(v))
}

// ToString 转换为字符串
func ToString(v Value) string {
	switch v.Type {
	case types.Undefined:
		return "undefined"
	case types.Null:
		return "null"
	case types.Boolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case types.String, types.Char:
		return v.RawString()
	case types.Float, types.Double:
		return NumberToString(v.RawDouble())
	}
	if v.Type.IsSigned() {
		return strconv.FormatInt(int64(v.num), 10)
	}
	if v.Type.IsUnsigned() {
		return strconv.FormatUint(v.num, 10)
	}
	if v.Type.IsObject() {
		return ToString(ToPrimitive(v, "string"))
	}
	errors.Fail(errors.I0004, v.Type, types.String)
	return ""
}

// ToPrimitive 对象族经由对象模型多态分派转换为原始值
func ToPrimitive(v Value, hint string) Value {
	if !v.Type.IsObject() {
		return v
	}
	o := v.DObject()
	base := o.Base()

	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		m := base.Get(name)
		if fn, ok := m.Data.(*Function); ok && m.Type == types.Function {
			if r := fn.Call(v); !r.IsObject() {
				return r
			}
		}
	}

	switch x := o.(type) {
	case *Array:
		return NewString(x.Join(","))
	case *Arguments:
		return NewString("[object Arguments]")
	case *Function:
		return NewString("function " + x.Name + "() { [native code] }")
	}
	return NewString("[object Object]")
}

// ToObject 转换为对象，undefined/null 抛出类型错误
func ToObject(v Value) Value {
	if v.Type.IsObject() {
		return v
	}
	if v.IsNullish() {
		ThrowTypeError("Cannot convert " + ToString(v) + " to object")
	}
	o := NewPlainObject(nil, nil)
	o.Set("value", v)
	return NewObject(o)
}

// ============================================================================
// 数值与字符串
// ============================================================================

// NumberToString 按 ECMA Number::toString 规则格式化
func NumberToString(d float64) string {
	switch {
	case math.IsNaN(d):
		return "NaN"
	case math.IsInf(d, 1):
		return "Infinity"
	case math.IsInf(d, -1):
		return "-Infinity"
	case d == 0:
		return "0"
	}
	abs := math.Abs(d)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(d, 'f', -1, 64)
	}
	s := strconv.FormatFloat(d, 'e', -1, 64)
	// Go 输出 1e-07，ECMA 为 1e-7
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + string(sign) + exp
}

// StringToNumber 按 ECMA StringToNumber 规则解析
func StringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		if n, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	// 拒绝 Go 接受而 ECMA 不接受的写法
	if strings.ContainsAny(s, "_xXpPiInN") {
		return math.NaN()
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return d
}

// ============================================================================
// 按目标类型转换
// ============================================================================

// As 把值转换为目标类型的表示
//
// 不支持的转换是内部错误，说明代码生成出了问题。
func (v Value) As(t types.ValueType) Value {
	if v.Type == t {
		return v
	}
	switch t {
	case types.DValue, types.DValueRef, types.Any:
		return v
	case types.Boolean:
		return NewBool(ToBoolean(v))
	case types.Char:
		if v.IsString() {
			s := v.RawString()
			if s == "" {
				return NewChar(0)
			}
			return NewChar(uint16([]rune(s)[0]))
		}
		return NewChar(ToUInt16(v))
	case types.Int8:
		return NewInt8(int8(ToInt32(v)))
	case types.Int16:
		return NewInt16(int16(ToInt32(v)))
	case types.Int32:
		return NewInt32(ToInt32(v))
	case types.Int64:
		return NewInt64(toInt64(v))
	case types.UInt8:
		return NewUInt8(uint8(ToUInt32(v)))
	case types.UInt16:
		return NewUInt16(ToUInt16(v))
	case types.UInt32:
		return NewUInt32(ToUInt32(v))
	case types.UInt64:
		return NewUInt64(uint64(toInt64(v)))
	case types.Float:
		return NewFloat(float32(ToNumber(v)))
	case types.Double:
		return NewDouble(ToNumber(v))
	case types.String:
		return NewString(ToString(v))
	case types.Object:
		return ToObject(v)
	case types.Function:
		if v.Type != types.Function {
			ThrowTypeError(errors.Message(errors.E0309, ToString(v)))
		}
		return v
	case types.Array, types.Property:
		if v.Type == t {
			return v
		}
	}
	errors.Fail(errors.I0004, v.Type, t)
	return v
}

func toInt64(v Value) int64 {
	if v.Type.IsSigned() {
		return int64(v.num)
	}
	if v.Type.IsUnsigned() {
		return int64(v.num)
	}
	d := ToInteger(v)
	if math.IsInf(d, 0) {
		return 0
	}
	return int64(d)
}

// AsBoolean 转换为 Go 布尔值
func (v Value) AsBoolean() bool { return ToBoolean(v) }

// AsInt32 转换为 Go int32
func (v Value) AsInt32() int32 { return ToInt32(v) }

// AsUInt32 转换为 Go uint32
func (v Value) AsUInt32() uint32 { return ToUInt32(v) }

// AsDouble 转换为 Go float64
func (v Value) AsDouble() float64 { return ToNumber(v) }

// AsString 转换为 Go 字符串
func (v Value) AsString() string { return ToString(v) }

// AsObject 转换为对象
func (v Value) AsObject() *Object { return ToObject(v).Base() }

// AsFunction 转换为函数，非函数抛出类型错误
func (v Value) AsFunction() *Function {
	return v.As(types.Function).Data.(*Function)
}

// ============================================================================
// 相等性
// ============================================================================

// StrictEquals ===
func StrictEquals(a, b Value) bool {
	switch {
	case a.IsNumber() && b.IsNumber():
		return numberEquals(a, b)
	case a.IsString() && b.IsString():
		return a.RawString() == b.RawString()
	case a.Type.IsObject() && b.Type.IsObject():
		return a.Base() == b.Base()
	case a.Type != b.Type:
		return false
	case a.Type == types.Boolean:
		return a.num == b.num
	}
	return a.IsNullish()
}

// LooseEquals ==
func LooseEquals(a, b Value) bool {
	switch {
	case a.IsNullish() && b.IsNullish():
		return true
	case a.IsNullish() || b.IsNullish():
		return false
	case a.IsNumber() && b.IsNumber(), a.IsString() && b.IsString(),
		a.Type.IsObject() && b.Type.IsObject():
		return StrictEquals(a, b)
	case a.Type == types.Boolean && b.Type == types.Boolean:
		return a.num == b.num
	case a.Type.IsObject():
		return LooseEquals(ToPrimitive(a, ""), b)
	case b.Type.IsObject():
		return LooseEquals(a, ToPrimitive(b, ""))
	}
	return ToNumber(a) == ToNumber(b)
}

func numberEquals(a, b Value) bool {
	if a.Type == b.Type && a.Type.IsInteger() {
		return a.num == b.num
	}
	return ToNumber(a) == ToNumber(b)
}
