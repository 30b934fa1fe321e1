// Package types 定义 JIT 共享的值类型格（value type lattice），用于避免循环导入
package types

// ============================================================================
// 值类型
// ============================================================================

// ValueType 值类型标签
//
// 顺序与函数签名编码相关：Undefined 必须为 0，可编码的数据类型必须小于 32。
type ValueType uint8

const (
	Undefined ValueType = iota
	Null
	Boolean
	Char
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float
	Double
	String
	Object
	Function
	Array
	Property
	DValue    // 按值装箱
	DValueRef // 按引用装箱，格的顶
	Any
	Unknown // 尚未推导
)

// Count 类型标签数量
const Count = int(Unknown) + 1

var typeNames = [Count]string{
	Undefined: "Undefined",
	Null:      "Null",
	Boolean:   "Boolean",
	Char:      "Char",
	Int8:      "Int8",
	Int16:     "Int16",
	Int32:     "Int32",
	Int64:     "Int64",
	UInt8:     "UInt8",
	UInt16:    "UInt16",
	UInt32:    "UInt32",
	UInt64:    "UInt64",
	Float:     "Float",
	Double:    "Double",
	String:    "String",
	Object:    "Object",
	Function:  "Function",
	Array:     "Array",
	Property:  "Property",
	DValue:    "DValue",
	DValueRef: "DValueRef",
	Any:       "Any",
	Unknown:   "Unknown",
}

func (t ValueType) String() string {
	if int(t) < Count {
		return typeNames[t]
	}
	return "Invalid"
}

// All 返回所有类型标签
func All() []ValueType {
	all := make([]ValueType, Count)
	for i := range all {
		all[i] = ValueType(i)
	}
	return all
}

// IsValid 是否为已声明的标签
func (t ValueType) IsValid() bool { return int(t) < Count }

// IsInteger 整数族（不含 Char/Boolean）
func (t ValueType) IsInteger() bool { return t >= Int8 && t <= UInt64 }

// IsSigned 有符号整数
func (t ValueType) IsSigned() bool { return t >= Int8 && t <= Int64 }

// IsUnsigned 无符号整数
func (t ValueType) IsUnsigned() bool { return t >= UInt8 && t <= UInt64 }

// IsFloating 浮点族
func (t ValueType) IsFloating() bool { return t == Float || t == Double }

// IsNumber 数值族
func (t ValueType) IsNumber() bool { return t.IsInteger() || t.IsFloating() }

// IsObject 对象族：Object/Function/Array/Property
func (t ValueType) IsObject() bool { return t >= Object && t <= Property }

// IsPrimitive 可以在原生栈上直接表示的原始类型
func (t ValueType) IsPrimitive() bool {
	return t == Boolean || t == Char || t == String || t.IsNumber()
}

// IsBoxed 装箱或元类型
func (t ValueType) IsBoxed() bool { return t == DValue || t == DValueRef || t == Any }

// IsData 运行时值可以携带的标签（Undefined..Property）
func (t ValueType) IsData() bool { return t <= Property }

// ============================================================================
// 数值宽度
// ============================================================================

// bits 返回整数类的位宽，Boolean 视作 1 位，Char 视作无符号 16 位
func (t ValueType) bits() int {
	switch t {
	case Boolean:
		return 1
	case Int8, UInt8:
		return 8
	case Int16, UInt16, Char:
		return 16
	case Int32, UInt32:
		return 32
	case Int64, UInt64:
		return 64
	}
	return 0
}

func signedOf(bits int) ValueType {
	switch {
	case bits <= 8:
		return Int8
	case bits <= 16:
		return Int16
	case bits <= 32:
		return Int32
	case bits <= 64:
		return Int64
	}
	return Double
}

func unsignedOf(bits int) ValueType {
	switch {
	case bits <= 8:
		return UInt8
	case bits <= 16:
		return UInt16
	case bits <= 32:
		return UInt32
	}
	return UInt64
}

// isNumeric 参与数值合并的类型：数值族 + Boolean + Char
func isNumeric(t ValueType) bool {
	return t.IsNumber() || t == Boolean || t == Char
}

// joinNumeric 数值族合并，选择能无损容纳两边量级的最小类型
func joinNumeric(a, b ValueType) ValueType {
	if a == b {
		return a
	}
	// Boolean 可以被任何数值类型容纳
	if a == Boolean {
		return b
	}
	if b == Boolean {
		return a
	}
	if a == Double || b == Double {
		return Double
	}
	if a == Float || b == Float {
		other := b
		if b == Float {
			other = a
		}
		if other.bits() <= 16 {
			return Float
		}
		return Double
	}

	// Char 与 Char 以外的数值类型合并时按 UInt16 处理
	if a == Char {
		a = UInt16
	}
	if b == Char {
		b = UInt16
	}
	if a == b {
		return a
	}

	switch {
	case a.IsSigned() == b.IsSigned():
		if a.bits() >= b.bits() {
			return a
		}
		return b
	default:
		s, u := a, b
		if a.IsUnsigned() {
			s, u = b, a
		}
		if s.bits() > u.bits() {
			return s
		}
		return signedOf(u.bits() * 2)
	}
}

// ============================================================================
// 类型格合并
// ============================================================================

// ResolveType 类型格的合并（join）操作
//
// current 是已有类型，assigned 是新赋入的类型。对所有标签组合都有定义。
func ResolveType(current, assigned ValueType) ValueType {
	if current == Unknown {
		return assigned
	}
	if assigned == Unknown || current == assigned {
		return current
	}

	switch current {
	case Undefined:
		return assigned
	case DValue, DValueRef:
		return current
	case Any:
		return DValueRef
	}

	switch {
	case isNumeric(current) && isNumeric(assigned):
		return joinNumeric(current, assigned)
	case current.IsObject() && assigned.IsObject():
		return Object
	case current == Null && assigned.IsObject(), current.IsObject() && assigned == Null:
		return Object
	}
	return DValueRef
}

// ResolveAll 依次合并一组类型
func ResolveAll(ts ...ValueType) ValueType {
	result := Unknown
	for _, t := range ts {
		result = ResolveType(result, t)
	}
	return result
}

// Widen 返回用于存储的类型：Unknown/Undefined 回落到 DValueRef
func Widen(t ValueType) ValueType {
	switch t {
	case Unknown, Undefined, Any, DValue:
		return DValueRef
	}
	return t
}
