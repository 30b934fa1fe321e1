package ops

// ============================================================================
// 运算符
// ============================================================================

// Operator 运算符，IR 节点与运算注册表共用
type Operator uint8

const (
	// 二元算术
	Add Operator = iota
	Sub
	Mul
	Div
	Mod

	// 二元位运算
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
	UShr

	// 比较
	Equal
	NotEqual
	StrictEqual
	StrictNotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	InstanceOf
	In

	// 删除属性：(容器, 键)
	Delete

	// 一元
	Negate
	BitNot
	Not
	TypeOf
	Void

	// 转换
	ToPrimitive
	ToBoolean
	ToNumber
	ToDouble
	ToInteger
	ToInt32
	ToUInt32
	ToUInt16
	ToString
	ToObject
	ToFunction

	// for-in 的键枚举
	EnumerateKeys

	// OperatorCount 运算符个数
	OperatorCount
)

var operatorNames = [OperatorCount]string{
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod",
	BitAnd: "BitAnd", BitOr: "BitOr", BitXor: "BitXor", Shl: "Shl", Shr: "Shr", UShr: "UShr",
	Equal: "Equal", NotEqual: "NotEqual", StrictEqual: "StrictEqual", StrictNotEqual: "StrictNotEqual",
	Less: "Less", LessEqual: "LessEqual", Greater: "Greater", GreaterEqual: "GreaterEqual",
	InstanceOf: "InstanceOf", In: "In", Delete: "Delete",
	Negate: "Negate", BitNot: "BitNot", Not: "Not", TypeOf: "TypeOf", Void: "Void",
	ToPrimitive: "ToPrimitive", ToBoolean: "ToBoolean", ToNumber: "ToNumber", ToDouble: "ToDouble",
	ToInteger: "ToInteger", ToInt32: "ToInt32", ToUInt32: "ToUInt32", ToUInt16: "ToUInt16",
	ToString: "ToString", ToObject: "ToObject", ToFunction: "ToFunction",
	EnumerateKeys: "EnumerateKeys",
}

// String 返回运算符名称
func (op Operator) String() string {
	if op < OperatorCount {
		return operatorNames[op]
	}
	return "Operator(?)"
}

// Symbol 返回运算符的源码写法，用于 IR 打印
func (op Operator) Symbol() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case BitAnd:
		return "&"
	case BitOr:
		return "|"
	case BitXor:
		return "^"
	case Shl:
		return "<<"
	case Shr:
		return ">>"
	case UShr:
		return ">>>"
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case StrictEqual:
		return "==="
	case StrictNotEqual:
		return "!=="
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	case InstanceOf:
		return "instanceof"
	case In:
		return "in"
	case Delete:
		return "delete"
	case Negate:
		return "-"
	case BitNot:
		return "~"
	case Not:
		return "!"
	case TypeOf:
		return "typeof"
	case Void:
		return "void"
	}
	return op.String()
}

// IsBinary 是否为二元运算符
func (op Operator) IsBinary() bool { return op <= Delete }

// IsConversion 是否为转换运算符
func (op Operator) IsConversion() bool { return op >= ToPrimitive && op <= ToFunction }

// Arity 操作数个数
func (op Operator) Arity() int {
	if op.IsBinary() {
		return 2
	}
	return 1
}
