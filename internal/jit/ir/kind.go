package ir

// Kind IR 节点种类，代码生成器按它建立分派表
type Kind uint8

const (
	// 表达式
	KindLiteral Kind = iota
	KindThis
	KindObjectLiteral
	KindArrayLiteral
	KindFunctionExpression
	KindReadIdentifier
	KindWriteIdentifier
	KindReadIndexer
	KindWriteIndexer
	KindReadProperty
	KindWriteProperty
	KindUnary
	KindBinary
	KindTernary
	KindComma
	KindCall
	KindNew
	KindWriteTemporary
	KindGuardedCast

	// 语句
	KindBlock
	KindExpressionStatement
	KindEmpty
	KindIf
	KindWhile
	KindDoWhile
	KindFor
	KindLabel
	KindBreak
	KindContinue
	KindReturn
	KindThrow
	KindTry
	KindSwitch

	// KindCount 节点种类个数
	KindCount
)

var kindNames = [KindCount]string{
	KindLiteral:             "Literal",
	KindThis:                "This",
	KindObjectLiteral:       "ObjectLiteral",
	KindArrayLiteral:        "ArrayLiteral",
	KindFunctionExpression:  "FunctionExpression",
	KindReadIdentifier:      "ReadIdentifier",
	KindWriteIdentifier:     "WriteIdentifier",
	KindReadIndexer:         "ReadIndexer",
	KindWriteIndexer:        "WriteIndexer",
	KindReadProperty:        "ReadProperty",
	KindWriteProperty:       "WriteProperty",
	KindUnary:               "Unary",
	KindBinary:              "Binary",
	KindTernary:             "Ternary",
	KindComma:               "Comma",
	KindCall:                "Call",
	KindNew:                 "New",
	KindWriteTemporary:      "WriteTemporary",
	KindGuardedCast:         "GuardedCast",
	KindBlock:               "Block",
	KindExpressionStatement: "ExpressionStatement",
	KindEmpty:               "Empty",
	KindIf:                  "If",
	KindWhile:               "While",
	KindDoWhile:             "DoWhile",
	KindFor:                 "For",
	KindLabel:               "Label",
	KindBreak:               "Break",
	KindContinue:            "Continue",
	KindReturn:              "Return",
	KindThrow:               "Throw",
	KindTry:                 "Try",
	KindSwitch:              "Switch",
}

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsStatement 是否为语句种类
func (k Kind) IsStatement() bool { return k >= KindBlock && k < KindCount }
