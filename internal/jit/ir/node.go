// Package ir 定义执行核心的中间表示
//
// IR 是一棵表达式/语句树。WriteTemporary 节点可以被多个父节点共享：
// 求值时第一次访问计算并缓存，其后的访问复用缓存值。树在构建完成后
// 只读；类型计算等会写节点的分析总是作用于 Clone 得到的副本。
package ir

import (
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Node 所有 IR 节点的基接口
type Node interface {
	Kind() Kind
}

// Expr 表达式节点
type Expr interface {
	Node
	Type() types.ValueType
	SetType(t types.ValueType)
	exprNode()
}

// Stmt 语句节点
type Stmt interface {
	Node
	stmtNode()
}

// exprBase 表达式的公共部分：类型计算的结果
type exprBase struct {
	valueType types.ValueType
}

func (e *exprBase) Type() types.ValueType     { return e.valueType }
func (e *exprBase) SetType(t types.ValueType) { e.valueType = t }
func (e *exprBase) exprNode()                 {}

type stmtBase struct{}

func (stmtBase) stmtNode() {}

// ============================================================================
// 字面量
// ============================================================================

// Literal 常量：数值、字符串、布尔、null、undefined
type Literal struct {
	exprBase
	Value runtime.Value
}

// This this 引用
type This struct{ exprBase }

// PropertyInit 对象字面量中的一项
type PropertyInit struct {
	Name  string
	Field runtime.FieldID
	Value Expr
}

// ObjectLiteral 对象字面量
type ObjectLiteral struct {
	exprBase
	Properties []PropertyInit
}

// ArrayLiteral 数组字面量
type ArrayLiteral struct {
	exprBase
	Elements []Expr
}

// FunctionExpression 创建闭包
type FunctionExpression struct {
	exprBase
	Metadata *FunctionMetadata
}

// ============================================================================
// 标识符与属性
// ============================================================================

// ReadIdentifier 读符号
type ReadIdentifier struct {
	exprBase
	Symbol *Symbol
}

// WriteIdentifier 写符号，值为写入的值
type WriteIdentifier struct {
	exprBase
	Symbol *Symbol
	Value  Expr
}

// ReadIndexer container[index]
type ReadIndexer struct {
	exprBase
	Container    Expr
	Index        Expr
	ProfileIndex int
}

// WriteIndexer container[index] = value
type WriteIndexer struct {
	exprBase
	Container    Expr
	Index        Expr
	Value        Expr
	ProfileIndex int
}

// ReadProperty container.name
type ReadProperty struct {
	exprBase
	Container    Expr
	Name         string
	Field        runtime.FieldID
	ProfileIndex int
}

// WriteProperty container.name = value
type WriteProperty struct {
	exprBase
	Container    Expr
	Name         string
	Field        runtime.FieldID
	Value        Expr
	ProfileIndex int
}

// ============================================================================
// 运算
// ============================================================================

// Unary 一元运算与转换
type Unary struct {
	exprBase
	Op      ops.Operator
	Operand Expr
}

// Binary 二元运算
type Binary struct {
	exprBase
	Op    ops.Operator
	Left  Expr
	Right Expr
}

// Ternary cond ? then : else，Cond 已经是布尔
type Ternary struct {
	exprBase
	Cond Expr
	Then Expr
	Else Expr
}

// Comma 依次求值，结果为最后一项
type Comma struct {
	exprBase
	Exprs []Expr
}

// Call 函数调用。This 为 nil 时以 undefined 调用
type Call struct {
	exprBase
	Callee       Expr
	This         Expr
	Args         []Expr
	ProfileIndex int
}

// New 构造调用
type New struct {
	exprBase
	Callee       Expr
	Args         []Expr
	ProfileIndex int
}

// WriteTemporary 共享的临时值
//
// 同一个节点实例可以出现在多个父节点下。第一次求值计算 Value 并缓存在
// 编号为 Index 的临时槽位，之后的访问读取缓存。
type WriteTemporary struct {
	exprBase
	Value Expr
	Index int
}

// GuardedCast 推测类型检查点
//
// 类型计算在剖析数据有热类型时把它收窄为 Narrowed，并置 IsRequired；
// 运行时标签不符即推测失败。ProfileIndex 同时作为守卫编号。
type GuardedCast struct {
	exprBase
	Value        Expr
	ProfileIndex int
	IsRequired   bool
	Narrowed     types.ValueType
}

// ============================================================================
// 语句
// ============================================================================

// Block 语句块
type Block struct {
	stmtBase
	Statements []Stmt
}

// ExpressionStatement 表达式语句
type ExpressionStatement struct {
	stmtBase
	Expr Expr
}

// Empty 空语句
type Empty struct{ stmtBase }

// If 条件语句，Else 可为 nil
type If struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt
}

// While while 循环
type While struct {
	stmtBase
	Cond Expr
	Body Stmt
}

// DoWhile do-while 循环
type DoWhile struct {
	stmtBase
	Body Stmt
	Cond Expr
}

// For for 循环，各部分都可为 nil
type For struct {
	stmtBase
	Init   Stmt
	Cond   Expr
	Update Expr
	Body   Stmt
}

// Label 带标签的语句
type Label struct {
	stmtBase
	Name string
	Body Stmt
}

// Break break [label]
type Break struct {
	stmtBase
	Label string
}

// Continue continue [label]
type Continue struct {
	stmtBase
	Label string
}

// Return return [value]
type Return struct {
	stmtBase
	Value Expr
}

// Throw throw value
type Throw struct {
	stmtBase
	Value Expr
}

// Try try/catch/finally，Catch 与 Finally 至少一个非 nil
type Try struct {
	stmtBase
	Body        *Block
	CatchSymbol *Symbol
	Catch       *Block
	Finally     *Block
}

// Case switch 的一个分支，Test 为 nil 表示 default
type Case struct {
	Test Expr
	Body []Stmt
}

// Switch switch 语句
//
// Discriminant 是一个 WriteTemporary，各分支的 Test 已被降级为
// 与它的严格相等比较。
type Switch struct {
	stmtBase
	Discriminant Expr
	Cases        []*Case
}

// ============================================================================
// Kind
// ============================================================================

func (*Literal) Kind() Kind             { return KindLiteral }
func (*This) Kind() Kind                { return KindThis }
func (*ObjectLiteral) Kind() Kind       { return KindObjectLiteral }
func (*ArrayLiteral) Kind() Kind        { return KindArrayLiteral }
func (*FunctionExpression) Kind() Kind  { return KindFunctionExpression }
func (*ReadIdentifier) Kind() Kind      { return KindReadIdentifier }
func (*WriteIdentifier) Kind() Kind     { return KindWriteIdentifier }
func (*ReadIndexer) Kind() Kind         { return KindReadIndexer }
func (*WriteIndexer) Kind() Kind        { return KindWriteIndexer }
func (*ReadProperty) Kind() Kind        { return KindReadProperty }
func (*WriteProperty) Kind() Kind       { return KindWriteProperty }
func (*Unary) Kind() Kind               { return KindUnary }
func (*Binary) Kind() Kind              { return KindBinary }
func (*Ternary) Kind() Kind             { return KindTernary }
func (*Comma) Kind() Kind               { return KindComma }
func (*Call) Kind() Kind                { return KindCall }
func (*New) Kind() Kind                 { return KindNew }
func (*WriteTemporary) Kind() Kind      { return KindWriteTemporary }
func (*GuardedCast) Kind() Kind         { return KindGuardedCast }
func (*Block) Kind() Kind               { return KindBlock }
func (*ExpressionStatement) Kind() Kind { return KindExpressionStatement }
func (*Empty) Kind() Kind               { return KindEmpty }
func (*If) Kind() Kind                  { return KindIf }
func (*While) Kind() Kind               { return KindWhile }
func (*DoWhile) Kind() Kind             { return KindDoWhile }
func (*For) Kind() Kind                 { return KindFor }
func (*Label) Kind() Kind               { return KindLabel }
func (*Break) Kind() Kind               { return KindBreak }
func (*Continue) Kind() Kind            { return KindContinue }
func (*Return) Kind() Kind              { return KindReturn }
func (*Throw) Kind() Kind               { return KindThrow }
func (*Try) Kind() Kind                 { return KindTry }
func (*Switch) Kind() Kind              { return KindSwitch }
