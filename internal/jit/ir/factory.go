// factory.go - IR 构建与降级
//
// Factory 为一个函数构建 IR，负责符号解析、剖析下标分配和语法糖降级：
//   - 后缀自增：Comma[Write(x, Add(T, 1)), T]，T = WriteTemporary(ToNumber(x))
//   - 逻辑与/或：以 WriteTemporary 共享左操作数的 Ternary
//   - 方法调用：容器求值一次，同时作为 callee 的容器和 this
//   - 标识符写入、调用实参和返回值包一层 GuardedCast
//
// 名字必须先声明后使用：内层函数引用外层变量时，外层的声明要已经存在。

package ir

import (
	"fmt"

	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Factory 一个函数的 IR 构建器
type Factory struct {
	Meta    *FunctionMetadata
	scope   *Scope
	parent  *Factory
	hoisted []Stmt
}

// NewProgram 创建程序（顶层代码）的构建器
func NewProgram() *Factory {
	meta := NewFunctionMetadata("<program>", nil)
	meta.IsProgram = true
	return &Factory{Meta: meta, scope: meta.Scope}
}

// Function 创建内层函数的构建器，形参按顺序声明
func (f *Factory) Function(name string, params ...string) *Factory {
	meta := NewFunctionMetadata(name, f.Meta)
	meta.Scope.Parent = f.scope
	for i, p := range params {
		sym := meta.Scope.Add(p, SymbolParameter)
		sym.ParameterIndex = i
		meta.Parameters = append(meta.Parameters, sym)
	}
	return &Factory{Meta: meta, scope: meta.Scope, parent: f}
}

// Scope 当前作用域
func (f *Factory) Scope() *Scope { return f.scope }

// ============================================================================
// 符号
// ============================================================================

// Declare 声明 var 变量
//
// 程序顶层的变量是全局对象的属性。先于声明的引用已经建立的符号
// 被改写为局部变量，与变量提升的语义一致。
func (f *Factory) Declare(name string) *Symbol {
	scope := f.scope.FunctionScope()
	kind := SymbolLocal
	if f.Meta.IsProgram {
		kind = SymbolGlobal
	}
	if sym := scope.Lookup(name); sym != nil {
		switch sym.Kind {
		case SymbolGlobal, SymbolUnknown, SymbolParentLocal:
			sym.Kind = kind
			sym.Outer = nil
			sym.Depth = 0
		}
		sym.Declared = true
		return sym
	}
	sym := scope.Add(name, kind)
	sym.Declared = true
	return sym
}

// Hidden 创建编译器使用的局部变量
func (f *Factory) Hidden(prefix string) *Symbol {
	scope := f.scope.FunctionScope()
	return scope.Add(fmt.Sprintf("$%s%d", prefix, scope.Count()), SymbolHiddenLocal)
}

// Resolve 按作用域链解析名字
func (f *Factory) Resolve(name string) *Symbol {
	cur := f.scope
	fnScope := cur.FunctionScope()

	for s := cur; s != nil && s.Function == f.Meta; s = s.Parent {
		sym := s.Lookup(name)
		if sym == nil {
			continue
		}
		if s == cur || cur.IsFunction {
			return sym
		}
		dup := cur.Add(name, SymbolOuterDuplicate)
		dup.Outer = sym
		return dup
	}

	if name == "arguments" && !f.Meta.IsProgram {
		fnScope.UsesArguments = true
		return fnScope.Add(name, SymbolArguments)
	}

	for s := fnScope.Parent; s != nil; s = s.Parent {
		if sym := s.Lookup(name); sym != nil {
			return f.capture(sym, fnScope)
		}
	}

	kind := SymbolGlobal
	if cur.IsDynamic() {
		kind = SymbolUnknown
	}
	return fnScope.Add(name, kind)
}

// capture 引用外层函数的符号
func (f *Factory) capture(sym *Symbol, fnScope *Scope) *Symbol {
	target := sym.Resolve()
	if target.Kind == SymbolParentLocal {
		target = target.Outer
	}
	switch target.Kind {
	case SymbolGlobal, SymbolUnknown:
		return fnScope.Add(sym.Name, target.Kind)
	case SymbolLocal, SymbolHiddenLocal, SymbolParameter:
		target.Kind = SymbolClosedOnLocal
	}
	owner := target.Scope.Function
	depth := 0
	for m := f.Meta; m != nil && m != owner; m = m.Parent {
		depth++
	}
	p := fnScope.Add(sym.Name, SymbolParentLocal)
	p.Outer = target
	p.Depth = depth
	return p
}

// ============================================================================
// 字面量
// ============================================================================

func typed[T Expr](e T) T {
	e.SetType(types.Unknown)
	return e
}

// Literal 常量
func (f *Factory) Literal(v runtime.Value) Expr { return typed(&Literal{Value: v}) }

// Int 32 位整数常量
func (f *Factory) Int(i int32) Expr { return f.Literal(runtime.NewInt32(i)) }

// Number 双精度常量
func (f *Factory) Number(d float64) Expr { return f.Literal(runtime.NewDouble(d)) }

// String 字符串常量
func (f *Factory) String(s string) Expr { return f.Literal(runtime.NewString(s)) }

// Bool 布尔常量
func (f *Factory) Bool(b bool) Expr { return f.Literal(runtime.NewBool(b)) }

// Null null
func (f *Factory) Null() Expr { return f.Literal(runtime.NullValue) }

// Undefined undefined
func (f *Factory) Undefined() Expr { return f.Literal(runtime.UndefinedValue) }

// This this
func (f *Factory) This() Expr { return typed(&This{}) }

// Object 对象字面量
func (f *Factory) Object(props ...PropertyInit) Expr {
	for i := range props {
		props[i].Field = runtime.FieldIDOf(props[i].Name)
	}
	return typed(&ObjectLiteral{Properties: props})
}

// Array 数组字面量
func (f *Factory) Array(elements ...Expr) Expr { return typed(&ArrayLiteral{Elements: elements}) }

// Closure 内层函数的闭包表达式
func (f *Factory) Closure(child *Factory) Expr {
	return typed(&FunctionExpression{Metadata: child.Meta})
}

// ============================================================================
// 标识符与属性
// ============================================================================

// Read 读变量
func (f *Factory) Read(name string) Expr { return f.ReadSymbol(f.Resolve(name)) }

// ReadSymbol 读符号
func (f *Factory) ReadSymbol(sym *Symbol) Expr { return typed(&ReadIdentifier{Symbol: sym}) }

// Assign 写变量
func (f *Factory) Assign(name string, value Expr) Expr {
	return f.AssignSymbol(f.Resolve(name), value)
}

// AssignSymbol 写符号，值包一层 GuardedCast
func (f *Factory) AssignSymbol(sym *Symbol, value Expr) Expr {
	return typed(&WriteIdentifier{Symbol: sym, Value: f.Guard(value)})
}

// Guard 推测检查点
func (f *Factory) Guard(e Expr) Expr {
	if _, ok := e.(*GuardedCast); ok {
		return e
	}
	g := typed(&GuardedCast{Value: e, ProfileIndex: f.Meta.NewProfileIndex()})
	g.Narrowed = types.DValueRef
	return g
}

// Prop container.name
func (f *Factory) Prop(container Expr, name string) Expr {
	return typed(&ReadProperty{
		Container: container, Name: name, Field: runtime.FieldIDOf(name),
		ProfileIndex: f.Meta.NewProfileIndex(),
	})
}

// SetProp container.name = value
func (f *Factory) SetProp(container Expr, name string, value Expr) Expr {
	return typed(&WriteProperty{
		Container: container, Name: name, Field: runtime.FieldIDOf(name), Value: value,
		ProfileIndex: f.Meta.NewProfileIndex(),
	})
}

// Index container[index]
func (f *Factory) Index(container, index Expr) Expr {
	return typed(&ReadIndexer{Container: container, Index: index, ProfileIndex: f.Meta.NewProfileIndex()})
}

// SetIndex container[index] = value
func (f *Factory) SetIndex(container, index, value Expr) Expr {
	return typed(&WriteIndexer{
		Container: container, Index: index, Value: value,
		ProfileIndex: f.Meta.NewProfileIndex(),
	})
}

// ============================================================================
// 运算
// ============================================================================

// Unary 一元运算或转换
func (f *Factory) Unary(op ops.Operator, operand Expr) Expr {
	return typed(&Unary{Op: op, Operand: operand})
}

// Binary 二元运算
func (f *Factory) Binary(op ops.Operator, left, right Expr) Expr {
	if op == ops.Delete {
		return f.Delete(f.Index(left, right))
	}
	return typed(&Binary{Op: op, Left: left, Right: right})
}

// ToBoolean 条件转换，已经是布尔转换的不重复包装
func (f *Factory) ToBoolean(e Expr) Expr {
	if u, ok := e.(*Unary); ok && u.Op == ops.ToBoolean {
		return e
	}
	return f.Unary(ops.ToBoolean, e)
}

// Not !e
func (f *Factory) Not(e Expr) Expr { return f.Unary(ops.Not, f.ToBoolean(e)) }

// Temp 共享临时值
func (f *Factory) Temp(value Expr) *WriteTemporary {
	return typed(&WriteTemporary{Value: value, Index: f.Meta.NewTemporaryIndex()})
}

// Ternary cond ? then : else
func (f *Factory) Ternary(cond, then, els Expr) Expr {
	return typed(&Ternary{Cond: f.ToBoolean(cond), Then: then, Else: els})
}

// And left && right
func (f *Factory) And(left, right Expr) Expr {
	t := f.Temp(left)
	return typed(&Ternary{Cond: f.Unary(ops.ToBoolean, t), Then: right, Else: t})
}

// Or left || right
func (f *Factory) Or(left, right Expr) Expr {
	t := f.Temp(left)
	return typed(&Ternary{Cond: f.Unary(ops.ToBoolean, t), Then: t, Else: right})
}

// Comma 逗号表达式
func (f *Factory) Comma(exprs ...Expr) Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return typed(&Comma{Exprs: exprs})
}

// TypeOf typeof e
func (f *Factory) TypeOf(e Expr) Expr { return f.Unary(ops.TypeOf, e) }

// Delete delete target
func (f *Factory) Delete(target Expr) Expr {
	switch t := target.(type) {
	case *ReadProperty:
		return typed(&Binary{Op: ops.Delete, Left: t.Container, Right: f.String(t.Name)})
	case *ReadIndexer:
		return typed(&Binary{Op: ops.Delete, Left: t.Container, Right: t.Index})
	case *ReadIdentifier:
		return f.Bool(false)
	}
	return f.Comma(target, f.Bool(true))
}

// ============================================================================
// 复合赋值与自增
// ============================================================================

// PostInc target++
func (f *Factory) PostInc(target Expr) Expr { return f.step(target, ops.Add, true) }

// PostDec target--
func (f *Factory) PostDec(target Expr) Expr { return f.step(target, ops.Sub, true) }

// PreInc ++target
func (f *Factory) PreInc(target Expr) Expr { return f.step(target, ops.Add, false) }

// PreDec --target
func (f *Factory) PreDec(target Expr) Expr { return f.step(target, ops.Sub, false) }

func (f *Factory) step(target Expr, op ops.Operator, postfix bool) Expr {
	return f.update(target, postfix, func(old Expr) Expr {
		if !postfix {
			old = f.Unary(ops.ToNumber, old)
		}
		return f.Binary(op, old, f.Int(1))
	})
}

// CompoundAssign target op= value
func (f *Factory) CompoundAssign(op ops.Operator, target, value Expr) Expr {
	return f.update(target, false, func(old Expr) Expr { return f.Binary(op, old, value) })
}

// update 读-改-写，postfix 时结果为 ToNumber 后的旧值
func (f *Factory) update(target Expr, postfix bool, compute func(old Expr) Expr) Expr {
	var read func() Expr
	var write func(v Expr) Expr

	switch t := target.(type) {
	case *ReadIdentifier:
		sym := t.Symbol
		read = func() Expr { return f.ReadSymbol(sym) }
		write = func(v Expr) Expr { return f.AssignSymbol(sym, v) }
	case *ReadProperty:
		c := f.Temp(t.Container)
		read = func() Expr { return f.Prop(c, t.Name) }
		write = func(v Expr) Expr { return f.SetProp(c, t.Name, v) }
	case *ReadIndexer:
		c := f.Temp(t.Container)
		k := f.Temp(t.Index)
		read = func() Expr { return f.Index(c, k) }
		write = func(v Expr) Expr { return f.SetIndex(c, k, v) }
	default:
		panic(fmt.Sprintf("ir: invalid assignment target %s", target.Kind()))
	}

	if !postfix {
		return write(compute(read()))
	}
	old := f.Temp(f.Unary(ops.ToNumber, read()))
	return f.Comma(write(compute(old)), old)
}

// ============================================================================
// 调用
// ============================================================================

// Call 调用。callee 为属性读取时以容器作为 this
func (f *Factory) Call(callee Expr, args ...Expr) Expr {
	call := &Call{ProfileIndex: f.Meta.NewProfileIndex()}
	switch c := callee.(type) {
	case *ReadProperty:
		this := f.Temp(c.Container)
		c.Container = this
		call.This = this
	case *ReadIndexer:
		this := f.Temp(c.Container)
		c.Container = this
		call.This = this
	}
	call.Callee = f.Unary(ops.ToFunction, callee)
	call.Args = f.guardAll(args)
	return typed(call)
}

// New new callee(args...)
func (f *Factory) New(callee Expr, args ...Expr) Expr {
	return typed(&New{
		Callee:       f.Unary(ops.ToFunction, callee),
		Args:         f.guardAll(args),
		ProfileIndex: f.Meta.NewProfileIndex(),
	})
}

func (f *Factory) guardAll(args []Expr) []Expr {
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = f.Guard(a)
	}
	return out
}

// ============================================================================
// 语句
// ============================================================================

// Block 语句块
func (f *Factory) Block(stmts ...Stmt) *Block { return &Block{Statements: stmts} }

// Expr 表达式语句
func (f *Factory) Expr(e Expr) Stmt { return &ExpressionStatement{Expr: e} }

// Empty 空语句
func (f *Factory) Empty() Stmt { return &Empty{} }

// Var var name [= init]
func (f *Factory) Var(name string, init Expr) Stmt {
	sym := f.Declare(name)
	if init == nil {
		return f.Empty()
	}
	return f.Expr(f.AssignSymbol(sym, init))
}

// If if 语句，els 可为 nil
func (f *Factory) If(cond Expr, then, els Stmt) Stmt {
	return &If{Cond: f.ToBoolean(cond), Then: then, Else: els}
}

// While while 循环
func (f *Factory) While(cond Expr, body Stmt) Stmt {
	return &While{Cond: f.ToBoolean(cond), Body: body}
}

// DoWhile do-while 循环
func (f *Factory) DoWhile(body Stmt, cond Expr) Stmt {
	return &DoWhile{Body: body, Cond: f.ToBoolean(cond)}
}

// For for 循环
func (f *Factory) For(init Stmt, cond, update Expr, body Stmt) Stmt {
	if cond != nil {
		cond = f.ToBoolean(cond)
	}
	return &For{Init: init, Cond: cond, Update: update, Body: body}
}

// ForIn for (name in obj) body，降级为对键数组的 for 循环
func (f *Factory) ForIn(name string, obj Expr, body Stmt) Stmt {
	keys := f.Hidden("keys")
	index := f.Hidden("i")
	target := f.Resolve(name)

	init := f.Block(
		f.Expr(f.AssignSymbol(keys, f.Unary(ops.EnumerateKeys, obj))),
		f.Expr(f.AssignSymbol(index, f.Int(0))),
	)
	cond := f.Binary(ops.Less, f.ReadSymbol(index), f.Prop(f.ReadSymbol(keys), "length"))
	update := f.AssignSymbol(index, f.Binary(ops.Add, f.ReadSymbol(index), f.Int(1)))
	loopBody := f.Block(
		f.Expr(f.AssignSymbol(target, f.Index(f.ReadSymbol(keys), f.ReadSymbol(index)))),
		body,
	)
	return f.For(init, cond, update, loopBody)
}

// Label 带标签语句
func (f *Factory) Label(name string, body Stmt) Stmt { return &Label{Name: name, Body: body} }

// Break break [label]
func (f *Factory) Break(label string) Stmt { return &Break{Label: label} }

// Continue continue [label]
func (f *Factory) Continue(label string) Stmt { return &Continue{Label: label} }

// Return return [value]
func (f *Factory) Return(value Expr) Stmt {
	if value == nil {
		return &Return{}
	}
	return &Return{Value: f.Guard(value)}
}

// Throw throw value
func (f *Factory) Throw(value Expr) Stmt { return &Throw{Value: value} }

// Try try/catch/finally
//
// catchBody 在 catch 子句的块作用域中构建，可以为 nil。
func (f *Factory) Try(body *Block, catchName string, catchBody func() *Block, finally *Block) Stmt {
	t := &Try{Body: body, Finally: finally}
	if catchBody != nil {
		scope := NewScope(f.scope, f.Meta, false)
		f.Meta.BlockScopes = append(f.Meta.BlockScopes, scope)
		t.CatchSymbol = scope.Add(catchName, SymbolLocal)
		saved := f.scope
		f.scope = scope
		t.Catch = catchBody()
		f.scope = saved
	}
	return t
}

// Switch switch 语句，各分支的 Test 被改写为与判别值的严格相等
func (f *Factory) Switch(discriminant Expr, cases ...*Case) Stmt {
	d := f.Temp(discriminant)
	for _, c := range cases {
		if c.Test != nil {
			c.Test = f.Binary(ops.StrictEqual, d, c.Test)
		}
	}
	return &Switch{Discriminant: d, Cases: cases}
}

// FunctionDecl 函数声明：在函数体开头赋值
func (f *Factory) FunctionDecl(child *Factory) Stmt {
	sym := f.Declare(child.Meta.Name)
	f.hoisted = append(f.hoisted, f.Expr(typed(&WriteIdentifier{Symbol: sym, Value: f.Closure(child)})))
	return f.Empty()
}

// Body 设置函数体并返回元数据
//
// 提升的函数声明放在最前面，非法的 break/continue 被替换为注入的 throw。
func (f *Factory) Body(stmts ...Stmt) *FunctionMetadata {
	all := append(append([]Stmt(nil), f.hoisted...), stmts...)
	f.Meta.Body = f.Block(all...)
	resolveJumps(f, f.Meta.Body)
	return f.Meta
}
