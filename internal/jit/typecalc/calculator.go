// Package typecalc 为 IR 计算值类型
//
// Calculator 对函数体做自底向上的类型标注：每个表达式节点得到一个
// ValueType，描述它的结果在运行时的表示。非装箱类型是一个承诺：
// 代码生成器会把结果当作该标签的值处理。
//
// 类型计算会写节点，只应作用于 ir.CloneFunction 得到的副本。
package typecalc

import (
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// Calculator 类型计算器
type Calculator struct {
	// Profiler 推测收窄使用的节点剖析，可以为 nil
	Profiler *profile.FunctionProfiler
	// EnableSpeculation 按剖析的热类型收窄 DValueRef 守卫
	EnableSpeculation bool
	// EnableGuardElimination 静态类型已确定的守卫不做运行时检查
	EnableGuardElimination bool
	// EnableTypeInference 关闭时所有符号按 DValueRef 处理
	EnableTypeInference bool
	// Signature 被特化的实参签名
	Signature types.Signature
	Ops       *ops.Table

	seen   map[*ir.WriteTemporary]bool
	writes map[*ir.Symbol]types.ValueType
	// finally 当前所在的 finally 块层数，其中的守卫不收窄
	finally int
}

// New 创建类型计算器
func New(table *ops.Table) *Calculator {
	return &Calculator{
		Ops:                    table,
		EnableGuardElimination: true,
		EnableTypeInference:    true,
	}
}

// Calculate 推断符号类型并标注函数体
func (c *Calculator) Calculate(fn *ir.FunctionMetadata) {
	if c.Ops == nil {
		c.Ops = ops.NewTable()
	}
	c.InferSymbolTypes(fn)
}

// pass 标注一遍函数体，返回各符号被写入的类型
func (c *Calculator) pass(fn *ir.FunctionMetadata) map[*ir.Symbol]types.ValueType {
	c.seen = make(map[*ir.WriteTemporary]bool)
	c.writes = make(map[*ir.Symbol]types.ValueType)
	if fn.Body != nil {
		c.stmt(fn.Body)
	}
	return c.writes
}

func (c *Calculator) recordWrite(sym *ir.Symbol, t types.ValueType) {
	sym = sym.Resolve()
	cur, ok := c.writes[sym]
	if !ok {
		cur = types.Unknown
	}
	c.writes[sym] = types.ResolveType(cur, t)
}

// ============================================================================
// 语句
// ============================================================================

func (c *Calculator) stmt(s ir.Stmt) {
	switch n := s.(type) {
	case *ir.Block:
		for _, st := range n.Statements {
			c.stmt(st)
		}
	case *ir.ExpressionStatement:
		c.GetType(n.Expr)
	case *ir.Empty, *ir.Break, *ir.Continue:
	case *ir.If:
		c.GetType(n.Cond)
		c.stmt(n.Then)
		if n.Else != nil {
			c.stmt(n.Else)
		}
	case *ir.While:
		c.GetType(n.Cond)
		c.stmt(n.Body)
	case *ir.DoWhile:
		c.stmt(n.Body)
		c.GetType(n.Cond)
	case *ir.For:
		if n.Init != nil {
			c.stmt(n.Init)
		}
		if n.Cond != nil {
			c.GetType(n.Cond)
		}
		c.stmt(n.Body)
		if n.Update != nil {
			c.GetType(n.Update)
		}
	case *ir.Label:
		c.stmt(n.Body)
	case *ir.Return:
		if n.Value != nil {
			c.GetType(n.Value)
		}
	case *ir.Throw:
		c.GetType(n.Value)
	case *ir.Try:
		c.stmt(n.Body)
		if n.Catch != nil {
			c.recordWrite(n.CatchSymbol, types.DValueRef)
			c.stmt(n.Catch)
		}
		if n.Finally != nil {
			c.finally++
			c.stmt(n.Finally)
			c.finally--
		}
	case *ir.Switch:
		c.GetType(n.Discriminant)
		for _, cs := range n.Cases {
			if cs.Test != nil {
				c.GetType(cs.Test)
			}
		}
		for _, cs := range n.Cases {
			for _, st := range cs.Body {
				c.stmt(st)
			}
		}
	default:
		unknownNode(s)
	}
}

// ============================================================================
// 表达式
// ============================================================================

// GetType 计算并记录表达式的类型
func (c *Calculator) GetType(e ir.Expr) types.ValueType {
	t := c.compute(e)
	e.SetType(t)
	return t
}

func (c *Calculator) compute(e ir.Expr) types.ValueType {
	switch n := e.(type) {
	case *ir.Literal:
		return n.Value.Type
	case *ir.This:
		return types.Object
	case *ir.ObjectLiteral:
		for _, p := range n.Properties {
			c.GetType(p.Value)
		}
		return types.Object
	case *ir.ArrayLiteral:
		for _, el := range n.Elements {
			c.GetType(el)
		}
		return types.Array
	case *ir.FunctionExpression:
		return types.Function

	case *ir.ReadIdentifier:
		return n.Symbol.Resolve().ValueType
	case *ir.WriteIdentifier:
		t := c.GetType(n.Value)
		c.recordWrite(n.Symbol, t)
		return t

	case *ir.ReadIndexer:
		c.GetType(n.Container)
		c.GetType(n.Index)
		return types.DValueRef
	case *ir.WriteIndexer:
		c.GetType(n.Container)
		c.GetType(n.Index)
		c.GetType(n.Value)
		return types.DValueRef
	case *ir.ReadProperty:
		c.GetType(n.Container)
		return types.DValueRef
	case *ir.WriteProperty:
		c.GetType(n.Container)
		c.GetType(n.Value)
		return types.DValueRef

	case *ir.Unary:
		t0 := c.GetType(n.Operand)
		if t0 == types.Unknown {
			return types.Unknown
		}
		return c.Ops.ReturnType(n.Op, t0, types.Undefined)
	case *ir.Binary:
		t0 := c.GetType(n.Left)
		t1 := c.GetType(n.Right)
		// 操作数尚未推断时不选重载，否则通用重载会把结果定死为 DValueRef
		if t0 == types.Unknown || t1 == types.Unknown {
			return types.Unknown
		}
		return c.Ops.ReturnType(n.Op, t0, t1)

	case *ir.Ternary:
		c.GetType(n.Cond)
		middle := c.GetType(n.Then)
		right := c.GetType(n.Else)
		return types.ResolveType(middle, right)
	case *ir.Comma:
		t := types.Undefined
		for _, x := range n.Exprs {
			t = c.GetType(x)
		}
		return t

	case *ir.Call:
		c.GetType(n.Callee)
		if n.This != nil {
			c.GetType(n.This)
		}
		for _, a := range n.Args {
			c.GetType(a)
		}
		return types.DValueRef
	case *ir.New:
		c.GetType(n.Callee)
		for _, a := range n.Args {
			c.GetType(a)
		}
		return types.DValueRef

	case *ir.WriteTemporary:
		if c.seen[n] {
			return n.Type()
		}
		c.seen[n] = true
		return c.GetType(n.Value)

	case *ir.GuardedCast:
		return c.guard(n)
	}
	unknownNode(e)
	return types.DValueRef
}

// guard 守卫节点的收窄与消除
//
//   - 值的静态类型是 DValueRef 且剖析给出热原始类型：收窄，需要检查；
//     finally 块中的守卫除外，去优化不从 finally 中续跑
//   - 静态类型已确定：守卫不需要检查（关闭守卫消除时保留一个必然通过的检查）
//   - 其余情况保持 DValueRef，不检查
func (c *Calculator) guard(n *ir.GuardedCast) types.ValueType {
	static := c.GetType(n.Value)
	n.IsRequired = false
	n.Narrowed = static

	switch {
	case static == types.Unknown:
		return static
	case static.IsBoxed():
		n.Narrowed = types.DValueRef
		if c.EnableSpeculation && c.finally == 0 {
			if hot := c.Profiler.HotPrimitiveType(n); hot != types.DValueRef {
				n.Narrowed = hot
				n.IsRequired = true
				return hot
			}
		}
		return types.DValueRef
	case !c.EnableGuardElimination && profile.IsSpeculative(static):
		n.IsRequired = true
	}
	return static
}
