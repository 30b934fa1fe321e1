package typecalc

import (
	"fmt"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// maxRounds 符号类型迭代的上限，超过后未收敛的符号按 DValueRef 处理
const maxRounds = 16

// InferSymbolTypes 推断符号类型并标注函数体
//
// 未被捕获的局部变量的类型是所有写入类型的合并；可能在赋值前被读取的
// 还要并入 Undefined。形参从签名类型开始并入写入类型。其余种类一律
// DValueRef。标注与符号类型交替迭代直到不动点，最后一遍标注与最终的
// 符号类型一致。
//
// 每一轮都从初始类型和本轮的写入重新计算，不与上一轮的结果合并：
// 早期轮次里依赖未推断符号的写入是 Unknown，不能留下 DValueRef。
// 放宽过的符号在之后的轮次里保持放宽。
func (c *Calculator) InferSymbolTypes(fn *ir.FunctionMetadata) {
	inferred := make(map[*ir.Symbol]types.ValueType)
	for _, sym := range fn.AllSymbols() {
		sym.ValueType = types.DValueRef
		if !c.EnableTypeInference {
			continue
		}
		switch sym.Kind {
		case ir.SymbolLocal, ir.SymbolHiddenLocal:
			sym.ValueType = types.Unknown
			inferred[sym] = types.Unknown
		case ir.SymbolParameter:
			if fn.UsesArguments() {
				continue
			}
			t := c.Signature.Arg(sym.ParameterIndex)
			if t == types.Undefined {
				continue
			}
			sym.ValueType = t
			inferred[sym] = t
		}
	}
	maybeUndefined := readBeforeAssignment(fn)
	widened := make(map[*ir.Symbol]bool)

	for round := 0; ; round++ {
		writes := c.pass(fn)
		if round == maxRounds {
			break
		}
		changed := false
		for sym, initial := range inferred {
			t := initial
			if w, ok := writes[sym]; ok {
				t = types.ResolveType(t, w)
			}
			if maybeUndefined[sym] && sym.Kind != ir.SymbolParameter {
				t = types.ResolveType(t, types.Undefined)
			}
			if widened[sym] {
				t = types.Widen(t)
			}
			if t != sym.ValueType {
				sym.ValueType = t
				changed = true
			}
		}
		if changed {
			continue
		}
		if !widenUnresolved(inferred, widened) {
			return
		}
	}

	for sym := range inferred {
		sym.ValueType = types.DValueRef
	}
	c.pass(fn)
}

// widenUnresolved 把仍为 Unknown/Undefined 的符号放宽为 DValueRef
func widenUnresolved(inferred map[*ir.Symbol]types.ValueType, widened map[*ir.Symbol]bool) bool {
	changed := false
	for sym := range inferred {
		if w := types.Widen(sym.ValueType); w != sym.ValueType {
			sym.ValueType = w
			widened[sym] = true
			changed = true
		}
	}
	return changed
}

// ============================================================================
// 赋值前读取
// ============================================================================

// readBeforeAssignment 找出可能在确定赋值之前被读取的局部变量
//
// 只有函数体顶层（以及顶层 for 的初始化部分）按顺序出现的
// `x = value` 语句算作确定赋值；其他位置的写入不改变确定性。
func readBeforeAssignment(fn *ir.FunctionMetadata) map[*ir.Symbol]bool {
	assigned := make(map[*ir.Symbol]bool)
	result := make(map[*ir.Symbol]bool)

	markReads := func(n ir.Node) {
		ir.Walk(n, func(x ir.Node) bool {
			if _, ok := x.(*ir.FunctionExpression); ok {
				return false
			}
			if r, ok := x.(*ir.ReadIdentifier); ok {
				sym := r.Symbol.Resolve()
				if !assigned[sym] {
					result[sym] = true
				}
			}
			return true
		})
	}

	var sequence func(stmts []ir.Stmt)
	sequence = func(stmts []ir.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ir.Block:
				sequence(n.Statements)
				continue
			case *ir.ExpressionStatement:
				if w, ok := n.Expr.(*ir.WriteIdentifier); ok {
					markReads(w.Value)
					assigned[w.Symbol.Resolve()] = true
					continue
				}
			case *ir.For:
				if n.Init != nil {
					sequence([]ir.Stmt{n.Init})
				}
				for _, part := range []ir.Node{n.Cond, n.Body, n.Update} {
					if part != nil {
						markReads(part)
					}
				}
				continue
			}
			markReads(s)
		}
	}
	if fn.Body != nil {
		sequence(fn.Body.Statements)
	}
	return result
}

func unknownNode(n ir.Node) {
	errors.Fail(errors.I0005, fmt.Sprintf("%T", n))
}
