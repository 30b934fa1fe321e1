// inliner.go - 单态调用点的内联展开
//
// 开启直接调用时，剖析显示单态的调用点在类型计算之前展开为
//
//	(t = callee) === target ? (形参赋值, 函数体, 返回值) : t(args)
//
// 被调函数的形参与局部变量成为调用方的隐藏局部变量，临时值在调用方
// 重新编号。身份比较不成立时走原来的调用。只展开简单的函数：函数体
// 由表达式语句和末尾的 return 组成，不引用 this 与 arguments，也没有
// 内层函数。
//
// 展开结果记在 Layout.Inlined 中。去优化续跑按同一组目标重新编译，
// 两份代码的槽位布局因此一致。

package codegen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// maxInlineNodes 可内联函数体的节点上限
const maxInlineNodes = 64

// inline 展开 g.Fn 中的调用点，返回调用点剖析下标到目标的映射
func (g *Generator) inline() map[int]*runtime.Function {
	replay := g.Options.InlineTargets
	if replay == nil && (!g.Options.EnableDirectCalls || g.Profiler == nil) {
		return nil
	}
	fn := g.Fn
	if fn.Body == nil || fn.Scope.IsDynamic() {
		return nil
	}

	uses := temporaryUses(fn.Body)
	inlined := make(map[int]*runtime.Function)
	ir.Rewrite(fn, func(e ir.Expr) ir.Expr {
		call, ok := e.(*ir.Call)
		if !ok || call.ProfileIndex < 0 {
			return e
		}
		var target *runtime.Function
		if replay != nil {
			target = replay[call.ProfileIndex]
		} else {
			target = g.Profiler.CallProfile(call.ProfileIndex).Target()
		}
		if target == nil {
			return e
		}
		callee, ok := target.Metadata.(*ir.FunctionMetadata)
		if !ok || !g.canInline(callee) || !ownsTemporaries(call, uses) {
			return e
		}
		inlined[call.ProfileIndex] = target
		g.Logger.Debug("call inlined",
			zap.String("target", callee.FullName()),
			zap.Int("site", call.ProfileIndex))
		return expandCall(fn, call, target, callee)
	})

	if len(inlined) == 0 {
		return nil
	}
	g.Host.Counters().Get("JS/Inline").Add(int64(len(inlined)))
	return inlined
}

// canInline 被调函数能否展开到 g.Fn 中
func (g *Generator) canInline(callee *ir.FunctionMetadata) bool {
	switch {
	case callee.Body == nil, callee.Root() == g.Meta.Root():
		return false
	case len(callee.SubFunctions) > 0, len(callee.BlockScopes) > 0:
		return false
	case callee.UsesArguments(), callee.Scope.IsDynamic():
		return false
	}

	stmts := callee.Body.Statements
	for i, s := range stmts {
		switch s.(type) {
		case *ir.ExpressionStatement, *ir.Empty:
		case *ir.Return:
			if i != len(stmts)-1 {
				return false
			}
		default:
			return false
		}
	}

	for _, sym := range callee.Scope.Symbols {
		switch sym.Kind {
		case ir.SymbolParameter, ir.SymbolLocal, ir.SymbolHiddenLocal:
		case ir.SymbolGlobal:
			// 调用方同名的非全局符号会遮住全局变量
			if own := g.Fn.Scope.Lookup(sym.Name); own != nil && own.Kind != ir.SymbolGlobal {
				return false
			}
		default:
			return false
		}
	}

	nodes, ok := 0, true
	ir.Walk(callee.Body, func(n ir.Node) bool {
		switch n.(type) {
		case *ir.This, *ir.FunctionExpression:
			ok = false
		}
		nodes++
		return ok
	})
	return ok && nodes <= maxInlineNodes
}

// temporaryUses 统计每个临时值在 root 下出现的次数
func temporaryUses(root ir.Node) map[*ir.WriteTemporary]int {
	uses := make(map[*ir.WriteTemporary]int)
	ir.Walk(root, func(n ir.Node) bool {
		if t, ok := n.(*ir.WriteTemporary); ok {
			uses[t]++
		}
		return true
	})
	return uses
}

// ownsTemporaries 实参中的临时值不在调用之外使用
//
// 展开后实参在两个分支中各有一份，外面引用的临时值会失去写入。
// uses 中没有的临时值是先前展开时新建的，只出现在实参里。
func ownsTemporaries(call *ir.Call, uses map[*ir.WriteTemporary]int) bool {
	if call.This != nil {
		if _, ok := call.This.(*ir.WriteTemporary); !ok {
			return false
		}
	}
	for t, n := range temporaryUses(&ir.Comma{Exprs: call.Args}) {
		if total, ok := uses[t]; ok && total != n {
			return false
		}
	}
	return true
}

// expandCall 生成身份检查与展开的函数体
func expandCall(fn *ir.FunctionMetadata, call *ir.Call, target *runtime.Function, callee *ir.FunctionMetadata) ir.Expr {
	symbols := make(map[*ir.Symbol]*ir.Symbol, callee.Scope.Count())
	for _, sym := range callee.Scope.Symbols {
		if sym.Kind == ir.SymbolGlobal {
			symbols[sym] = fn.Scope.Add(sym.Name, ir.SymbolGlobal)
			continue
		}
		symbols[sym] = fn.Scope.Add(fmt.Sprintf("#inline%d", fn.Scope.Count()), ir.SymbolHiddenLocal)
	}

	var seq []ir.Expr
	for i, p := range callee.Parameters {
		value := undefinedLiteral()
		if i < len(call.Args) {
			value = call.Args[i]
		}
		seq = append(seq, unknown(&ir.WriteIdentifier{Symbol: symbols[p], Value: value}))
	}
	for i := len(callee.Parameters); i < len(call.Args); i++ {
		seq = append(seq, call.Args[i])
	}
	// 循环中再次进入时局部变量从 undefined 开始
	for _, sym := range callee.Scope.Symbols {
		if sym.Kind == ir.SymbolLocal || sym.Kind == ir.SymbolHiddenLocal {
			seq = append(seq, unknown(&ir.WriteIdentifier{Symbol: symbols[sym], Value: undefinedLiteral()}))
		}
	}

	body := ir.NewCloner(symbols).Into(fn)
	result := undefinedLiteral()
	for _, s := range callee.Body.Statements {
		switch x := s.(type) {
		case *ir.ExpressionStatement:
			seq = append(seq, body.Expr(x.Expr))
		case *ir.Return:
			if x.Value != nil {
				result = body.Expr(x.Value)
			}
		}
	}
	then := result
	if len(seq) > 0 {
		then = unknown(&ir.Comma{Exprs: append(seq, result)})
	}

	t := unknown(&ir.WriteTemporary{Value: call.Callee, Index: fn.NewTemporaryIndex()})
	same := unknown(&ir.Unary{Op: ops.ToBoolean, Operand: unknown(&ir.Binary{
		Op:    ops.StrictEqual,
		Left:  t,
		Right: unknown(&ir.Literal{Value: runtime.NewFunction(target)}),
	})})

	args := ir.NewCloner(nil).Into(fn)
	fallback := &ir.Call{Callee: t, This: call.This, Args: make([]ir.Expr, len(call.Args)), ProfileIndex: call.ProfileIndex}
	for i, a := range call.Args {
		fallback.Args[i] = args.Expr(a)
	}
	return unknown(&ir.Ternary{Cond: same, Then: then, Else: unknown(fallback)})
}

func unknown[T ir.Expr](e T) T {
	e.SetType(types.Unknown)
	return e
}

func undefinedLiteral() ir.Expr {
	return unknown(&ir.Literal{Value: runtime.UndefinedValue})
}
