// light.go - 闭包树后端
//
// 每个节点编译为一个闭包。操作数栈虚拟化在活动记录的值数组里：表达式
// 的结果写入 StackBase+深度 的槽位，槽位下标在编译期由栈模型算出。
// 语句返回 lightSignal 表示 break/continue/return，不使用 panic。

package codegen

import (
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

type lightFrame struct {
	act *Activation
	v   []runtime.Value
	ret runtime.Value
}

type lightExpr func(f *lightFrame)

type signalKind uint8

const (
	signalNormal signalKind = iota
	signalBreak
	signalContinue
	signalReturn
)

type lightSignal struct {
	kind   signalKind
	target *Target
}

type lightStmt func(f *lightFrame) lightSignal

var normal = lightSignal{}

type lightBackend struct {
	g      *Generator
	base   int
	exprs  []lightExpr
	stmts  []lightStmt
	temps  map[*ir.WriteTemporary]bool
	labels []string
	body   lightStmt
}

var lightTable Table[*lightBackend]

func init() { lightTable = buildLightTable() }

func newLightBackend() *lightBackend {
	return &lightBackend{temps: make(map[*ir.WriteTemporary]bool)}
}

func (b *lightBackend) ExecuteInitialize(g *Generator) {
	b.g = g
	b.base = g.Layout.StackBase()
}

func (b *lightBackend) Prolog(g *Generator) { g.BuildEntry() }

func (b *lightBackend) Body(g *Generator) { b.body = b.stmt(g.Fn.Body) }

func (b *lightBackend) Epilog(g *Generator) { g.Stack.Assert(0) }

func (b *lightBackend) ExecuteFinalize(g *Generator) (Specialization, error) {
	g.Layout.StackSize = g.Stack.MaxDepth()
	return &lightSpec{entry: g.Entry, body: b.body}, nil
}

// Visit 语句前后检查栈深度不变
func (b *lightBackend) Visit(n ir.Node) {
	if _, ok := n.(ir.Stmt); ok {
		cp := b.g.Stack.Checkpoint()
		lightTable.Dispatch(b, n)
		b.g.Stack.Assert(cp)
		return
	}
	lightTable.Dispatch(b, n)
}

// expr 编译表达式，结果位于当前深度的槽位
func (b *lightBackend) expr(e ir.Expr) lightExpr {
	b.Visit(e)
	fn := b.exprs[len(b.exprs)-1]
	b.exprs = b.exprs[:len(b.exprs)-1]
	return fn
}

func (b *lightBackend) stmt(s ir.Stmt) lightStmt {
	b.Visit(s)
	fn := b.stmts[len(b.stmts)-1]
	b.stmts = b.stmts[:len(b.stmts)-1]
	return fn
}

func (b *lightBackend) emitExpr(fn lightExpr) { b.exprs = append(b.exprs, fn) }

func (b *lightBackend) emitStmt(fn lightStmt) { b.stmts = append(b.stmts, fn) }

// slot 当前深度对应的值数组下标
func (b *lightBackend) slot() int { return b.base + b.g.Stack.Depth() }

// push 压入结果，返回它的槽位
func (b *lightBackend) push(t types.ValueType) int { return b.base + b.g.Stack.Push(t) }

func (b *lightBackend) pop(n int) { b.g.Stack.Pop(n) }

func (b *lightBackend) takeLabels() []string {
	l := b.labels
	b.labels = nil
	return l
}

// operands 编译一组连续的操作数，返回第一个操作数的槽位
func (b *lightBackend) operands(list []ir.Expr) (lightExpr, int) {
	first := b.slot()
	fns := make([]lightExpr, len(list))
	for i, e := range list {
		fns[i] = b.expr(e)
	}
	return func(f *lightFrame) {
		for _, fn := range fns {
			fn(f)
		}
	}, first
}

// coerced 结果需要转换为节点的原始类型时包一层转换
func coerced(fn lightExpr, out int, from, to types.ValueType) lightExpr {
	if !to.IsPrimitive() || from == to {
		return fn
	}
	return func(f *lightFrame) {
		fn(f)
		f.v[out] = Coerce(f.v[out], to)
	}
}

func throwStmt(msg string) lightStmt {
	return func(*lightFrame) lightSignal {
		runtime.Throw(runtime.NewString(msg))
		return normal
	}
}

// loopSignal 循环体的信号：ok 为 false 时循环结束并向外返回 sig
func loopSignal(sig lightSignal, self *Target) (brk bool, ret lightSignal, ok bool) {
	switch {
	case sig.kind == signalNormal:
		return false, normal, true
	case sig.kind == signalBreak && sig.target == self:
		return true, normal, true
	case sig.kind == signalContinue && sig.target == self:
		return false, normal, true
	}
	return false, sig, false
}

// ============================================================================
// 分派表
// ============================================================================

func buildLightTable() Table[*lightBackend] {
	t := DefaultTable[*lightBackend]()

	t[ir.KindLiteral] = func(b *lightBackend, n ir.Node) {
		lit := n.(*ir.Literal)
		v := Literal(lit)
		out := b.push(lit.Type())
		b.emitExpr(func(f *lightFrame) { f.v[out] = v })
	}
	t[ir.KindThis] = func(b *lightBackend, n ir.Node) {
		out := b.push(n.(ir.Expr).Type())
		b.emitExpr(func(f *lightFrame) { f.v[out] = f.act.This() })
	}
	t[ir.KindObjectLiteral] = func(b *lightBackend, n ir.Node) {
		o := n.(*ir.ObjectLiteral)
		values := make([]ir.Expr, len(o.Properties))
		for i, p := range o.Properties {
			values[i] = p.Value
		}
		eval, first := b.operands(values)
		build, count := ObjectLiteral(o), len(values)
		b.pop(count)
		out := b.push(o.Type())
		b.emitExpr(func(f *lightFrame) {
			eval(f)
			f.v[out] = build(f.v[first : first+count])
		})
	}
	t[ir.KindArrayLiteral] = func(b *lightBackend, n ir.Node) {
		a := n.(*ir.ArrayLiteral)
		eval, first := b.operands(a.Elements)
		count := len(a.Elements)
		b.pop(count)
		out := b.push(a.Type())
		b.emitExpr(func(f *lightFrame) {
			eval(f)
			f.v[out] = ArrayLiteral(f.v[first : first+count])
		})
	}
	t[ir.KindFunctionExpression] = func(b *lightBackend, n ir.Node) {
		fe := n.(*ir.FunctionExpression)
		closure := b.g.Closure(fe)
		out := b.push(fe.Type())
		b.emitExpr(func(f *lightFrame) { f.v[out] = closure(f.act) })
	}
	t[ir.KindReadIdentifier] = func(b *lightBackend, n ir.Node) {
		r := n.(*ir.ReadIdentifier)
		st := b.g.Layout.Lookup(r.Symbol)
		out := b.push(r.Type())
		b.emitExpr(coerced(func(f *lightFrame) { f.v[out] = f.act.Load(st) }, out, st.Type, r.Type()))
	}
	t[ir.KindWriteIdentifier] = func(b *lightBackend, n ir.Node) {
		w := n.(*ir.WriteIdentifier)
		st := b.g.Layout.Lookup(w.Symbol)
		out := b.slot()
		value := coerced(b.expr(w.Value), out, w.Value.Type(), w.Type())
		b.emitExpr(func(f *lightFrame) {
			value(f)
			f.act.Store(st, f.v[out])
		})
	}
	t[ir.KindReadIndexer] = func(b *lightBackend, n ir.Node) {
		r := n.(*ir.ReadIndexer)
		eval, first := b.operands([]ir.Expr{r.Container, r.Index})
		read := b.g.ReadIndexer(r)
		b.pop(2)
		out := b.push(r.Type())
		b.emitExpr(func(f *lightFrame) {
			eval(f)
			f.v[out] = read(f.v[first], f.v[first+1])
		})
	}
	t[ir.KindWriteIndexer] = func(b *lightBackend, n ir.Node) {
		w := n.(*ir.WriteIndexer)
		eval, first := b.operands([]ir.Expr{w.Container, w.Index, w.Value})
		write := b.g.WriteIndexer(w)
		b.pop(3)
		out := b.push(w.Type())
		b.emitExpr(func(f *lightFrame) {
			eval(f)
			f.v[out] = write(f.v[first], f.v[first+1], f.v[first+2])
		})
	}
	t[ir.KindReadProperty] = func(b *lightBackend, n ir.Node) {
		r := n.(*ir.ReadProperty)
		container := b.expr(r.Container)
		read := b.g.ReadProperty(r)
		b.pop(1)
		out := b.push(r.Type())
		b.emitExpr(func(f *lightFrame) {
			container(f)
			f.v[out] = read(f.v[out])
		})
	}
	t[ir.KindWriteProperty] = func(b *lightBackend, n ir.Node) {
		w := n.(*ir.WriteProperty)
		eval, first := b.operands([]ir.Expr{w.Container, w.Value})
		write := b.g.WriteProperty(w)
		b.pop(2)
		out := b.push(w.Type())
		b.emitExpr(func(f *lightFrame) {
			eval(f)
			f.v[out] = write(f.v[first], f.v[first+1])
		})
	}
	t[ir.KindUnary] = func(b *lightBackend, n ir.Node) {
		u := n.(*ir.Unary)
		operand := b.expr(u.Operand)
		op := b.g.Unary(u)
		b.pop(1)
		out := b.push(u.Type())
		b.emitExpr(func(f *lightFrame) {
			operand(f)
			f.v[out] = op(f.v[out])
		})
	}
	t[ir.KindBinary] = func(b *lightBackend, n ir.Node) {
		bin := n.(*ir.Binary)
		out := b.slot()
		left := b.expr(bin.Left)
		right := b.expr(bin.Right)
		op := b.g.Binary(bin)
		b.pop(2)
		b.push(bin.Type())
		b.emitExpr(func(f *lightFrame) {
			left(f)
			right(f)
			f.v[out] = op(f.v[out], f.v[out+1])
		})
	}
	t[ir.KindTernary] = func(b *lightBackend, n ir.Node) {
		c := n.(*ir.Ternary)
		out := b.slot()
		cond := b.expr(c.Cond)
		truthy := Truthy(c.Cond.Type())
		b.pop(1)
		then := coerced(b.expr(c.Then), out, c.Then.Type(), c.Type())
		b.pop(1)
		els := coerced(b.expr(c.Else), out, c.Else.Type(), c.Type())
		b.pop(1)
		b.push(c.Type())
		b.emitExpr(func(f *lightFrame) {
			cond(f)
			if truthy(f.v[out]) {
				then(f)
			} else {
				els(f)
			}
		})
	}
	t[ir.KindComma] = func(b *lightBackend, n ir.Node) {
		c := n.(*ir.Comma)
		fns := make([]lightExpr, len(c.Exprs))
		for i, e := range c.Exprs {
			fns[i] = b.expr(e)
			if i < len(c.Exprs)-1 {
				b.pop(1)
			}
		}
		b.emitExpr(func(f *lightFrame) {
			for _, fn := range fns {
				fn(f)
			}
		})
	}
	t[ir.KindCall] = func(b *lightBackend, n ir.Node) {
		c := n.(*ir.Call)
		out := b.slot()
		callee := b.expr(c.Callee)
		var this lightExpr
		if c.This != nil {
			this = b.expr(c.This)
		} else {
			at := b.push(types.Undefined)
			this = func(f *lightFrame) { f.v[at] = runtime.UndefinedValue }
		}
		args, first := b.operands(c.Args)
		count := len(c.Args)
		call := b.g.Call(c)
		b.pop(2 + count)
		b.push(c.Type())
		b.emitExpr(func(f *lightFrame) {
			callee(f)
			this(f)
			args(f)
			list := append([]runtime.Value(nil), f.v[first:first+count]...)
			f.v[out] = call(f.v[out], f.v[out+1], list)
		})
	}
	t[ir.KindNew] = func(b *lightBackend, n ir.Node) {
		c := n.(*ir.New)
		out := b.slot()
		callee := b.expr(c.Callee)
		args, first := b.operands(c.Args)
		count := len(c.Args)
		construct := b.g.New(c)
		b.pop(1 + count)
		b.push(c.Type())
		b.emitExpr(func(f *lightFrame) {
			callee(f)
			args(f)
			list := append([]runtime.Value(nil), f.v[first:first+count]...)
			f.v[out] = construct(f.v[out], list)
		})
	}
	t[ir.KindWriteTemporary] = func(b *lightBackend, n ir.Node) {
		w := n.(*ir.WriteTemporary)
		index := w.Index
		if b.temps[w] {
			out := b.push(w.Type())
			b.emitExpr(func(f *lightFrame) { f.v[out] = f.act.Temp(index) })
			return
		}
		b.temps[w] = true
		out := b.slot()
		value := coerced(b.expr(w.Value), out, w.Value.Type(), w.Type())
		b.emitExpr(func(f *lightFrame) {
			value(f)
			f.act.SetTemp(index, f.v[out])
		})
	}
	t[ir.KindGuardedCast] = func(b *lightBackend, n ir.Node) {
		gc := n.(*ir.GuardedCast)
		value := b.expr(gc.Value)
		b.pop(1)
		out := b.push(gc.Type())
		guard := b.g.Guard(gc, out-b.base)
		if guard == nil {
			b.emitExpr(value)
			return
		}
		b.emitExpr(func(f *lightFrame) {
			value(f)
			f.v[out] = guard(f.v[out])
		})
	}

	// 语句
	t[ir.KindBlock] = func(b *lightBackend, n ir.Node) {
		list := n.(*ir.Block).Statements
		fns := make([]lightStmt, len(list))
		for i, s := range list {
			fns[i] = b.stmt(s)
		}
		b.emitStmt(func(f *lightFrame) lightSignal {
			for _, fn := range fns {
				if sig := fn(f); sig.kind != signalNormal {
					return sig
				}
			}
			return normal
		})
	}
	t[ir.KindEmpty] = func(b *lightBackend, _ ir.Node) {
		b.emitStmt(func(*lightFrame) lightSignal { return normal })
	}
	t[ir.KindExpressionStatement] = func(b *lightBackend, n ir.Node) {
		e := b.expr(n.(*ir.ExpressionStatement).Expr)
		b.pop(1)
		b.emitStmt(func(f *lightFrame) lightSignal {
			e(f)
			return normal
		})
	}
	t[ir.KindIf] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.If)
		at := b.slot()
		cond := b.expr(s.Cond)
		truthy := Truthy(s.Cond.Type())
		b.pop(1)
		then := b.stmt(s.Then)
		els := func(*lightFrame) lightSignal { return normal }
		if s.Else != nil {
			els = b.stmt(s.Else)
		}
		b.emitStmt(func(f *lightFrame) lightSignal {
			cond(f)
			if truthy(f.v[at]) {
				return then(f)
			}
			return els(f)
		})
	}
	t[ir.KindWhile] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.While)
		self := &Target{JumpTarget: ir.JumpTarget{Labels: b.takeLabels(), IsLoop: true}}
		b.g.PushTarget(self)
		at := b.slot()
		cond := b.expr(s.Cond)
		truthy := Truthy(s.Cond.Type())
		b.pop(1)
		body := b.stmt(s.Body)
		b.g.PopTarget()
		b.emitStmt(func(f *lightFrame) lightSignal {
			for {
				cond(f)
				if !truthy(f.v[at]) {
					return normal
				}
				brk, sig, ok := loopSignal(body(f), self)
				if !ok {
					return sig
				}
				if brk {
					return normal
				}
			}
		})
	}
	t[ir.KindDoWhile] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.DoWhile)
		self := &Target{JumpTarget: ir.JumpTarget{Labels: b.takeLabels(), IsLoop: true}}
		b.g.PushTarget(self)
		body := b.stmt(s.Body)
		at := b.slot()
		cond := b.expr(s.Cond)
		truthy := Truthy(s.Cond.Type())
		b.pop(1)
		b.g.PopTarget()
		b.emitStmt(func(f *lightFrame) lightSignal {
			for {
				brk, sig, ok := loopSignal(body(f), self)
				if !ok {
					return sig
				}
				if brk {
					return normal
				}
				cond(f)
				if !truthy(f.v[at]) {
					return normal
				}
			}
		})
	}
	t[ir.KindFor] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.For)
		labels := b.takeLabels()
		init := func(*lightFrame) lightSignal { return normal }
		if s.Init != nil {
			init = b.stmt(s.Init)
		}
		self := &Target{JumpTarget: ir.JumpTarget{Labels: labels, IsLoop: true}}
		b.g.PushTarget(self)
		at := b.slot()
		var cond, update lightExpr
		var truthy func(runtime.Value) bool
		if s.Cond != nil {
			cond = b.expr(s.Cond)
			truthy = Truthy(s.Cond.Type())
			b.pop(1)
		}
		body := b.stmt(s.Body)
		if s.Update != nil {
			update = b.expr(s.Update)
			b.pop(1)
		}
		b.g.PopTarget()
		b.emitStmt(func(f *lightFrame) lightSignal {
			if sig := init(f); sig.kind != signalNormal {
				return sig
			}
			for {
				if cond != nil {
					cond(f)
					if !truthy(f.v[at]) {
						return normal
					}
				}
				brk, sig, ok := loopSignal(body(f), self)
				if !ok {
					return sig
				}
				if brk {
					return normal
				}
				if update != nil {
					update(f)
				}
			}
		})
	}
	t[ir.KindLabel] = func(b *lightBackend, n ir.Node) {
		labels, body, needsTarget := LabeledStatement(n.(*ir.Label))
		if !needsTarget {
			b.labels = append(b.takeLabels(), labels...)
			b.emitStmt(b.stmt(body))
			return
		}
		self := &Target{JumpTarget: ir.JumpTarget{Labels: append(b.takeLabels(), labels...)}}
		b.g.PushTarget(self)
		inner := b.stmt(body)
		b.g.PopTarget()
		b.emitStmt(func(f *lightFrame) lightSignal {
			sig := inner(f)
			if sig.kind == signalBreak && sig.target == self {
				return normal
			}
			return sig
		})
	}
	t[ir.KindBreak] = func(b *lightBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.emitStmt(throwStmt(msg))
			return
		}
		sig := lightSignal{kind: signalBreak, target: target}
		b.emitStmt(func(*lightFrame) lightSignal { return sig })
	}
	t[ir.KindContinue] = func(b *lightBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.emitStmt(throwStmt(msg))
			return
		}
		sig := lightSignal{kind: signalContinue, target: target}
		b.emitStmt(func(*lightFrame) lightSignal { return sig })
	}
	t[ir.KindReturn] = func(b *lightBackend, n ir.Node) {
		v := n.(*ir.Return).Value
		if v == nil {
			b.emitStmt(func(f *lightFrame) lightSignal {
				f.ret = runtime.UndefinedValue
				return lightSignal{kind: signalReturn}
			})
			return
		}
		at := b.slot()
		value := b.expr(v)
		b.pop(1)
		b.emitStmt(func(f *lightFrame) lightSignal {
			value(f)
			f.ret = f.v[at]
			return lightSignal{kind: signalReturn}
		})
	}
	t[ir.KindThrow] = func(b *lightBackend, n ir.Node) {
		at := b.slot()
		value := b.expr(n.(*ir.Throw).Value)
		b.pop(1)
		b.emitStmt(func(f *lightFrame) lightSignal {
			value(f)
			runtime.Throw(f.v[at])
			return normal
		})
	}
	t[ir.KindTry] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.Try)
		// 与 IC 一样为异常占一个栈槽，三个后端守卫处的栈深度一致
		slot := b.push(types.DValueRef)
		body := b.stmt(s.Body)
		var catch, finally lightStmt
		var sym Storage
		if s.Catch != nil {
			sym = b.g.Layout.Lookup(s.CatchSymbol)
			catch = b.stmt(s.Catch)
		}
		if s.Finally != nil {
			finally = b.stmt(s.Finally)
		}
		b.pop(1)
		b.emitStmt(func(f *lightFrame) lightSignal {
			sig, exc := protect(f, body)
			if exc != nil && catch != nil {
				f.v[slot] = exc.Value
				f.act.Store(sym, exc.Value)
				sig, exc = protect(f, catch)
			}
			if finally != nil {
				if fs := finally(f); fs.kind != signalNormal {
					return fs
				}
			}
			if exc != nil {
				panic(exc)
			}
			return sig
		})
	}
	t[ir.KindSwitch] = func(b *lightBackend, n ir.Node) {
		s := n.(*ir.Switch)
		self := &Target{JumpTarget: ir.JumpTarget{Labels: b.takeLabels(), IsSwitch: true}}
		b.g.PushTarget(self)

		disc := b.expr(s.Discriminant)
		b.pop(1)
		at := b.slot()
		tests := make([]lightExpr, len(s.Cases))
		truthy := make([]func(runtime.Value) bool, len(s.Cases))
		def := len(s.Cases)
		for i, c := range s.Cases {
			if c.Test == nil {
				def = i
				continue
			}
			tests[i] = b.expr(c.Test)
			truthy[i] = Truthy(c.Test.Type())
			b.pop(1)
		}
		var bodies []lightStmt
		starts := make([]int, len(s.Cases))
		for i, c := range s.Cases {
			starts[i] = len(bodies)
			for _, st := range c.Body {
				bodies = append(bodies, b.stmt(st))
			}
		}
		b.g.PopTarget()

		b.emitStmt(func(f *lightFrame) lightSignal {
			disc(f)
			start := len(bodies)
			if def < len(starts) {
				start = starts[def]
			}
			for i, test := range tests {
				if test == nil {
					continue
				}
				test(f)
				if truthy[i](f.v[at]) {
					start = starts[i]
					break
				}
			}
			for _, body := range bodies[start:] {
				sig := body(f)
				if sig.kind == signalBreak && sig.target == self {
					return normal
				}
				if sig.kind != signalNormal {
					return sig
				}
			}
			return normal
		})
	}
	return t
}

// protect 执行语句，只捕获客体异常
func protect(f *lightFrame, s lightStmt) (sig lightSignal, exc *runtime.JSException) {
	defer runtime.CatchException(&exc)
	return s(f), nil
}

// ============================================================================
// 执行
// ============================================================================

type lightSpec struct {
	entry *Entry
	body  lightStmt
}

func (s *lightSpec) Signature() types.Signature { return s.entry.Signature }

func (s *lightSpec) Backend() BackendKind { return BackendLight }

func (s *lightSpec) Run(frame *runtime.CallFrame) bool {
	act := s.entry.Enter(frame)
	if act == nil {
		return false
	}
	defer act.Exit()
	base := act.Layout.StackBase()
	defer captureFailure(act, func(depth int) []runtime.Value {
		return append([]runtime.Value(nil), act.Values[base:base+depth]...)
	})

	f := &lightFrame{act: act, v: act.Values, ret: runtime.UndefinedValue}
	if sig := s.body(f); sig.kind != signalReturn {
		f.ret = runtime.UndefinedValue
	}
	frame.Return = f.ret
	return true
}
