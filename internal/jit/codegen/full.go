// full.go - 线性指令后端
//
// 函数体编译为一条指令序列，跳转目标在编译结束前全部回填。表达式使用
// 按最大深度预分配的切片作为操作数栈；try 区域嵌套执行，异常、
// 跨区域跳转与 return 以 fullExit 逐层返回。

package codegen

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

type fullOp uint8

const (
	fullConst fullOp = iota
	fullThis
	fullLoad
	fullStore // 写符号，值留在栈顶
	fullPop
	fullLoadTemp
	fullStoreTemp // 写临时值，值留在栈顶
	fullUnary
	fullBinary
	fullGuard
	fullCoerce
	fullJump
	fullJumpIfFalse
	fullJumpIfTrue
	fullObject
	fullArray
	fullClosure
	fullGetNamed
	fullSetNamed
	fullGetKey
	fullSetKey
	fullCall
	fullNew
	fullReturn
	fullThrow
	fullTry
)

type fullInstr struct {
	op    fullOp
	arg   int
	value runtime.Value
	st    Storage
	t     types.ValueType

	unary     UnaryFunc
	binary    BinaryFunc
	ternary   func(a, b, c runtime.Value) runtime.Value
	truthy    func(runtime.Value) bool
	call      CallFunc
	construct func(callee runtime.Value, args []runtime.Value) runtime.Value
	closure   func(a *Activation) runtime.Value
	object    func(values []runtime.Value) runtime.Value
	try       *fullTryRegion
}

// fullTryRegion try 语句的区域，Catch/Finally 缺省时起止为 -1
type fullTryRegion struct {
	bodyStart, bodyEnd   int
	catchStart, catchEnd int
	finStart, finEnd     int
	end                  int
	catchSym             Storage
}

// fullJumps 循环或 switch 上未回填的跳转
type fullJumps struct {
	breaks    []int
	continues []int
}

type fullBackend struct {
	g      *Generator
	code   []fullInstr
	temps  map[*ir.WriteTemporary]bool
	labels []string
}

var fullTable Table[*fullBackend]

func init() { fullTable = buildFullTable() }

func newFullBackend() *fullBackend {
	return &fullBackend{temps: make(map[*ir.WriteTemporary]bool)}
}

func (b *fullBackend) ExecuteInitialize(g *Generator) { b.g = g }

func (b *fullBackend) Prolog(g *Generator) { g.BuildEntry() }

func (b *fullBackend) Body(g *Generator) { b.Visit(g.Fn.Body) }

func (b *fullBackend) Epilog(g *Generator) {
	b.emit(fullInstr{op: fullConst, value: runtime.UndefinedValue})
	b.emit(fullInstr{op: fullReturn})
	g.Stack.Assert(0)
}

func (b *fullBackend) ExecuteFinalize(g *Generator) (Specialization, error) {
	for i := range b.code {
		if in := &b.code[i]; isJump(in.op) && (in.arg < 0 || in.arg > len(b.code)) {
			return nil, errors.Internalf(errors.I0006, in.arg)
		}
	}
	g.Layout.StackSize = 0
	return &fullSpec{entry: g.Entry, code: b.code, maxStack: g.Stack.MaxDepth()}, nil
}

func isJump(op fullOp) bool {
	return op == fullJump || op == fullJumpIfFalse || op == fullJumpIfTrue
}

// Visit 语句前后检查栈深度不变
func (b *fullBackend) Visit(n ir.Node) {
	if _, ok := n.(ir.Stmt); ok {
		cp := b.g.Stack.Checkpoint()
		fullTable.Dispatch(b, n)
		b.g.Stack.Assert(cp)
		return
	}
	fullTable.Dispatch(b, n)
}

func (b *fullBackend) emit(in fullInstr) int {
	b.code = append(b.code, in)
	return len(b.code) - 1
}

func (b *fullBackend) here() int { return len(b.code) }

func (b *fullBackend) patch(at, target int) { b.code[at].arg = target }

func (b *fullBackend) push(t types.ValueType) { b.g.Stack.Push(t) }

func (b *fullBackend) pop(n int) { b.g.Stack.Pop(n) }

// coerce 分支或存储的类型与节点类型不同的原始类型时插入转换
func (b *fullBackend) coerce(from, to types.ValueType) {
	if to.IsPrimitive() && from != to {
		b.emit(fullInstr{op: fullCoerce, t: to})
		b.pop(1)
		b.push(to)
	}
}

func (b *fullBackend) takeLabels() []string {
	l := b.labels
	b.labels = nil
	return l
}

func (b *fullBackend) throwMessage(msg string) {
	b.emit(fullInstr{op: fullConst, value: runtime.NewString(msg)})
	b.emit(fullInstr{op: fullThrow})
}

func (b *fullBackend) loop(labels []string) (*Target, *fullJumps) {
	j := &fullJumps{}
	t := &Target{JumpTarget: ir.JumpTarget{Labels: labels, IsLoop: true}, Data: j}
	b.g.PushTarget(t)
	return t, j
}

func (b *fullBackend) resolve(j *fullJumps, breakTo, continueTo int) {
	for _, at := range j.breaks {
		b.patch(at, breakTo)
	}
	for _, at := range j.continues {
		b.patch(at, continueTo)
	}
}

// ============================================================================
// 分派表
// ============================================================================

func buildFullTable() Table[*fullBackend] {
	t := DefaultTable[*fullBackend]()

	t[ir.KindLiteral] = func(b *fullBackend, n ir.Node) {
		lit := n.(*ir.Literal)
		b.emit(fullInstr{op: fullConst, value: Literal(lit)})
		b.push(lit.Type())
	}
	t[ir.KindThis] = func(b *fullBackend, n ir.Node) {
		b.emit(fullInstr{op: fullThis})
		b.push(n.(ir.Expr).Type())
	}
	t[ir.KindObjectLiteral] = func(b *fullBackend, n ir.Node) {
		o := n.(*ir.ObjectLiteral)
		for _, p := range o.Properties {
			b.Visit(p.Value)
		}
		b.emit(fullInstr{op: fullObject, arg: len(o.Properties), object: ObjectLiteral(o)})
		b.pop(len(o.Properties))
		b.push(o.Type())
	}
	t[ir.KindArrayLiteral] = func(b *fullBackend, n ir.Node) {
		a := n.(*ir.ArrayLiteral)
		for _, e := range a.Elements {
			b.Visit(e)
		}
		b.emit(fullInstr{op: fullArray, arg: len(a.Elements)})
		b.pop(len(a.Elements))
		b.push(a.Type())
	}
	t[ir.KindFunctionExpression] = func(b *fullBackend, n ir.Node) {
		fe := n.(*ir.FunctionExpression)
		b.emit(fullInstr{op: fullClosure, closure: b.g.Closure(fe)})
		b.push(fe.Type())
	}
	t[ir.KindReadIdentifier] = func(b *fullBackend, n ir.Node) {
		r := n.(*ir.ReadIdentifier)
		st := b.g.Layout.Lookup(r.Symbol)
		b.emit(fullInstr{op: fullLoad, st: st})
		b.push(st.Type)
		b.coerce(st.Type, r.Type())
	}
	t[ir.KindWriteIdentifier] = func(b *fullBackend, n ir.Node) {
		w := n.(*ir.WriteIdentifier)
		b.Visit(w.Value)
		b.coerce(w.Value.Type(), w.Type())
		b.emit(fullInstr{op: fullStore, st: b.g.Layout.Lookup(w.Symbol)})
	}
	t[ir.KindReadIndexer] = func(b *fullBackend, n ir.Node) {
		r := n.(*ir.ReadIndexer)
		b.Visit(r.Container)
		b.Visit(r.Index)
		b.emit(fullInstr{op: fullGetKey, binary: b.g.ReadIndexer(r)})
		b.pop(2)
		b.push(r.Type())
	}
	t[ir.KindWriteIndexer] = func(b *fullBackend, n ir.Node) {
		w := n.(*ir.WriteIndexer)
		b.Visit(w.Container)
		b.Visit(w.Index)
		b.Visit(w.Value)
		b.emit(fullInstr{op: fullSetKey, ternary: b.g.WriteIndexer(w)})
		b.pop(3)
		b.push(w.Type())
	}
	t[ir.KindReadProperty] = func(b *fullBackend, n ir.Node) {
		r := n.(*ir.ReadProperty)
		b.Visit(r.Container)
		b.emit(fullInstr{op: fullGetNamed, unary: b.g.ReadProperty(r)})
		b.pop(1)
		b.push(r.Type())
	}
	t[ir.KindWriteProperty] = func(b *fullBackend, n ir.Node) {
		w := n.(*ir.WriteProperty)
		b.Visit(w.Container)
		b.Visit(w.Value)
		b.emit(fullInstr{op: fullSetNamed, binary: b.g.WriteProperty(w)})
		b.pop(2)
		b.push(w.Type())
	}
	t[ir.KindUnary] = func(b *fullBackend, n ir.Node) {
		u := n.(*ir.Unary)
		b.Visit(u.Operand)
		b.emit(fullInstr{op: fullUnary, unary: b.g.Unary(u)})
		b.pop(1)
		b.push(u.Type())
	}
	t[ir.KindBinary] = func(b *fullBackend, n ir.Node) {
		bin := n.(*ir.Binary)
		b.Visit(bin.Left)
		b.Visit(bin.Right)
		b.emit(fullInstr{op: fullBinary, binary: b.g.Binary(bin)})
		b.pop(2)
		b.push(bin.Type())
	}
	t[ir.KindTernary] = func(b *fullBackend, n ir.Node) {
		c := n.(*ir.Ternary)
		b.Visit(c.Cond)
		jf := b.emit(fullInstr{op: fullJumpIfFalse, truthy: Truthy(c.Cond.Type())})
		b.pop(1)
		b.Visit(c.Then)
		b.coerce(c.Then.Type(), c.Type())
		b.pop(1)
		j := b.emit(fullInstr{op: fullJump})
		b.patch(jf, b.here())
		b.Visit(c.Else)
		b.coerce(c.Else.Type(), c.Type())
		b.patch(j, b.here())
		b.pop(1)
		b.push(c.Type())
	}
	t[ir.KindComma] = func(b *fullBackend, n ir.Node) {
		c := n.(*ir.Comma)
		for i, e := range c.Exprs {
			b.Visit(e)
			if i < len(c.Exprs)-1 {
				b.emit(fullInstr{op: fullPop})
				b.pop(1)
			}
		}
	}
	t[ir.KindCall] = func(b *fullBackend, n ir.Node) {
		c := n.(*ir.Call)
		b.Visit(c.Callee)
		if c.This != nil {
			b.Visit(c.This)
		} else {
			b.emit(fullInstr{op: fullConst, value: runtime.UndefinedValue})
			b.push(types.Undefined)
		}
		for _, a := range c.Args {
			b.Visit(a)
		}
		b.emit(fullInstr{op: fullCall, arg: len(c.Args), call: b.g.Call(c)})
		b.pop(2 + len(c.Args))
		b.push(c.Type())
	}
	t[ir.KindNew] = func(b *fullBackend, n ir.Node) {
		c := n.(*ir.New)
		b.Visit(c.Callee)
		for _, a := range c.Args {
			b.Visit(a)
		}
		b.emit(fullInstr{op: fullNew, arg: len(c.Args), construct: b.g.New(c)})
		b.pop(1 + len(c.Args))
		b.push(c.Type())
	}
	t[ir.KindWriteTemporary] = func(b *fullBackend, n ir.Node) {
		w := n.(*ir.WriteTemporary)
		if b.temps[w] {
			b.emit(fullInstr{op: fullLoadTemp, arg: w.Index})
			b.push(w.Type())
			return
		}
		b.temps[w] = true
		b.Visit(w.Value)
		b.coerce(w.Value.Type(), w.Type())
		b.emit(fullInstr{op: fullStoreTemp, arg: w.Index})
	}
	t[ir.KindGuardedCast] = func(b *fullBackend, n ir.Node) {
		gc := n.(*ir.GuardedCast)
		b.Visit(gc.Value)
		if fn := b.g.Guard(gc, b.g.Stack.Depth()-1); fn != nil {
			b.emit(fullInstr{op: fullGuard, unary: fn})
		}
		b.pop(1)
		b.push(gc.Type())
	}

	// 语句
	t[ir.KindExpressionStatement] = func(b *fullBackend, n ir.Node) {
		b.Visit(n.(*ir.ExpressionStatement).Expr)
		b.emit(fullInstr{op: fullPop})
		b.pop(1)
	}
	t[ir.KindIf] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.If)
		b.Visit(s.Cond)
		jf := b.emit(fullInstr{op: fullJumpIfFalse, truthy: Truthy(s.Cond.Type())})
		b.pop(1)
		b.Visit(s.Then)
		if s.Else == nil {
			b.patch(jf, b.here())
			return
		}
		j := b.emit(fullInstr{op: fullJump})
		b.patch(jf, b.here())
		b.Visit(s.Else)
		b.patch(j, b.here())
	}
	t[ir.KindWhile] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.While)
		_, jumps := b.loop(b.takeLabels())
		start := b.here()
		b.Visit(s.Cond)
		jf := b.emit(fullInstr{op: fullJumpIfFalse, truthy: Truthy(s.Cond.Type())})
		b.pop(1)
		b.Visit(s.Body)
		b.emit(fullInstr{op: fullJump, arg: start})
		b.g.PopTarget()
		b.patch(jf, b.here())
		b.resolve(jumps, b.here(), start)
	}
	t[ir.KindDoWhile] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.DoWhile)
		_, jumps := b.loop(b.takeLabels())
		start := b.here()
		b.Visit(s.Body)
		cont := b.here()
		b.Visit(s.Cond)
		b.emit(fullInstr{op: fullJumpIfTrue, arg: start, truthy: Truthy(s.Cond.Type())})
		b.pop(1)
		b.g.PopTarget()
		b.resolve(jumps, b.here(), cont)
	}
	t[ir.KindFor] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.For)
		labels := b.takeLabels()
		if s.Init != nil {
			b.Visit(s.Init)
		}
		_, jumps := b.loop(labels)
		start := b.here()
		jf := -1
		if s.Cond != nil {
			b.Visit(s.Cond)
			jf = b.emit(fullInstr{op: fullJumpIfFalse, truthy: Truthy(s.Cond.Type())})
			b.pop(1)
		}
		b.Visit(s.Body)
		cont := b.here()
		if s.Update != nil {
			b.Visit(s.Update)
			b.emit(fullInstr{op: fullPop})
			b.pop(1)
		}
		b.emit(fullInstr{op: fullJump, arg: start})
		b.g.PopTarget()
		if jf >= 0 {
			b.patch(jf, b.here())
		}
		b.resolve(jumps, b.here(), cont)
	}
	t[ir.KindLabel] = func(b *fullBackend, n ir.Node) {
		labels, body, needsTarget := LabeledStatement(n.(*ir.Label))
		if !needsTarget {
			b.labels = append(b.takeLabels(), labels...)
			b.Visit(body)
			return
		}
		jumps := &fullJumps{}
		b.g.PushTarget(&Target{JumpTarget: ir.JumpTarget{Labels: append(b.takeLabels(), labels...)}, Data: jumps})
		b.Visit(body)
		b.g.PopTarget()
		b.resolve(jumps, b.here(), b.here())
	}
	t[ir.KindBreak] = func(b *fullBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.throwMessage(msg)
			return
		}
		j := target.Data.(*fullJumps)
		j.breaks = append(j.breaks, b.emit(fullInstr{op: fullJump, arg: -1}))
	}
	t[ir.KindContinue] = func(b *fullBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.throwMessage(msg)
			return
		}
		j := target.Data.(*fullJumps)
		j.continues = append(j.continues, b.emit(fullInstr{op: fullJump, arg: -1}))
	}
	t[ir.KindReturn] = func(b *fullBackend, n ir.Node) {
		if v := n.(*ir.Return).Value; v != nil {
			b.Visit(v)
		} else {
			b.emit(fullInstr{op: fullConst, value: runtime.UndefinedValue})
			b.push(types.Undefined)
		}
		b.emit(fullInstr{op: fullReturn})
		b.pop(1)
	}
	t[ir.KindThrow] = func(b *fullBackend, n ir.Node) {
		b.Visit(n.(*ir.Throw).Value)
		b.emit(fullInstr{op: fullThrow})
		b.pop(1)
	}
	t[ir.KindTry] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.Try)
		d := &fullTryRegion{catchStart: -1, catchEnd: -1, finStart: -1, finEnd: -1}
		b.emit(fullInstr{op: fullTry, try: d})
		b.push(types.DValueRef)
		d.bodyStart = b.here()
		b.Visit(s.Body)
		d.bodyEnd = b.here()
		if s.Catch != nil {
			d.catchSym = b.g.Layout.Lookup(s.CatchSymbol)
			d.catchStart = b.here()
			b.Visit(s.Catch)
			d.catchEnd = b.here()
		}
		if s.Finally != nil {
			d.finStart = b.here()
			b.Visit(s.Finally)
			d.finEnd = b.here()
		}
		d.end = b.here()
		b.pop(1)
	}
	t[ir.KindSwitch] = func(b *fullBackend, n ir.Node) {
		s := n.(*ir.Switch)
		jumps := &fullJumps{}
		b.g.PushTarget(&Target{JumpTarget: ir.JumpTarget{Labels: b.takeLabels(), IsSwitch: true}, Data: jumps})

		b.Visit(s.Discriminant)
		b.emit(fullInstr{op: fullPop})
		b.pop(1)

		tests := make([]int, len(s.Cases))
		def := -1
		for i, c := range s.Cases {
			if c.Test == nil {
				def = i
				continue
			}
			b.Visit(c.Test)
			tests[i] = b.emit(fullInstr{op: fullJumpIfTrue, truthy: Truthy(c.Test.Type())})
			b.pop(1)
		}
		fallback := b.emit(fullInstr{op: fullJump})
		for i, c := range s.Cases {
			if c.Test == nil {
				b.patch(fallback, b.here())
			} else {
				b.patch(tests[i], b.here())
			}
			for _, st := range c.Body {
				b.Visit(st)
			}
		}
		if def < 0 {
			b.patch(fallback, b.here())
		}
		b.g.PopTarget()
		b.resolve(jumps, b.here(), b.here())
	}
	return t
}

// ============================================================================
// 执行
// ============================================================================

type fullExitKind uint8

const (
	exitNormal fullExitKind = iota
	exitJump
	exitReturn
)

// fullExit 一段指令的退出方式
type fullExit struct {
	kind   fullExitKind
	target int
	value  runtime.Value
}

type fullSpec struct {
	entry    *Entry
	code     []fullInstr
	maxStack int
}

func (s *fullSpec) Signature() types.Signature { return s.entry.Signature }

func (s *fullSpec) Backend() BackendKind { return BackendFull }

func (s *fullSpec) Run(frame *runtime.CallFrame) bool {
	act := s.entry.Enter(frame)
	if act == nil {
		return false
	}
	defer act.Exit()

	f := &fullFrame{code: s.code, act: act, stack: make([]runtime.Value, 0, s.maxStack)}
	defer captureFailure(act, func(depth int) []runtime.Value {
		return append([]runtime.Value(nil), f.stack[:depth]...)
	})
	exit := f.run(0, len(s.code))
	if exit.kind == exitJump {
		errors.Fail(errors.I0006, exit.target)
	}
	frame.Return = exit.value
	return true
}

type fullFrame struct {
	code  []fullInstr
	act   *Activation
	stack []runtime.Value
}

func (f *fullFrame) push(v runtime.Value) { f.stack = append(f.stack, v) }

func (f *fullFrame) pop() runtime.Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *fullFrame) top() runtime.Value { return f.stack[len(f.stack)-1] }

// popN 弹出 n 个值，返回新分配的切片
func (f *fullFrame) popN(n int) []runtime.Value {
	vals := make([]runtime.Value, n)
	copy(vals, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return vals
}

// run 执行 [from, to) 内的指令；跳到区间之外时返回 exitJump，
// 跳到 to 视为正常结束
func (f *fullFrame) run(from, to int) fullExit {
	act := f.act
	pc := from
	for pc < to {
		in := &f.code[pc]
		pc++
		switch in.op {
		case fullConst:
			f.push(in.value)
		case fullThis:
			f.push(act.This())
		case fullLoad:
			f.push(act.Load(in.st))
		case fullStore:
			act.Store(in.st, f.top())
		case fullPop:
			f.pop()
		case fullLoadTemp:
			f.push(act.Temp(in.arg))
		case fullStoreTemp:
			act.SetTemp(in.arg, f.top())
		case fullUnary, fullGetNamed, fullGuard:
			f.push(in.unary(f.pop()))
		case fullCoerce:
			f.push(Coerce(f.pop(), in.t))
		case fullBinary, fullGetKey, fullSetNamed:
			r := f.pop()
			l := f.pop()
			f.push(in.binary(l, r))
		case fullSetKey:
			v := f.pop()
			k := f.pop()
			c := f.pop()
			f.push(in.ternary(c, k, v))
		case fullJump:
			if in.arg < from || in.arg > to {
				return fullExit{kind: exitJump, target: in.arg}
			}
			pc = in.arg
		case fullJumpIfFalse, fullJumpIfTrue:
			if in.truthy(f.pop()) == (in.op == fullJumpIfTrue) {
				if in.arg < from || in.arg > to {
					return fullExit{kind: exitJump, target: in.arg}
				}
				pc = in.arg
			}
		case fullObject:
			f.push(in.object(f.popN(in.arg)))
		case fullArray:
			f.push(ArrayLiteral(f.popN(in.arg)))
		case fullClosure:
			f.push(in.closure(act))
		case fullCall:
			args := f.popN(in.arg)
			this := f.pop()
			callee := f.pop()
			f.push(in.call(callee, this, args))
		case fullNew:
			args := f.popN(in.arg)
			f.push(in.construct(f.pop(), args))
		case fullReturn:
			return fullExit{kind: exitReturn, value: f.pop()}
		case fullThrow:
			runtime.Throw(f.pop())
		case fullTry:
			exit := f.runTry(in.try)
			switch exit.kind {
			case exitReturn:
				return exit
			case exitJump:
				if exit.target < from || exit.target > to {
					return exit
				}
				pc = exit.target
			default:
				pc = in.try.end
			}
		default:
			errors.Fail(errors.I0005, in.op)
		}
	}
	return fullExit{kind: exitNormal}
}

// runTry finally 在所有退出路径上执行，它自身的非正常退出覆盖之前的结果
//
// 区域执行期间栈上有一个异常槽位，与栈模型一致。
func (f *fullFrame) runTry(d *fullTryRegion) fullExit {
	depth := len(f.stack)
	f.push(runtime.UndefinedValue)
	exit, exc := f.protected(d.bodyStart, d.bodyEnd)
	if exc != nil && d.catchStart >= 0 {
		f.stack = f.stack[:depth+1]
		f.stack[depth] = exc.Value
		f.act.Store(d.catchSym, exc.Value)
		exit, exc = f.protected(d.catchStart, d.catchEnd)
	}
	if d.finStart >= 0 {
		f.stack = f.stack[:depth+1]
		if fin := f.run(d.finStart, d.finEnd); fin.kind != exitNormal {
			f.stack = f.stack[:depth]
			return fin
		}
	}
	f.stack = f.stack[:depth]
	if exc != nil {
		panic(exc)
	}
	return exit
}

// protected 执行一段指令，只捕获客体异常
func (f *fullFrame) protected(from, to int) (exit fullExit, exc *runtime.JSException) {
	defer runtime.CatchException(&exc)
	return f.run(from, to), nil
}
