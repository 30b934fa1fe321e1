// inlinecache.go - 片段分派表后端
//
// 函数体被切成片段 func(f, i) int，按下标存放在一张表里，返回值是下一个
// 要执行的下标。编译分两步：遍历 IR 时只预留下标并登记构建任务，跳转
// 记入待回填列表；ExecuteFinalize 回填跳转后执行全部构建任务，开启
// 并行编译时任务分发到 errgroup。
//
// 值数组布局 |context|arguments|符号...|操作数栈...|临时值...|，临时值的
// 读写片段在栈大小确定之后构建。
//
// 每个守卫之后的下标登记为续跑点，去优化时从这里接着执行（resume.go）。

package codegen

import (
	"math"
	goruntime "runtime"

	"github.com/emirpasic/gods/lists/arraylist"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// icReturn 返回哨兵，大于任何片段下标
const icReturn = math.MaxInt

type icFragment func(f *icFrame, i int) int

type icFrame struct {
	ics []icFragment
	act *Activation
	v   []runtime.Value
	ret runtime.Value
}

// icLabel 跳转目标，绑定前 index 为 -1
type icLabel struct{ index int }

// icPatch 待回填的跳转
type icPatch struct {
	at    int
	label *icLabel
}

// icJumps 循环、switch 或标签语句的 break/continue 目标
type icJumps struct {
	brk, cont *icLabel
}

// icTry try 语句的区域，区间左闭右开，缺省的部分起止为 -1
type icTry struct {
	tryBegin, tryEnd         int
	catchBegin, catchEnd     int
	finallyBegin, finallyEnd int
	exceptionSlot            int
	end                      int
}

func (d *icTry) inCatch(i int) bool { return d.catchBegin >= 0 && i >= d.catchBegin && i < d.catchEnd }

// icResume 守卫之后的续跑点
type icResume struct {
	index int
	slot  int
	// tries 包住续跑点的 try 语句，由外向内
	tries []*icTry
}

type icBackend struct {
	g       *Generator
	base    int
	jobs    []func() icFragment
	patches *arraylist.List
	jumpTo  []int
	temps   map[*ir.WriteTemporary]bool
	labels  []string
	tries   []*icTry
	resume  map[int]icResume
}

var icTable Table[*icBackend]

func init() { icTable = buildICTable() }

func newICBackend() *icBackend {
	return &icBackend{
		patches: arraylist.New(),
		temps:   make(map[*ir.WriteTemporary]bool),
		resume:  make(map[int]icResume),
	}
}

func (b *icBackend) ExecuteInitialize(g *Generator) {
	b.g = g
	b.base = g.Layout.StackBase()
}

func (b *icBackend) Prolog(g *Generator) { g.BuildEntry() }

func (b *icBackend) Body(g *Generator) { b.Visit(g.Fn.Body) }

func (b *icBackend) Epilog(g *Generator) {
	b.emit(func() icFragment {
		return func(f *icFrame, _ int) int {
			f.ret = runtime.UndefinedValue
			return icReturn
		}
	})
	g.Stack.Assert(0)
}

func (b *icBackend) ExecuteFinalize(g *Generator) (Specialization, error) {
	g.Layout.StackSize = g.Stack.MaxDepth()

	b.jumpTo = make([]int, len(b.jobs))
	it := b.patches.Iterator()
	for it.Next() {
		p := it.Value().(icPatch)
		if p.label.index < 0 {
			return nil, errors.Internalf(errors.I0006, p.at)
		}
		b.jumpTo[p.at] = p.label.index
	}

	ics := make([]icFragment, len(b.jobs))
	errs := make([]error, len(b.jobs))
	if g.Options.EnableParallelJit {
		var eg errgroup.Group
		eg.SetLimit(goruntime.GOMAXPROCS(0))
		for i := range b.jobs {
			eg.Go(func() error {
				ics[i], errs[i] = b.build(i)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for i := range b.jobs {
			ics[i], errs[i] = b.build(i)
		}
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	g.Logger.Debug("fragments built",
		zap.Int("fragments", len(ics)),
		zap.Int("patches", b.patches.Size()),
		zap.Bool("parallel", g.Options.EnableParallelJit))
	return &icSpec{entry: g.Entry, ics: ics, resume: b.resume}, nil
}

// build 执行一个构建任务，内部错误转换为返回值
func (b *icBackend) build(i int) (fn icFragment, err error) {
	defer errors.Recover(&err)
	return b.jobs[i](), nil
}

// Visit 语句前后检查栈深度不变
func (b *icBackend) Visit(n ir.Node) {
	if _, ok := n.(ir.Stmt); ok {
		cp := b.g.Stack.Checkpoint()
		icTable.Dispatch(b, n)
		b.g.Stack.Assert(cp)
		return
	}
	icTable.Dispatch(b, n)
}

// ============================================================================
// 片段登记
// ============================================================================

func (b *icBackend) here() int { return len(b.jobs) }

// emit 预留一个下标并登记构建任务
func (b *icBackend) emit(job func() icFragment) int {
	b.jobs = append(b.jobs, job)
	return len(b.jobs) - 1
}

// step 顺序执行的片段：build 在构建阶段调用一次
func (b *icBackend) step(build func() func(f *icFrame)) int {
	return b.emit(func() icFragment {
		fn := build()
		return func(f *icFrame, i int) int {
			fn(f)
			return i + 1
		}
	})
}

func (b *icBackend) newLabel() *icLabel { return &icLabel{index: -1} }

func (b *icBackend) bind(l *icLabel) { l.index = b.here() }

// jump 无条件跳转
func (b *icBackend) jump(l *icLabel) {
	at := b.emit(nil)
	b.patches.Add(icPatch{at: at, label: l})
	b.jobs[at] = func() icFragment {
		to := b.jumpTo[at]
		return func(*icFrame, int) int { return to }
	}
}

// branch 条件跳转：slot 中的值为真值等于 when 时跳转
func (b *icBackend) branch(slot int, t types.ValueType, when bool, l *icLabel) {
	at := b.emit(nil)
	b.patches.Add(icPatch{at: at, label: l})
	b.jobs[at] = func() icFragment {
		to := b.jumpTo[at]
		truthy := Truthy(t)
		return func(f *icFrame, i int) int {
			if truthy(f.v[slot]) == when {
				return to
			}
			return i + 1
		}
	}
}

func (b *icBackend) slot() int { return b.base + b.g.Stack.Depth() }

func (b *icBackend) push(t types.ValueType) int { return b.base + b.g.Stack.Push(t) }

func (b *icBackend) pop(n int) { b.g.Stack.Pop(n) }

func (b *icBackend) takeLabels() []string {
	l := b.labels
	b.labels = nil
	return l
}

// coerce 把 slot 中的值转换为节点的原始类型
func (b *icBackend) coerce(slot int, from, to types.ValueType) {
	if !to.IsPrimitive() || from == to {
		return
	}
	b.step(func() func(f *icFrame) {
		return func(f *icFrame) { f.v[slot] = Coerce(f.v[slot], to) }
	})
}

func (b *icBackend) throwMessage(msg string) {
	b.step(func() func(f *icFrame) {
		return func(*icFrame) { runtime.Throw(runtime.NewString(msg)) }
	})
}

func (b *icBackend) pushTarget(labels []string, loop, sw bool) *icJumps {
	j := &icJumps{brk: b.newLabel(), cont: b.newLabel()}
	b.g.PushTarget(&Target{JumpTarget: ir.JumpTarget{Labels: labels, IsLoop: loop, IsSwitch: sw}, Data: j})
	return j
}

// ============================================================================
// 分派表
// ============================================================================

func buildICTable() Table[*icBackend] {
	t := DefaultTable[*icBackend]()

	t[ir.KindLiteral] = func(b *icBackend, n ir.Node) {
		lit := n.(*ir.Literal)
		out := b.push(lit.Type())
		b.step(func() func(f *icFrame) {
			v := Literal(lit)
			return func(f *icFrame) { f.v[out] = v }
		})
	}
	t[ir.KindThis] = func(b *icBackend, n ir.Node) {
		out := b.push(n.(ir.Expr).Type())
		b.step(func() func(f *icFrame) {
			return func(f *icFrame) { f.v[out] = f.act.This() }
		})
	}
	t[ir.KindObjectLiteral] = func(b *icBackend, n ir.Node) {
		o := n.(*ir.ObjectLiteral)
		first := b.slot()
		for _, p := range o.Properties {
			b.Visit(p.Value)
		}
		count := len(o.Properties)
		b.pop(count)
		out := b.push(o.Type())
		b.step(func() func(f *icFrame) {
			build := ObjectLiteral(o)
			return func(f *icFrame) { f.v[out] = build(f.v[first : first+count]) }
		})
	}
	t[ir.KindArrayLiteral] = func(b *icBackend, n ir.Node) {
		a := n.(*ir.ArrayLiteral)
		first := b.slot()
		for _, e := range a.Elements {
			b.Visit(e)
		}
		count := len(a.Elements)
		b.pop(count)
		out := b.push(a.Type())
		b.step(func() func(f *icFrame) {
			return func(f *icFrame) { f.v[out] = ArrayLiteral(f.v[first : first+count]) }
		})
	}
	t[ir.KindFunctionExpression] = func(b *icBackend, n ir.Node) {
		fe := n.(*ir.FunctionExpression)
		out := b.push(fe.Type())
		b.step(func() func(f *icFrame) {
			closure := b.g.Closure(fe)
			return func(f *icFrame) { f.v[out] = closure(f.act) }
		})
	}
	t[ir.KindReadIdentifier] = func(b *icBackend, n ir.Node) {
		r := n.(*ir.ReadIdentifier)
		st := b.g.Layout.Lookup(r.Symbol)
		out := b.push(r.Type())
		b.step(func() func(f *icFrame) {
			return func(f *icFrame) { f.v[out] = f.act.Load(st) }
		})
		b.coerce(out, st.Type, r.Type())
	}
	t[ir.KindWriteIdentifier] = func(b *icBackend, n ir.Node) {
		w := n.(*ir.WriteIdentifier)
		st := b.g.Layout.Lookup(w.Symbol)
		out := b.slot()
		b.Visit(w.Value)
		b.coerce(out, w.Value.Type(), w.Type())
		b.step(func() func(f *icFrame) {
			return func(f *icFrame) { f.act.Store(st, f.v[out]) }
		})
	}
	t[ir.KindReadIndexer] = func(b *icBackend, n ir.Node) {
		r := n.(*ir.ReadIndexer)
		out := b.slot()
		b.Visit(r.Container)
		b.Visit(r.Index)
		b.pop(2)
		b.push(r.Type())
		b.step(func() func(f *icFrame) {
			read := b.g.ReadIndexer(r)
			return func(f *icFrame) { f.v[out] = read(f.v[out], f.v[out+1]) }
		})
	}
	t[ir.KindWriteIndexer] = func(b *icBackend, n ir.Node) {
		w := n.(*ir.WriteIndexer)
		out := b.slot()
		b.Visit(w.Container)
		b.Visit(w.Index)
		b.Visit(w.Value)
		b.pop(3)
		b.push(w.Type())
		b.step(func() func(f *icFrame) {
			write := b.g.WriteIndexer(w)
			return func(f *icFrame) { f.v[out] = write(f.v[out], f.v[out+1], f.v[out+2]) }
		})
	}
	t[ir.KindReadProperty] = func(b *icBackend, n ir.Node) {
		r := n.(*ir.ReadProperty)
		out := b.slot()
		b.Visit(r.Container)
		b.pop(1)
		b.push(r.Type())
		b.step(func() func(f *icFrame) {
			read := b.g.ReadProperty(r)
			return func(f *icFrame) { f.v[out] = read(f.v[out]) }
		})
	}
	t[ir.KindWriteProperty] = func(b *icBackend, n ir.Node) {
		w := n.(*ir.WriteProperty)
		out := b.slot()
		b.Visit(w.Container)
		b.Visit(w.Value)
		b.pop(2)
		b.push(w.Type())
		b.step(func() func(f *icFrame) {
			write := b.g.WriteProperty(w)
			return func(f *icFrame) { f.v[out] = write(f.v[out], f.v[out+1]) }
		})
	}
	t[ir.KindUnary] = func(b *icBackend, n ir.Node) {
		u := n.(*ir.Unary)
		out := b.slot()
		b.Visit(u.Operand)
		b.pop(1)
		b.push(u.Type())
		b.step(func() func(f *icFrame) {
			if IsStatic(u.Operand.Type()) {
				op := b.g.Unary(u)
				return func(f *icFrame) { f.v[out] = op(f.v[out]) }
			}
			ic := b.g.newInlineCache(u.Op, u.Type())
			return func(f *icFrame) { f.v[out] = ic.Run1(f.v[out]) }
		})
	}
	t[ir.KindBinary] = func(b *icBackend, n ir.Node) {
		bin := n.(*ir.Binary)
		out := b.slot()
		b.Visit(bin.Left)
		b.Visit(bin.Right)
		b.pop(2)
		b.push(bin.Type())
		b.step(func() func(f *icFrame) {
			if IsStatic(bin.Left.Type()) && IsStatic(bin.Right.Type()) {
				op := b.g.Binary(bin)
				return func(f *icFrame) { f.v[out] = op(f.v[out], f.v[out+1]) }
			}
			ic := b.g.newInlineCache(bin.Op, bin.Type())
			return func(f *icFrame) { f.v[out] = ic.Run2(f.v[out], f.v[out+1]) }
		})
	}
	t[ir.KindTernary] = func(b *icBackend, n ir.Node) {
		c := n.(*ir.Ternary)
		out := b.slot()
		els, end := b.newLabel(), b.newLabel()
		b.Visit(c.Cond)
		b.pop(1)
		b.branch(out, c.Cond.Type(), false, els)
		b.Visit(c.Then)
		b.coerce(out, c.Then.Type(), c.Type())
		b.pop(1)
		b.jump(end)
		b.bind(els)
		b.Visit(c.Else)
		b.coerce(out, c.Else.Type(), c.Type())
		b.pop(1)
		b.bind(end)
		b.push(c.Type())
	}
	t[ir.KindComma] = func(b *icBackend, n ir.Node) {
		c := n.(*ir.Comma)
		for i, e := range c.Exprs {
			b.Visit(e)
			if i < len(c.Exprs)-1 {
				b.pop(1)
			}
		}
	}
	t[ir.KindCall] = func(b *icBackend, n ir.Node) {
		c := n.(*ir.Call)
		out := b.slot()
		b.Visit(c.Callee)
		if c.This != nil {
			b.Visit(c.This)
		} else {
			at := b.push(types.Undefined)
			b.step(func() func(f *icFrame) {
				return func(f *icFrame) { f.v[at] = runtime.UndefinedValue }
			})
		}
		for _, a := range c.Args {
			b.Visit(a)
		}
		count := len(c.Args)
		b.pop(2 + count)
		b.push(c.Type())
		b.step(func() func(f *icFrame) {
			call := b.g.Call(c)
			return func(f *icFrame) {
				args := append([]runtime.Value(nil), f.v[out+2:out+2+count]...)
				f.v[out] = call(f.v[out], f.v[out+1], args)
			}
		})
	}
	t[ir.KindNew] = func(b *icBackend, n ir.Node) {
		c := n.(*ir.New)
		out := b.slot()
		b.Visit(c.Callee)
		for _, a := range c.Args {
			b.Visit(a)
		}
		count := len(c.Args)
		b.pop(1 + count)
		b.push(c.Type())
		b.step(func() func(f *icFrame) {
			construct := b.g.New(c)
			return func(f *icFrame) {
				args := append([]runtime.Value(nil), f.v[out+1:out+1+count]...)
				f.v[out] = construct(f.v[out], args)
			}
		})
	}
	t[ir.KindWriteTemporary] = func(b *icBackend, n ir.Node) {
		w := n.(*ir.WriteTemporary)
		if b.temps[w] {
			out := b.push(w.Type())
			b.step(func() func(f *icFrame) {
				at := b.g.Layout.TempIndex(w.Index)
				return func(f *icFrame) { f.v[out] = f.v[at] }
			})
			return
		}
		b.temps[w] = true
		out := b.slot()
		b.Visit(w.Value)
		b.coerce(out, w.Value.Type(), w.Type())
		b.step(func() func(f *icFrame) {
			at := b.g.Layout.TempIndex(w.Index)
			return func(f *icFrame) { f.v[at] = f.v[out] }
		})
	}
	t[ir.KindGuardedCast] = func(b *icBackend, n ir.Node) {
		gc := n.(*ir.GuardedCast)
		out := b.slot()
		b.Visit(gc.Value)
		b.pop(1)
		b.push(gc.Type())
		if NeedsCheck(gc) || b.g.Profiler != nil || gc.Type().IsPrimitive() {
			depth := out - b.base
			b.step(func() func(f *icFrame) {
				guard := b.g.Guard(gc, depth)
				if guard == nil {
					return func(*icFrame) {}
				}
				return func(f *icFrame) { f.v[out] = guard(f.v[out]) }
			})
		}
		b.resume[gc.ProfileIndex] = icResume{
			index: b.here(),
			slot:  out,
			tries: append([]*icTry(nil), b.tries...),
		}
	}

	// 语句
	t[ir.KindExpressionStatement] = func(b *icBackend, n ir.Node) {
		b.Visit(n.(*ir.ExpressionStatement).Expr)
		b.pop(1)
	}
	t[ir.KindIf] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.If)
		at := b.slot()
		b.Visit(s.Cond)
		b.pop(1)
		els := b.newLabel()
		b.branch(at, s.Cond.Type(), false, els)
		b.Visit(s.Then)
		if s.Else == nil {
			b.bind(els)
			return
		}
		end := b.newLabel()
		b.jump(end)
		b.bind(els)
		b.Visit(s.Else)
		b.bind(end)
	}
	t[ir.KindWhile] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.While)
		j := b.pushTarget(b.takeLabels(), true, false)
		b.bind(j.cont)
		at := b.slot()
		b.Visit(s.Cond)
		b.pop(1)
		b.branch(at, s.Cond.Type(), false, j.brk)
		b.Visit(s.Body)
		b.jump(j.cont)
		b.g.PopTarget()
		b.bind(j.brk)
	}
	t[ir.KindDoWhile] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.DoWhile)
		j := b.pushTarget(b.takeLabels(), true, false)
		start := b.newLabel()
		b.bind(start)
		b.Visit(s.Body)
		b.bind(j.cont)
		at := b.slot()
		b.Visit(s.Cond)
		b.pop(1)
		b.branch(at, s.Cond.Type(), true, start)
		b.g.PopTarget()
		b.bind(j.brk)
	}
	t[ir.KindFor] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.For)
		labels := b.takeLabels()
		if s.Init != nil {
			b.Visit(s.Init)
		}
		j := b.pushTarget(labels, true, false)
		start := b.newLabel()
		b.bind(start)
		if s.Cond != nil {
			at := b.slot()
			b.Visit(s.Cond)
			b.pop(1)
			b.branch(at, s.Cond.Type(), false, j.brk)
		}
		b.Visit(s.Body)
		b.bind(j.cont)
		if s.Update != nil {
			b.Visit(s.Update)
			b.pop(1)
		}
		b.jump(start)
		b.g.PopTarget()
		b.bind(j.brk)
	}
	t[ir.KindLabel] = func(b *icBackend, n ir.Node) {
		labels, body, needsTarget := LabeledStatement(n.(*ir.Label))
		if !needsTarget {
			b.labels = append(b.takeLabels(), labels...)
			b.Visit(body)
			return
		}
		j := b.pushTarget(append(b.takeLabels(), labels...), false, false)
		b.Visit(body)
		b.g.PopTarget()
		b.bind(j.brk)
	}
	t[ir.KindBreak] = func(b *icBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.throwMessage(msg)
			return
		}
		b.jump(target.Data.(*icJumps).brk)
	}
	t[ir.KindContinue] = func(b *icBackend, n ir.Node) {
		target, msg := b.g.FindTarget(n.(ir.Stmt))
		if target == nil {
			b.throwMessage(msg)
			return
		}
		b.jump(target.Data.(*icJumps).cont)
	}
	t[ir.KindReturn] = func(b *icBackend, n ir.Node) {
		v := n.(*ir.Return).Value
		if v == nil {
			b.emit(func() icFragment {
				return func(f *icFrame, _ int) int {
					f.ret = runtime.UndefinedValue
					return icReturn
				}
			})
			return
		}
		at := b.slot()
		b.Visit(v)
		b.pop(1)
		b.emit(func() icFragment {
			return func(f *icFrame, _ int) int {
				f.ret = f.v[at]
				return icReturn
			}
		})
	}
	t[ir.KindThrow] = func(b *icBackend, n ir.Node) {
		at := b.slot()
		b.Visit(n.(*ir.Throw).Value)
		b.pop(1)
		b.step(func() func(f *icFrame) {
			return func(f *icFrame) { runtime.Throw(f.v[at]) }
		})
	}
	t[ir.KindTry] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.Try)
		d := &icTry{catchBegin: -1, catchEnd: -1, finallyBegin: -1, finallyEnd: -1}
		d.exceptionSlot = b.push(types.DValueRef)
		b.emit(func() icFragment {
			return func(f *icFrame, _ int) int { return f.tryCatchFinally(d) }
		})
		b.tries = append(b.tries, d)
		d.tryBegin = b.here()
		b.Visit(s.Body)
		d.tryEnd = b.here()
		if s.Catch != nil {
			st := b.g.Layout.Lookup(s.CatchSymbol)
			slot := d.exceptionSlot
			d.catchBegin = b.here()
			b.step(func() func(f *icFrame) {
				return func(f *icFrame) { f.act.Store(st, f.v[slot]) }
			})
			b.Visit(s.Catch)
			d.catchEnd = b.here()
		}
		b.tries = b.tries[:len(b.tries)-1]
		if s.Finally != nil {
			d.finallyBegin = b.here()
			b.Visit(s.Finally)
			d.finallyEnd = b.here()
		}
		d.end = b.here()
		b.pop(1)
	}
	t[ir.KindSwitch] = func(b *icBackend, n ir.Node) {
		s := n.(*ir.Switch)
		j := b.pushTarget(b.takeLabels(), false, true)

		b.Visit(s.Discriminant)
		b.pop(1)
		bodies := make([]*icLabel, len(s.Cases))
		fallback := j.brk
		for i, c := range s.Cases {
			bodies[i] = b.newLabel()
			if c.Test == nil {
				fallback = bodies[i]
				continue
			}
			at := b.slot()
			b.Visit(c.Test)
			b.pop(1)
			b.branch(at, c.Test.Type(), true, bodies[i])
		}
		b.jump(fallback)
		for i, c := range s.Cases {
			b.bind(bodies[i])
			for _, st := range c.Body {
				b.Visit(st)
			}
		}
		b.g.PopTarget()
		b.bind(j.brk)
	}
	return t
}

// ============================================================================
// 执行
// ============================================================================

type icSpec struct {
	entry  *Entry
	ics    []icFragment
	resume map[int]icResume
}

func (s *icSpec) Signature() types.Signature { return s.entry.Signature }

func (s *icSpec) Backend() BackendKind { return BackendInlineCache }

func (s *icSpec) Run(frame *runtime.CallFrame) bool {
	act := s.entry.Enter(frame)
	if act == nil {
		return false
	}
	defer act.Exit()
	base := act.Layout.StackBase()
	defer captureFailure(act, func(depth int) []runtime.Value {
		return append([]runtime.Value(nil), act.Values[base:base+depth]...)
	})

	f := &icFrame{ics: s.ics, act: act, v: act.Values, ret: runtime.UndefinedValue}
	if i := f.loop(0, len(s.ics)); i != icReturn {
		errors.Fail(errors.I0006, i)
	}
	frame.Return = f.ret
	return true
}

// loop 执行 [from, to) 内的片段，返回第一个落在区间外的下标
func (f *icFrame) loop(from, to int) int { return f.within(from, to, from, nil) }

// within 从 i 开始执行 [from, to) 内的片段；inner 是包住 i 的 try 语句，
// 由外向内，先在它们的保护下把 i 所在的区域执行完
func (f *icFrame) within(from, to, i int, inner []*icTry) int {
	if len(inner) > 0 {
		i = f.tryFrom(inner[0], i, inner[1:])
	}
	for i >= from && i < to {
		i = f.ics[i](f, i)
	}
	return i
}

// tryCatchFinally 执行 try 区域并返回下一个下标
func (f *icFrame) tryCatchFinally(d *icTry) int { return f.tryFrom(d, d.tryBegin, nil) }

// tryFrom 从 try 或 catch 部分内的 i 开始执行 try 语句
//
// 区域正常结束时继续执行 d.end；finally 的非正常退出覆盖之前的结果。
func (f *icFrame) tryFrom(d *icTry, i int, inner []*icTry) int {
	var next int
	var exc *runtime.JSException
	if d.inCatch(i) {
		next, exc = f.protected(d.catchBegin, d.catchEnd, i, inner)
	} else {
		next, exc = f.protected(d.tryBegin, d.tryEnd, i, inner)
		if exc != nil && d.catchBegin >= 0 {
			f.v[d.exceptionSlot] = exc.Value
			next, exc = f.protected(d.catchBegin, d.catchEnd, d.catchBegin, nil)
		}
	}
	if d.finallyBegin >= 0 {
		if fin := f.loop(d.finallyBegin, d.finallyEnd); fin != d.finallyEnd {
			return fin
		}
	}
	if exc != nil {
		panic(exc)
	}
	if next == d.tryEnd || (d.catchBegin >= 0 && next == d.catchEnd) {
		return d.end
	}
	return next
}

// protected 执行一段片段，只捕获客体异常
func (f *icFrame) protected(from, to, i int, inner []*icTry) (next int, exc *runtime.JSException) {
	defer runtime.CatchException(&exc)
	return f.within(from, to, i, inner), nil
}
