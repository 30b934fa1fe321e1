package interp

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 语句
// ============================================================================

func (st *state) exec(s ir.Stmt) Completion {
	switch s := s.(type) {
	case *ir.Block:
		return st.block(s.Statements)
	case *ir.ExpressionStatement:
		st.eval(s.Expr)
		return normal
	case *ir.Empty:
		return normal
	case *ir.If:
		if st.truthy(s.Cond) {
			return st.exec(s.Then)
		}
		if s.Else != nil {
			return st.exec(s.Else)
		}
		return normal
	case *ir.While:
		return st.loop(nil, s.Cond, nil, s.Body, false)
	case *ir.DoWhile:
		return st.loop(nil, s.Cond, nil, s.Body, true)
	case *ir.For:
		return st.loop(s.Init, s.Cond, s.Update, s.Body, false)
	case *ir.Label:
		return st.label(s)
	case *ir.Break:
		target, msg := st.findTarget(s)
		if target == nil {
			return Completion{Kind: Throw, Value: runtime.NewString(msg)}
		}
		return Completion{Kind: Break, Target: target}
	case *ir.Continue:
		target, msg := st.findTarget(s)
		if target == nil {
			return Completion{Kind: Throw, Value: runtime.NewString(msg)}
		}
		return Completion{Kind: Continue, Target: target}
	case *ir.Return:
		if s.Value == nil {
			return Completion{Kind: Return, Value: runtime.UndefinedValue}
		}
		return Completion{Kind: Return, Value: st.eval(s.Value)}
	case *ir.Throw:
		return Completion{Kind: Throw, Value: st.eval(s.Value)}
	case *ir.Try:
		return st.try(s)
	case *ir.Switch:
		return st.switchStmt(s)
	}
	errors.Fail(errors.I0005, s.Kind())
	return normal
}

// block 逐条执行，每条语句之后释放它登记的临时值
func (st *state) block(stmts []ir.Stmt) Completion {
	for _, s := range stmts {
		cp := st.temps.Checkpoint()
		c := st.exec(s)
		st.temps.ReleaseAfter(cp)
		if c.IsAbrupt() {
			return c
		}
	}
	return normal
}

// loop while/do-while/for 的共同实现，每次迭代释放临时值
func (st *state) loop(init ir.Stmt, cond, update ir.Expr, body ir.Stmt, bodyFirst bool) Completion {
	self := &Target{JumpTarget: ir.JumpTarget{Labels: st.takeLabels(), IsLoop: true}}
	if init != nil {
		if c := st.exec(init); c.IsAbrupt() {
			return c
		}
	}
	st.pushTarget(self)
	defer st.popTarget()

	cp := st.temps.Checkpoint()
	for first := true; ; first = false {
		st.temps.ReleaseAfter(cp)
		if !(first && bodyFirst) && cond != nil && !st.truthy(cond) {
			return normal
		}
		c := st.exec(body)
		switch {
		case c.Kind == Break && c.Target == self:
			return normal
		case c.Kind == Continue && c.Target == self:
		case c.IsAbrupt():
			return c
		}
		if update != nil {
			st.eval(update)
		}
	}
}

// label 循环与 switch 直接带上标签，其余语句只承接 break
func (st *state) label(l *ir.Label) Completion {
	labels, body, needsTarget := codegen.LabeledStatement(l)
	labels = append(st.takeLabels(), labels...)
	if !needsTarget {
		st.labels = labels
		return st.exec(body)
	}
	self := &Target{JumpTarget: ir.JumpTarget{Labels: labels}}
	st.pushTarget(self)
	c := st.exec(body)
	st.popTarget()
	if c.Kind == Break && c.Target == self {
		return normal
	}
	return c
}

// protected 执行语句，运行时抛出的客体异常转为 Throw 完成值
func (st *state) protected(s ir.Stmt) (c Completion) {
	var exc *runtime.JSException
	func() {
		defer runtime.CatchException(&exc)
		c = st.exec(s)
	}()
	if exc != nil {
		return Completion{Kind: Throw, Value: exc.Value}
	}
	return c
}

// try finally 在所有退出路径上执行，它自身的非正常完成覆盖之前的结果
func (st *state) try(s *ir.Try) Completion {
	cp := st.temps.Checkpoint()
	depth := st.targets.Size()

	c := st.protected(s.Body)
	if c.Kind == Throw && s.Catch != nil {
		st.unwind(cp, depth)
		st.store(s.CatchSymbol, c.Value)
		c = st.protected(s.Catch)
	}
	if s.Finally != nil {
		st.unwind(cp, depth)
		if fc := st.exec(s.Finally); fc.IsAbrupt() {
			return fc
		}
	}
	return c
}

// unwind 异常离开嵌套语句后恢复目标栈与临时值
func (st *state) unwind(cp, depth int) {
	st.temps.ReleaseAfter(cp)
	for st.targets.Size() > depth {
		st.targets.Pop()
	}
	st.labels = nil
}

// switchStmt 判别值求值一次，从第一个相等的分支（或 default）开始贯穿执行
func (st *state) switchStmt(s *ir.Switch) Completion {
	self := &Target{JumpTarget: ir.JumpTarget{Labels: st.takeLabels(), IsSwitch: true}}
	st.pushTarget(self)
	defer st.popTarget()

	st.eval(s.Discriminant)
	start := -1
	for i, c := range s.Cases {
		if c.Test == nil {
			continue
		}
		if st.truthy(c.Test) {
			start = i
			break
		}
	}
	if start < 0 {
		for i, c := range s.Cases {
			if c.Test == nil {
				start = i
			}
		}
	}
	if start < 0 {
		return normal
	}

	for _, c := range s.Cases[start:] {
		r := st.block(c.Body)
		if r.Kind == Break && r.Target == self {
			return normal
		}
		if r.IsAbrupt() {
			return r
		}
	}
	return normal
}
