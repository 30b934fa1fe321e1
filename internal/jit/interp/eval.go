package interp

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 表达式
// ============================================================================

func (st *state) truthy(e ir.Expr) bool { return runtime.ToBoolean(st.eval(e)) }

func (st *state) evalAll(list []ir.Expr) []runtime.Value {
	out := make([]runtime.Value, len(list))
	for i, e := range list {
		out[i] = st.eval(e)
	}
	return out
}

func (st *state) eval(e ir.Expr) runtime.Value {
	switch e := e.(type) {
	case *ir.Literal:
		return e.Value
	case *ir.This:
		return st.act.This()
	case *ir.ObjectLiteral:
		values := make([]runtime.Value, len(e.Properties))
		for i, p := range e.Properties {
			values[i] = st.eval(p.Value)
		}
		return codegen.ObjectLiteral(e)(values)
	case *ir.ArrayLiteral:
		return codegen.ArrayLiteral(st.evalAll(e.Elements))
	case *ir.FunctionExpression:
		return runtime.NewFunction(st.in.host.NewFunction(e.Metadata, st.act.Context))

	case *ir.ReadIdentifier:
		return st.load(e.Symbol)
	case *ir.WriteIdentifier:
		v := st.eval(e.Value)
		st.store(e.Symbol, v)
		return v
	case *ir.ReadIndexer:
		c := st.eval(e.Container)
		k := st.eval(e.Index)
		st.recordContainer(e.ProfileIndex, c)
		return runtime.GetKey(c, k)
	case *ir.WriteIndexer:
		c := st.eval(e.Container)
		k := st.eval(e.Index)
		v := st.eval(e.Value)
		st.recordContainer(e.ProfileIndex, c)
		runtime.SetKey(c, k, v)
		return v
	case *ir.ReadProperty:
		c := st.eval(e.Container)
		st.recordField(e.ProfileIndex, e.Name, c, e.Field)
		return runtime.GetNamed(c, e.Field)
	case *ir.WriteProperty:
		c := st.eval(e.Container)
		v := st.eval(e.Value)
		st.recordField(e.ProfileIndex, e.Name, c, e.Field)
		runtime.SetNamed(c, e.Field, v)
		return v

	case *ir.Unary:
		a := st.eval(e.Operand)
		return st.in.host.Ops().Lookup(e.Op, a.Type, types.Undefined).Run1(a)
	case *ir.Binary:
		a := st.eval(e.Left)
		b := st.eval(e.Right)
		return st.in.host.Ops().Lookup(e.Op, a.Type, b.Type).Run2(a, b)
	case *ir.Ternary:
		if st.truthy(e.Cond) {
			return st.eval(e.Then)
		}
		return st.eval(e.Else)
	case *ir.Comma:
		v := runtime.UndefinedValue
		for _, x := range e.Exprs {
			v = st.eval(x)
		}
		return v

	case *ir.Call:
		return st.call(e)
	case *ir.New:
		callee := st.eval(e.Callee)
		args := st.evalAll(e.Args)
		fn := st.function(callee)
		if cp := st.profiler.GetOrAddCallProfile(e.ProfileIndex); cp != nil {
			cp.UpdateNodeProfile(fn)
		}
		return fn.Construct(args...)

	case *ir.WriteTemporary:
		if v, ok := st.temps.Lookup(e); ok {
			return v
		}
		v := st.eval(e.Value)
		st.temps.Add(e, v)
		return v
	case *ir.GuardedCast:
		v := st.eval(e.Value)
		if gp := st.profiler.GetOrAddGuardProfile(e); gp != nil {
			gp.UpdateNodeProfile(v.Type)
		}
		return v
	}
	errors.Fail(errors.I0005, e.Kind())
	return runtime.UndefinedValue
}

// ============================================================================
// 调用
// ============================================================================

func (st *state) function(callee runtime.Value) *runtime.Function {
	fn, ok := callee.Data.(*runtime.Function)
	if !ok || callee.Type != types.Function {
		runtime.ThrowTypeError(errors.Message(errors.E0309, runtime.ToString(callee)))
	}
	return fn
}

func (st *state) call(e *ir.Call) runtime.Value {
	callee := st.eval(e.Callee)
	this := runtime.UndefinedValue
	if e.This != nil {
		this = st.eval(e.This)
	}
	args := st.evalAll(e.Args)

	fn := st.function(callee)
	if cp := st.profiler.GetOrAddCallProfile(e.ProfileIndex); cp != nil && cp.UpdateNodeProfile(fn) {
		st.in.log.Debug("call site became polymorphic",
			zap.String("function", st.meta.FullName()), zap.Int("site", e.ProfileIndex))
	}
	frame := runtime.NewCallFrame(fn, this, args)
	fn.Invoke(frame)
	return frame.Return
}

// ============================================================================
// 剖析
// ============================================================================

func (st *state) recordField(index int, name string, container runtime.Value, id runtime.FieldID) {
	mp := st.profiler.GetOrAddMapProfile(index)
	if mp == nil {
		return
	}
	m, pd := runtime.DescribeField(container, id)
	if mp.UpdateNodeProfile(m, pd) {
		st.in.log.Debug("property site became polymorphic",
			zap.String("function", st.meta.FullName()),
			zap.String("property", name), zap.Int("site", index))
	}
}

func (st *state) recordContainer(index int, container runtime.Value) {
	if mp := st.profiler.GetOrAddMapProfile(index); mp != nil {
		m, _ := runtime.DescribeField(container, runtime.InvalidFieldID)
		mp.UpdateNodeProfile(m, nil)
	}
}
