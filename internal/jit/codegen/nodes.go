// nodes.go - 各后端共用的节点语义
//
// 每个 helper 在编译期完成能完成的绑定（静态重载、剖析槽位、直接调用目标），
// 返回只接收已求值操作数的运行期函数。后端只负责操作数从哪里来、结果放到哪里。

package codegen

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// UnaryFunc 一元节点的运行期实现
type UnaryFunc func(a runtime.Value) runtime.Value

// BinaryFunc 二元节点的运行期实现
type BinaryFunc func(a, b runtime.Value) runtime.Value

// IsStatic 运行时标签必然等于该静态类型
func IsStatic(t types.ValueType) bool { return t.IsData() && !t.IsObject() }

// opCounter 运算频率计数器，未开启时为 nil
func (g *Generator) opCounter(op ops.Operator) *atomic.Int64 {
	if !g.Options.ProfileOpFrequency {
		return nil
	}
	return g.Host.Counters().Get("JS/Op/" + op.String())
}

// opTimer 运算耗时计时器，未开启时为 nil
func (g *Generator) opTimer(op ops.Operator) *profile.Timer {
	if !g.Options.ProfileOpTime {
		return nil
	}
	return g.Host.Timers().Get("JS/Op/" + op.String())
}

// Unary 一元运算：操作数类型静态已知时在编译期绑定重载
func (g *Generator) Unary(n *ir.Unary) UnaryFunc {
	return g.UnaryOp(n.Op, n.Operand.Type(), n.Type())
}

// UnaryOp 按运算符与操作数类型生成一元运算
func (g *Generator) UnaryOp(op ops.Operator, t0, ret types.ValueType) UnaryFunc {
	table := g.Host.Ops()
	counter := g.opCounter(op)
	var f UnaryFunc
	if IsStatic(t0) {
		o := table.Lookup(op, t0, types.Undefined)
		f = func(a runtime.Value) runtime.Value {
			if counter != nil {
				counter.Inc()
			}
			return Coerce(o.Run1(a), ret)
		}
	} else {
		f = func(a runtime.Value) runtime.Value {
			if counter != nil {
				counter.Inc()
			}
			return Coerce(table.Lookup(op, a.Type, types.Undefined).Run1(a), ret)
		}
	}
	if timer := g.opTimer(op); timer != nil {
		inner := f
		f = func(a runtime.Value) runtime.Value {
			defer timer.Start()()
			return inner(a)
		}
	}
	return f
}

// Binary 二元运算：两个操作数类型都静态已知时在编译期绑定重载
func (g *Generator) Binary(n *ir.Binary) BinaryFunc {
	table := g.Host.Ops()
	op, ret := n.Op, n.Type()
	t0, t1 := n.Left.Type(), n.Right.Type()
	counter := g.opCounter(op)
	var f BinaryFunc
	if IsStatic(t0) && IsStatic(t1) {
		o := table.Lookup(op, t0, t1)
		f = func(a, b runtime.Value) runtime.Value {
			if counter != nil {
				counter.Inc()
			}
			return Coerce(o.Run2(a, b), ret)
		}
	} else {
		f = func(a, b runtime.Value) runtime.Value {
			if counter != nil {
				counter.Inc()
			}
			return Coerce(table.Lookup(op, a.Type, b.Type).Run2(a, b), ret)
		}
	}
	if timer := g.opTimer(op); timer != nil {
		inner := f
		f = func(a, b runtime.Value) runtime.Value {
			defer timer.Start()()
			return inner(a, b)
		}
	}
	return f
}

// Truthy 条件求值；布尔类型的条件直接读原始位
func Truthy(t types.ValueType) func(runtime.Value) bool {
	if t == types.Boolean {
		return runtime.Value.RawBool
	}
	return runtime.ToBoolean
}

// Guard 守卫：剖析模式下记录类型，需要检查时验证收窄类型。
// 既不剖析也不检查时返回 nil，后端直接省略该节点。depth 是守卫的值
// 在操作数栈中的深度。
func (g *Generator) Guard(n *ir.GuardedCast, depth int) UnaryFunc {
	gp := g.Profiler.GetOrAddGuardProfile(n)
	check := NeedsCheck(n)
	ret := n.Type()
	if gp == nil && !check && !ret.IsPrimitive() {
		return nil
	}
	return func(v runtime.Value) runtime.Value {
		if gp != nil {
			gp.UpdateNodeProfile(v.Type)
		}
		if check {
			Check(n, v, depth)
		}
		return Coerce(v, ret)
	}
}

// ============================================================================
// 属性与下标
// ============================================================================

// profileMap 记录属性访问的对象形状
func (g *Generator) profileMap(index int, name string) func(container runtime.Value, id runtime.FieldID) {
	mp := g.Profiler.GetOrAddMapProfile(index)
	if mp == nil {
		return nil
	}
	log := g.Logger
	return func(container runtime.Value, id runtime.FieldID) {
		m, pd := runtime.DescribeField(container, id)
		if mp.UpdateNodeProfile(m, pd) {
			log.Debug("property site became polymorphic",
				zap.String("property", name), zap.Int("site", index))
		}
	}
}

// ReadProperty container.name
func (g *Generator) ReadProperty(n *ir.ReadProperty) UnaryFunc {
	record := g.profileMap(n.ProfileIndex, n.Name)
	field, ret := n.Field, n.Type()
	return func(container runtime.Value) runtime.Value {
		if record != nil {
			record(container, field)
		}
		return Coerce(runtime.GetNamed(container, field), ret)
	}
}

// WriteProperty container.name = v，结果为写入的值
func (g *Generator) WriteProperty(n *ir.WriteProperty) BinaryFunc {
	record := g.profileMap(n.ProfileIndex, n.Name)
	field := n.Field
	return func(container, v runtime.Value) runtime.Value {
		if record != nil {
			record(container, field)
		}
		runtime.SetNamed(container, field, v)
		return v
	}
}

// profileContainer 下标访问只记录容器的形状
func (g *Generator) profileContainer(index int) func(container runtime.Value) {
	mp := g.Profiler.GetOrAddMapProfile(index)
	if mp == nil {
		return nil
	}
	return func(container runtime.Value) {
		m, _ := runtime.DescribeField(container, runtime.InvalidFieldID)
		mp.UpdateNodeProfile(m, nil)
	}
}

// ReadIndexer container[key]
func (g *Generator) ReadIndexer(n *ir.ReadIndexer) BinaryFunc {
	record := g.profileContainer(n.ProfileIndex)
	ret := n.Type()
	return func(container, key runtime.Value) runtime.Value {
		if record != nil {
			record(container)
		}
		return Coerce(runtime.GetKey(container, key), ret)
	}
}

// WriteIndexer container[key] = v，结果为写入的值
func (g *Generator) WriteIndexer(n *ir.WriteIndexer) func(container, key, v runtime.Value) runtime.Value {
	record := g.profileContainer(n.ProfileIndex)
	return func(container, key, v runtime.Value) runtime.Value {
		if record != nil {
			record(container)
		}
		runtime.SetKey(container, key, v)
		return v
	}
}

// ============================================================================
// 调用
// ============================================================================

// CallFunc 调用的运行期实现，args 由调用方新分配
type CallFunc func(callee, this runtime.Value, args []runtime.Value) runtime.Value

func calleeFunction(callee runtime.Value) *runtime.Function {
	fn, ok := callee.Data.(*runtime.Function)
	if !ok || callee.Type != types.Function {
		runtime.ThrowTypeError(errors.Message(errors.E0309, runtime.ToString(callee)))
	}
	return fn
}

// Call 函数调用：剖析模式记录目标；开启直接调用且调用点单态时，
// 编译期绑定目标，运行期只比较身份
func (g *Generator) Call(n *ir.Call) CallFunc {
	cp := g.Profiler.GetOrAddCallProfile(n.ProfileIndex)
	ret := n.Type()
	log := g.Logger
	site := n.ProfileIndex

	var direct *runtime.Function
	var hits *atomic.Int64
	if g.Options.EnableDirectCalls {
		if direct = g.Profiler.CallProfile(n.ProfileIndex).Target(); direct != nil {
			hits = g.Host.Counters().Get("JS/DirectCall")
			log.Debug("direct call bound", zap.String("target", direct.Name), zap.Int("site", site))
		}
	}

	return func(callee, this runtime.Value, args []runtime.Value) runtime.Value {
		fn := calleeFunction(callee)
		if cp != nil && cp.UpdateNodeProfile(fn) {
			log.Debug("call site became polymorphic", zap.Int("site", site))
		}
		if direct != nil && fn == direct {
			hits.Inc()
		}
		frame := runtime.NewCallFrame(fn, this, args)
		fn.Invoke(frame)
		return Coerce(frame.Return, ret)
	}
}

// New 构造调用
func (g *Generator) New(n *ir.New) func(callee runtime.Value, args []runtime.Value) runtime.Value {
	cp := g.Profiler.GetOrAddCallProfile(n.ProfileIndex)
	return func(callee runtime.Value, args []runtime.Value) runtime.Value {
		fn := calleeFunction(callee)
		if cp != nil {
			cp.UpdateNodeProfile(fn)
		}
		return fn.Construct(args...)
	}
}

// ============================================================================
// 字面量与闭包
// ============================================================================

// Closure 以活动记录的上下文为环境创建内层函数
func (g *Generator) Closure(n *ir.FunctionExpression) func(a *Activation) runtime.Value {
	host, meta := g.Host, n.Metadata
	return func(a *Activation) runtime.Value {
		return runtime.NewFunction(host.NewFunction(meta, a.Context))
	}
}

// ObjectLiteral 按字段顺序创建对象，values 与 Properties 一一对应
func ObjectLiteral(n *ir.ObjectLiteral) func(values []runtime.Value) runtime.Value {
	fields := make([]runtime.FieldID, len(n.Properties))
	for i, p := range n.Properties {
		fields[i] = p.Field
	}
	return func(values []runtime.Value) runtime.Value {
		o := runtime.NewPlainObject(nil, nil)
		for i, id := range fields {
			o.SetField(id, values[i])
		}
		return runtime.NewObject(o)
	}
}

// ArrayLiteral 拷贝元素创建数组
func ArrayLiteral(values []runtime.Value) runtime.Value {
	return runtime.NewArray(runtime.NewArrayObject(append([]runtime.Value(nil), values...)))
}

// Literal 常量按节点类型表示
func Literal(n *ir.Literal) runtime.Value { return Coerce(n.Value, n.Type()) }
