// Package codegen 把类型化的 IR 编译为特化代码
//
// Generator 是三个后端共用的驱动：克隆函数并展开调用点，计算类型，绑定
// 存储，然后按 ExecuteInitialize → Prolog → Body → Epilog → ExecuteFinalize
// 的顺序调用后端。后端按节点种类建立分派表，只覆盖自己需要的种类。
//
// 编译期间的内部错误以 panic 传播，由 Compile 统一恢复为返回值，
// 编译失败时不会留下部分安装的代码。
package codegen

import (
	"fmt"
	"time"

	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/typecalc"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 后端种类
// ============================================================================

// BackendKind 代码生成后端
type BackendKind uint8

const (
	BackendFull        BackendKind = iota // 线性指令 + 原生跳转
	BackendLight                          // 闭包树 + 虚拟化操作数栈
	BackendInlineCache                    // 片段分派表 + 内联缓存
)

var backendNames = [...]string{"full", "light", "ic"}

func (k BackendKind) String() string {
	if int(k) < len(backendNames) {
		return backendNames[k]
	}
	return fmt.Sprintf("BackendKind(%d)", k)
}

// Backends 全部后端
func Backends() []BackendKind {
	return []BackendKind{BackendFull, BackendLight, BackendInlineCache}
}

// ParseBackend 按名称查找后端
func ParseBackend(name string) (BackendKind, error) {
	for i, n := range backendNames {
		if n == name {
			return BackendKind(i), nil
		}
	}
	return BackendFull, fmt.Errorf("unknown backend %q (want full, light or ic)", name)
}

// ============================================================================
// 宿主与选项
// ============================================================================

// Options 一次编译的开关
type Options struct {
	EnableSpeculation      bool
	EnableGuardElimination bool
	EnableTypeInference    bool
	EnableDirectCalls      bool
	EnableParallelJit      bool

	// InlineTargets 非 nil 时按它展开调用点，不再读取剖析
	InlineTargets map[int]*runtime.Function

	// CountCalls 函数调用次数计数 JS/Execute/<函数>
	CountCalls bool
	// ProfileExecuteTime 总执行时间 JS/Execute
	ProfileExecuteTime bool
	// ProfileFunctionTime 按函数的执行时间 JS/Execute/<函数>
	ProfileFunctionTime bool
	// ProfileOpFrequency 运算频率 JS/Op/<运算>
	ProfileOpFrequency bool
	// ProfileOpTime 运算耗时 JS/Op/<运算>
	ProfileOpTime bool
}

// DefaultOptions 默认开关：类型推断与守卫消除打开，推测关闭
func DefaultOptions() Options {
	return Options{
		EnableGuardElimination: true,
		EnableTypeInference:    true,
	}
}

// Host 编译出的代码依赖的运行时服务，由引擎实现
type Host interface {
	Global() *runtime.Object
	Ops() *ops.Table
	// NewFunction 为内层函数创建闭包
	NewFunction(meta *ir.FunctionMetadata, env *runtime.Object) *runtime.Function
	// NodeProfile 函数的节点剖析，未开启剖析时为 nil
	NodeProfile(meta *ir.FunctionMetadata) *profile.FunctionProfiler
	Counters() *profile.Counters
	Timers() *profile.Timers
	Logger() *zap.Logger
}

// Specialization 一个签名下编译出的代码
type Specialization interface {
	// Run 签名不符时返回 false，此时没有任何副作用
	Run(frame *runtime.CallFrame) bool
	Signature() types.Signature
	Backend() BackendKind
}

// Backend 在生成器驱动下的各个阶段
type Backend interface {
	ExecuteInitialize(g *Generator)
	Prolog(g *Generator)
	Body(g *Generator)
	Epilog(g *Generator)
	ExecuteFinalize(g *Generator) (Specialization, error)
}

// ============================================================================
// 分派表
// ============================================================================

// Visitor 按节点种类分派的后端
type Visitor interface {
	Visit(n ir.Node)
}

// Table 按节点种类的访问函数表
type Table[B Visitor] [ir.KindCount]func(b B, n ir.Node)

// DefaultTable 默认表：语句块与空语句有通用实现，其余种类是未知节点
func DefaultTable[B Visitor]() Table[B] {
	var t Table[B]
	for k := range t {
		t[k] = func(_ B, n ir.Node) { errors.Fail(errors.I0005, n.Kind()) }
	}
	t[ir.KindEmpty] = func(B, ir.Node) {}
	t[ir.KindBlock] = func(b B, n ir.Node) {
		for _, s := range n.(*ir.Block).Statements {
			b.Visit(s)
		}
	}
	return t
}

// Dispatch 调用节点种类对应的访问函数
func (t *Table[B]) Dispatch(b B, n ir.Node) { (*t)[n.Kind()](b, n) }

// ============================================================================
// 生成器
// ============================================================================

// Generator 一次编译的共享状态
type Generator struct {
	Host    Host
	Meta    *ir.FunctionMetadata // 原函数，剖析与闭包创建使用
	Fn      *ir.FunctionMetadata // 类型化的副本
	Layout  *Layout
	Entry   *Entry
	Options Options
	Stack   StackModel

	Signature types.Signature
	Mask      types.Signature
	Profiler  *profile.FunctionProfiler
	Logger    *zap.Logger
	CompileID string

	targets *arraystack.Stack
}

// SignatureMask 函数参与签名特化的掩码
//
// 物化 arguments 或关闭类型推断时形参一律装箱，签名不影响代码，掩码为空。
func SignatureMask(meta *ir.FunctionMetadata, opts Options) types.Signature {
	if meta.UsesArguments() || !opts.EnableTypeInference {
		return types.EmptySignature
	}
	return types.Mask(meta.ParameterCount())
}

// NewGenerator 克隆函数，展开单态调用点，计算类型并绑定存储
func NewGenerator(host Host, meta *ir.FunctionMetadata, sig types.Signature, opts Options) *Generator {
	g := &Generator{
		Host:      host,
		Meta:      meta,
		Options:   opts,
		Mask:      SignatureMask(meta, opts),
		Profiler:  host.NodeProfile(meta),
		CompileID: uuid.New().String(),
		targets:   arraystack.New(),
	}
	g.Signature = sig.Masked(g.Mask)
	g.Logger = host.Logger().Named("codegen").With(
		zap.String("function", meta.FullName()),
		zap.String("compile_id", g.CompileID),
	)

	g.Fn = ir.CloneFunction(meta)
	inlined := g.inline()
	calc := typecalc.New(host.Ops())
	calc.Signature = g.Signature
	calc.Profiler = g.Profiler
	calc.EnableSpeculation = opts.EnableSpeculation
	calc.EnableGuardElimination = opts.EnableGuardElimination
	calc.EnableTypeInference = opts.EnableTypeInference
	calc.Calculate(g.Fn)

	g.Layout = Bind(g.Fn)
	g.Layout.Inlined = inlined
	return g
}

// Execute 按阶段驱动后端
func (g *Generator) Execute(b Backend) (Specialization, error) {
	b.ExecuteInitialize(g)
	b.Prolog(g)
	b.Body(g)
	b.Epilog(g)
	return b.ExecuteFinalize(g)
}

// Compile 为签名编译一个特化
func Compile(host Host, meta *ir.FunctionMetadata, sig types.Signature, kind BackendKind, opts Options) (spec Specialization, err error) {
	defer errors.Recover(&err)

	start := time.Now()
	g := NewGenerator(host, meta, sig, opts)
	g.Logger.Debug("compile begin",
		zap.Stringer("backend", kind),
		zap.Stringer("signature", g.Signature))

	var b Backend
	switch kind {
	case BackendFull:
		b = newFullBackend()
	case BackendLight:
		b = newLightBackend()
	case BackendInlineCache:
		b = newICBackend()
	default:
		return nil, fmt.Errorf("unknown backend %v", kind)
	}
	spec, err = g.Execute(b)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", meta.FullName())
	}
	g.Logger.Debug("compile end",
		zap.Stringer("backend", kind),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("stack", g.Layout.StackSize),
		zap.Int("temps", g.Layout.TempCount))
	return spec, nil
}

// ============================================================================
// 序言
// ============================================================================

// Entry 特化入口：签名检查、计数与计时、活动记录
type Entry struct {
	Signature types.Signature
	Mask      types.Signature
	Layout    *Layout

	global *runtime.Object
	calls  *atomic.Int64
	timers []*profile.Timer
}

// BuildEntry 生成共享序言
func (g *Generator) BuildEntry() *Entry {
	e := &Entry{
		Signature: g.Signature,
		Mask:      g.Mask,
		Layout:    g.Layout,
		global:    g.Host.Global(),
	}
	name := "JS/Execute/" + g.Meta.FullName()
	if g.Options.CountCalls {
		e.calls = g.Host.Counters().Get(name)
	}
	if g.Options.ProfileExecuteTime {
		e.timers = append(e.timers, g.Host.Timers().Get("JS/Execute"))
	}
	if g.Options.ProfileFunctionTime {
		e.timers = append(e.timers, g.Host.Timers().Get(name))
	}
	g.Entry = e
	return e
}

// Enter 签名检查在一切之前；不符时返回 nil，不产生副作用
func (e *Entry) Enter(frame *runtime.CallFrame) *Activation {
	if !e.Signature.Matches(frame.Signature, e.Mask) {
		return nil
	}
	if e.calls != nil {
		e.calls.Inc()
	}
	var stops []func()
	for _, t := range e.timers {
		stops = append(stops, t.Start())
	}
	a := NewActivation(e.Layout, frame, e.global)
	a.stops = stops
	return a
}

// ============================================================================
// 跳转目标
// ============================================================================

// Target 编译期的 break/continue 目标，Data 由后端使用
type Target struct {
	ir.JumpTarget
	Data interface{}
}

// PushTarget 进入循环、switch 或带标签的语句
func (g *Generator) PushTarget(t *Target) { g.targets.Push(t) }

// PopTarget 离开目标
func (g *Generator) PopTarget() { g.targets.Pop() }

// FindTarget 查找 break/continue 的目标，找不到时返回注入 throw 的消息
func (g *Generator) FindTarget(s ir.Stmt) (*Target, string) {
	values := g.targets.Values()
	list := make([]ir.JumpTarget, len(values))
	for i, v := range values {
		list[i] = v.(*Target).JumpTarget
	}
	i, msg := ir.FindJumpTarget(list, s)
	if i < 0 {
		return nil, msg
	}
	return values[i].(*Target), ""
}

// LabeledStatement 拆开标签链：循环与 switch 直接带上标签，
// 其余语句得到一个只承接 break 的目标
func LabeledStatement(l *ir.Label) (labels []string, body ir.Stmt, needsTarget bool) {
	labels, body = ir.LoopLabels(l)
	return labels, body, !ir.IsLabelTarget(body)
}
