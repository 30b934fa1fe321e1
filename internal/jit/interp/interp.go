// Package interp 直接遍历 IR 的解释器
//
// 解释器执行未经类型计算的原函数：所有值按 DValueRef 处理，运算在运行时
// 按操作数标签查表。冷函数由它执行，同时为后续编译积累剖析数据。
//
// 语句执行返回 Completion，break/continue/return 不借助 panic。客体异常在
// 语句层面是 Throw 完成值；运行时辅助函数抛出的 *runtime.JSException
// 在 try 边界转换为 Throw，离开函数时重新抛出。
package interp

import (
	"github.com/emirpasic/gods/stacks/arraystack"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 完成值
// ============================================================================

// CompletionKind 语句的完成方式
type CompletionKind uint8

const (
	Normal CompletionKind = iota
	Break
	Continue
	Return
	Throw
)

var completionNames = [...]string{"normal", "break", "continue", "return", "throw"}

func (k CompletionKind) String() string {
	if int(k) < len(completionNames) {
		return completionNames[k]
	}
	return "invalid"
}

// Completion 语句执行的结果
//
// Break/Continue 带目标；Return/Throw 带值。
type Completion struct {
	Kind   CompletionKind
	Target *Target
	Value  runtime.Value
}

var normal = Completion{}

// IsAbrupt 非正常完成
func (c Completion) IsAbrupt() bool { return c.Kind != Normal }

// Target 执行期的 break/continue 目标
type Target struct {
	ir.JumpTarget
}

// ============================================================================
// 解释器
// ============================================================================

// Interpreter 解释器，多个 goroutine 可以共用
type Interpreter struct {
	host  codegen.Host
	log   *zap.Logger
	calls *atomic.Int64
}

// New 创建解释器
func New(host codegen.Host) *Interpreter {
	return &Interpreter{
		host:  host,
		log:   host.Logger().Named("interp"),
		calls: host.Counters().Get("JS/Interpret"),
	}
}

// Invoke 实现 runtime.Invoker，按调用帧执行函数
func (in *Interpreter) Invoke(frame *runtime.CallFrame) {
	meta, ok := frame.Function.Metadata.(*ir.FunctionMetadata)
	if !ok {
		runtime.ThrowTypeError(frame.Function.Name + " has no body")
	}
	in.Run(meta, frame)
}

// Run 执行函数体，结果写入 frame.Return
//
// 存储在每次执行时由符号种类重新决定。未捕获的客体异常以
// *runtime.JSException 抛出。
func (in *Interpreter) Run(meta *ir.FunctionMetadata, frame *runtime.CallFrame) {
	in.calls.Inc()
	layout := codegen.Bind(meta)
	st := &state{
		in:       in,
		meta:     meta,
		layout:   layout,
		act:      codegen.NewActivation(layout, frame, in.host.Global()),
		profiler: in.host.NodeProfile(meta),
		targets:  arraystack.New(),
	}
	defer st.act.Exit()

	frame.Return = runtime.UndefinedValue
	if meta.Body == nil {
		return
	}
	c := st.exec(meta.Body)
	switch c.Kind {
	case Return:
		frame.Return = c.Value
	case Throw:
		runtime.Throw(c.Value)
	}
}

// ============================================================================
// 执行状态
// ============================================================================

// state 一次调用的解释状态
type state struct {
	in       *Interpreter
	meta     *ir.FunctionMetadata
	layout   *codegen.Layout
	act      *codegen.Activation
	profiler *profile.FunctionProfiler
	targets  *arraystack.Stack
	temps    temps
	labels   []string
}

func (st *state) load(sym *ir.Symbol) runtime.Value {
	return st.act.Load(st.layout.Lookup(sym))
}

func (st *state) store(sym *ir.Symbol, v runtime.Value) {
	st.act.Store(st.layout.Lookup(sym), v)
}

// pushTarget 进入循环、switch 或带标签的语句
func (st *state) pushTarget(t *Target) { st.targets.Push(t) }

func (st *state) popTarget() { st.targets.Pop() }

// findTarget 与代码生成器使用同一查找规则
func (st *state) findTarget(s ir.Stmt) (*Target, string) {
	values := st.targets.Values()
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

func (st *state) takeLabels() []string {
	l := st.labels
	st.labels = nil
	return l
}
