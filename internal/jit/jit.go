// Package jit 执行引擎
//
// Engine 是显式的运行时上下文：配置、日志、计数器与计时器、运算表、全局对象、
// 热点检测和函数代码缓存都挂在它上面。函数调用按以下顺序分派：
//  1. 已安装且接受调用帧的特化
//  2. 冷函数交给解释器
//  3. 按掩码后的签名编译特化，安装并执行
//
// 编译失败时记录日志并回落到解释器；解释器关闭时错误由 Call 返回。
// 推测失败由去优化蹦床处理，见 deopt.go。
package jit

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/config"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/interp"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Engine 执行引擎，构造后只读共享
type Engine struct {
	cfg      *config.Config
	log      *zap.Logger
	table    *ops.Table
	counters *profile.Counters
	timers   *profile.Timers
	global   *runtime.Object
	profiler *profile.Profiler
	code     *FunctionTable
	opts     codegen.Options
	backend  codegen.BackendKind

	auto   *tier
	forced map[codegen.BackendKind]*tier

	compileTime  atomic.Duration
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	interpreted  atomic.Int64
	compileFails atomic.Int64
}

// Option 引擎构造选项
type Option func(*engineOptions)

type engineOptions struct {
	out io.Writer
}

// WithOutput 设置全局 print 的输出
func WithOutput(w io.Writer) Option {
	return func(o *engineOptions) { o.out = w }
}

// NewEngine 创建执行引擎，cfg 为 nil 时使用默认配置
func NewEngine(cfg *config.Config, logger *zap.Logger, options ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	eo := engineOptions{out: os.Stdout}
	for _, o := range options {
		o(&eo)
	}

	policy := profile.Policy{
		MaxMissCount:     cfg.Profile.MaxMissCount,
		HotnessThreshold: cfg.Profile.HotnessThreshold,
		MaxProfileSlots:  cfg.Profile.MaxProfileSlots,
	}
	e := &Engine{
		cfg:      cfg,
		log:      logger.Named("jit"),
		table:    ops.NewTable(),
		counters: profile.NewCounters(),
		timers:   profile.NewTimers(),
		global:   runtime.NewGlobalObject(eo.out),
		profiler: profile.NewProfiler(cfg.JIT.HotCallThreshold, policy),
		code:     NewFunctionTable(),
		opts:     optionsFromConfig(cfg),
		backend:  backendFromConfig(cfg),
	}
	e.profiler.SetEnabled(cfg.Profile.EnableProfiling)
	e.profiler.SetOnFunctionHot(func(fp *profile.FunctionProfile) {
		e.log.Debug("function became hot",
			zap.String("function", fp.Meta.FullName()),
			zap.Int64("calls", fp.CallCount.Load()))
	})

	e.auto = newTier(e, e.backend, false)
	e.forced = make(map[codegen.BackendKind]*tier)
	for _, kind := range codegen.Backends() {
		e.forced[kind] = newTier(e, kind, true)
	}

	e.log.Debug("engine created",
		zap.Stringer("backend", e.backend),
		zap.Bool("interpreter", cfg.JIT.EnableInterpreter),
		zap.Bool("jit", cfg.JIT.EnableJit),
		zap.Bool("speculation", e.opts.EnableSpeculation))
	return e
}

// optionsFromConfig 推测依赖去优化与剖析数据，三者都打开才生效
func optionsFromConfig(cfg *config.Config) codegen.Options {
	j, p := cfg.JIT, cfg.Profile
	return codegen.Options{
		EnableSpeculation:      j.EnableSpeculativeJit && j.EnableDeoptimization && p.EnableProfiling,
		EnableGuardElimination: j.EnableGuardElimination,
		EnableTypeInference:    j.EnableTypeInference,
		EnableDirectCalls:      j.EnableDirectCalls && p.EnableProfiling,
		EnableParallelJit:      j.EnableParallelJit,
		CountCalls:             p.CountCalls,
		ProfileExecuteTime:     p.ProfileExecuteTime,
		ProfileFunctionTime:    p.ProfileFunctionTime,
		ProfileOpFrequency:     p.ProfileOpFrequency,
		ProfileOpTime:          p.ProfileOpTime,
	}
}

// backendFromConfig 内联缓存优先于轻量后端，都未打开时使用完整后端
func backendFromConfig(cfg *config.Config) codegen.BackendKind {
	switch {
	case cfg.JIT.EnableInlineCache:
		return codegen.BackendInlineCache
	case cfg.JIT.EnableLightCompiler:
		return codegen.BackendLight
	default:
		return codegen.BackendFull
	}
}

// ============================================================================
// 运行时服务
// ============================================================================

// Config 引擎使用的配置
func (e *Engine) Config() *config.Config { return e.cfg }

// Global 全局对象
func (e *Engine) Global() *runtime.Object { return e.global }

// Ops 运算表
func (e *Engine) Ops() *ops.Table { return e.table }

// Counters 计数器
func (e *Engine) Counters() *profile.Counters { return e.counters }

// Timers 计时器
func (e *Engine) Timers() *profile.Timers { return e.timers }

// Logger 日志器
func (e *Engine) Logger() *zap.Logger { return e.log }

// Profiler 热点检测器
func (e *Engine) Profiler() *profile.Profiler { return e.profiler }

// Functions 函数代码缓存
func (e *Engine) Functions() *FunctionTable { return e.code }

// Backend 自动分派使用的后端
func (e *Engine) Backend() codegen.BackendKind { return e.backend }

// NodeProfile 函数的节点剖析，剖析关闭时为 nil
func (e *Engine) NodeProfile(meta *ir.FunctionMetadata) *profile.FunctionProfiler {
	return e.profiler.Nodes(meta)
}

// ============================================================================
// 调用
// ============================================================================

// NewFunction 创建顶层函数，调用经由引擎分派
func (e *Engine) NewFunction(meta *ir.FunctionMetadata) *runtime.Function {
	return e.auto.NewFunction(meta, nil)
}

// Invoke 实现 runtime.Invoker
func (e *Engine) Invoke(frame *runtime.CallFrame) { e.auto.Invoke(frame) }

// Call 调用函数
//
// 未捕获的客体异常以 *runtime.JSException 返回；解释器关闭时的编译错误
// 原样返回。
func (e *Engine) Call(fn *runtime.Function, this runtime.Value, args ...runtime.Value) (runtime.Value, error) {
	return e.call(e.auto, fn, this, args)
}

// CallWith 强制使用指定后端，不经过解释器，内层函数同样使用该后端
func (e *Engine) CallWith(kind codegen.BackendKind, fn *runtime.Function, this runtime.Value, args ...runtime.Value) (runtime.Value, error) {
	t, ok := e.forced[kind]
	if !ok {
		return runtime.UndefinedValue, fmt.Errorf("unknown backend %v", kind)
	}
	return e.call(t, fn, this, args)
}

func (e *Engine) call(t *tier, fn *runtime.Function, this runtime.Value, args []runtime.Value) (result runtime.Value, err error) {
	defer catch(&err)
	frame := runtime.NewCallFrame(fn, this, args)
	if _, ok := fn.Metadata.(*ir.FunctionMetadata); ok {
		t.Invoke(frame)
	} else {
		fn.Invoke(frame)
	}
	return frame.Return, nil
}

// compileFailure 解释器关闭时编译错误沿调用栈传出，客体 catch 不会捕获它
type compileFailure struct {
	err error
}

func catch(err *error) {
	switch r := recover().(type) {
	case nil:
	case *runtime.JSException:
		*err = r
	case *compileFailure:
		*err = r.err
	default:
		panic(r)
	}
}

// ============================================================================
// 分派层
// ============================================================================

// tier 一种分派方式：自动分层，或强制某个后端
//
// 编译时 tier 作为 codegen.Host，内层函数的调用经由同一个 tier 分派。
type tier struct {
	*Engine
	kind   codegen.BackendKind
	forced bool
	interp *interp.Interpreter
}

func newTier(e *Engine, kind codegen.BackendKind, forced bool) *tier {
	t := &tier{Engine: e, kind: kind, forced: forced}
	t.interp = interp.New(t)
	return t
}

// NewFunction 实现 codegen.Host
func (t *tier) NewFunction(meta *ir.FunctionMetadata, env *runtime.Object) *runtime.Function {
	fn := &runtime.Function{
		Name:     meta.Name,
		Length:   meta.ParameterCount(),
		Metadata: meta,
		Env:      env,
		Invoker:  t,
	}
	fn.Map = runtime.EmptyMap
	return fn
}

// Invoke 实现 runtime.Invoker
func (t *tier) Invoke(frame *runtime.CallFrame) {
	meta, ok := frame.Function.Metadata.(*ir.FunctionMetadata)
	if !ok {
		runtime.ThrowTypeError(frame.Function.Name + " has no body")
	}
	frame.Signature = runtime.SignatureOf(frame.Args, t.cfg.JIT.MaxSignatureArgs)
	t.profiler.RecordCall(meta)

	entry := t.code.Entry(meta, t.kind)
	for _, spec := range entry.Specializations() {
		if t.run(entry, spec, meta, frame) {
			t.cacheHits.Inc()
			return
		}
	}
	t.cacheMisses.Inc()

	if !t.forced && t.cfg.JIT.EnableInterpreter && !(t.cfg.JIT.EnableJit && t.profiler.ShouldCompile(meta)) {
		t.interpret(meta, frame)
		return
	}

	spec, err := t.compile(entry, meta, frame, t.opts)
	if err != nil {
		if !t.forced && t.cfg.JIT.EnableInterpreter {
			t.interpret(meta, frame)
			return
		}
		panic(&compileFailure{err: err})
	}
	if !t.run(entry, spec, meta, frame) {
		t.log.Error("specialization rejected its own signature",
			zap.String("function", meta.FullName()),
			zap.Stringer("signature", spec.Signature()))
		t.interpret(meta, frame)
	}
}

func (t *tier) interpret(meta *ir.FunctionMetadata, frame *runtime.CallFrame) {
	t.interpreted.Inc()
	t.interp.Run(meta, frame)
}

// compile 为调用帧的签名编译并安装特化
//
// 同一条目的编译串行进行；等待期间其他调用可能已经安装了相同签名的特化。
func (t *tier) compile(entry *FunctionEntry, meta *ir.FunctionMetadata, frame *runtime.CallFrame, opts codegen.Options) (codegen.Specialization, error) {
	entry.compile.Lock()
	defer entry.compile.Unlock()

	sig := frame.Signature.Masked(codegen.SignatureMask(meta, opts))
	if spec := entry.Find(sig); spec != nil {
		return spec, nil
	}

	entry.State.Store(int32(FuncStateCompiling))
	begin := time.Now()
	if t.cfg.Profile.ProfileJitTime {
		defer t.timers.Get("JS/Jit").Start()()
	}
	spec, err := codegen.Compile(t, meta, frame.Signature, t.kind, opts)
	t.compileTime.Add(time.Since(begin))
	if err != nil {
		entry.State.Store(int32(FuncStateFailed))
		t.compileFails.Inc()
		t.counters.Get("JS/CompileFail").Inc()
		t.profiler.MarkCompileFailed(meta)
		t.log.Error("compile failed",
			zap.String("function", meta.FullName()),
			zap.Stringer("backend", t.kind),
			zap.Error(err))
		return nil, err
	}

	entry.Install(spec)
	t.code.totalCompiled.Inc()
	t.counters.Get("JS/Compile").Inc()
	t.profiler.MarkCompiled(meta)
	t.log.Debug("specialization installed",
		zap.String("function", meta.FullName()),
		zap.Stringer("backend", t.kind),
		zap.Stringer("signature", spec.Signature()),
		zap.Duration("elapsed", time.Since(begin)))
	return spec, nil
}
