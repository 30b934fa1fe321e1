package codegen

import (
	"fmt"
	"io"
	"testing"

	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/jit/corpus"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// testHost 每次调用都重新编译的最小宿主
type testHost struct {
	global   *runtime.Object
	table    *ops.Table
	counters *profile.Counters
	timers   *profile.Timers
	profiler *profile.Profiler
	kind     BackendKind
	opts     Options
}

func newTestHost(kind BackendKind) *testHost {
	return &testHost{
		global:   runtime.NewGlobalObject(io.Discard),
		table:    ops.NewTable(),
		counters: profile.NewCounters(),
		timers:   profile.NewTimers(),
		kind:     kind,
		opts:     DefaultOptions(),
	}
}

func (h *testHost) Global() *runtime.Object     { return h.global }
func (h *testHost) Ops() *ops.Table             { return h.table }
func (h *testHost) Counters() *profile.Counters { return h.counters }
func (h *testHost) Timers() *profile.Timers     { return h.timers }
func (h *testHost) Logger() *zap.Logger         { return zap.NewNop() }

func (h *testHost) NodeProfile(meta *ir.FunctionMetadata) *profile.FunctionProfiler {
	return h.profiler.Nodes(meta)
}

func (h *testHost) NewFunction(meta *ir.FunctionMetadata, env *runtime.Object) *runtime.Function {
	fn := &runtime.Function{
		Name:     meta.Name,
		Length:   meta.ParameterCount(),
		Metadata: meta,
		Env:      env,
		Invoker:  h,
	}
	fn.Map = runtime.EmptyMap
	return fn
}

func (h *testHost) Invoke(frame *runtime.CallFrame) {
	meta := frame.Function.Metadata.(*ir.FunctionMetadata)
	spec, err := Compile(h, meta, frame.Signature, h.kind, h.opts)
	if err != nil {
		panic(err)
	}
	if !spec.Run(frame) {
		panic(fmt.Sprintf("specialization for %s rejected its own signature", meta.Name))
	}
}

func (h *testHost) call(meta *ir.FunctionMetadata, args ...runtime.Value) runtime.Value {
	return h.NewFunction(meta, nil).Call(runtime.UndefinedValue, args...)
}

func TestParseBackend(t *testing.T) {
	for _, kind := range Backends() {
		got, err := ParseBackend(kind.String())
		if err != nil {
			t.Fatalf("Expected %s to parse, got %v", kind, err)
		}
		if got != kind {
			t.Errorf("Expected %s, got %s", kind, got)
		}
	}
	if _, err := ParseBackend("native"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestCorpus(t *testing.T) {
	variants := []struct {
		name      string
		configure func(o *Options)
	}{
		{"default", func(o *Options) {}},
		{"no inference", func(o *Options) { o.EnableTypeInference = false }},
		{"no guard elimination", func(o *Options) { o.EnableGuardElimination = false }},
		{"parallel", func(o *Options) { o.EnableParallelJit = true }},
	}

	for _, kind := range Backends() {
		for _, v := range variants {
			for _, p := range corpus.All() {
				t.Run(fmt.Sprintf("%s/%s/%s", kind, v.name, p.Name), func(t *testing.T) {
					h := newTestHost(kind)
					v.configure(&h.opts)
					got := h.call(p.Build(), p.Args...)
					if !p.Matches(got) {
						t.Errorf("Expected %v, got %v (%s)", p.Expected, got, got.Type)
					}
				})
			}
		}
	}
}

func TestCorpusWithProfiling(t *testing.T) {
	for _, kind := range Backends() {
		for _, p := range corpus.All() {
			t.Run(fmt.Sprintf("%s/%s", kind, p.Name), func(t *testing.T) {
				h := newTestHost(kind)
				h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
				meta := p.Build()

				for i := 0; i < 3; i++ {
					if got := h.call(meta, p.Args...); !p.Matches(got) {
						t.Fatalf("Expected %v while profiling, got %v", p.Expected, got)
					}
				}

				h.opts.EnableSpeculation = true
				h.opts.EnableDirectCalls = true
				if got := h.call(meta, p.Args...); !p.Matches(got) {
					t.Errorf("Expected %v with speculation, got %v", p.Expected, got)
				}
			})
		}
	}
}

func TestSignatureMismatch(t *testing.T) {
	f := ir.NewProgram().Function("id", "x")
	meta := f.Body(f.Return(f.Read("x")))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			fn := h.NewFunction(meta, nil)
			sig := types.NewSignature(types.Int32)
			spec, err := Compile(h, meta, sig, kind, h.opts)
			if err != nil {
				t.Fatalf("Expected compile to succeed, got %v", err)
			}
			if spec.Backend() != kind {
				t.Errorf("Expected backend %s, got %s", kind, spec.Backend())
			}

			frame := runtime.NewCallFrame(fn, runtime.UndefinedValue, []runtime.Value{runtime.NewString("s")})
			if spec.Run(frame) {
				t.Fatal("Expected String argument to be rejected")
			}
			if !frame.Return.IsUndefined() {
				t.Errorf("Expected no side effects on rejection, got %v", frame.Return)
			}

			frame = runtime.NewCallFrame(fn, runtime.UndefinedValue, []runtime.Value{runtime.NewInt32(9)})
			if !spec.Run(frame) {
				t.Fatal("Expected Int32 argument to be accepted")
			}
			if frame.Return.Type != types.Int32 || frame.Return.RawInt() != 9 {
				t.Errorf("Expected 9, got %v", frame.Return)
			}
		})
	}
}

func TestSignatureMaskWithArguments(t *testing.T) {
	f := ir.NewProgram().Function("f", "x")
	meta := f.Body(f.Return(f.Prop(f.Read("arguments"), "length")))
	if m := SignatureMask(meta, DefaultOptions()); m != types.EmptySignature {
		t.Errorf("Expected empty mask for a function using arguments, got %v", m)
	}

	g := ir.NewProgram().Function("g", "x", "y")
	meta = g.Body(g.Return(g.Read("x")))
	if m := SignatureMask(meta, DefaultOptions()); m == types.EmptySignature {
		t.Error("Expected a parameter mask")
	}
	opts := DefaultOptions()
	opts.EnableTypeInference = false
	if m := SignatureMask(meta, opts); m != types.EmptySignature {
		t.Errorf("Expected empty mask without inference, got %v", m)
	}
}

func TestUnknownBackend(t *testing.T) {
	f := ir.NewProgram().Function("f")
	meta := f.Body()
	h := newTestHost(BackendFull)
	if _, err := Compile(h, meta, types.EmptySignature, BackendKind(9), h.opts); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

// fieldReader function read(o) { var v = o.v; return v; }
func fieldReader() *ir.FunctionMetadata {
	f := ir.NewProgram().Function("read", "o")
	return f.Body(
		f.Var("v", f.Prop(f.Read("o"), "v")),
		f.Return(f.Read("v")),
	)
}

func withField(v runtime.Value) runtime.Value {
	o := runtime.NewPlainObject(nil, nil)
	o.Set("v", v)
	return runtime.NewObject(o)
}

func TestSpeculationFailure(t *testing.T) {
	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			meta := fieldReader()
			for i := 0; i < 4; i++ {
				h.call(meta, withField(runtime.NewInt32(int32(i))))
			}

			h.opts.EnableSpeculation = true
			if got := h.call(meta, withField(runtime.NewInt32(5))); got.Type != types.Int32 || got.RawInt() != 5 {
				t.Fatalf("Expected speculated Int32 5, got %v", got)
			}

			var failure *SpeculationFailure
			func() {
				defer CatchSpeculation(&failure)
				h.call(meta, withField(runtime.NewString("s")))
			}()
			if failure == nil {
				t.Fatal("Expected speculation failure")
			}
			if failure.Expected != types.Int32 || failure.Observed != types.String {
				t.Errorf("Expected Int32/String, got %s/%s", failure.Expected, failure.Observed)
			}
		})
	}
}

func TestSpeculationSkipsGuestCatch(t *testing.T) {
	f := ir.NewProgram().Function("guarded", "o")
	meta := f.Body(
		f.Try(
			f.Block(f.Var("v", f.Prop(f.Read("o"), "v")), f.Return(f.Read("v"))),
			"e", func() *ir.Block { return f.Block(f.Return(f.String("caught"))) },
			nil,
		),
	)

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			for i := 0; i < 4; i++ {
				h.call(meta, withField(runtime.NewInt32(1)))
			}
			h.opts.EnableSpeculation = true

			var failure *SpeculationFailure
			var got runtime.Value
			func() {
				defer CatchSpeculation(&failure)
				got = h.call(meta, withField(runtime.NewBool(true)))
			}()
			if failure == nil {
				t.Fatalf("Expected speculation failure to bypass catch, got %v", got)
			}
		})
	}
}

func TestResumeAfterSpeculationFailure(t *testing.T) {
	// try { o.n = o.n + 1; var v = o.v; throw v } catch (e) { o.n = o.n + 10 } return o.n
	f := ir.NewProgram().Function("resumed", "o")
	bump := func(by int32) ir.Stmt {
		return f.Expr(f.SetProp(f.Read("o"), "n", f.Binary(ops.Add, f.Prop(f.Read("o"), "n"), f.Int(by))))
	}
	meta := f.Body(
		f.Try(
			f.Block(bump(1), f.Var("v", f.Prop(f.Read("o"), "v")), f.Throw(f.Read("v"))),
			"e", func() *ir.Block { return f.Block(bump(10)) },
			nil,
		),
		f.Return(f.Prop(f.Read("o"), "n")),
	)
	counter := func(v runtime.Value) (*runtime.Object, runtime.Value) {
		o := runtime.NewPlainObject(nil, nil)
		o.Set("n", runtime.NewInt32(0))
		o.Set("v", v)
		return o, runtime.NewObject(o)
	}

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			for i := 0; i < 4; i++ {
				_, arg := counter(runtime.NewInt32(1))
				if got := h.call(meta, arg); runtime.ToNumber(got) != 11 {
					t.Fatalf("Expected 11, got %v", got)
				}
			}
			h.opts.EnableSpeculation = true

			o, arg := counter(runtime.NewString("s"))
			var failure *SpeculationFailure
			func() {
				defer CatchSpeculation(&failure)
				h.call(meta, arg)
			}()
			if failure == nil || failure.Activation == nil {
				t.Fatalf("Expected speculation failure with an activation, got %v", failure)
			}
			if len(failure.Stack) != failure.Depth || failure.Value.Type != types.String {
				t.Errorf("Expected String over %d stack values, got %v over %d", failure.Depth, failure.Value, len(failure.Stack))
			}
			if n := runtime.ToNumber(o.Get("n")); n != 1 {
				t.Fatalf("Expected o.n == 1 at the guard, got %v", n)
			}

			got, err := Resume(h, meta, failure.Activation.Frame.Signature, h.opts, failure)
			if err != nil {
				t.Fatalf("Unexpected resume error: %v", err)
			}
			if runtime.ToNumber(got) != 11 {
				t.Errorf("Expected 11 from the resumed catch, got %v", got)
			}
			if n := runtime.ToNumber(o.Get("n")); n != 11 {
				t.Errorf("Expected o.n == 11, got %v", n)
			}
		})
	}
}

func TestResumeRequiresActivation(t *testing.T) {
	h := newTestHost(BackendInlineCache)
	if _, err := Resume(h, fieldReader(), types.EmptySignature, h.opts, &SpeculationFailure{GuardID: 1}); err == nil {
		t.Error("Expected error resuming without an activation")
	}
}

// inlineProgram add(a, b) { return a + b } 与调用它的 caller(x) { return add(x, 1) }
func inlineProgram() (add, caller *ir.FunctionMetadata) {
	p := ir.NewProgram()
	a := p.Function("add", "a", "b")
	add = a.Body(a.Return(a.Binary(ops.Add, a.Read("a"), a.Read("b"))))
	c := p.Function("caller", "x")
	caller = c.Body(c.Return(c.Call(c.Read("add"), c.Read("x"), c.Int(1))))
	return add, caller
}

func TestInlineMonomorphicCall(t *testing.T) {
	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			add, caller := inlineProgram()
			h.global.Set("add", runtime.NewFunction(h.NewFunction(add, nil)))

			for i := 0; i < 3; i++ {
				if got := h.call(caller, runtime.NewInt32(int32(i))); runtime.ToNumber(got) != float64(i+1) {
					t.Fatalf("Expected %d while profiling, got %v", i+1, got)
				}
			}

			h.opts.EnableDirectCalls = true
			frame := runtime.NewCallFrame(h.NewFunction(caller, nil), runtime.UndefinedValue, []runtime.Value{runtime.NewInt32(41)})
			spec, err := Compile(h, caller, frame.Signature, kind, h.opts)
			if err != nil {
				t.Fatalf("Unexpected compile error: %v", err)
			}
			if n := h.counters.Get("JS/Inline").Load(); n != 1 {
				t.Errorf("Expected 1 inlined call site, got %d", n)
			}
			if !spec.Run(frame) {
				t.Fatal("Expected the specialization to accept its own signature")
			}
			if runtime.ToNumber(frame.Return) != 42 {
				t.Errorf("Expected 42 from the inlined body, got %v", frame.Return)
			}

			// 换掉全局函数后身份检查不成立，走原来的调用
			sub := ir.NewProgram().Function("sub", "a", "b")
			subMeta := sub.Body(sub.Return(sub.Binary(ops.Sub, sub.Read("a"), sub.Read("b"))))
			h.global.Set("add", runtime.NewFunction(h.NewFunction(subMeta, nil)))
			frame = runtime.NewCallFrame(h.NewFunction(caller, nil), runtime.UndefinedValue, []runtime.Value{runtime.NewInt32(41)})
			spec.Run(frame)
			if runtime.ToNumber(frame.Return) != 40 {
				t.Errorf("Expected 40 from the fallback call, got %v", frame.Return)
			}
		})
	}
}

func TestInlineRequiresDirectCalls(t *testing.T) {
	h := newTestHost(BackendLight)
	h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
	add, caller := inlineProgram()
	h.global.Set("add", runtime.NewFunction(h.NewFunction(add, nil)))
	h.call(caller, runtime.NewInt32(1))

	if _, err := Compile(h, caller, types.EmptySignature, BackendLight, h.opts); err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}
	if n := h.counters.Get("JS/Inline").Load(); n != 0 {
		t.Errorf("Expected no inlining without direct calls, got %d", n)
	}
}

func TestInlineSkipsUnsuitableCallees(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *ir.Factory) *ir.FunctionMetadata
	}{
		{"this", func(p *ir.Factory) *ir.FunctionMetadata {
			f := p.Function("add", "a", "b")
			return f.Body(f.Return(f.Binary(ops.Add, f.Read("a"), f.TypeOf(f.This()))))
		}},
		{"arguments", func(p *ir.Factory) *ir.FunctionMetadata {
			f := p.Function("add", "a", "b")
			return f.Body(f.Return(f.Binary(ops.Add, f.Read("a"), f.Read("arguments"))))
		}},
		{"early return", func(p *ir.Factory) *ir.FunctionMetadata {
			f := p.Function("add", "a", "b")
			return f.Body(f.If(f.Read("a"), f.Return(f.Read("b")), nil), f.Return(f.Read("a")))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHost(BackendInlineCache)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			p := ir.NewProgram()
			h.global.Set("add", runtime.NewFunction(h.NewFunction(tt.build(p), nil)))
			c := p.Function("caller", "x")
			caller := c.Body(c.Return(c.Call(c.Read("add"), c.Read("x"), c.Int(1))))
			want := h.call(caller, runtime.NewInt32(2))

			h.opts.EnableDirectCalls = true
			if got := h.call(caller, runtime.NewInt32(2)); !runtime.StrictEquals(got, want) {
				t.Errorf("Expected %v, got %v", want, got)
			}
			if n := h.counters.Get("JS/Inline").Load(); n != 0 {
				t.Errorf("Expected no inlining, got %d", n)
			}
		})
	}
}

func TestResumeReplaysInlining(t *testing.T) {
	// resumed(o) { var s = add(o.n, 1); var v = o.v; return s }
	p := ir.NewProgram()
	a := p.Function("add", "a", "b")
	add := a.Body(a.Return(a.Binary(ops.Add, a.Read("a"), a.Read("b"))))
	f := p.Function("resumed", "o")
	meta := f.Body(
		f.Var("s", f.Call(f.Read("add"), f.Prop(f.Read("o"), "n"), f.Int(1))),
		f.Var("v", f.Prop(f.Read("o"), "v")),
		f.Return(f.Read("s")),
	)
	object := func(v runtime.Value) runtime.Value {
		o := runtime.NewPlainObject(nil, nil)
		o.Set("n", runtime.NewInt32(4))
		o.Set("v", v)
		return runtime.NewObject(o)
	}

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			h.global.Set("add", runtime.NewFunction(h.NewFunction(add, nil)))
			for i := 0; i < 3; i++ {
				h.call(meta, object(runtime.NewInt32(1)))
			}
			h.opts.EnableSpeculation = true
			h.opts.EnableDirectCalls = true

			var failure *SpeculationFailure
			func() {
				defer CatchSpeculation(&failure)
				h.call(meta, object(runtime.NewString("s")))
			}()
			if failure == nil || failure.Activation == nil {
				t.Fatalf("Expected speculation failure with an activation, got %v", failure)
			}
			if len(failure.Activation.Layout.Inlined) != 1 {
				t.Fatalf("Expected 1 inlined site in the failed layout, got %d", len(failure.Activation.Layout.Inlined))
			}

			got, err := Resume(h, meta, failure.Activation.Frame.Signature, h.opts, failure)
			if err != nil {
				t.Fatalf("Unexpected resume error: %v", err)
			}
			if runtime.ToNumber(got) != 5 {
				t.Errorf("Expected 5, got %v", got)
			}
		})
	}
}

func TestUncaughtThrow(t *testing.T) {
	f := ir.NewProgram().Function("thrower", "x")
	meta := f.Body(f.Throw(f.Binary(ops.Add, f.String("bad "), f.Read("x"))))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			var exc *runtime.JSException
			func() {
				defer runtime.CatchException(&exc)
				h.call(meta, runtime.NewInt32(3))
			}()
			if exc == nil {
				t.Fatal("Expected guest exception")
			}
			if got := runtime.ToString(exc.Value); got != "bad 3" {
				t.Errorf("Expected \"bad 3\", got %q", got)
			}
		})
	}
}

func TestNotAFunction(t *testing.T) {
	f := ir.NewProgram().Function("callNumber")
	meta := f.Body(f.Return(f.Call(f.Int(1))))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			var exc *runtime.JSException
			func() {
				defer runtime.CatchException(&exc)
				h.call(meta)
			}()
			if exc == nil {
				t.Fatal("Expected TypeError")
			}
		})
	}
}

func TestProgramGlobals(t *testing.T) {
	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			p := ir.NewProgram()
			decl := p.Var("g", p.Int(41))
			h := p.Function("h")
			h.Body(h.Return(h.Binary(ops.Add, h.Read("g"), h.Int(1))))
			meta := p.Body(
				decl,
				p.FunctionDecl(h),
				p.Return(p.Call(p.Read("h"))),
			)

			host := newTestHost(kind)
			got := host.call(meta)
			if runtime.ToNumber(got) != 42 {
				t.Errorf("Expected 42, got %v", got)
			}
			if v := host.global.Get("g"); runtime.ToNumber(v) != 41 {
				t.Errorf("Expected global g = 41, got %v", v)
			}
			if v := host.global.Get("h"); !v.IsFunction() {
				t.Errorf("Expected global function h, got %v", v)
			}
		})
	}
}

func TestUndefinedGlobal(t *testing.T) {
	f := ir.NewProgram().Function("missing")
	meta := f.Body(f.Return(f.Read("nowhere")))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			var exc *runtime.JSException
			func() {
				defer runtime.CatchException(&exc)
				h.call(meta)
			}()
			if exc == nil {
				t.Fatal("Expected ReferenceError")
			}
		})
	}
}

func TestUnpassedArgumentNotAliased(t *testing.T) {
	f := ir.NewProgram().Function("partial", "a", "b")
	meta := f.Body(
		f.Expr(f.Assign("b", f.Int(5))),
		f.Return(f.Binary(ops.Add, f.Prop(f.Read("arguments"), "length"), f.Read("b"))),
	)

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			got := h.call(meta, runtime.NewInt32(1))
			if runtime.ToNumber(got) != 6 {
				t.Errorf("Expected 6, got %v", got)
			}
		})
	}
}

func TestCallCounters(t *testing.T) {
	f := ir.NewProgram().Function("counted")
	meta := f.Body(f.Return(f.Int(1)))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.opts.CountCalls = true
			h.opts.ProfileExecuteTime = true
			for i := 0; i < 3; i++ {
				h.call(meta)
			}
			name := "JS/Execute/" + meta.FullName()
			if got := h.counters.Value(name); got != 3 {
				t.Errorf("Expected %s = 3, got %d", name, got)
			}
			if st := h.timers.Snapshot()["JS/Execute"]; st.Count != 3 {
				t.Errorf("Expected 3 timed executions, got %d", st.Count)
			}
		})
	}
}

func TestOpFrequency(t *testing.T) {
	f := ir.NewProgram().Function("adds", "a")
	meta := f.Body(f.Return(f.Binary(ops.Add, f.Binary(ops.Add, f.Read("a"), f.Int(1)), f.Int(2))))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.opts.ProfileOpFrequency = true
			h.call(meta, runtime.NewInt32(1))
			if got := h.counters.Value("JS/Op/" + ops.Add.String()); got != 2 {
				t.Errorf("Expected 2 additions, got %d", got)
			}
		})
	}
}

func TestDirectCall(t *testing.T) {
	f := ir.NewProgram().Function("apply", "fn", "x")
	meta := f.Body(f.Return(f.Call(f.Read("fn"), f.Read("x"))))
	double := runtime.NewFunction(runtime.NewNativeFunction("double", 1, func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewDouble(runtime.ToNumber(args[0]) * 2)
	}))

	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			h.call(meta, double, runtime.NewInt32(1))

			h.opts.EnableDirectCalls = true
			got := h.call(meta, double, runtime.NewInt32(4))
			if runtime.ToNumber(got) != 8 {
				t.Errorf("Expected 8, got %v", got)
			}
			if hits := h.counters.Value("JS/DirectCall"); hits != 1 {
				t.Errorf("Expected 1 direct call, got %d", hits)
			}
		})
	}
}

func TestProfilingRecordsShapes(t *testing.T) {
	meta := fieldReader()
	for _, kind := range Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestHost(kind)
			h.profiler = profile.NewProfiler(1000, profile.DefaultPolicy())
			h.call(meta, withField(runtime.NewInt32(1)))
			h.call(meta, withField(runtime.NewInt32(2)))

			nodes := h.profiler.Nodes(meta)
			site := -1
			ir.Inspect(meta, func(n ir.Node) bool {
				if rp, ok := n.(*ir.ReadProperty); ok {
					site = rp.ProfileIndex
				}
				return true
			})
			mp := nodes.MapProfile(site)
			if mp == nil || !mp.IsMonomorphic() {
				t.Errorf("Expected a monomorphic shape profile at site %d", site)
			}
		})
	}
}
