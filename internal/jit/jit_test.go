package jit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tangzhangming/mcjit/internal/config"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/corpus"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func newConfig(modify func(c *config.Config)) *config.Config {
	c := config.DefaultConfig()
	if modify != nil {
		modify(c)
	}
	return c
}

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

func mustCall(t *testing.T, e *Engine, fn *runtime.Function, args ...runtime.Value) runtime.Value {
	t.Helper()
	got, err := e.Call(fn, runtime.UndefinedValue, args...)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return got
}

func TestCorpusWithEveryBackend(t *testing.T) {
	e := NewEngine(nil, nil)
	for _, kind := range codegen.Backends() {
		for _, p := range corpus.All() {
			t.Run(kind.String()+"/"+p.Name, func(t *testing.T) {
				fn := e.NewFunction(p.Build())
				got, err := e.CallWith(kind, fn, runtime.UndefinedValue, p.Args...)
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if !p.Matches(got) {
					t.Errorf("Expected %v, got %v", p.Expected, got)
				}
			})
		}
	}
}

func TestCorpusTiering(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *config.Config)
	}{
		{"interpreter only", func(c *config.Config) { c.JIT.EnableJit = false }},
		{"jit only", func(c *config.Config) { c.JIT.EnableInterpreter = false }},
		{"hot after 2", func(c *config.Config) { c.JIT.HotCallThreshold = 2 }},
		{"light", func(c *config.Config) {
			c.JIT.HotCallThreshold = 2
			c.JIT.EnableLightCompiler = true
		}},
		{"inline cache speculative", func(c *config.Config) {
			c.JIT.HotCallThreshold = 2
			c.JIT.EnableInlineCache = true
			c.JIT.EnableSpeculativeJit = true
			c.JIT.EnableDirectCalls = true
			c.JIT.EnableParallelJit = true
		}},
		{"no profiling", func(c *config.Config) {
			c.JIT.HotCallThreshold = 0
			c.Profile.EnableProfiling = false
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(newConfig(tt.modify), nil)
			for _, p := range corpus.All() {
				fn := e.NewFunction(p.Build())
				for i := 0; i < 4; i++ {
					if got := mustCall(t, e, fn, p.Args...); !p.Matches(got) {
						t.Errorf("%s run %d: Expected %v, got %v", p.Name, i, p.Expected, got)
					}
				}
			}
		})
	}
}

func TestTieringTransitions(t *testing.T) {
	e := NewEngine(newConfig(func(c *config.Config) { c.JIT.HotCallThreshold = 10 }), nil)
	meta := fieldReader()
	fn := e.NewFunction(meta)

	for i := 0; i < 9; i++ {
		mustCall(t, e, fn, withField(runtime.NewInt32(int32(i))))
	}
	if got := e.Counters().Value("JS/Interpret"); got != 9 {
		t.Errorf("Expected 9 interpreted calls, got %d", got)
	}
	if state := e.Profiler().Function(meta).HotState(); state != profile.StateWarm {
		t.Errorf("Expected warm, got %s", state)
	}
	if e.Functions().IsCompiled(meta, e.Backend()) {
		t.Error("Expected no compiled code before the threshold")
	}

	mustCall(t, e, fn, withField(runtime.NewInt32(9)))
	if state := e.Profiler().Function(meta).HotState(); state != profile.StateCompiled {
		t.Errorf("Expected compiled, got %s", state)
	}
	if !e.Functions().IsCompiled(meta, e.Backend()) {
		t.Error("Expected compiled code after the threshold")
	}

	got := mustCall(t, e, fn, withField(runtime.NewInt32(10)))
	if runtime.ToNumber(got) != 10 {
		t.Errorf("Expected 10, got %v", got)
	}
	stats := e.GetStats()
	if stats.Interpreted != 9 {
		t.Errorf("Expected 9 interpreted, got %d", stats.Interpreted)
	}
	if stats.CacheHits != 1 {
		t.Errorf("Expected 1 cache hit, got %d", stats.CacheHits)
	}
	if stats.CompiledFunctions != 1 || stats.Specializations != 1 {
		t.Errorf("Expected 1 compiled function with 1 specialization, got %d/%d",
			stats.CompiledFunctions, stats.Specializations)
	}
}

func TestSignatureSpecializations(t *testing.T) {
	f := ir.NewProgram().Function("id", "x")
	meta := f.Body(f.Return(f.Read("x")))

	e := NewEngine(newConfig(func(c *config.Config) {
		c.JIT.EnableInterpreter = false
	}), nil)
	fn := e.NewFunction(meta)

	args := []runtime.Value{
		runtime.NewInt32(1),
		runtime.NewString("a"),
		runtime.NewInt32(2),
		runtime.NewBool(true),
	}
	for _, a := range args {
		if got := mustCall(t, e, fn, a); !runtime.StrictEquals(got, a) {
			t.Errorf("Expected %v, got %v", a, got)
		}
	}

	entry, ok := e.Functions().Lookup(meta, e.Backend())
	if !ok {
		t.Fatal("Expected a function entry")
	}
	specs := entry.Specializations()
	if len(specs) != 3 {
		t.Fatalf("Expected 3 specializations, got %d", len(specs))
	}
	want := []types.ValueType{types.Int32, types.String, types.Boolean}
	for i, s := range specs {
		if got := s.Signature().Arg(0); got != want[i] {
			t.Errorf("Expected specialization %d for %s, got %s", i, want[i], got)
		}
	}
	if got := e.GetStats().CacheHits; got != 1 {
		t.Errorf("Expected 1 cache hit, got %d", got)
	}
}

func TestMaxSignatureArgs(t *testing.T) {
	f := ir.NewProgram().Function("first", "a", "b")
	meta := f.Body(f.Return(f.Read("a")))

	e := NewEngine(newConfig(func(c *config.Config) {
		c.JIT.EnableInterpreter = false
		c.JIT.MaxSignatureArgs = 1
	}), nil)
	fn := e.NewFunction(meta)
	mustCall(t, e, fn, runtime.NewInt32(1), runtime.NewInt32(2))
	mustCall(t, e, fn, runtime.NewInt32(1), runtime.NewString("b"))

	entry, _ := e.Functions().Lookup(meta, e.Backend())
	specs := entry.Specializations()
	if len(specs) != 1 {
		t.Fatalf("Expected the second argument to stay out of the signature, got %d specializations", len(specs))
	}
	if got := specs[0].Signature().Arg(1); got != types.Undefined {
		t.Errorf("Expected unconstrained second argument, got %s", got)
	}
}

func TestDeoptimization(t *testing.T) {
	for _, kind := range codegen.Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			e := NewEngine(newConfig(func(c *config.Config) {
				c.JIT.HotCallThreshold = 4
				c.JIT.EnableSpeculativeJit = true
				c.JIT.EnableLightCompiler = kind == codegen.BackendLight
				c.JIT.EnableInlineCache = kind == codegen.BackendInlineCache
			}), nil)
			meta := fieldReader()
			fn := e.NewFunction(meta)

			for i := 1; i <= 4; i++ {
				got := mustCall(t, e, fn, withField(runtime.NewInt32(int32(i))))
				if got.Type != types.Int32 || got.RawInt() != int64(i) {
					t.Fatalf("Expected Int32 %d, got %v", i, got)
				}
			}
			if !e.Functions().IsCompiled(meta, kind) {
				t.Fatal("Expected speculative code after the threshold")
			}

			got := mustCall(t, e, fn, withField(runtime.NewString("s")))
			if runtime.ToString(got) != "s" {
				t.Errorf("Expected s after deoptimization, got %v", got)
			}
			if n := e.Counters().Value("JS/Deopt"); n != 1 {
				t.Errorf("Expected 1 deoptimization, got %d", n)
			}

			got = mustCall(t, e, fn, withField(runtime.NewBool(true)))
			if !runtime.StrictEquals(got, runtime.NewBool(true)) {
				t.Errorf("Expected true on the generic code, got %v", got)
			}
			if n := e.GetStats().Deopts; n != 1 {
				t.Errorf("Expected the generic code to stay installed, got %d deoptimizations", n)
			}

			entry, _ := e.Functions().Lookup(meta, kind)
			if entry.Deopts.Load() != 1 || len(entry.Specializations()) != 1 {
				t.Errorf("Expected 1 deopt and 1 specialization, got %d/%d",
					entry.Deopts.Load(), len(entry.Specializations()))
			}

			var observed bool
			nodes := e.NodeProfile(meta)
			ir.Inspect(meta, func(n ir.Node) bool {
				if g, ok := n.(*ir.GuardedCast); ok {
					if gp := nodes.GuardProfile(g); gp != nil && gp.Record.Total() > 0 {
						for _, ty := range gp.Record.Types {
							observed = observed || ty == types.String
						}
					}
				}
				return true
			})
			if !observed {
				t.Error("Expected the observed String to be recorded in a guard profile")
			}
		})
	}
}

func TestDeoptimizationResumesAtGuard(t *testing.T) {
	// o.n = o.n + 1; var v = o.v; return o.n
	f := ir.NewProgram().Function("bump", "o")
	meta := f.Body(
		f.Expr(f.SetProp(f.Read("o"), "n", f.Binary(ops.Add, f.Prop(f.Read("o"), "n"), f.Int(1)))),
		f.Var("v", f.Prop(f.Read("o"), "v")),
		f.Return(f.Prop(f.Read("o"), "n")),
	)
	counter := func(v runtime.Value) (*runtime.Object, runtime.Value) {
		o := runtime.NewPlainObject(nil, nil)
		o.Set("n", runtime.NewInt32(0))
		o.Set("v", v)
		return o, runtime.NewObject(o)
	}

	for _, kind := range codegen.Backends() {
		t.Run(kind.String(), func(t *testing.T) {
			e := NewEngine(newConfig(func(c *config.Config) {
				c.JIT.HotCallThreshold = 4
				c.JIT.EnableSpeculativeJit = true
				c.JIT.EnableLightCompiler = kind == codegen.BackendLight
				c.JIT.EnableInlineCache = kind == codegen.BackendInlineCache
			}), nil)
			fn := e.NewFunction(meta)

			for i := 0; i < 4; i++ {
				_, arg := counter(runtime.NewInt32(int32(i)))
				if got := mustCall(t, e, fn, arg); runtime.ToNumber(got) != 1 {
					t.Fatalf("Expected 1, got %v", got)
				}
			}

			o, arg := counter(runtime.NewString("s"))
			got := mustCall(t, e, fn, arg)
			if runtime.ToNumber(got) != 1 {
				t.Errorf("Expected 1 after deoptimization, got %v", got)
			}
			if n := runtime.ToNumber(o.Get("n")); n != 1 {
				t.Errorf("Expected o.n incremented once, got %v", n)
			}
			if n := e.Counters().Value("JS/Deopt"); n != 1 {
				t.Errorf("Expected 1 deoptimization, got %d", n)
			}
		})
	}
}

func TestDeoptimizationDisabledTurnsOffSpeculation(t *testing.T) {
	e := NewEngine(newConfig(func(c *config.Config) {
		c.JIT.HotCallThreshold = 1
		c.JIT.EnableSpeculativeJit = true
		c.JIT.EnableDeoptimization = false
	}), nil)
	fn := e.NewFunction(fieldReader())
	for i := 0; i < 3; i++ {
		mustCall(t, e, fn, withField(runtime.NewInt32(1)))
	}
	if got := runtime.ToString(mustCall(t, e, fn, withField(runtime.NewString("s")))); got != "s" {
		t.Errorf("Expected s, got %s", got)
	}
	if n := e.Counters().Value("JS/Deopt"); n != 0 {
		t.Errorf("Expected no deoptimization, got %d", n)
	}
}

func TestUncaughtThrowIsReturned(t *testing.T) {
	f := ir.NewProgram().Function("thrower", "x")
	meta := f.Body(f.Throw(f.Read("x")))

	for _, jit := range []bool{false, true} {
		e := NewEngine(newConfig(func(c *config.Config) {
			c.JIT.EnableInterpreter = !jit
			c.JIT.EnableJit = jit
		}), nil)
		_, err := e.Call(e.NewFunction(meta), runtime.UndefinedValue, runtime.NewString("boom"))
		exc, ok := err.(*runtime.JSException)
		if !ok || runtime.ToString(exc.Value) != "boom" {
			t.Errorf("Expected JSException boom, got %v", err)
		}
	}
}

func TestCallWithUnknownBackend(t *testing.T) {
	e := NewEngine(nil, nil)
	p, _ := corpus.Lookup("arithmetic")
	_, err := e.CallWith(codegen.BackendKind(9), e.NewFunction(p.Build()), runtime.UndefinedValue)
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("Expected unknown backend error, got %v", err)
	}
}

func TestNativeCallAndOutput(t *testing.T) {
	var out bytes.Buffer
	e := NewEngine(nil, nil, WithOutput(&out))
	f := ir.NewProgram().Function("hello", "name")
	meta := f.Body(f.Expr(f.Call(f.Read("print"), f.String("hello"), f.Read("name"))))

	mustCall(t, e, e.NewFunction(meta), runtime.NewString("mcjit"))
	if got := out.String(); got != "hello mcjit\n" {
		t.Errorf("Expected %q, got %q", "hello mcjit\n", got)
	}

	native := e.Global().Get("print").Data.(*runtime.Function)
	if _, err := e.Call(native, runtime.UndefinedValue, runtime.NewInt32(1)); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if got := out.String(); got != "hello mcjit\n1\n" {
		t.Errorf("Expected native output, got %q", got)
	}
}

func TestReportAndReset(t *testing.T) {
	e := NewEngine(newConfig(func(c *config.Config) {
		c.JIT.HotCallThreshold = 0
		c.Profile.CountCalls = true
		c.Profile.ProfileExecuteTime = true
		c.Profile.ProfileJitTime = true
		c.Profile.ProfileOpFrequency = true
		c.Profile.ProfileOpTime = true
	}), nil)
	p, _ := corpus.Lookup("arithmetic")
	fn := e.NewFunction(p.Build())
	for i := 0; i < 3; i++ {
		mustCall(t, e, fn, p.Args...)
	}

	report := e.Report()
	names := make(map[string]ReportEntry)
	for i, r := range report {
		if i > 0 && report[i-1].Name >= r.Name {
			t.Errorf("Expected sorted report, got %s before %s", report[i-1].Name, r.Name)
		}
		names[r.Name] = r
	}
	for _, name := range []string{"JS/Compile", "JS/Execute", "JS/Jit", "JS/Op/Add"} {
		if _, ok := names[name]; !ok {
			t.Errorf("Expected %s in report", name)
		}
	}
	if r := names["JS/Execute"]; !r.IsTimer || r.Count != 3 {
		t.Errorf("Expected JS/Execute timer with 3 calls, got %+v", r)
	}
	if s := names["JS/Compile"].String(); s != "JS/Compile: 1" {
		t.Errorf("Expected %q, got %q", "JS/Compile: 1", s)
	}

	e.Reset()
	stats := e.GetStats()
	if stats.Functions != 0 || stats.CacheHits != 0 || stats.Interpreted != 0 {
		t.Errorf("Expected empty stats after reset, got %+v", stats)
	}
	if got := mustCall(t, e, fn, p.Args...); !p.Matches(got) {
		t.Errorf("Expected %v after reset, got %v", p.Expected, got)
	}
}

func TestFunctionStateString(t *testing.T) {
	tests := []struct {
		state FunctionState
		want  string
	}{
		{FuncStateNone, "none"},
		{FuncStatePending, "pending"},
		{FuncStateCompiling, "compiling"},
		{FuncStateCompiled, "compiled"},
		{FuncStateFailed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}
