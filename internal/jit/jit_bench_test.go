package jit

import (
	"testing"

	"github.com/tangzhangming/mcjit/internal/config"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/corpus"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 执行引擎基准测试
// ============================================================================
//
// 运行基准测试：
//   go test -bench=. -benchmem ./internal/jit/
//
// 运行特定程序：
//   go test -bench=BenchmarkBackends/recursion -benchmem ./internal/jit/
//
// ============================================================================

var benchPrograms = []string{"arithmetic", "string_concat", "recursion", "array_loop", "polymorphic_call"}

// BenchmarkInterpreter 纯解释执行
func BenchmarkInterpreter(b *testing.B) {
	e := NewEngine(newConfig(func(c *config.Config) { c.JIT.EnableJit = false }), nil)
	for _, name := range benchPrograms {
		p, _ := corpus.Lookup(name)
		fn := e.NewFunction(p.Build())
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				e.Call(fn, runtime.UndefinedValue, p.Args...)
			}
		})
	}
}

// BenchmarkBackends 各后端的稳态执行，特化在计时前编译
func BenchmarkBackends(b *testing.B) {
	for _, kind := range codegen.Backends() {
		e := NewEngine(nil, nil)
		for _, name := range benchPrograms {
			p, _ := corpus.Lookup(name)
			fn := e.NewFunction(p.Build())
			e.CallWith(kind, fn, runtime.UndefinedValue, p.Args...)
			b.Run(kind.String()+"/"+name, func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					e.CallWith(kind, fn, runtime.UndefinedValue, p.Args...)
				}
			})
		}
	}
}

// BenchmarkSpeculation 推测执行对比通用代码
func BenchmarkSpeculation(b *testing.B) {
	for _, speculate := range []bool{false, true} {
		e := NewEngine(newConfig(func(c *config.Config) {
			c.JIT.HotCallThreshold = 2
			c.JIT.EnableSpeculativeJit = speculate
		}), nil)
		p, _ := corpus.Lookup("recursion")
		fn := e.NewFunction(p.Build())
		for i := 0; i < 3; i++ {
			e.Call(fn, runtime.UndefinedValue, p.Args...)
		}
		name := "generic"
		if speculate {
			name = "speculative"
		}
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				e.Call(fn, runtime.UndefinedValue, p.Args...)
			}
		})
	}
}

// BenchmarkCompile 编译一个特化的开销
func BenchmarkCompile(b *testing.B) {
	p, _ := corpus.Lookup("labeled_loops")
	for _, kind := range codegen.Backends() {
		b.Run(kind.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				e := NewEngine(nil, nil)
				e.CallWith(kind, e.NewFunction(p.Build()), runtime.UndefinedValue, p.Args...)
			}
		})
	}
}
