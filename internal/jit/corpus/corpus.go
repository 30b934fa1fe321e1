// Package corpus 代表性的 IR 程序
//
// 每个程序都是一个入口函数、一组实参和期望结果。测试与 mcjit 命令行
// 用同一份程序对比解释器和各个后端。Build 每次返回新的 IR，
// 不同引擎之间不共享剖析下标以外的任何状态。
package corpus

import (
	"sort"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Program 一个测试程序
type Program struct {
	Name        string
	Description string
	Build       func() *ir.FunctionMetadata
	Args        []runtime.Value
	Expected    runtime.Value
}

// Matches 结果与期望严格相等
func (p Program) Matches(v runtime.Value) bool {
	return runtime.StrictEquals(v, p.Expected)
}

var registry = map[string]Program{}

func register(p Program) {
	if _, dup := registry[p.Name]; dup {
		panic("corpus: duplicate program " + p.Name)
	}
	registry[p.Name] = p
}

// All 按名称排序的全部程序
func All() []Program {
	out := make([]Program, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup 按名称查找
func Lookup(name string) (Program, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names 排序后的程序名
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
// 辅助
// ============================================================================

func ints(vs ...int32) []runtime.Value {
	out := make([]runtime.Value, len(vs))
	for i, v := range vs {
		out[i] = runtime.NewInt32(v)
	}
	return out
}

// countUp for (var name = 0; name < limit; name++) body
func countUp(f *ir.Factory, name string, limit ir.Expr, body ir.Stmt) ir.Stmt {
	return f.For(
		f.Var(name, f.Int(0)),
		f.Binary(ops.Less, f.Read(name), limit),
		f.PostInc(f.Read(name)),
		body,
	)
}

// entry 在新程序中创建入口函数
func entry(name string, params ...string) *ir.Factory {
	return ir.NewProgram().Function(name, params...)
}
