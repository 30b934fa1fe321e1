// deopt.go - 去优化蹦床
//
// 特化代码中需要检查的守卫在类型不符时以 *codegen.SpeculationFailure
// panic，特化的边界给它补上活动记录与操作数栈。蹦床在这里恢复它：
//   - 特化从函数条目中移除，JS/Deopt 加一
//   - 观察到的类型记入守卫剖析
//   - 关闭推测为同一签名重新编译并安装，供之后的调用使用
//   - 本次调用在通用的 IC 特化上从守卫之后继续执行，内联决定与失败的
//     特化相同
//
// 守卫之前已经发生的副作用不会重复。

package jit

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// run 执行特化，签名不符时返回 false
func (t *tier) run(entry *FunctionEntry, spec codegen.Specialization, meta *ir.FunctionMetadata, frame *runtime.CallFrame) bool {
	var failure *codegen.SpeculationFailure
	accepted := func() bool {
		defer codegen.CatchSpeculation(&failure)
		return spec.Run(frame)
	}()
	if failure == nil {
		return accepted
	}
	t.deoptimize(entry, spec, meta, frame, failure)
	return true
}

// deoptimize 撤下特化，在通用代码上完成本次调用
func (t *tier) deoptimize(entry *FunctionEntry, spec codegen.Specialization, meta *ir.FunctionMetadata, frame *runtime.CallFrame, failure *codegen.SpeculationFailure) {
	entry.Invalidate(spec)
	entry.Deopts.Inc()
	t.counters.Get("JS/Deopt").Inc()
	t.recordObserved(meta, failure)
	t.log.Info("deoptimized",
		zap.String("function", meta.FullName()),
		zap.Stringer("backend", t.kind),
		zap.Int("guard", failure.GuardID),
		zap.Int("depth", failure.Depth),
		zap.Stringer("expected", failure.Expected),
		zap.Stringer("observed", failure.Observed))

	opts := t.opts
	opts.EnableSpeculation = false
	if _, err := t.compile(entry, meta, frame, opts); err != nil {
		panic(&compileFailure{err: err})
	}
	ret, err := codegen.Resume(t, meta, frame.Signature, opts, failure)
	if err != nil {
		panic(&compileFailure{err: err})
	}
	frame.Return = ret
}

// recordObserved 把失败时观察到的类型记入对应守卫的剖析
func (t *tier) recordObserved(meta *ir.FunctionMetadata, failure *codegen.SpeculationFailure) {
	nodes := t.NodeProfile(meta)
	if nodes == nil {
		return
	}
	ir.Inspect(meta, func(n ir.Node) bool {
		g, ok := n.(*ir.GuardedCast)
		if !ok || g.ProfileIndex != failure.GuardID {
			return true
		}
		if gp := nodes.GetOrAddGuardProfile(g); gp != nil {
			gp.UpdateNodeProfile(failure.Observed)
		}
		return false
	})
}
