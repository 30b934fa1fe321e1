package codegen

import (
	"fmt"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// SpeculationFailure 推测失败信号
//
// 以 panic 传播，只由引擎的去优化蹦床恢复。后端的 catch 逻辑只捕获
// 客体异常，不会把它交给客体代码。特化的 Run 在边界上补齐活动记录与
// 守卫之下的操作数栈，Resume 据此在通用代码中接着执行。
type SpeculationFailure struct {
	GuardID  int
	Expected types.ValueType
	Observed types.ValueType

	// Value 守卫收到的原值
	Value runtime.Value
	// Depth 守卫的值在操作数栈中的深度
	Depth int
	// Stack 守卫之下的操作数栈，按深度排列
	Stack      []runtime.Value
	Activation *Activation
}

func (f *SpeculationFailure) Error() string {
	return fmt.Sprintf("speculation failed at guard %d: expected %s, observed %s", f.GuardID, f.Expected, f.Observed)
}

// NeedsCheck 守卫是否需要运行时检查
func NeedsCheck(n *ir.GuardedCast) bool { return n.IsRequired }

// Check 标签与收窄类型不符时发出推测失败，depth 是值所在的栈深度
func Check(n *ir.GuardedCast, v runtime.Value, depth int) {
	if v.Type != n.Narrowed {
		panic(&SpeculationFailure{
			GuardID:  n.ProfileIndex,
			Expected: n.Narrowed,
			Observed: v.Type,
			Value:    v,
			Depth:    depth,
		})
	}
}

// captureFailure 在特化边界给推测失败补上活动记录与操作数栈
//
//	defer captureFailure(act, stack)
func captureFailure(act *Activation, stack func(depth int) []runtime.Value) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(*SpeculationFailure); ok && f.Activation == nil {
		f.Activation = act
		f.Stack = stack(f.Depth)
	}
	panic(r)
}

// CatchSpeculation 把推测失败的 panic 转换为返回值，其余 panic 继续传播
//
//	defer codegen.CatchSpeculation(&failure)
func CatchSpeculation(failure **SpeculationFailure) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(*SpeculationFailure); ok {
		*failure = f
		return
	}
	panic(r)
}
