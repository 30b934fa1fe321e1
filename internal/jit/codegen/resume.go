// resume.go - 去优化后在通用代码中续跑
//
// 推测失败时，特化已经执行了守卫之前的全部副作用。Resume 关闭推测为
// 同一签名编译一个 IC 特化，内联沿用失败特化的决定，槽位布局与之一致。
// 失败时的活动记录搬到新布局上，守卫的原值放进守卫的结果槽位，然后从
// 守卫之后的片段接着执行。三个后端的操作数栈纪律相同，守卫之下的栈
// 内容可以逐槽拷贝。
//
// finally 中的守卫不做推测（见 typecalc），续跑点只会落在 try 或 catch
// 部分，重新进入包住它的 try 语句即可恢复异常处理。

package codegen

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// Resume 从失败的守卫之后完成本次调用，返回函数的返回值
//
// 续跑中的客体异常照常向调用方传播。
func Resume(host Host, meta *ir.FunctionMetadata, sig types.Signature, opts Options, failure *SpeculationFailure) (runtime.Value, error) {
	if failure.Activation == nil {
		return runtime.UndefinedValue, errors.Internalf(errors.I0007, failure.GuardID)
	}
	opts.EnableSpeculation = false
	opts.InlineTargets = failure.Activation.Layout.Inlined
	if opts.InlineTargets == nil {
		opts.InlineTargets = map[int]*runtime.Function{}
	}
	spec, err := Compile(host, meta, sig, BackendInlineCache, opts)
	if err != nil {
		return runtime.UndefinedValue, err
	}
	return spec.(*icSpec).resumeAt(failure)
}

func (s *icSpec) resumeAt(failure *SpeculationFailure) (runtime.Value, error) {
	p, ok := s.resume[failure.GuardID]
	if !ok {
		return runtime.UndefinedValue, errors.Internalf(errors.I0007, failure.GuardID)
	}
	layout := s.entry.Layout
	base := layout.StackBase()
	if p.slot-base != failure.Depth || len(failure.Stack) != failure.Depth {
		return runtime.UndefinedValue, errors.Internalf(errors.I0001, p.slot-base, failure.Depth)
	}

	act := failure.Activation.Rebase(layout)
	copy(act.Values[base:], failure.Stack)
	act.Values[p.slot] = failure.Value

	f := &icFrame{ics: s.ics, act: act, v: act.Values, ret: runtime.UndefinedValue}
	if i := f.within(0, len(s.ics), p.index, p.tries); i != icReturn {
		errors.Fail(errors.I0006, i)
	}
	return f.ret, nil
}
