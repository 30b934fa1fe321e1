// hotness.go - 热点检测
//
// 按函数计数调用次数，决定函数何时从解释执行转入编译执行：
//   - 调用次数达到阈值的十分之一：cold -> warm
//   - 调用次数达到阈值：-> hot，并触发回调
//   - 安装了特化代码：-> compiled
//
// 使用方式：
//   if profiler.RecordCall(meta) { ... }   // 本次调用使函数变热
//   nodes := profiler.Nodes(meta)           // 节点剖析

package profile

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
)

// ============================================================================
// 热点状态
// ============================================================================

// HotState 热点状态
type HotState int32

const (
	StateCold     HotState = iota // 冷代码
	StateWarm                     // 温代码（接近热点）
	StateHot                      // 热点
	StateCompiled                 // 已编译
)

func (s HotState) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarm:
		return "warm"
	case StateHot:
		return "hot"
	case StateCompiled:
		return "compiled"
	default:
		return "unknown"
	}
}

// ============================================================================
// 函数档案
// ============================================================================

// FunctionProfile 函数的热度档案
type FunctionProfile struct {
	Meta         *ir.FunctionMetadata
	CallCount    atomic.Int64
	State        atomic.Int32
	CompileFails atomic.Int32

	// Nodes 节点剖析
	Nodes *FunctionProfiler
}

// HotState 当前状态
func (fp *FunctionProfile) HotState() HotState {
	return HotState(fp.State.Load())
}

// ============================================================================
// 热点检测器
// ============================================================================

// Profiler 热点检测器
type Profiler struct {
	threshold int64
	policy    Policy

	profiles sync.Map // 函数 ID -> *FunctionProfile

	onFunctionHot func(*FunctionProfile)

	totalCalls   atomic.Int64
	hotFunctions atomic.Int64
	enabled      atomic.Bool
}

// NewProfiler 创建热点检测器
func NewProfiler(threshold int64, policy Policy) *Profiler {
	p := &Profiler{threshold: threshold, policy: policy.normalized()}
	p.enabled.Store(true)
	return p
}

// SetEnabled 启用/禁用节点剖析
//
// 关闭后 Nodes 返回 nil，调用计数不受影响。
func (p *Profiler) SetEnabled(enabled bool) { p.enabled.Store(enabled) }

// IsEnabled 节点剖析是否启用
func (p *Profiler) IsEnabled() bool { return p.enabled.Load() }

// SetOnFunctionHot 设置函数变热时的回调
func (p *Profiler) SetOnFunctionHot(fn func(*FunctionProfile)) { p.onFunctionHot = fn }

// Policy 节点剖析使用的策略
func (p *Profiler) Policy() Policy { return p.policy }

// Function 获取或创建函数档案
//
// 克隆出的函数归到原函数的档案。
func (p *Profiler) Function(meta *ir.FunctionMetadata) *FunctionProfile {
	root := meta.Root()
	if val, ok := p.profiles.Load(root.ID); ok {
		return val.(*FunctionProfile)
	}
	fp := &FunctionProfile{Meta: root, Nodes: NewFunctionProfiler(root, p.policy)}
	actual, _ := p.profiles.LoadOrStore(root.ID, fp)
	return actual.(*FunctionProfile)
}

// Nodes 函数的节点剖析，未启用时为 nil
func (p *Profiler) Nodes(meta *ir.FunctionMetadata) *FunctionProfiler {
	if p == nil || !p.IsEnabled() {
		return nil
	}
	return p.Function(meta).Nodes
}

// RecordCall 记录一次调用，返回本次调用是否使函数变热
func (p *Profiler) RecordCall(meta *ir.FunctionMetadata) bool {
	p.totalCalls.Inc()
	fp := p.Function(meta)
	count := fp.CallCount.Inc()

	switch HotState(fp.State.Load()) {
	case StateCold:
		if count < p.threshold/10 {
			return false
		}
		if count < p.threshold {
			fp.State.CAS(int32(StateCold), int32(StateWarm))
			return false
		}
		if !fp.State.CAS(int32(StateCold), int32(StateHot)) {
			return false
		}
	case StateWarm:
		if count < p.threshold || !fp.State.CAS(int32(StateWarm), int32(StateHot)) {
			return false
		}
	default:
		return false
	}

	p.hotFunctions.Inc()
	if p.onFunctionHot != nil {
		p.onFunctionHot(fp)
	}
	return true
}

// IsHot 函数是否已达到编译阈值
func (p *Profiler) IsHot(meta *ir.FunctionMetadata) bool {
	return p.Function(meta).HotState() >= StateHot
}

// MarkCompiled 标记函数为已编译
func (p *Profiler) MarkCompiled(meta *ir.FunctionMetadata) {
	p.Function(meta).State.Store(int32(StateCompiled))
}

// MarkCompileFailed 记录一次编译失败
func (p *Profiler) MarkCompileFailed(meta *ir.FunctionMetadata) {
	p.Function(meta).CompileFails.Inc()
}

// ShouldCompile 热点函数且编译失败不超过 3 次才编译
func (p *Profiler) ShouldCompile(meta *ir.FunctionMetadata) bool {
	fp := p.Function(meta)
	return fp.HotState() >= StateHot && fp.CompileFails.Load() < 3
}

// GetCallCount 函数调用次数
func (p *Profiler) GetCallCount(meta *ir.FunctionMetadata) int64 {
	return p.Function(meta).CallCount.Load()
}

// ============================================================================
// 统计信息
// ============================================================================

// ProfilerStats 检测器统计
type ProfilerStats struct {
	TotalCalls   int64
	HotFunctions int64
	Functions    int
}

// GetStats 获取统计信息
func (p *Profiler) GetStats() ProfilerStats {
	n := 0
	p.profiles.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return ProfilerStats{
		TotalCalls:   p.totalCalls.Load(),
		HotFunctions: p.hotFunctions.Load(),
		Functions:    n,
	}
}

// Reset 丢弃全部档案
func (p *Profiler) Reset() {
	p.profiles.Range(func(k, _ interface{}) bool {
		p.profiles.Delete(k)
		return true
	})
	p.totalCalls.Store(0)
	p.hotFunctions.Store(0)
}
