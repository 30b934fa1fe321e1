package profile

import (
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// FunctionProfiler 一个函数全部节点的剖析数据
//
// 按节点的 ProfileIndex 下标存放，首次访问时分配。克隆出的函数与原函数
// 共用下标，因此共用同一个 FunctionProfiler。
type FunctionProfiler struct {
	Meta   *ir.FunctionMetadata
	policy Policy

	guards []*GuardNodeProfile
	maps   []*MapNodeProfile
	calls  []*CallNodeProfile
}

// NewFunctionProfiler 为函数创建剖析器
func NewFunctionProfiler(meta *ir.FunctionMetadata, policy Policy) *FunctionProfiler {
	n := meta.Root().ProfileSize
	return &FunctionProfiler{
		Meta:   meta.Root(),
		policy: policy.normalized(),
		guards: make([]*GuardNodeProfile, n),
		maps:   make([]*MapNodeProfile, n),
		calls:  make([]*CallNodeProfile, n),
	}
}

func inRange(i, n int) bool { return i >= 0 && i < n }

// GetOrAddGuardProfile 守卫节点的剖析，下标越界时返回 nil
func (p *FunctionProfiler) GetOrAddGuardProfile(node *ir.GuardedCast) *GuardNodeProfile {
	if p == nil || !inRange(node.ProfileIndex, len(p.guards)) {
		return nil
	}
	g := p.guards[node.ProfileIndex]
	if g == nil {
		g = &GuardNodeProfile{Record: NewProfileRecord(p.policy)}
		p.guards[node.ProfileIndex] = g
	}
	return g
}

// GuardProfile 只查询不分配
func (p *FunctionProfiler) GuardProfile(node *ir.GuardedCast) *GuardNodeProfile {
	if p == nil || !inRange(node.ProfileIndex, len(p.guards)) {
		return nil
	}
	return p.guards[node.ProfileIndex]
}

// GetOrAddMapProfile 属性访问节点的剖析
func (p *FunctionProfiler) GetOrAddMapProfile(index int) *MapNodeProfile {
	if p == nil || !inRange(index, len(p.maps)) {
		return nil
	}
	m := p.maps[index]
	if m == nil {
		m = &MapNodeProfile{}
		p.maps[index] = m
	}
	return m
}

// MapProfile 只查询不分配
func (p *FunctionProfiler) MapProfile(index int) *MapNodeProfile {
	if p == nil || !inRange(index, len(p.maps)) {
		return nil
	}
	return p.maps[index]
}

// GetOrAddCallProfile 调用节点的剖析
func (p *FunctionProfiler) GetOrAddCallProfile(index int) *CallNodeProfile {
	if p == nil || !inRange(index, len(p.calls)) {
		return nil
	}
	c := p.calls[index]
	if c == nil {
		c = &CallNodeProfile{}
		p.calls[index] = c
	}
	return c
}

// CallProfile 只查询不分配
func (p *FunctionProfiler) CallProfile(index int) *CallNodeProfile {
	if p == nil || !inRange(index, len(p.calls)) {
		return nil
	}
	return p.calls[index]
}

// HotPrimitiveType 守卫节点的热原始类型，没有剖析时为 DValueRef
func (p *FunctionProfiler) HotPrimitiveType(node *ir.GuardedCast) types.ValueType {
	return p.GuardProfile(node).GetHotPrimitiveType()
}
