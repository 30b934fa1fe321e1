package profile

import (
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 守卫节点
// ============================================================================

// GuardNodeProfile 守卫节点的类型剖析
type GuardNodeProfile struct {
	Record *ProfileRecord
}

// UpdateNodeProfile 记录一次观察到的类型
func (p *GuardNodeProfile) UpdateNodeProfile(t types.ValueType) {
	p.Record.Update(t)
}

// GetHotType 热类型
func (p *GuardNodeProfile) GetHotType() types.ValueType {
	if p == nil {
		return types.DValueRef
	}
	return p.Record.HotType()
}

// GetHotPrimitiveType 热原始类型
func (p *GuardNodeProfile) GetHotPrimitiveType() types.ValueType {
	if p == nil {
		return types.DValueRef
	}
	return p.Record.HotPrimitiveType()
}

// ============================================================================
// 属性访问节点
// ============================================================================

// MapNodeProfile 属性访问点见过的对象形状
//
// 第一次记录形状和描述符；见到不同的形状后变为多态，且不再回到单态。
type MapNodeProfile struct {
	Map         *runtime.PropertyMap
	Descriptor  *runtime.PropertyDescriptor
	polymorphic bool
}

// UpdateNodeProfile 记录一次访问，返回本次是否由单态变为多态
//
// map 为 nil（容器不是对象）时不记录。
func (p *MapNodeProfile) UpdateNodeProfile(m *runtime.PropertyMap, pd *runtime.PropertyDescriptor) bool {
	if m == nil || p.polymorphic {
		return false
	}
	if p.Map == nil {
		p.Map = m
		p.Descriptor = pd
		return false
	}
	if p.Map != m {
		p.polymorphic = true
		p.Map = nil
		p.Descriptor = nil
		return true
	}
	return false
}

// IsTooDynamic 是否已多态
func (p *MapNodeProfile) IsTooDynamic() bool {
	return p == nil || p.polymorphic
}

// IsMonomorphic 是否恰好见过一种形状
func (p *MapNodeProfile) IsMonomorphic() bool {
	return p != nil && !p.polymorphic && p.Map != nil
}

// ============================================================================
// 调用节点
// ============================================================================

// CallNodeProfile 调用点见过的目标函数
type CallNodeProfile struct {
	target      *runtime.Function
	polymorphic bool
}

// UpdateNodeProfile 记录一次调用，返回本次是否由单态变为多态
func (p *CallNodeProfile) UpdateNodeProfile(target *runtime.Function) bool {
	if target == nil || p.polymorphic {
		return false
	}
	if p.target == nil {
		p.target = target
		return false
	}
	if p.target != target {
		p.polymorphic = true
		p.target = nil
		return true
	}
	return false
}

// Target 单态时的目标函数，否则 nil
func (p *CallNodeProfile) Target() *runtime.Function {
	if p == nil || p.polymorphic {
		return nil
	}
	return p.target
}

// IsPolymorphic 是否已多态
func (p *CallNodeProfile) IsPolymorphic() bool {
	return p == nil || p.polymorphic
}
