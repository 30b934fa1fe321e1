// record.go - 节点类型剖析
//
// 每个守卫节点持有一个 ProfileRecord：容量固定的类型多重集和未命中计数。
// 记录在每次执行守卫节点时更新，在每次（重新）编译时读取。
// 记录是软数据：并发更新可能丢失计数，但查询总是按阈值保守地回落到 DValueRef。

package profile

import (
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 策略
// ============================================================================

// Policy 剖析的调优参数
type Policy struct {
	// MaxMissCount 槽位已满时容忍的未命中次数，超过后替换最少见的槽位
	MaxMissCount int
	// HotnessThreshold 热类型的最低占比
	HotnessThreshold float64
	// MaxProfileSlots 每条记录的类型槽位数
	MaxProfileSlots int
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		MaxMissCount:     3,
		HotnessThreshold: 0.8,
		MaxProfileSlots:  2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxProfileSlots <= 0 {
		p.MaxProfileSlots = 1
	}
	if p.MaxMissCount < 0 {
		p.MaxMissCount = 0
	}
	return p
}

// ============================================================================
// 类型记录
// ============================================================================

// ProfileRecord 一个节点观察到的类型及频次
type ProfileRecord struct {
	Types     []types.ValueType
	Counters  []int
	MissCount int

	policy   Policy
	hot      types.ValueType
	hotValid bool
}

// NewProfileRecord 按策略创建记录
func NewProfileRecord(policy Policy) *ProfileRecord {
	policy = policy.normalized()
	return &ProfileRecord{
		Types:    make([]types.ValueType, policy.MaxProfileSlots),
		Counters: make([]int, policy.MaxProfileSlots),
		policy:   policy,
	}
}

// Update 记录一次观察
//
// undefined 与 null 不参与统计。
func (r *ProfileRecord) Update(t types.ValueType) {
	if t == types.Undefined || t == types.Null || !t.IsData() {
		return
	}
	r.hotValid = false

	free := -1
	for i, c := range r.Counters {
		if c == 0 {
			if free < 0 {
				free = i
			}
			continue
		}
		if r.Types[i] == t {
			r.Counters[i]++
			return
		}
	}
	if free >= 0 {
		r.Types[free] = t
		r.Counters[free] = 1
		return
	}

	r.MissCount++
	if r.MissCount <= r.policy.MaxMissCount {
		return
	}
	least := 0
	for i, c := range r.Counters {
		if c < r.Counters[least] {
			least = i
		}
	}
	r.Types[least] = t
	r.Counters[least] = 1
	r.MissCount = 0
}

// Total 记录的观察总数（含未命中）
func (r *ProfileRecord) Total() int {
	total := r.MissCount
	for _, c := range r.Counters {
		total += c
	}
	return total
}

// HotType 占比超过阈值的类型，否则 DValueRef
//
// 结果缓存到下一次 Update。
func (r *ProfileRecord) HotType() types.ValueType {
	if r == nil {
		return types.DValueRef
	}
	if r.hotValid {
		return r.hot
	}
	r.hot = types.DValueRef
	if total := r.Total(); total > 0 {
		best := 0
		for i, c := range r.Counters {
			if c > r.Counters[best] {
				best = i
			}
		}
		if c := r.Counters[best]; c > 0 && float64(c)/float64(total) > r.policy.HotnessThreshold {
			r.hot = r.Types[best]
		}
	}
	r.hotValid = true
	return r.hot
}

// HotPrimitiveType 热类型为原始类型（数值、布尔、字符串）时返回它，否则 DValueRef
func (r *ProfileRecord) HotPrimitiveType() types.ValueType {
	t := r.HotType()
	if IsSpeculative(t) {
		return t
	}
	return types.DValueRef
}

// IsSpeculative 类型能否作为推测收窄的目标
func IsSpeculative(t types.ValueType) bool {
	return t.IsNumber() || t == types.Boolean || t == types.String
}
