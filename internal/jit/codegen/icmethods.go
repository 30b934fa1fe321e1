// icmethods.go - 运算点的内联缓存
//
// 每个一元/二元运算点缓存 (操作数标签 → 重载) 映射。缓存内容是不可变的
// 快照，未命中时构建新快照并整体替换，多个活动记录并发执行同一份代码时
// 不需要加锁。

package codegen

import (
	"go.uber.org/atomic"

	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ICState 内联缓存状态
type ICState byte

const (
	ICUninitialized ICState = iota // 未初始化
	ICMonomorphic                  // 单态（只见过一组操作数类型）
	ICPolymorphic                  // 多态（见过多组，但有限）
	ICMegamorphic                  // 超多态（放弃缓存，每次查表）
)

var icStateNames = [...]string{"uninitialized", "monomorphic", "polymorphic", "megamorphic"}

func (s ICState) String() string {
	if int(s) < len(icStateNames) {
		return icStateNames[s]
	}
	return "invalid"
}

// MaxPolymorphicEntries 多态缓存最大条目数
const MaxPolymorphicEntries = 4

// ICEntry 缓存条目
type ICEntry struct {
	Left, Right types.ValueType
	Operation   *ops.Operation
}

// icSnapshot 某一时刻的缓存内容，创建后不再修改
type icSnapshot struct {
	state   ICState
	entries []ICEntry
}

var emptySnapshot = &icSnapshot{state: ICUninitialized}

// InlineCache 一个运算点的缓存
type InlineCache struct {
	op    ops.Operator
	table *ops.Table
	ret   types.ValueType

	snapshot atomic.Value // *icSnapshot
	rebuilds *atomic.Int64
	counter  *atomic.Int64
	timer    *profile.Timer
}

// newInlineCache rebuilds 计入引擎的 JS/IC/Rebuild，counter 与 timer 可以为 nil
func (g *Generator) newInlineCache(op ops.Operator, ret types.ValueType) *InlineCache {
	ic := &InlineCache{
		op:       op,
		table:    g.Host.Ops(),
		ret:      ret,
		rebuilds: g.Host.Counters().Get("JS/IC/Rebuild"),
		counter:  g.opCounter(op),
		timer:    g.opTimer(op),
	}
	ic.snapshot.Store(emptySnapshot)
	return ic
}

// State 当前状态
func (ic *InlineCache) State() ICState { return ic.load().state }

// Entries 当前缓存的条目
func (ic *InlineCache) Entries() []ICEntry { return ic.load().entries }

func (ic *InlineCache) load() *icSnapshot { return ic.snapshot.Load().(*icSnapshot) }

// Lookup 查找缓存
func (ic *InlineCache) Lookup(t0, t1 types.ValueType) (*ops.Operation, bool) {
	s := ic.load()
	if s.state == ICUninitialized || s.state == ICMegamorphic {
		return nil, false
	}
	for i := range s.entries {
		if s.entries[i].Left == t0 && s.entries[i].Right == t1 {
			return s.entries[i].Operation, true
		}
	}
	return nil, false
}

// Update 为观察到的类型查找重载并安装新快照
func (ic *InlineCache) Update(t0, t1 types.ValueType) *ops.Operation {
	o := ic.table.Lookup(ic.op, t0, t1)
	s := ic.load()
	if s.state == ICMegamorphic {
		return o
	}

	next := &icSnapshot{}
	switch {
	case len(s.entries) >= MaxPolymorphicEntries:
		next.state = ICMegamorphic
	case s.state == ICUninitialized:
		next.state = ICMonomorphic
		next.entries = []ICEntry{{Left: t0, Right: t1, Operation: o}}
	default:
		next.state = ICPolymorphic
		next.entries = append(append(make([]ICEntry, 0, len(s.entries)+1), s.entries...),
			ICEntry{Left: t0, Right: t1, Operation: o})
	}
	ic.snapshot.Store(next)
	ic.rebuilds.Inc()
	return o
}

// Run1 执行一元运算，未命中时更新缓存
func (ic *InlineCache) Run1(a runtime.Value) runtime.Value {
	if ic.timer != nil {
		defer ic.timer.Start()()
	}
	if ic.counter != nil {
		ic.counter.Inc()
	}
	o, ok := ic.Lookup(a.Type, types.Undefined)
	if !ok {
		o = ic.Update(a.Type, types.Undefined)
	}
	return Coerce(o.Run1(a), ic.ret)
}

// Run2 执行二元运算，未命中时更新缓存
func (ic *InlineCache) Run2(a, b runtime.Value) runtime.Value {
	if ic.timer != nil {
		defer ic.timer.Start()()
	}
	if ic.counter != nil {
		ic.counter.Inc()
	}
	o, ok := ic.Lookup(a.Type, b.Type)
	if !ok {
		o = ic.Update(a.Type, b.Type)
	}
	return Coerce(o.Run2(a, b), ic.ret)
}
