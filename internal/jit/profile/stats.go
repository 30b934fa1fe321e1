package profile

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ============================================================================
// 计数器
// ============================================================================

// Counters 按名称的计数器集合，如 JS/Execute/<函数>、JS/Op/<运算>、JS/Deopt
type Counters struct {
	mu sync.RWMutex
	m  map[string]*atomic.Int64
}

// NewCounters 创建计数器集合
func NewCounters() *Counters {
	return &Counters{m: make(map[string]*atomic.Int64)}
}

// Get 获取或创建计数器
func (c *Counters) Get(name string) *atomic.Int64 {
	c.mu.RLock()
	v, ok := c.m[name]
	c.mu.RUnlock()
	if ok {
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[name]; ok {
		return v
	}
	v = atomic.NewInt64(0)
	c.m[name] = v
	return v
}

// Value 计数器当前值，不存在时为 0
func (c *Counters) Value(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.m[name]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot 全部计数器的快照
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v.Load()
	}
	return out
}

// Names 排序后的计数器名
func (c *Counters) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.m))
	for k := range c.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
// 计时器
// ============================================================================

// Timer 累计耗时与次数
type Timer struct {
	Total atomic.Duration
	Count atomic.Int64
}

// Start 开始计时，返回的函数结束计时
func (t *Timer) Start() func() {
	begin := time.Now()
	return func() {
		t.Total.Add(time.Since(begin))
		t.Count.Inc()
	}
}

// Timers 按名称的计时器集合，如 JS/Execute、JS/Jit
type Timers struct {
	mu sync.RWMutex
	m  map[string]*Timer
}

// NewTimers 创建计时器集合
func NewTimers() *Timers {
	return &Timers{m: make(map[string]*Timer)}
}

// Get 获取或创建计时器
func (t *Timers) Get(name string) *Timer {
	t.mu.RLock()
	v, ok := t.m[name]
	t.mu.RUnlock()
	if ok {
		return v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.m[name]; ok {
		return v
	}
	v = &Timer{}
	t.m[name] = v
	return v
}

// TimerStat 计时器快照
type TimerStat struct {
	Total time.Duration
	Count int64
}

// Snapshot 全部计时器的快照
func (t *Timers) Snapshot() map[string]TimerStat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]TimerStat, len(t.m))
	for k, v := range t.m {
		out[k] = TimerStat{Total: v.Total.Load(), Count: v.Count.Load()}
	}
	return out
}
