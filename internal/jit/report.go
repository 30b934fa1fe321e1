// report.go - 统计与报告

package jit

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/emirpasic/gods/maps/treemap"
)

// Stats 引擎统计信息
type Stats struct {
	Functions         int
	CompiledFunctions int
	Specializations   int
	TotalCompileTime  time.Duration
	CompileFailures   int64
	CacheHits         int64
	CacheMisses       int64
	Interpreted       int64
	Deopts            int64
}

// GetStats 获取统计信息
func (e *Engine) GetStats() Stats {
	total, compiled, specs := e.code.GetStats()
	return Stats{
		Functions:         int(total),
		CompiledFunctions: int(compiled),
		Specializations:   int(specs),
		TotalCompileTime:  e.compileTime.Load(),
		CompileFailures:   e.compileFails.Load(),
		CacheHits:         e.cacheHits.Load(),
		CacheMisses:       e.cacheMisses.Load(),
		Interpreted:       e.interpreted.Load(),
		Deopts:            e.counters.Value("JS/Deopt"),
	}
}

// Reset 丢弃已安装的特化与热度档案
//
// 计数器与计时器保留，节点剖析随热度档案一起丢弃。
func (e *Engine) Reset() {
	e.code.Reset()
	e.profiler.Reset()
	e.compileTime.Store(0)
	e.compileFails.Store(0)
	e.cacheHits.Store(0)
	e.cacheMisses.Store(0)
	e.interpreted.Store(0)
}

// ReportEntry 报告中的一行：计数器或计时器
type ReportEntry struct {
	Name    string
	Count   int64
	Total   time.Duration
	IsTimer bool
}

func (r ReportEntry) String() string {
	if !r.IsTimer {
		return fmt.Sprintf("%s: %s", r.Name, humanize.Comma(r.Count))
	}
	avg := time.Duration(0)
	if r.Count > 0 {
		avg = r.Total / time.Duration(r.Count)
	}
	return fmt.Sprintf("%s: %s calls, total %s, avg %s", r.Name, humanize.Comma(r.Count), r.Total, avg)
}

// Report 按名称排序的计数器与计时器
//
// 同名的计数器与计时器（如 JS/Execute/<函数>）合并为一行计时器。
func (e *Engine) Report() []ReportEntry {
	tm := treemap.NewWithStringComparator()
	for name, v := range e.counters.Snapshot() {
		tm.Put(name, ReportEntry{Name: name, Count: v})
	}
	for name, ts := range e.timers.Snapshot() {
		tm.Put(name, ReportEntry{Name: name, Count: ts.Count, Total: ts.Total, IsTimer: true})
	}

	out := make([]ReportEntry, 0, tm.Size())
	it := tm.Iterator()
	for it.Next() {
		out = append(out, it.Value().(ReportEntry))
	}
	return out
}
