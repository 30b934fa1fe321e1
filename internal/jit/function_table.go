// function_table.go - 函数代码缓存
//
// 按 (函数, 后端) 登记已安装的特化：
// 1. 每个条目持有一组签名特化，调用时按安装顺序选第一个接受调用帧的
// 2. 去优化时特化从条目中移除
// 3. 同一条目的编译串行进行，编译前重新检查是否已有可用特化

package jit

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// ============================================================================
// 函数状态
// ============================================================================

// FunctionState 函数的编译状态
type FunctionState int32

const (
	FuncStateNone      FunctionState = iota
	FuncStatePending                 // 已登记，尚未编译
	FuncStateCompiling               // 编译中
	FuncStateCompiled                // 至少安装了一个特化
	FuncStateFailed                  // 最近一次编译失败
)

func (s FunctionState) String() string {
	switch s {
	case FuncStatePending:
		return "pending"
	case FuncStateCompiling:
		return "compiling"
	case FuncStateCompiled:
		return "compiled"
	case FuncStateFailed:
		return "failed"
	default:
		return "none"
	}
}

// ============================================================================
// 函数条目
// ============================================================================

type entryKey struct {
	id      int32
	backend codegen.BackendKind
}

// FunctionEntry 一个函数在一个后端下的代码
type FunctionEntry struct {
	Meta    *ir.FunctionMetadata
	Backend codegen.BackendKind
	State   atomic.Int32

	mu      sync.RWMutex
	specs   []codegen.Specialization
	compile sync.Mutex

	Deopts atomic.Int64
}

// FunctionState 当前状态
func (fe *FunctionEntry) FunctionState() FunctionState {
	return FunctionState(fe.State.Load())
}

// Specializations 已安装特化的快照
func (fe *FunctionEntry) Specializations() []codegen.Specialization {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	out := make([]codegen.Specialization, len(fe.specs))
	copy(out, fe.specs)
	return out
}

// Find 第一个签名匹配的特化
func (fe *FunctionEntry) Find(sig types.Signature) codegen.Specialization {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	for _, s := range fe.specs {
		if s.Signature() == sig {
			return s
		}
	}
	return nil
}

// Install 安装特化
func (fe *FunctionEntry) Install(s codegen.Specialization) {
	fe.mu.Lock()
	fe.specs = append(fe.specs, s)
	fe.mu.Unlock()
	fe.State.Store(int32(FuncStateCompiled))
}

// Invalidate 移除去优化的特化，返回它是否仍在条目中
func (fe *FunctionEntry) Invalidate(s codegen.Specialization) bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	for i, x := range fe.specs {
		if x == s {
			fe.specs = append(fe.specs[:i:i], fe.specs[i+1:]...)
			if len(fe.specs) == 0 {
				fe.State.Store(int32(FuncStatePending))
			}
			return true
		}
	}
	return false
}

// ============================================================================
// 函数表
// ============================================================================

// FunctionTable 函数代码缓存
type FunctionTable struct {
	mu        sync.RWMutex
	functions map[entryKey]*FunctionEntry

	totalCompiled atomic.Int64
}

// NewFunctionTable 创建函数表
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{functions: make(map[entryKey]*FunctionEntry)}
}

// Entry 获取或登记函数条目，克隆出的函数归到原函数
func (ft *FunctionTable) Entry(meta *ir.FunctionMetadata, backend codegen.BackendKind) *FunctionEntry {
	root := meta.Root()
	key := entryKey{id: root.ID, backend: backend}

	ft.mu.RLock()
	entry, ok := ft.functions[key]
	ft.mu.RUnlock()
	if ok {
		return entry
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if entry, ok := ft.functions[key]; ok {
		return entry
	}
	entry = &FunctionEntry{Meta: root, Backend: backend}
	entry.State.Store(int32(FuncStatePending))
	ft.functions[key] = entry
	return entry
}

// Lookup 查找已登记的条目
func (ft *FunctionTable) Lookup(meta *ir.FunctionMetadata, backend codegen.BackendKind) (*FunctionEntry, bool) {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	entry, ok := ft.functions[entryKey{id: meta.Root().ID, backend: backend}]
	return entry, ok
}

// IsCompiled 函数在该后端下是否安装了特化
func (ft *FunctionTable) IsCompiled(meta *ir.FunctionMetadata, backend codegen.BackendKind) bool {
	entry, ok := ft.Lookup(meta, backend)
	return ok && entry.FunctionState() == FuncStateCompiled
}

// Entries 全部条目
func (ft *FunctionTable) Entries() []*FunctionEntry {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	out := make([]*FunctionEntry, 0, len(ft.functions))
	for _, entry := range ft.functions {
		out = append(out, entry)
	}
	return out
}

// GetStats 获取统计信息
func (ft *FunctionTable) GetStats() (totalFuncs, compiled, specializations int64) {
	for _, entry := range ft.Entries() {
		totalFuncs++
		if entry.FunctionState() == FuncStateCompiled {
			compiled++
		}
		specializations += int64(len(entry.Specializations()))
	}
	return
}

// Reset 清空函数表
func (ft *FunctionTable) Reset() {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.functions = make(map[entryKey]*FunctionEntry)
	ft.totalCompiled.Store(0)
}
