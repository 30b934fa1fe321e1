package interp

import (
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

type tempEntry struct {
	node  *ir.WriteTemporary
	value runtime.Value
}

// temps 临时值登记表
//
// 按节点身份登记已求值的临时值。释放检查点之后的条目后，下一次访问重新求值。
type temps struct {
	entries []tempEntry
}

// Checkpoint 当前登记的个数
func (t *temps) Checkpoint() int { return len(t.entries) }

// ReleaseAfter 丢弃检查点之后登记的临时值
func (t *temps) ReleaseAfter(cp int) {
	if cp < len(t.entries) {
		for i := cp; i < len(t.entries); i++ {
			t.entries[i] = tempEntry{}
		}
		t.entries = t.entries[:cp]
	}
}

// Lookup 查找已求值的临时值
func (t *temps) Lookup(n *ir.WriteTemporary) (runtime.Value, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].node == n {
			return t.entries[i].value, true
		}
	}
	return runtime.UndefinedValue, false
}

// Add 登记临时值
func (t *temps) Add(n *ir.WriteTemporary, v runtime.Value) {
	t.entries = append(t.entries, tempEntry{node: n, value: v})
}
