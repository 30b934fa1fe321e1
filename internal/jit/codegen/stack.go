package codegen

import (
	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

// StackModel 编译期的操作数栈模型
//
// 每个表达式求值后恰好留下一个值；每个结构化语句前后深度不变。
type StackModel struct {
	types []types.ValueType
	max   int
}

// Push 压入一个值，返回它所在的深度（从 0 开始）
func (s *StackModel) Push(t types.ValueType) int {
	s.types = append(s.types, t)
	if len(s.types) > s.max {
		s.max = len(s.types)
	}
	return len(s.types) - 1
}

// Pop 弹出 n 个值
func (s *StackModel) Pop(n int) {
	if n > len(s.types) {
		errors.Fail(errors.I0001, n, len(s.types))
	}
	s.types = s.types[:len(s.types)-n]
}

// Top 栈顶的类型
func (s *StackModel) Top() types.ValueType {
	if len(s.types) == 0 {
		errors.Fail(errors.I0001, 1, 0)
	}
	return s.types[len(s.types)-1]
}

// Depth 当前深度
func (s *StackModel) Depth() int { return len(s.types) }

// MaxDepth 出现过的最大深度
func (s *StackModel) MaxDepth() int { return s.max }

// Checkpoint 记录当前深度
func (s *StackModel) Checkpoint() int { return len(s.types) }

// Assert 检查深度回到了检查点
func (s *StackModel) Assert(checkpoint int) {
	if len(s.types) != checkpoint {
		errors.Fail(errors.I0001, checkpoint, len(s.types))
	}
}
