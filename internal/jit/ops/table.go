// table.go - 运算注册表
//
// 注册表在初始化时构建，之后只读共享。键为 (运算符, 操作数类型)，
// 值为 Operation：声明的返回类型和实现。精确匹配失败时回落到
// 以 DValueRef 为操作数的通用实现。
//
// 约束：非 DValueRef 返回类型的条目，其实现的结果标签必须等于声明的返回类型。
// 代码生成器依赖这一点把结果放进原生类型的存储。

package ops

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// UnaryFunc 一元运算实现
type UnaryFunc func(a runtime.Value) runtime.Value

// BinaryFunc 二元运算实现
type BinaryFunc func(a, b runtime.Value) runtime.Value

// Operation 一个已注册的重载
type Operation struct {
	Op         Operator
	Operands   [2]types.ValueType
	ReturnType types.ValueType
	Unary      UnaryFunc
	Binary     BinaryFunc
}

// IsGeneric 是否为通用实现
func (o *Operation) IsGeneric() bool {
	if o.Operands[0] != types.DValueRef {
		return false
	}
	return !o.Op.IsBinary() || o.Operands[1] == types.DValueRef
}

// Run1 执行一元运算
func (o *Operation) Run1(a runtime.Value) runtime.Value { return o.Unary(a) }

// Run2 执行二元运算
func (o *Operation) Run2(a, b runtime.Value) runtime.Value { return o.Binary(a, b) }

// Accepts 检查实际操作数标签是否满足该重载
func (o *Operation) Accepts(a, b types.ValueType) bool {
	if o.Operands[0] != types.DValueRef && o.Operands[0] != a {
		return false
	}
	if o.Op.IsBinary() && o.Operands[1] != types.DValueRef && o.Operands[1] != b {
		return false
	}
	return true
}

func (o *Operation) String() string {
	if o.Op.IsBinary() {
		return fmt.Sprintf("%s(%s,%s)->%s", o.Op, o.Operands[0], o.Operands[1], o.ReturnType)
	}
	return fmt.Sprintf("%s(%s)->%s", o.Op, o.Operands[0], o.ReturnType)
}

// ============================================================================
// 注册表
// ============================================================================

type key uint32

func makeKey(op Operator, t0, t1 types.ValueType) key {
	return key(op)<<16 | key(t0)<<8 | key(t1)
}

// Table 运算注册表
type Table struct {
	entries map[key]*Operation
}

// NewTable 创建并填充注册表
func NewTable() *Table {
	t := &Table{entries: make(map[key]*Operation, 512)}
	registerArithmetic(t)
	registerBitwise(t)
	registerCompare(t)
	registerUnary(t)
	registerConversions(t)
	return t
}

// RegisterUnary 注册一元重载
func (t *Table) RegisterUnary(op Operator, t0, ret types.ValueType, fn UnaryFunc) {
	t.entries[makeKey(op, t0, types.Undefined)] = &Operation{
		Op: op, Operands: [2]types.ValueType{t0, types.Undefined}, ReturnType: ret, Unary: fn,
	}
}

// RegisterBinary 注册二元重载
func (t *Table) RegisterBinary(op Operator, t0, t1, ret types.ValueType, fn BinaryFunc) {
	t.entries[makeKey(op, t0, t1)] = &Operation{
		Op: op, Operands: [2]types.ValueType{t0, t1}, ReturnType: ret, Binary: fn,
	}
}

// Lookup 查找重载：精确匹配，否则回落到通用实现
//
// 一元运算忽略 t1。找不到通用实现是内部错误。
func (t *Table) Lookup(op Operator, t0, t1 types.ValueType) *Operation {
	if !op.IsBinary() {
		t1 = types.Undefined
	}
	if o, ok := t.entries[makeKey(op, t0, t1)]; ok {
		return o
	}
	generic := types.Undefined
	if op.IsBinary() {
		generic = types.DValueRef
	}
	if o, ok := t.entries[makeKey(op, types.DValueRef, generic)]; ok {
		return o
	}
	errors.Fail(errors.I0002, op, []types.ValueType{t0, t1})
	return nil
}

// ReturnType 查询返回类型
func (t *Table) ReturnType(op Operator, t0, t1 types.ValueType) types.ValueType {
	return t.Lookup(op, t0, t1).ReturnType
}

// Len 已注册的重载个数
func (t *Table) Len() int { return len(t.entries) }

// Operations 返回按运算符和操作数排序的全部重载
func (t *Table) Operations() []*Operation {
	list := make([]*Operation, 0, len(t.entries))
	for _, o := range t.entries {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		return makeKey(list[i].Op, list[i].Operands[0], list[i].Operands[1]) <
			makeKey(list[j].Op, list[j].Operands[0], list[j].Operands[1])
	})
	return list
}

// Validate 检查注册表的一致性
//
// 每个条目必须有与元数匹配的实现，每个运算符必须有通用实现。
func (t *Table) Validate() error {
	var err error
	var hasGeneric [OperatorCount]bool
	for k, o := range t.entries {
		if k != makeKey(o.Op, o.Operands[0], o.Operands[1]) {
			err = multierr.Append(err, fmt.Errorf("%s: registered under a foreign key", o))
		}
		switch {
		case o.Op.IsBinary() && (o.Binary == nil || o.Unary != nil):
			err = multierr.Append(err, fmt.Errorf("%s: binary operation needs exactly a binary implementation", o))
		case !o.Op.IsBinary() && (o.Unary == nil || o.Binary != nil):
			err = multierr.Append(err, fmt.Errorf("%s: unary operation needs exactly a unary implementation", o))
		}
		if !o.ReturnType.IsValid() || o.ReturnType == types.Unknown {
			err = multierr.Append(err, fmt.Errorf("%s: invalid return type", o))
		}
		if o.IsGeneric() {
			hasGeneric[o.Op] = true
		}
	}
	for op := Operator(0); op < OperatorCount; op++ {
		if !hasGeneric[op] {
			err = multierr.Append(err, fmt.Errorf("%s: no generic implementation", op))
		}
	}
	return err
}
