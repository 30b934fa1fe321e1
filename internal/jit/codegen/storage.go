// storage.go - 符号存储决策与值数组布局
//
// 每次编译（以及每次解释执行）都从符号种类重新决定存储方式，结果是一张
// 新的 map[*ir.Symbol]Storage。所有后端与解释器共享同一种值数组布局：
//
//	|context|arguments|形参...|局部变量...|操作数栈...|临时值...|

package codegen

import (
	"fmt"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// StorageKind 符号的存储方式
type StorageKind uint8

const (
	StorageArgument         StorageKind = iota // 值数组中的形参槽位
	StorageArgumentsElement                    // 与 arguments 元素别名的形参
	StorageSlot                                // 值数组中的局部变量槽位
	StorageContext                             // 上下文链上的字段
	StorageGlobal                              // 全局对象的属性
	StorageDynamic                             // 先上下文链，后全局对象
	StorageArgumentsObject                     // arguments 对象本身
)

var storageKindNames = [...]string{
	"Argument", "ArgumentsElement", "Slot", "Context", "Global", "Dynamic", "ArgumentsObject",
}

func (k StorageKind) String() string {
	if int(k) < len(storageKindNames) {
		return storageKindNames[k]
	}
	return fmt.Sprintf("StorageKind(%d)", k)
}

// Storage 一个符号的存储位置
type Storage struct {
	Kind StorageKind
	// Index 值数组下标（Argument/ArgumentsElement/Slot/ArgumentsObject）
	Index int
	// Param 形参序号，ArgumentsElement 用它定位 arguments 元素
	Param int
	// Type 写入时转换的目标类型
	Type  types.ValueType
	Field runtime.FieldID
	Name  string
	// Depth 上下文跨越的函数层数，只用于诊断，查找沿上下文链进行
	Depth int
	// Cacheable 作用域中没有 eval/with 时，活动记录可以缓存描述符
	Cacheable bool
	// Handle 描述符缓存下标，-1 表示不缓存
	Handle int
}

// 值数组中固定的下标
const (
	ContextIndex   = 0
	ArgumentsIndex = 1
	firstArgument  = 2
)

// Layout 一个函数的值数组布局与全部符号的存储
type Layout struct {
	Storage map[*ir.Symbol]Storage

	ArgCount    int
	SlotCount   int
	HandleCount int
	// StackSize 值数组中操作数栈区的大小，由后端在编译结束时设置
	StackSize int
	TempCount int

	// ParamTypes 形参槽位的类型，序言按它转换实参
	ParamTypes []types.ValueType
	// ClosedOn 需要放进本函数上下文的符号
	ClosedOn []*ir.Symbol
	// Globals 程序顶层声明的全局变量
	Globals []*ir.Symbol

	UsesArguments bool
	IsProgram     bool

	// Inlined 按调用点剖析下标记录展开的被调函数，续跑时照此重新编译
	Inlined map[int]*runtime.Function
}

// SlotBase 局部变量区的起点
func (l *Layout) SlotBase() int { return firstArgument + l.ArgCount }

// StackBase 操作数栈区的起点
func (l *Layout) StackBase() int { return l.SlotBase() + l.SlotCount }

// TempBase 临时值区的起点
func (l *Layout) TempBase() int { return l.StackBase() + l.StackSize }

// TempIndex 编号为 i 的临时值的下标
func (l *Layout) TempIndex(i int) int { return l.TempBase() + i }

// Size 值数组长度
func (l *Layout) Size() int { return l.TempBase() + l.TempCount }

// Lookup 查找符号的存储，未绑定的符号是内部错误
func (l *Layout) Lookup(sym *ir.Symbol) Storage {
	st, ok := l.Storage[sym]
	if !ok {
		errors.Fail(errors.I0003, sym.Kind, sym.Name)
	}
	return st
}

// DecideStorage 由符号种类决定存储方式
func DecideStorage(sym *ir.Symbol, fn *ir.FunctionMetadata) StorageKind {
	switch sym.Kind {
	case ir.SymbolParameter:
		if fn.UsesArguments() {
			return StorageArgumentsElement
		}
		return StorageArgument
	case ir.SymbolLocal, ir.SymbolHiddenLocal:
		return StorageSlot
	case ir.SymbolClosedOnLocal, ir.SymbolParentLocal:
		return StorageContext
	case ir.SymbolGlobal:
		return StorageGlobal
	case ir.SymbolUnknown:
		return StorageDynamic
	case ir.SymbolArguments:
		return StorageArgumentsObject
	case ir.SymbolOuterDuplicate:
		if target := sym.Resolve(); target != sym && target.Kind != ir.SymbolOuterDuplicate {
			return DecideStorage(target, fn)
		}
	}
	errors.Fail(errors.I0003, sym.Kind, sym.Name)
	return StorageDynamic
}

// Bind 为函数的全部符号分配存储
//
// 局部变量和形参槽位的类型来自类型计算；未经类型计算的函数（解释器）
// 全部按 DValueRef 存储。
func Bind(fn *ir.FunctionMetadata) *Layout {
	l := &Layout{
		Storage:       make(map[*ir.Symbol]Storage),
		ArgCount:      fn.ParameterCount(),
		TempCount:     fn.TemporaryCount,
		UsesArguments: fn.UsesArguments(),
		IsProgram:     fn.IsProgram,
	}
	l.ParamTypes = make([]types.ValueType, l.ArgCount)
	for i := range l.ParamTypes {
		l.ParamTypes[i] = types.DValueRef
	}
	cacheable := !fn.Scope.IsDynamic()

	var duplicates []*ir.Symbol
	for _, sym := range fn.AllSymbols() {
		if sym.Kind == ir.SymbolOuterDuplicate {
			duplicates = append(duplicates, sym)
			continue
		}
		st := Storage{
			Kind:   DecideStorage(sym, fn),
			Param:  sym.ParameterIndex,
			Type:   types.DValueRef,
			Field:  sym.FieldID(),
			Name:   sym.Name,
			Depth:  sym.Depth,
			Handle: -1,
		}
		switch st.Kind {
		case StorageArgument:
			st.Index = firstArgument + sym.ParameterIndex
			st.Type = types.Widen(sym.ValueType)
			l.ParamTypes[sym.ParameterIndex] = st.Type
		case StorageArgumentsElement:
			st.Index = firstArgument + sym.ParameterIndex
		case StorageSlot:
			st.Index = l.SlotBase() + l.SlotCount
			st.Type = types.Widen(sym.ValueType)
			l.SlotCount++
		case StorageContext:
			st.Cacheable = cacheable
			if cacheable {
				st.Handle = l.HandleCount
				l.HandleCount++
			}
			if sym.IsClosedOn() {
				l.ClosedOn = append(l.ClosedOn, sym)
			}
		case StorageGlobal:
			if fn.IsProgram && sym.Declared {
				l.Globals = append(l.Globals, sym)
			}
		case StorageArgumentsObject:
			st.Index = ArgumentsIndex
		}
		l.Storage[sym] = st
	}

	for _, dup := range duplicates {
		st, ok := l.Storage[dup.Resolve()]
		if !ok {
			errors.Fail(errors.I0003, dup.Kind, dup.Name)
		}
		l.Storage[dup] = st
	}
	return l
}

// Coerce 把值转换为静态原始类型的表示，对象族与装箱类型原样返回
func Coerce(v runtime.Value, t types.ValueType) runtime.Value {
	if v.Type == t || !t.IsPrimitive() {
		return v
	}
	return v.As(t)
}
