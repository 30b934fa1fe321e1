package ir

import (
	"go.uber.org/atomic"
)

var nextFunctionID atomic.Int32

// FunctionMetadata 函数的编译单元
type FunctionMetadata struct {
	ID        int32
	Name      string
	IsProgram bool

	Parent       *FunctionMetadata
	SubFunctions []*FunctionMetadata
	// DefinitionIndex 在父函数 SubFunctions 中的位置
	DefinitionIndex int

	Scope *Scope
	// BlockScopes catch 子句引入的块作用域
	BlockScopes []*Scope
	Parameters  []*Symbol
	Body        *Block

	// ProfileSize 分配出去的剖析下标个数
	ProfileSize int
	// TemporaryCount 临时值个数
	TemporaryCount int

	// Origin 克隆出的副本指回原函数，原函数为 nil
	Origin *FunctionMetadata
}

// NewFunctionMetadata 创建函数元数据及其作用域
func NewFunctionMetadata(name string, parent *FunctionMetadata) *FunctionMetadata {
	fn := &FunctionMetadata{
		ID:     nextFunctionID.Inc(),
		Name:   name,
		Parent: parent,
	}
	var parentScope *Scope
	if parent != nil {
		parentScope = parent.Scope
		fn.DefinitionIndex = len(parent.SubFunctions)
		parent.SubFunctions = append(parent.SubFunctions, fn)
	}
	fn.Scope = NewScope(parentScope, fn, true)
	return fn
}

// ParameterCount 声明的形参个数
func (fn *FunctionMetadata) ParameterCount() int { return len(fn.Parameters) }

// UsesArguments 是否物化 arguments 对象
func (fn *FunctionMetadata) UsesArguments() bool { return fn.Scope.UsesArguments }

// Root 返回克隆链的原函数
func (fn *FunctionMetadata) Root() *FunctionMetadata {
	for fn.Origin != nil {
		fn = fn.Origin
	}
	return fn
}

// NewProfileIndex 分配一个剖析下标
func (fn *FunctionMetadata) NewProfileIndex() int {
	i := fn.ProfileSize
	fn.ProfileSize++
	return i
}

// NewTemporaryIndex 分配一个临时槽位编号
func (fn *FunctionMetadata) NewTemporaryIndex() int {
	i := fn.TemporaryCount
	fn.TemporaryCount++
	return i
}

// FullName 带外层函数名的名字，用于日志和计数器
func (fn *FunctionMetadata) FullName() string {
	if fn.Parent == nil || fn.Parent.IsProgram {
		return fn.Name
	}
	return fn.Parent.FullName() + "." + fn.Name
}

// AllSymbols 函数作用域与块作用域中的全部符号
func (fn *FunctionMetadata) AllSymbols() []*Symbol {
	list := append([]*Symbol(nil), fn.Scope.Symbols...)
	for _, s := range fn.BlockScopes {
		list = append(list, s.Symbols...)
	}
	return list
}

// ClosedOnSymbols 被内层函数捕获的本函数符号
func (fn *FunctionMetadata) ClosedOnSymbols() []*Symbol {
	var list []*Symbol
	for _, sym := range fn.AllSymbols() {
		if sym.IsClosedOn() {
			list = append(list, sym)
		}
	}
	return list
}
