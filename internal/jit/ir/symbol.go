package ir

import (
	"fmt"
	"sync"

	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// 符号
// ============================================================================

// SymbolKind 符号种类，决定存储方式
type SymbolKind uint8

const (
	SymbolParameter      SymbolKind = iota // 形参
	SymbolLocal                            // 局部变量
	SymbolHiddenLocal                      // 编译器引入的局部变量
	SymbolClosedOnLocal                    // 被内层函数捕获的局部变量或形参
	SymbolParentLocal                      // 外层函数的变量
	SymbolGlobal                           // 全局对象上的属性
	SymbolArguments                        // arguments 对象
	SymbolUnknown                          // 编译期无法解析（存在 eval/with）
	SymbolOuterDuplicate                   // 块作用域中指向外层符号的别名
)

var symbolKindNames = [...]string{
	"Parameter", "Local", "HiddenLocal", "ClosedOnLocal", "ParentLocal",
	"Global", "Arguments", "Unknown", "OuterDuplicate",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return fmt.Sprintf("SymbolKind(%d)", k)
}

// Symbol 标识符在某个作用域中的绑定
type Symbol struct {
	Name           string
	Kind           SymbolKind
	ParameterIndex int // 非形参为 -1
	ValueType      types.ValueType
	Scope          *Scope
	Index          int     // 在所属作用域中的序号
	Outer          *Symbol // OuterDuplicate/ParentLocal 指向的外层符号
	Depth          int     // ParentLocal 跨越的函数层数
	Declared       bool    // 由 var/函数声明引入

	fieldOnce sync.Once
	field     runtime.FieldID
}

// FieldID 符号名对应的字段 id，首次使用时分配
func (s *Symbol) FieldID() runtime.FieldID {
	s.fieldOnce.Do(func() { s.field = runtime.FieldIDOf(s.Name) })
	return s.field
}

// IsParameter 是否绑定到形参（包括被捕获的形参）
func (s *Symbol) IsParameter() bool { return s.ParameterIndex >= 0 }

// IsClosedOn 是否被内层函数捕获
func (s *Symbol) IsClosedOn() bool { return s.Kind == SymbolClosedOnLocal }

// Resolve 沿 OuterDuplicate 链返回实际符号
func (s *Symbol) Resolve() *Symbol {
	for s.Kind == SymbolOuterDuplicate && s.Outer != nil {
		s = s.Outer
	}
	return s
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Name, s.Kind)
}

// ============================================================================
// 作用域
// ============================================================================

// Scope 符号表。函数作用域之外只有 catch 子句引入的块作用域
type Scope struct {
	Parent     *Scope
	Function   *FunctionMetadata
	IsFunction bool

	// HasEval/HasWith 为真时无法在编译期解析的名字成为 Unknown 符号
	HasEval bool
	HasWith bool

	// UsesArguments 函数体引用了 arguments
	UsesArguments bool

	Symbols []*Symbol
	byName  map[string]*Symbol
}

// NewScope 创建作用域
func NewScope(parent *Scope, fn *FunctionMetadata, isFunction bool) *Scope {
	return &Scope{
		Parent:     parent,
		Function:   fn,
		IsFunction: isFunction,
		byName:     make(map[string]*Symbol),
	}
}

// Lookup 只在本作用域中查找
func (s *Scope) Lookup(name string) *Symbol {
	return s.byName[name]
}

// Add 添加符号，同名符号已存在时返回已有的
func (s *Scope) Add(name string, kind SymbolKind) *Symbol {
	if sym, ok := s.byName[name]; ok {
		return sym
	}
	sym := &Symbol{
		Name:           name,
		Kind:           kind,
		ParameterIndex: -1,
		ValueType:      types.Unknown,
		Scope:          s,
		Index:          len(s.Symbols),
	}
	s.Symbols = append(s.Symbols, sym)
	s.byName[name] = sym
	return sym
}

// FunctionScope 返回所在的函数作用域
func (s *Scope) FunctionScope() *Scope {
	for !s.IsFunction && s.Parent != nil {
		s = s.Parent
	}
	return s
}

// IsDynamic 作用域链上是否有 eval 或 with
func (s *Scope) IsDynamic() bool {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.HasEval || cur.HasWith {
			return true
		}
	}
	return false
}

// Count 符号个数
func (s *Scope) Count() int { return len(s.Symbols) }
