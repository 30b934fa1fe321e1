// clone.go - IR 深拷贝
//
// 拷贝自底向上进行，共享的 WriteTemporary 在副本中仍然共享：
// 原节点到副本的映射保证同一个临时值只复制一次。

package ir

import (
	"github.com/tangzhangming/mcjit/internal/errors"
)

// Cloner IR 拷贝器
type Cloner struct {
	symbols map[*Symbol]*Symbol
	temps   map[*WriteTemporary]*WriteTemporary
	// into 内联拷贝的目标函数
	into *FunctionMetadata
}

// NewCloner 创建拷贝器。symbols 为 nil 时符号保持原样，否则按映射替换
func NewCloner(symbols map[*Symbol]*Symbol) *Cloner {
	return &Cloner{
		symbols: symbols,
		temps:   make(map[*WriteTemporary]*WriteTemporary),
	}
}

// Into 副本将并入 fn：临时值在 fn 中重新编号，剖析下标置为 -1，
// 拷贝出的节点不再参与剖析
func (c *Cloner) Into(fn *FunctionMetadata) *Cloner {
	c.into = fn
	return c
}

func (c *Cloner) profileIndex(i int) int {
	if c.into != nil {
		return -1
	}
	return i
}

func (c *Cloner) temporaryIndex(i int) int {
	if c.into != nil {
		return c.into.NewTemporaryIndex()
	}
	return i
}

// Clone 以恒等符号映射拷贝节点
func Clone(n Node) Node {
	c := NewCloner(nil)
	if e, ok := n.(Expr); ok {
		return c.Expr(e)
	}
	return c.Stmt(n.(Stmt))
}

// Symbol 映射符号
func (c *Cloner) Symbol(s *Symbol) *Symbol {
	if m, ok := c.symbols[s]; ok {
		return m
	}
	return s
}

func (c *Cloner) exprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = c.Expr(e)
	}
	return out
}

func (c *Cloner) optExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	return c.Expr(e)
}

func (c *Cloner) optStmt(s Stmt) Stmt {
	if s == nil {
		return nil
	}
	return c.Stmt(s)
}

func (c *Cloner) block(b *Block) *Block {
	if b == nil {
		return nil
	}
	return c.Stmt(b).(*Block)
}

// Expr 拷贝表达式
func (c *Cloner) Expr(e Expr) Expr {
	var out Expr
	switch x := e.(type) {
	case *Literal:
		out = &Literal{Value: x.Value}
	case *This:
		out = &This{}
	case *ObjectLiteral:
		props := make([]PropertyInit, len(x.Properties))
		for i, p := range x.Properties {
			props[i] = PropertyInit{Name: p.Name, Field: p.Field, Value: c.Expr(p.Value)}
		}
		out = &ObjectLiteral{Properties: props}
	case *ArrayLiteral:
		out = &ArrayLiteral{Elements: c.exprs(x.Elements)}
	case *FunctionExpression:
		out = &FunctionExpression{Metadata: x.Metadata}
	case *ReadIdentifier:
		out = &ReadIdentifier{Symbol: c.Symbol(x.Symbol)}
	case *WriteIdentifier:
		out = &WriteIdentifier{Symbol: c.Symbol(x.Symbol), Value: c.Expr(x.Value)}
	case *ReadIndexer:
		out = &ReadIndexer{Container: c.Expr(x.Container), Index: c.Expr(x.Index), ProfileIndex: c.profileIndex(x.ProfileIndex)}
	case *WriteIndexer:
		out = &WriteIndexer{
			Container: c.Expr(x.Container), Index: c.Expr(x.Index), Value: c.Expr(x.Value),
			ProfileIndex: c.profileIndex(x.ProfileIndex),
		}
	case *ReadProperty:
		out = &ReadProperty{Container: c.Expr(x.Container), Name: x.Name, Field: x.Field, ProfileIndex: c.profileIndex(x.ProfileIndex)}
	case *WriteProperty:
		out = &WriteProperty{
			Container: c.Expr(x.Container), Name: x.Name, Field: x.Field, Value: c.Expr(x.Value),
			ProfileIndex: c.profileIndex(x.ProfileIndex),
		}
	case *Unary:
		out = &Unary{Op: x.Op, Operand: c.Expr(x.Operand)}
	case *Binary:
		out = &Binary{Op: x.Op, Left: c.Expr(x.Left), Right: c.Expr(x.Right)}
	case *Ternary:
		out = &Ternary{Cond: c.Expr(x.Cond), Then: c.Expr(x.Then), Else: c.Expr(x.Else)}
	case *Comma:
		out = &Comma{Exprs: c.exprs(x.Exprs)}
	case *Call:
		out = &Call{Callee: c.Expr(x.Callee), This: c.optExpr(x.This), Args: c.exprs(x.Args), ProfileIndex: c.profileIndex(x.ProfileIndex)}
	case *New:
		out = &New{Callee: c.Expr(x.Callee), Args: c.exprs(x.Args), ProfileIndex: c.profileIndex(x.ProfileIndex)}
	case *WriteTemporary:
		if t, ok := c.temps[x]; ok {
			return t
		}
		t := &WriteTemporary{Index: c.temporaryIndex(x.Index)}
		t.SetType(x.Type())
		c.temps[x] = t
		t.Value = c.Expr(x.Value)
		return t
	case *GuardedCast:
		out = &GuardedCast{
			Value: c.Expr(x.Value), ProfileIndex: c.profileIndex(x.ProfileIndex),
			IsRequired: x.IsRequired, Narrowed: x.Narrowed,
		}
	default:
		errors.Fail(errors.I0005, e.Kind())
	}
	out.SetType(e.Type())
	return out
}

// Stmt 拷贝语句
func (c *Cloner) Stmt(s Stmt) Stmt {
	switch x := s.(type) {
	case *Block:
		stmts := make([]Stmt, len(x.Statements))
		for i, st := range x.Statements {
			stmts[i] = c.Stmt(st)
		}
		return &Block{Statements: stmts}
	case *ExpressionStatement:
		return &ExpressionStatement{Expr: c.Expr(x.Expr)}
	case *Empty:
		return &Empty{}
	case *If:
		return &If{Cond: c.Expr(x.Cond), Then: c.Stmt(x.Then), Else: c.optStmt(x.Else)}
	case *While:
		return &While{Cond: c.Expr(x.Cond), Body: c.Stmt(x.Body)}
	case *DoWhile:
		return &DoWhile{Body: c.Stmt(x.Body), Cond: c.Expr(x.Cond)}
	case *For:
		return &For{Init: c.optStmt(x.Init), Cond: c.optExpr(x.Cond), Update: c.optExpr(x.Update), Body: c.Stmt(x.Body)}
	case *Label:
		return &Label{Name: x.Name, Body: c.Stmt(x.Body)}
	case *Break:
		return &Break{Label: x.Label}
	case *Continue:
		return &Continue{Label: x.Label}
	case *Return:
		return &Return{Value: c.optExpr(x.Value)}
	case *Throw:
		return &Throw{Value: c.Expr(x.Value)}
	case *Try:
		t := &Try{Body: c.block(x.Body), Catch: c.block(x.Catch), Finally: c.block(x.Finally)}
		if x.CatchSymbol != nil {
			t.CatchSymbol = c.Symbol(x.CatchSymbol)
		}
		return t
	case *Switch:
		cases := make([]*Case, len(x.Cases))
		disc := c.Expr(x.Discriminant)
		for i, cs := range x.Cases {
			body := make([]Stmt, len(cs.Body))
			for j, st := range cs.Body {
				body[j] = c.Stmt(st)
			}
			cases[i] = &Case{Test: c.optExpr(cs.Test), Body: body}
		}
		return &Switch{Discriminant: disc, Cases: cases}
	}
	errors.Fail(errors.I0005, s.Kind())
	return nil
}

// ============================================================================
// 函数拷贝
// ============================================================================

// CloneFunction 拷贝函数：新的作用域和符号，类型信息重置为 Unknown
//
// 内层函数的元数据保持共享，它们按名字经由上下文链访问本函数的变量。
func CloneFunction(fn *FunctionMetadata) *FunctionMetadata {
	out := &FunctionMetadata{
		ID:              fn.ID,
		Name:            fn.Name,
		IsProgram:       fn.IsProgram,
		Parent:          fn.Parent,
		SubFunctions:    fn.SubFunctions,
		DefinitionIndex: fn.DefinitionIndex,
		ProfileSize:     fn.ProfileSize,
		TemporaryCount:  fn.TemporaryCount,
		Origin:          fn,
	}

	symbols := make(map[*Symbol]*Symbol)
	scopes := make(map[*Scope]*Scope)
	cloneScope := func(s *Scope) *Scope {
		parent := s.Parent
		if p, ok := scopes[parent]; ok {
			parent = p
		}
		ns := NewScope(parent, out, s.IsFunction)
		ns.HasEval, ns.HasWith, ns.UsesArguments = s.HasEval, s.HasWith, s.UsesArguments
		for _, sym := range s.Symbols {
			n := ns.Add(sym.Name, sym.Kind)
			n.ParameterIndex = sym.ParameterIndex
			n.Outer = sym.Outer
			n.Depth = sym.Depth
			n.Declared = sym.Declared
			symbols[sym] = n
		}
		scopes[s] = ns
		return ns
	}

	out.Scope = cloneScope(fn.Scope)
	for _, s := range fn.BlockScopes {
		out.BlockScopes = append(out.BlockScopes, cloneScope(s))
	}
	for _, sym := range symbols {
		if sym.Kind == SymbolOuterDuplicate {
			if m, ok := symbols[sym.Outer]; ok {
				sym.Outer = m
			}
		}
	}
	out.Parameters = make([]*Symbol, len(fn.Parameters))
	for i, p := range fn.Parameters {
		out.Parameters[i] = symbols[p]
	}
	if fn.Body != nil {
		out.Body = NewCloner(symbols).block(fn.Body)
	}
	return out
}
