package ir

import (
	"github.com/tangzhangming/mcjit/internal/errors"
)

// Rewrite 后序改写函数体中的表达式，visit 的返回值替换原节点
//
// 子节点先于父节点改写；visit 返回的新子树不再进入。共享的
// WriteTemporary 只改写一次，也不会被替换。
func Rewrite(fn *FunctionMetadata, visit func(Expr) Expr) {
	if fn.Body == nil {
		return
	}
	r := &rewriter{visit: visit, seen: make(map[*WriteTemporary]bool)}
	r.stmt(fn.Body)
}

type rewriter struct {
	visit func(Expr) Expr
	seen  map[*WriteTemporary]bool
}

func (r *rewriter) exprs(list []Expr) {
	for i, e := range list {
		list[i] = r.expr(e)
	}
}

func (r *rewriter) optExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	return r.expr(e)
}

func (r *rewriter) expr(e Expr) Expr {
	switch x := e.(type) {
	case *Literal, *This, *FunctionExpression, *ReadIdentifier:
	case *ObjectLiteral:
		for i := range x.Properties {
			x.Properties[i].Value = r.expr(x.Properties[i].Value)
		}
	case *ArrayLiteral:
		r.exprs(x.Elements)
	case *WriteIdentifier:
		x.Value = r.expr(x.Value)
	case *ReadIndexer:
		x.Container = r.expr(x.Container)
		x.Index = r.expr(x.Index)
	case *WriteIndexer:
		x.Container = r.expr(x.Container)
		x.Index = r.expr(x.Index)
		x.Value = r.expr(x.Value)
	case *ReadProperty:
		x.Container = r.expr(x.Container)
	case *WriteProperty:
		x.Container = r.expr(x.Container)
		x.Value = r.expr(x.Value)
	case *Unary:
		x.Operand = r.expr(x.Operand)
	case *Binary:
		x.Left = r.expr(x.Left)
		x.Right = r.expr(x.Right)
	case *Ternary:
		x.Cond = r.expr(x.Cond)
		x.Then = r.expr(x.Then)
		x.Else = r.expr(x.Else)
	case *Comma:
		r.exprs(x.Exprs)
	case *Call:
		x.Callee = r.expr(x.Callee)
		x.This = r.optExpr(x.This)
		r.exprs(x.Args)
	case *New:
		x.Callee = r.expr(x.Callee)
		r.exprs(x.Args)
	case *WriteTemporary:
		if !r.seen[x] {
			r.seen[x] = true
			x.Value = r.expr(x.Value)
		}
		return x
	case *GuardedCast:
		x.Value = r.expr(x.Value)
	default:
		errors.Fail(errors.I0005, e.Kind())
	}
	return r.visit(e)
}

func (r *rewriter) stmt(s Stmt) {
	switch x := s.(type) {
	case *Block:
		for _, st := range x.Statements {
			r.stmt(st)
		}
	case *ExpressionStatement:
		x.Expr = r.expr(x.Expr)
	case *Empty, *Break, *Continue:
	case *If:
		x.Cond = r.expr(x.Cond)
		r.stmt(x.Then)
		if x.Else != nil {
			r.stmt(x.Else)
		}
	case *While:
		x.Cond = r.expr(x.Cond)
		r.stmt(x.Body)
	case *DoWhile:
		r.stmt(x.Body)
		x.Cond = r.expr(x.Cond)
	case *For:
		if x.Init != nil {
			r.stmt(x.Init)
		}
		x.Cond = r.optExpr(x.Cond)
		r.stmt(x.Body)
		x.Update = r.optExpr(x.Update)
	case *Label:
		r.stmt(x.Body)
	case *Return:
		x.Value = r.optExpr(x.Value)
	case *Throw:
		x.Value = r.expr(x.Value)
	case *Try:
		r.stmt(x.Body)
		if x.Catch != nil {
			r.stmt(x.Catch)
		}
		if x.Finally != nil {
			r.stmt(x.Finally)
		}
	case *Switch:
		x.Discriminant = r.expr(x.Discriminant)
		for _, c := range x.Cases {
			c.Test = r.optExpr(c.Test)
		}
		for _, c := range x.Cases {
			for _, st := range c.Body {
				r.stmt(st)
			}
		}
	default:
		errors.Fail(errors.I0005, s.Kind())
	}
}
