package ir

// Children 按求值顺序返回子节点
func Children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch x := n.(type) {
	case *ObjectLiteral:
		for _, p := range x.Properties {
			add(p.Value)
		}
	case *ArrayLiteral:
		for _, e := range x.Elements {
			add(e)
		}
	case *WriteIdentifier:
		add(x.Value)
	case *ReadIndexer:
		add(x.Container, x.Index)
	case *WriteIndexer:
		add(x.Container, x.Index, x.Value)
	case *ReadProperty:
		add(x.Container)
	case *WriteProperty:
		add(x.Container, x.Value)
	case *Unary:
		add(x.Operand)
	case *Binary:
		add(x.Left, x.Right)
	case *Ternary:
		add(x.Cond, x.Then, x.Else)
	case *Comma:
		for _, e := range x.Exprs {
			add(e)
		}
	case *Call:
		add(x.Callee)
		if x.This != nil {
			add(x.This)
		}
		for _, a := range x.Args {
			add(a)
		}
	case *New:
		add(x.Callee)
		for _, a := range x.Args {
			add(a)
		}
	case *WriteTemporary:
		add(x.Value)
	case *GuardedCast:
		add(x.Value)
	case *Block:
		for _, s := range x.Statements {
			add(s)
		}
	case *ExpressionStatement:
		add(x.Expr)
	case *If:
		add(x.Cond, x.Then)
		if x.Else != nil {
			add(x.Else)
		}
	case *While:
		add(x.Cond, x.Body)
	case *DoWhile:
		add(x.Body, x.Cond)
	case *For:
		if x.Init != nil {
			add(x.Init)
		}
		if x.Cond != nil {
			add(x.Cond)
		}
		add(x.Body)
		if x.Update != nil {
			add(x.Update)
		}
	case *Label:
		add(x.Body)
	case *Return:
		if x.Value != nil {
			add(x.Value)
		}
	case *Throw:
		add(x.Value)
	case *Try:
		add(x.Body)
		if x.Catch != nil {
			add(x.Catch)
		}
		if x.Finally != nil {
			add(x.Finally)
		}
	case *Switch:
		add(x.Discriminant)
		for _, c := range x.Cases {
			if c.Test != nil {
				add(c.Test)
			}
		}
		for _, c := range x.Cases {
			for _, s := range c.Body {
				add(s)
			}
		}
	}
	return out
}

// Walk 先序遍历，共享的 WriteTemporary 只进入一次
//
// fn 返回 false 时不进入该节点的子节点。
func Walk(root Node, fn func(Node) bool) {
	seen := make(map[*WriteTemporary]bool)
	var visit func(Node)
	visit = func(n Node) {
		if t, ok := n.(*WriteTemporary); ok {
			if seen[t] {
				fn(n)
				return
			}
			seen[t] = true
		}
		if !fn(n) {
			return
		}
		for _, c := range Children(n) {
			visit(c)
		}
	}
	visit(root)
}

// Inspect 遍历函数体
func Inspect(fn *FunctionMetadata, visit func(Node) bool) {
	if fn.Body != nil {
		Walk(fn.Body, visit)
	}
}
