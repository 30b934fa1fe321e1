package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// ============================================================================
// IR 打印
// ============================================================================

// Dump 打印函数的 IR，类型计算之后会带上节点类型
func Dump(fn *FunctionMetadata) string {
	d := &dumper{seen: make(map[*WriteTemporary]bool)}
	names := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		names[i] = p.Name
	}
	fmt.Fprintf(&d.sb, "function %s(%s)\n", fn.Name, strings.Join(names, ", "))
	if fn.Body != nil {
		d.stmt(fn.Body, 0)
	}
	return d.sb.String()
}

// DumpNode 打印单个节点
func DumpNode(n Node) string {
	d := &dumper{seen: make(map[*WriteTemporary]bool)}
	if e, ok := n.(Expr); ok {
		d.expr(e)
	} else {
		d.stmt(n.(Stmt), 0)
	}
	return strings.TrimRight(d.sb.String(), "\n")
}

type dumper struct {
	sb   strings.Builder
	seen map[*WriteTemporary]bool
}

func (d *dumper) line(indent int, format string, args ...interface{}) {
	d.sb.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&d.sb, format, args...)
	d.sb.WriteByte('\n')
}

func (d *dumper) exprString(e Expr) string {
	sub := &dumper{seen: d.seen}
	sub.expr(e)
	return sub.sb.String()
}

func (d *dumper) stmt(s Stmt, indent int) {
	switch x := s.(type) {
	case *Block:
		d.line(indent, "{")
		for _, st := range x.Statements {
			d.stmt(st, indent+1)
		}
		d.line(indent, "}")
	case *ExpressionStatement:
		d.line(indent, "%s", d.exprString(x.Expr))
	case *Empty:
		d.line(indent, ";")
	case *If:
		d.line(indent, "if %s", d.exprString(x.Cond))
		d.stmt(x.Then, indent+1)
		if x.Else != nil {
			d.line(indent, "else")
			d.stmt(x.Else, indent+1)
		}
	case *While:
		d.line(indent, "while %s", d.exprString(x.Cond))
		d.stmt(x.Body, indent+1)
	case *DoWhile:
		d.line(indent, "do")
		d.stmt(x.Body, indent+1)
		d.line(indent, "while %s", d.exprString(x.Cond))
	case *For:
		d.line(indent, "for")
		if x.Init != nil {
			d.stmt(x.Init, indent+1)
		}
		if x.Cond != nil {
			d.line(indent+1, "cond %s", d.exprString(x.Cond))
		}
		if x.Update != nil {
			d.line(indent+1, "update %s", d.exprString(x.Update))
		}
		d.stmt(x.Body, indent+1)
	case *Label:
		d.line(indent, "%s:", x.Name)
		d.stmt(x.Body, indent)
	case *Break:
		d.line(indent, "break %s", x.Label)
	case *Continue:
		d.line(indent, "continue %s", x.Label)
	case *Return:
		if x.Value == nil {
			d.line(indent, "return")
		} else {
			d.line(indent, "return %s", d.exprString(x.Value))
		}
	case *Throw:
		d.line(indent, "throw %s", d.exprString(x.Value))
	case *Try:
		d.line(indent, "try")
		d.stmt(x.Body, indent+1)
		if x.Catch != nil {
			d.line(indent, "catch %s", x.CatchSymbol)
			d.stmt(x.Catch, indent+1)
		}
		if x.Finally != nil {
			d.line(indent, "finally")
			d.stmt(x.Finally, indent+1)
		}
	case *Switch:
		d.line(indent, "switch %s", d.exprString(x.Discriminant))
		for _, c := range x.Cases {
			if c.Test == nil {
				d.line(indent+1, "default:")
			} else {
				d.line(indent+1, "case %s:", d.exprString(c.Test))
			}
			for _, st := range c.Body {
				d.stmt(st, indent+2)
			}
		}
	default:
		d.line(indent, "<%s>", s.Kind())
	}
}

func (d *dumper) open(name string, e Expr) {
	d.sb.WriteString("(")
	d.sb.WriteString(name)
	if t := e.Type(); t != types.Unknown {
		d.sb.WriteString(":")
		d.sb.WriteString(t.String())
	}
}

func (d *dumper) args(list ...Expr) {
	for _, e := range list {
		d.sb.WriteString(" ")
		if e == nil {
			d.sb.WriteString("_")
			continue
		}
		d.expr(e)
	}
	d.sb.WriteString(")")
}

func (d *dumper) expr(e Expr) {
	switch x := e.(type) {
	case *Literal:
		d.open("Literal", e)
		if x.Value.IsString() {
			d.sb.WriteString(" " + strconv.Quote(runtime.ToString(x.Value)))
		} else {
			d.sb.WriteString(" " + runtime.ToString(x.Value))
		}
		d.sb.WriteString(")")
	case *This:
		d.open("This", e)
		d.args()
	case *ObjectLiteral:
		d.open("Object", e)
		for _, p := range x.Properties {
			d.sb.WriteString(" " + p.Name + ":")
			d.expr(p.Value)
		}
		d.sb.WriteString(")")
	case *ArrayLiteral:
		d.open("Array", e)
		d.args(x.Elements...)
	case *FunctionExpression:
		d.open("Function "+x.Metadata.Name, e)
		d.args()
	case *ReadIdentifier:
		d.open("Read "+x.Symbol.String(), e)
		d.args()
	case *WriteIdentifier:
		d.open("Write "+x.Symbol.String(), e)
		d.args(x.Value)
	case *ReadIndexer:
		d.open("Index", e)
		d.args(x.Container, x.Index)
	case *WriteIndexer:
		d.open("SetIndex", e)
		d.args(x.Container, x.Index, x.Value)
	case *ReadProperty:
		d.open("Prop "+x.Name, e)
		d.args(x.Container)
	case *WriteProperty:
		d.open("SetProp "+x.Name, e)
		d.args(x.Container, x.Value)
	case *Unary:
		d.open(x.Op.String(), e)
		d.args(x.Operand)
	case *Binary:
		d.open(x.Op.String(), e)
		d.args(x.Left, x.Right)
	case *Ternary:
		d.open("Ternary", e)
		d.args(x.Cond, x.Then, x.Else)
	case *Comma:
		d.open("Comma", e)
		d.args(x.Exprs...)
	case *Call:
		d.open("Call", e)
		d.args(append([]Expr{x.Callee, x.This}, x.Args...)...)
	case *New:
		d.open("New", e)
		d.args(append([]Expr{x.Callee}, x.Args...)...)
	case *WriteTemporary:
		if d.seen[x] {
			fmt.Fprintf(&d.sb, "$t%d", x.Index)
			return
		}
		d.seen[x] = true
		d.open(fmt.Sprintf("Temp $t%d", x.Index), e)
		d.args(x.Value)
	case *GuardedCast:
		name := fmt.Sprintf("Guard#%d", x.ProfileIndex)
		if x.IsRequired {
			name += "!"
		}
		d.open(name, e)
		d.args(x.Value)
	default:
		d.sb.WriteString("<" + e.Kind().String() + ">")
	}
}
