package corpus

import (
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func init() {
	register(Program{
		Name:        "arithmetic",
		Description: "var c = a * b + 3; return c - a / 2",
		Args:        ints(4, 6),
		Expected:    runtime.NewInt32(25),
		Build: func() *ir.FunctionMetadata {
			f := entry("arithmetic", "a", "b")
			return f.Body(
				f.Var("c", f.Binary(ops.Add, f.Binary(ops.Mul, f.Read("a"), f.Read("b")), f.Int(3))),
				f.Return(f.Binary(ops.Sub, f.Read("c"), f.Binary(ops.Div, f.Read("a"), f.Int(2)))),
			)
		},
	})

	register(Program{
		Name:        "string_concat",
		Description: "r = r + s + i in a counted loop",
		Args:        []runtime.Value{runtime.NewString("a"), runtime.NewInt32(3)},
		Expected:    runtime.NewString("a0a1a2"),
		Build: func() *ir.FunctionMetadata {
			f := entry("concat", "s", "n")
			return f.Body(
				f.Var("r", f.String("")),
				countUp(f, "i", f.Read("n"),
					f.Expr(f.Assign("r", f.Binary(ops.Add, f.Binary(ops.Add, f.Read("r"), f.Read("s")), f.Read("i"))))),
				f.Return(f.Read("r")),
			)
		},
	})

	register(Program{
		Name:        "postfix",
		Description: "var y = x++; return y * 10 + x",
		Args:        ints(5),
		Expected:    runtime.NewInt32(56),
		Build: func() *ir.FunctionMetadata {
			f := entry("postfix", "x")
			return f.Body(
				f.Var("y", f.PostInc(f.Read("x"))),
				f.Return(f.Binary(ops.Add, f.Binary(ops.Mul, f.Read("y"), f.Int(10)), f.Read("x"))),
			)
		},
	})

	register(Program{
		Name:        "closure_counter",
		Description: "an inner function increments a captured counter n times",
		Args:        ints(5),
		Expected:    runtime.NewInt32(5),
		Build: func() *ir.FunctionMetadata {
			f := entry("counter", "n")
			init := f.Var("c", f.Int(0))
			inc := f.Function("inc")
			inc.Body(
				inc.Expr(inc.Assign("c", inc.Binary(ops.Add, inc.Read("c"), inc.Int(1)))),
				inc.Return(inc.Read("c")),
			)
			return f.Body(
				init,
				f.Var("inc", f.Closure(inc)),
				countUp(f, "i", f.Read("n"), f.Expr(f.Call(f.Read("inc")))),
				f.Return(f.Read("c")),
			)
		},
	})

	register(Program{
		Name:        "arguments_alias",
		Description: "arguments[0] = 10 is visible through the first parameter",
		Args:        ints(1, 2),
		Expected:    runtime.NewInt32(14),
		Build: func() *ir.FunctionMetadata {
			f := entry("alias", "a", "b")
			return f.Body(
				f.Expr(f.SetIndex(f.Read("arguments"), f.Int(0), f.Int(10))),
				f.Return(f.Binary(ops.Add,
					f.Binary(ops.Add, f.Read("a"), f.Prop(f.Read("arguments"), "length")),
					f.Read("b"))),
			)
		},
	})

	register(Program{
		Name:        "try_catch_finally",
		Description: "a thrown string is caught and finally always appends",
		Args:        ints(1),
		Expected:    runtime.NewString("posf"),
		Build: func() *ir.FunctionMetadata {
			f := entry("tcf", "x")
			log := f.Var("log", f.String(""))
			appendLog := func(e ir.Expr) ir.Stmt {
				return f.Expr(f.Assign("log", f.Binary(ops.Add, f.Read("log"), e)))
			}
			try := f.Try(
				f.Block(
					f.If(f.Binary(ops.Greater, f.Read("x"), f.Int(0)), f.Throw(f.String("pos")), nil),
					appendLog(f.String("n")),
				),
				"e", func() *ir.Block { return f.Block(appendLog(f.Read("e"))) },
				f.Block(appendLog(f.String("f"))),
			)
			return f.Body(log, try, f.Return(f.Read("log")))
		},
	})

	register(Program{
		Name:        "finally_return",
		Description: "return inside try keeps its value when finally completes normally",
		Args:        nil,
		Expected:    runtime.NewInt32(1),
		Build: func() *ir.FunctionMetadata {
			f := entry("finallyReturn")
			return f.Body(
				f.Var("r", f.Int(0)),
				f.Try(
					f.Block(f.Expr(f.Assign("r", f.Int(1))), f.Return(f.Read("r"))),
					"", nil,
					f.Block(f.Expr(f.Assign("r", f.Int(2)))),
				),
				f.Return(f.Int(-1)),
			)
		},
	})

	register(Program{
		Name:        "finally_override",
		Description: "a return in finally overrides the pending return",
		Args:        nil,
		Expected:    runtime.NewInt32(2),
		Build: func() *ir.FunctionMetadata {
			f := entry("finallyOverride")
			return f.Body(
				f.Try(
					f.Block(f.Return(f.Int(1))),
					"", nil,
					f.Block(f.Return(f.Int(2))),
				),
			)
		},
	})

	register(Program{
		Name:        "labeled_loops",
		Description: "continue outer skips the diagonal, break outer stops at row 4",
		Args:        ints(5),
		Expected:    runtime.NewInt32(4),
		Build: func() *ir.FunctionMetadata {
			f := entry("labels", "n")
			sum := f.Var("s", f.Int(0))
			inner := countUp(f, "j", f.Read("n"), f.Block(
				f.If(f.Binary(ops.Equal, f.Read("j"), f.Read("i")), f.Continue("outer"), nil),
				f.If(f.Binary(ops.Equal, f.Read("i"), f.Int(4)), f.Break("outer"), nil),
				f.Expr(f.Assign("s", f.Binary(ops.Add, f.Read("s"), f.Read("j")))),
			))
			outer := f.Label("outer", countUp(f, "i", f.Read("n"), inner))
			return f.Body(sum, outer, f.Return(f.Read("s")))
		},
	})

	register(Program{
		Name:        "switch_fallthrough",
		Description: "case 1 falls through into case 2 and stops at break",
		Args:        ints(1),
		Expected:    runtime.NewString("onetwo"),
		Build: func() *ir.FunctionMetadata {
			f := entry("sw", "x")
			r := f.Var("r", f.String(""))
			add := func(s string) ir.Stmt {
				return f.Expr(f.Assign("r", f.Binary(ops.Add, f.Read("r"), f.String(s))))
			}
			sw := f.Switch(f.Read("x"),
				&ir.Case{Test: f.Int(1), Body: []ir.Stmt{add("one")}},
				&ir.Case{Test: f.Int(2), Body: []ir.Stmt{add("two"), f.Break("")}},
				&ir.Case{Body: []ir.Stmt{add("other")}},
			)
			return f.Body(r, sw, f.Return(f.Read("r")))
		},
	})

	register(Program{
		Name:        "polymorphic_call",
		Description: "one call site alternates between two targets",
		Args:        ints(4),
		Expected:    runtime.NewString("11!33!"),
		Build: func() *ir.FunctionMetadata {
			f := entry("poly", "n")
			inc := f.Function("inc", "x")
			inc.Body(inc.Return(inc.Binary(ops.Add, inc.Read("x"), inc.Int(1))))
			bang := f.Function("bang", "x")
			bang.Body(bang.Return(bang.Binary(ops.Add, bang.Read("x"), bang.String("!"))))
			return f.Body(
				f.Var("fs", f.Array(f.Closure(inc), f.Closure(bang))),
				f.Var("r", f.String("")),
				countUp(f, "i", f.Read("n"), f.Expr(f.Assign("r", f.Binary(ops.Add, f.Read("r"),
					f.Call(f.Index(f.Read("fs"), f.Binary(ops.Mod, f.Read("i"), f.Int(2))), f.Read("i")))))),
				f.Return(f.Read("r")),
			)
		},
	})

	register(Program{
		Name:        "object_literal",
		Description: "p = {x, y}; p.z = p.x * p.y; return p.x + p.y + p.z",
		Args:        ints(3, 4),
		Expected:    runtime.NewInt32(19),
		Build: func() *ir.FunctionMetadata {
			f := entry("point", "x", "y")
			p := func() ir.Expr { return f.Read("p") }
			return f.Body(
				f.Var("p", f.Object(
					ir.PropertyInit{Name: "x", Value: f.Read("x")},
					ir.PropertyInit{Name: "y", Value: f.Read("y")},
				)),
				f.Expr(f.SetProp(p(), "z", f.Binary(ops.Mul, f.Prop(p(), "x"), f.Prop(p(), "y")))),
				f.Return(f.Binary(ops.Add, f.Binary(ops.Add, f.Prop(p(), "x"), f.Prop(p(), "y")), f.Prop(p(), "z"))),
			)
		},
	})

	register(Program{
		Name:        "method_call",
		Description: "a method reads this through the receiver",
		Args:        ints(7),
		Expected:    runtime.NewInt32(8),
		Build: func() *ir.FunctionMetadata {
			f := entry("method", "v")
			get := f.Function("get")
			get.Body(get.Return(get.Binary(ops.Add, get.Prop(get.This(), "v"), get.Int(1))))
			return f.Body(
				f.Var("o", f.Object(
					ir.PropertyInit{Name: "v", Value: f.Read("v")},
					ir.PropertyInit{Name: "get", Value: f.Closure(get)},
				)),
				f.Return(f.Call(f.Prop(f.Read("o"), "get"))),
			)
		},
	})

	register(Program{
		Name:        "array_loop",
		Description: "fill a[i] = i * i and sum it back",
		Args:        ints(5),
		Expected:    runtime.NewInt32(30),
		Build: func() *ir.FunctionMetadata {
			f := entry("squares", "n")
			a := func() ir.Expr { return f.Read("a") }
			return f.Body(
				f.Var("a", f.Array()),
				countUp(f, "i", f.Read("n"),
					f.Expr(f.SetIndex(a(), f.Read("i"), f.Binary(ops.Mul, f.Read("i"), f.Read("i"))))),
				f.Var("s", f.Int(0)),
				countUp(f, "k", f.Prop(a(), "length"),
					f.Expr(f.Assign("s", f.Binary(ops.Add, f.Read("s"), f.Index(a(), f.Read("k")))))),
				f.Return(f.Read("s")),
			)
		},
	})

	register(Program{
		Name:        "logical",
		Description: "((a && b) || \"none\") + (a || b)",
		Args:        ints(3, 0),
		Expected:    runtime.NewString("none3"),
		Build: func() *ir.FunctionMetadata {
			f := entry("logic", "a", "b")
			return f.Body(f.Return(f.Binary(ops.Add,
				f.Or(f.And(f.Read("a"), f.Read("b")), f.String("none")),
				f.Or(f.Read("a"), f.Read("b")),
			)))
		},
	})

	register(Program{
		Name:        "ternary_mixed",
		Description: "a ternary joining a string and a number",
		Args:        ints(5),
		Expected:    runtime.NewString("big1"),
		Build: func() *ir.FunctionMetadata {
			f := entry("tern", "x")
			return f.Body(
				f.Var("v", f.Ternary(f.Binary(ops.Greater, f.Read("x"), f.Int(2)), f.String("big"), f.Read("x"))),
				f.Return(f.Binary(ops.Add, f.Read("v"), f.Int(1))),
			)
		},
	})

	register(Program{
		Name:        "recursion",
		Description: "recursive fib through a captured function declaration",
		Args:        ints(10),
		Expected:    runtime.NewInt32(55),
		Build: func() *ir.FunctionMetadata {
			f := entry("fibRunner", "n")
			f.Declare("fib")
			fib := f.Function("fib", "k")
			k := func() ir.Expr { return fib.Read("k") }
			fib.Body(
				fib.If(fib.Binary(ops.Less, k(), fib.Int(2)), fib.Return(k()), nil),
				fib.Return(fib.Binary(ops.Add,
					fib.Call(fib.Read("fib"), fib.Binary(ops.Sub, k(), fib.Int(1))),
					fib.Call(fib.Read("fib"), fib.Binary(ops.Sub, k(), fib.Int(2))))),
			)
			return f.Body(
				f.FunctionDecl(fib),
				f.Return(f.Call(f.Read("fib"), f.Read("n"))),
			)
		},
	})

	register(Program{
		Name:        "while_do",
		Description: "while and do-while loops with compound assignment",
		Args:        ints(4),
		Expected:    runtime.NewInt32(16),
		Build: func() *ir.FunctionMetadata {
			f := entry("loops", "n")
			return f.Body(
				f.Var("s", f.Int(0)),
				f.Var("i", f.Int(0)),
				f.While(f.Binary(ops.Less, f.Read("i"), f.Read("n")), f.Block(
					f.Expr(f.CompoundAssign(ops.Add, f.Read("s"), f.Read("i"))),
					f.Expr(f.PreInc(f.Read("i"))),
				)),
				f.DoWhile(f.Block(
					f.Expr(f.CompoundAssign(ops.Add, f.Read("s"), f.Int(2))),
					f.Expr(f.PostDec(f.Read("i"))),
				), f.Binary(ops.Greater, f.Read("i"), f.Int(0))),
				f.Expr(f.CompoundAssign(ops.Sub, f.Read("s"), f.Int(-2))),
				f.Return(f.Read("s")),
			)
		},
	})

	register(Program{
		Name:        "for_in",
		Description: "for (k in o) collects the keys in insertion order",
		Args:        nil,
		Expected:    runtime.NewString("abc"),
		Build: func() *ir.FunctionMetadata {
			f := entry("keys")
			return f.Body(
				f.Var("o", f.Object(
					ir.PropertyInit{Name: "a", Value: f.Int(1)},
					ir.PropertyInit{Name: "b", Value: f.Int(2)},
					ir.PropertyInit{Name: "c", Value: f.Int(3)},
				)),
				f.Var("r", f.String("")),
				f.Var("k", nil),
				f.ForIn("k", f.Read("o"), f.Expr(f.Assign("r", f.Binary(ops.Add, f.Read("r"), f.Read("k"))))),
				f.Return(f.Read("r")),
			)
		},
	})

	register(Program{
		Name:        "illegal_break",
		Description: "an illegal break becomes a thrown message that catch observes",
		Args:        nil,
		Expected:    runtime.NewString("Undefined label 'missing'"),
		Build: func() *ir.FunctionMetadata {
			f := entry("illegal")
			return f.Body(
				f.Var("m", f.String("")),
				f.Try(
					f.Block(f.Break("missing")),
					"e", func() *ir.Block { return f.Block(f.Expr(f.Assign("m", f.Read("e")))) },
					nil,
				),
				f.Return(f.Read("m")),
			)
		},
	})
}
