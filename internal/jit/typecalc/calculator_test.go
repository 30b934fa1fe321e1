package typecalc

import (
	"testing"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/profile"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

var table = ops.NewTable()

func calculate(meta *ir.FunctionMetadata, sig types.Signature, configure func(c *Calculator)) *ir.FunctionMetadata {
	clone := ir.CloneFunction(meta)
	c := New(table)
	c.Signature = sig
	if configure != nil {
		configure(c)
	}
	c.Calculate(clone)
	return clone
}

func symbolType(meta *ir.FunctionMetadata, name string) types.ValueType {
	for _, s := range meta.AllSymbols() {
		if s.Name == name {
			return s.ValueType
		}
	}
	return types.Unknown
}

func guards(meta *ir.FunctionMetadata) []*ir.GuardedCast {
	var list []*ir.GuardedCast
	ir.Inspect(meta, func(n ir.Node) bool {
		if g, ok := n.(*ir.GuardedCast); ok {
			list = append(list, g)
		}
		return true
	})
	return list
}

func returnType(meta *ir.FunctionMetadata) types.ValueType {
	for _, s := range meta.Body.Statements {
		if r, ok := s.(*ir.Return); ok && r.Value != nil {
			return r.Value.Type()
		}
	}
	return types.Unknown
}

func TestLocalTypes(t *testing.T) {
	fn := ir.NewProgram().Function("f")
	meta := fn.Body(
		fn.Var("x", fn.Int(1)),
		fn.Var("y", fn.Binary(ops.Add, fn.Read("x"), fn.Number(2.5))),
		fn.Var("s", fn.Binary(ops.Add, fn.String("a"), fn.Read("x"))),
		fn.Return(fn.Read("y")),
	)
	typed := calculate(meta, types.EmptySignature, nil)

	tests := []struct {
		name     string
		expected types.ValueType
	}{
		{"x", types.Int32},
		{"y", types.Double},
		{"s", types.String},
	}
	for _, tt := range tests {
		if got := symbolType(typed, tt.name); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got)
		}
	}
	if returnType(typed) != types.Double {
		t.Errorf("Expected Double return, got %v", returnType(typed))
	}
	if symbolType(meta, "x") != types.Unknown {
		t.Error("Type calculation must not modify the original function")
	}
}

func TestParameterTypes(t *testing.T) {
	fn := ir.NewProgram().Function("f", "a", "b")
	meta := fn.Body(fn.Return(fn.Binary(ops.Add, fn.Read("a"), fn.Read("b"))))

	typed := calculate(meta, types.NewSignature(types.Int32, types.String), nil)
	if symbolType(typed, "a") != types.Int32 || symbolType(typed, "b") != types.String {
		t.Errorf("Expected (Int32, String), got (%v, %v)", symbolType(typed, "a"), symbolType(typed, "b"))
	}
	if returnType(typed) != types.String {
		t.Errorf("Expected String concatenation, got %v", returnType(typed))
	}

	typed = calculate(meta, types.NewSignature(types.Int32), nil)
	if symbolType(typed, "b") != types.DValueRef {
		t.Errorf("Unconstrained parameter should be DValueRef, got %v", symbolType(typed, "b"))
	}
}

func TestParameterJoinsWrites(t *testing.T) {
	fn := ir.NewProgram().Function("f", "x")
	meta := fn.Body(
		fn.Var("t", fn.Binary(ops.Add, fn.PostInc(fn.Read("x")), fn.PostInc(fn.Read("x")))),
		fn.Return(fn.Binary(ops.Add, fn.Read("t"), fn.Read("t"))),
	)
	typed := calculate(meta, types.NewSignature(types.Int32), nil)
	if symbolType(typed, "x") != types.Double {
		t.Errorf("Expected x widened to Double by its increments, got %v", symbolType(typed, "x"))
	}
	if symbolType(typed, "t") != types.Double {
		t.Errorf("Expected t Double, got %v", symbolType(typed, "t"))
	}
}

func TestArgumentsDisablesParameterTyping(t *testing.T) {
	fn := ir.NewProgram().Function("f", "a")
	meta := fn.Body(
		fn.Expr(fn.Read("arguments")),
		fn.Return(fn.Read("a")),
	)
	typed := calculate(meta, types.NewSignature(types.Int32), nil)
	if symbolType(typed, "a") != types.DValueRef {
		t.Errorf("Expected DValueRef when arguments is used, got %v", symbolType(typed, "a"))
	}
}

func TestReadBeforeAssignment(t *testing.T) {
	fn := ir.NewProgram().Function("f", "c")
	fn.Declare("x")
	meta := fn.Body(
		fn.If(fn.Read("c"), fn.Expr(fn.Assign("x", fn.Int(1))), nil),
		fn.Return(fn.Read("x")),
	)
	typed := calculate(meta, types.EmptySignature, nil)
	if symbolType(typed, "x") != types.DValueRef {
		t.Errorf("Conditionally assigned local should be DValueRef, got %v", symbolType(typed, "x"))
	}

	fn = ir.NewProgram().Function("g")
	meta = fn.Body(
		fn.Var("y", fn.Int(1)),
		fn.If(fn.Bool(true), fn.Expr(fn.Assign("y", fn.Int(2))), nil),
		fn.Return(fn.Read("y")),
	)
	typed = calculate(meta, types.EmptySignature, nil)
	if symbolType(typed, "y") != types.Int32 {
		t.Errorf("Definitely assigned local should stay Int32, got %v", symbolType(typed, "y"))
	}
}

func TestLoopFixpoint(t *testing.T) {
	fn := ir.NewProgram().Function("f")
	meta := fn.Body(
		fn.Var("i", fn.Int(0)),
		fn.While(fn.Binary(ops.Less, fn.Read("i"), fn.Int(10)),
			fn.Expr(fn.Assign("i", fn.Binary(ops.Add, fn.Read("i"), fn.Int(1))))),
		fn.Return(fn.Read("i")),
	)
	typed := calculate(meta, types.EmptySignature, nil)
	if symbolType(typed, "i") != types.Double {
		t.Errorf("Expected Int32 joined with Double, got %v", symbolType(typed, "i"))
	}
}

// 由其他局部变量计算出的局部变量在后续轮次中得到具体类型
func TestLocalChains(t *testing.T) {
	tests := []struct {
		name     string
		build    func(f *ir.Factory) *ir.FunctionMetadata
		symbol   string
		expected types.ValueType
	}{
		{"double chain", func(f *ir.Factory) *ir.FunctionMetadata {
			return f.Body(
				f.Var("a", f.Int(1)),
				f.Var("b", f.Binary(ops.Add, f.Read("a"), f.Number(0.5))),
				f.Var("c", f.Binary(ops.Mul, f.Read("b"), f.Read("b"))),
				f.Return(f.Read("c")),
			)
		}, "c", types.Double},
		{"comparison", func(f *ir.Factory) *ir.FunctionMetadata {
			return f.Body(
				f.Var("a", f.Int(1)),
				f.Var("b", f.Binary(ops.Less, f.Read("a"), f.Int(2))),
				f.Return(f.Read("b")),
			)
		}, "b", types.Boolean},
		{"typeof", func(f *ir.Factory) *ir.FunctionMetadata {
			return f.Body(
				f.Var("a", f.Int(1)),
				f.Var("b", f.TypeOf(f.Read("a"))),
				f.Return(f.Read("b")),
			)
		}, "b", types.String},
		{"unresolved cycle", func(f *ir.Factory) *ir.FunctionMetadata {
			return f.Body(
				f.Var("a", nil),
				f.Var("b", nil),
				f.If(f.Bool(true), f.Expr(f.Assign("a", f.Read("b"))), nil),
				f.If(f.Bool(true), f.Expr(f.Assign("b", f.Read("a"))), nil),
				f.Return(f.Read("a")),
			)
		}, "a", types.DValueRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typed := calculate(tt.build(ir.NewProgram().Function("f")), types.EmptySignature, nil)
			if got := symbolType(typed, tt.symbol); got != tt.expected {
				t.Errorf("Expected %s to be %v, got %v", tt.symbol, tt.expected, got)
			}
			if got := returnType(typed); got != tt.expected {
				t.Errorf("Expected return %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTernaryTypes(t *testing.T) {
	tests := []struct {
		then, els func(f *ir.Factory) ir.Expr
		expected  types.ValueType
	}{
		{func(f *ir.Factory) ir.Expr { return f.Int(1) }, func(f *ir.Factory) ir.Expr { return f.Number(2.5) }, types.Double},
		{func(f *ir.Factory) ir.Expr { return f.Int(1) }, func(f *ir.Factory) ir.Expr { return f.String("a") }, types.DValueRef},
		{func(f *ir.Factory) ir.Expr { return f.Array() }, func(f *ir.Factory) ir.Expr { return f.Object() }, types.Object},
		{func(f *ir.Factory) ir.Expr { return f.Null() }, func(f *ir.Factory) ir.Expr { return f.Array() }, types.Object},
	}
	for i, tt := range tests {
		fn := ir.NewProgram().Function("f", "c")
		meta := fn.Body(fn.Return(fn.Ternary(fn.Read("c"), tt.then(fn), tt.els(fn))))
		typed := calculate(meta, types.EmptySignature, nil)
		if got := returnType(typed); got != tt.expected {
			t.Errorf("case %d: expected %v, got %v", i, tt.expected, got)
		}
	}
}

func TestTemporaryVisitedOnce(t *testing.T) {
	fn := ir.NewProgram().Function("f", "x")
	meta := fn.Body(fn.Return(fn.PostInc(fn.Read("x"))))
	typed := calculate(meta, types.NewSignature(types.Int32), nil)

	var temps []*ir.WriteTemporary
	ir.Inspect(typed, func(n ir.Node) bool {
		if tmp, ok := n.(*ir.WriteTemporary); ok {
			temps = append(temps, tmp)
		}
		return true
	})
	if len(temps) != 2 || temps[0] != temps[1] {
		t.Fatalf("Expected one temporary visited twice, got %d", len(temps))
	}
	if temps[0].Type() != types.Double {
		t.Errorf("Expected ToNumber(Double) temporary, got %v", temps[0].Type())
	}
}

func TestGuardSpeculation(t *testing.T) {
	fn := ir.NewProgram().Function("f", "o")
	meta := fn.Body(
		fn.Var("v", fn.Prop(fn.Read("o"), "p")),
		fn.Return(fn.Read("v")),
	)
	prof := profile.NewFunctionProfiler(meta, profile.DefaultPolicy())
	first := guards(meta)[0]
	for i := 0; i < 5; i++ {
		prof.GetOrAddGuardProfile(first).UpdateNodeProfile(types.Int32)
	}

	typed := calculate(meta, types.EmptySignature, nil)
	if g := guards(typed)[0]; g.IsRequired || g.Type() != types.DValueRef {
		t.Errorf("Without speculation the guard stays DValueRef, got %v required=%v", g.Type(), g.IsRequired)
	}

	typed = calculate(meta, types.EmptySignature, func(c *Calculator) {
		c.Profiler = prof
		c.EnableSpeculation = true
	})
	g := guards(typed)[0]
	if !g.IsRequired || g.Type() != types.Int32 || g.Narrowed != types.Int32 {
		t.Errorf("Expected required Int32 guard, got %v required=%v", g.Type(), g.IsRequired)
	}
	if symbolType(typed, "v") != types.Int32 {
		t.Errorf("Narrowed write should type v as Int32, got %v", symbolType(typed, "v"))
	}
}

func TestGuardInFinallyIsNotNarrowed(t *testing.T) {
	fn := ir.NewProgram().Function("f", "o")
	meta := fn.Body(
		fn.Try(
			fn.Block(fn.Var("a", fn.Prop(fn.Read("o"), "p"))),
			"", nil,
			fn.Block(fn.Var("b", fn.Prop(fn.Read("o"), "p"))),
		),
	)
	prof := profile.NewFunctionProfiler(meta, profile.DefaultPolicy())
	for _, g := range guards(meta) {
		for i := 0; i < 5; i++ {
			prof.GetOrAddGuardProfile(g).UpdateNodeProfile(types.Int32)
		}
	}

	typed := calculate(meta, types.EmptySignature, func(c *Calculator) {
		c.Profiler = prof
		c.EnableSpeculation = true
	})
	if got := symbolType(typed, "a"); got != types.Int32 {
		t.Errorf("Expected a narrowed to Int32 in try body, got %v", got)
	}
	if got := symbolType(typed, "b"); got != types.DValueRef {
		t.Errorf("Expected b to stay DValueRef in finally, got %v", got)
	}
	for _, g := range guards(typed) {
		if g.IsRequired && g.Narrowed != types.Int32 {
			t.Errorf("Unexpected required guard %v", g.Narrowed)
		}
	}
}

func TestGuardElimination(t *testing.T) {
	fn := ir.NewProgram().Function("f")
	meta := fn.Body(fn.Var("v", fn.Int(3)), fn.Return(fn.Read("v")))

	typed := calculate(meta, types.EmptySignature, nil)
	for _, g := range guards(typed) {
		if g.IsRequired {
			t.Errorf("Statically typed guard should be eliminated (%v)", g.Type())
		}
	}

	typed = calculate(meta, types.EmptySignature, func(c *Calculator) { c.EnableGuardElimination = false })
	for _, g := range guards(typed) {
		if !g.IsRequired || g.Narrowed != types.Int32 {
			t.Errorf("Expected retained Int32 guard, got %v required=%v", g.Narrowed, g.IsRequired)
		}
	}
}

func TestClosedOnSymbolsAreBoxed(t *testing.T) {
	p := ir.NewProgram()
	outer := p.Function("outer")
	outer.Declare("x")
	inner := outer.Function("inner")
	innerMeta := inner.Body(inner.Return(inner.Read("x")))
	meta := outer.Body(
		outer.Expr(outer.Assign("x", outer.Int(1))),
		outer.Return(outer.Closure(inner)),
	)

	typed := calculate(meta, types.EmptySignature, nil)
	if symbolType(typed, "x") != types.DValueRef {
		t.Errorf("Closed-on local should be DValueRef, got %v", symbolType(typed, "x"))
	}
	typedInner := calculate(innerMeta, types.EmptySignature, nil)
	if returnType(typedInner) != types.DValueRef {
		t.Errorf("Parent local read should be DValueRef, got %v", returnType(typedInner))
	}
}

func TestTypeInferenceDisabled(t *testing.T) {
	fn := ir.NewProgram().Function("f", "a")
	meta := fn.Body(fn.Var("x", fn.Int(1)), fn.Return(fn.Read("a")))
	typed := calculate(meta, types.NewSignature(types.Int32), func(c *Calculator) { c.EnableTypeInference = false })
	if symbolType(typed, "x") != types.DValueRef || symbolType(typed, "a") != types.DValueRef {
		t.Error("Expected all symbols boxed without type inference")
	}
}
