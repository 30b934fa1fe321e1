package ir

import (
	"testing"

	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func TestRewriteReplacesLiterals(t *testing.T) {
	p := NewProgram()
	f := p.Function("f", "x")
	meta := f.Body(
		f.Var("y", f.Binary(ops.Add, f.Read("x"), f.Int(1))),
		f.If(f.Read("y"), f.Return(f.Int(2)), nil),
		f.Return(f.Int(3)),
	)

	Rewrite(meta, func(e Expr) Expr {
		if l, ok := e.(*Literal); ok && l.Value.IsNumber() {
			return typed(&Literal{Value: runtime.NewInt32(int32(runtime.ToNumber(l.Value)) * 10)})
		}
		return e
	})

	var got []float64
	Inspect(meta, func(n Node) bool {
		if l, ok := n.(*Literal); ok {
			got = append(got, runtime.ToNumber(l.Value))
		}
		return true
	})
	want := []float64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("Expected %d literals, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

func TestRewriteVisitsSharedTemporaryOnce(t *testing.T) {
	p := NewProgram()
	f := p.Function("f", "x")
	meta := f.Body(f.Expr(f.PostInc(f.Read("x"))))

	visits := make(map[*WriteTemporary]int)
	Rewrite(meta, func(e Expr) Expr {
		if w, ok := e.(*WriteTemporary); ok {
			visits[w]++
		}
		return e
	})
	if len(visits) != 0 {
		t.Errorf("Expected temporaries to be skipped by visit, got %d", len(visits))
	}

	reads := 0
	Rewrite(meta, func(e Expr) Expr {
		if _, ok := e.(*ReadIdentifier); ok {
			reads++
		}
		return e
	})
	if reads != 1 {
		t.Errorf("Expected the shared operand to be rewritten once, got %d", reads)
	}
}
