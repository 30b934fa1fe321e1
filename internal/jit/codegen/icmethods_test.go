package codegen

import (
	"sync"
	"testing"

	"github.com/tangzhangming/mcjit/internal/jit/ops"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func TestInlineCacheStates(t *testing.T) {
	h := newTestHost(BackendInlineCache)
	g := &Generator{Host: h}
	ic := g.newInlineCache(ops.Add, types.DValueRef)

	if ic.State() != ICUninitialized {
		t.Fatalf("Expected uninitialized, got %s", ic.State())
	}

	steps := []struct {
		a, b runtime.Value
		want ICState
	}{
		{runtime.NewInt32(1), runtime.NewInt32(2), ICMonomorphic},
		{runtime.NewInt32(3), runtime.NewInt32(4), ICMonomorphic},
		{runtime.NewString("a"), runtime.NewString("b"), ICPolymorphic},
		{runtime.NewDouble(1.5), runtime.NewDouble(2), ICPolymorphic},
		{runtime.NewInt32(1), runtime.NewDouble(2), ICPolymorphic},
		{runtime.NewString("a"), runtime.NewInt32(1), ICMegamorphic},
		{runtime.NewBool(true), runtime.NewInt32(1), ICMegamorphic},
	}
	for i, s := range steps {
		ic.Run2(s.a, s.b)
		if ic.State() != s.want {
			t.Errorf("step %d: Expected %s, got %s", i, s.want, ic.State())
		}
	}

	if n := len(ic.Entries()); n != 0 {
		t.Errorf("Expected megamorphic cache to drop its entries, got %d", n)
	}
	if _, ok := ic.Lookup(types.Int32, types.Int32); ok {
		t.Error("Expected megamorphic lookup to miss")
	}
	if got := h.counters.Value("JS/IC/Rebuild"); got != 5 {
		t.Errorf("Expected 5 rebuilds, got %d", got)
	}
}

func TestInlineCacheResults(t *testing.T) {
	h := newTestHost(BackendInlineCache)
	g := &Generator{Host: h}
	add := g.newInlineCache(ops.Add, types.DValueRef)

	tests := []struct {
		name string
		a, b runtime.Value
		want string
	}{
		{"ints", runtime.NewInt32(2), runtime.NewInt32(3), "5"},
		{"strings", runtime.NewString("a"), runtime.NewString("b"), "ab"},
		{"mixed", runtime.NewString("n"), runtime.NewInt32(1), "n1"},
		{"cached ints", runtime.NewInt32(20), runtime.NewInt32(22), "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runtime.ToString(add.Run2(tt.a, tt.b)); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	neg := g.newInlineCache(ops.Negate, types.DValueRef)
	if got := runtime.ToNumber(neg.Run1(runtime.NewInt32(4))); got != -4 {
		t.Errorf("Expected -4, got %v", got)
	}
	if neg.State() != ICMonomorphic {
		t.Errorf("Expected monomorphic unary cache, got %s", neg.State())
	}
}

func TestInlineCacheConcurrent(t *testing.T) {
	h := newTestHost(BackendInlineCache)
	g := &Generator{Host: h}
	ic := g.newInlineCache(ops.Add, types.DValueRef)

	values := []runtime.Value{runtime.NewInt32(1), runtime.NewString("s"), runtime.NewDouble(0.5)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a := values[(i+j)%len(values)]
				ic.Run2(a, a)
			}
		}(i)
	}
	wg.Wait()

	if ic.State() == ICUninitialized {
		t.Error("Expected the cache to be populated")
	}
	for _, e := range ic.Entries() {
		if e.Operation == nil {
			t.Errorf("Expected an operation for %s/%s", e.Left, e.Right)
		}
	}
}
