package profile

import (
	"testing"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func TestProfileRecordHotType(t *testing.T) {
	r := NewProfileRecord(DefaultPolicy())
	if r.HotType() != types.DValueRef {
		t.Errorf("Expected DValueRef for empty record, got %v", r.HotType())
	}

	for i := 0; i < 9; i++ {
		r.Update(types.Int32)
	}
	r.Update(types.String)
	if r.HotType() != types.Int32 {
		t.Errorf("Expected Int32 (9/10 > 0.8), got %v", r.HotType())
	}

	r.Update(types.String)
	r.Update(types.String)
	if r.HotType() != types.DValueRef {
		t.Errorf("Expected DValueRef after 9/12, got %v", r.HotType())
	}
}

func TestProfileRecordIgnoresNullish(t *testing.T) {
	r := NewProfileRecord(DefaultPolicy())
	r.Update(types.Undefined)
	r.Update(types.Null)
	r.Update(types.DValueRef)
	if r.Total() != 0 {
		t.Errorf("Expected no observations, got %d", r.Total())
	}
}

func TestProfileRecordMissReplacement(t *testing.T) {
	r := NewProfileRecord(DefaultPolicy())
	r.Update(types.Int32)
	r.Update(types.Int32)
	r.Update(types.String)

	for i := 1; i <= 3; i++ {
		r.Update(types.Double)
		if r.MissCount != i {
			t.Fatalf("Expected miss count %d, got %d", i, r.MissCount)
		}
	}
	r.Update(types.Double)
	if r.MissCount != 0 {
		t.Errorf("Expected miss count reset, got %d", r.MissCount)
	}
	if r.Types[1] != types.Double || r.Counters[1] != 1 {
		t.Errorf("Expected least frequent slot replaced by Double, got %v/%d", r.Types[1], r.Counters[1])
	}
	if r.Types[0] != types.Int32 || r.Counters[0] != 2 {
		t.Errorf("Expected Int32 slot kept, got %v/%d", r.Types[0], r.Counters[0])
	}
}

func TestHotPrimitiveType(t *testing.T) {
	r := NewProfileRecord(DefaultPolicy())
	for i := 0; i < 5; i++ {
		r.Update(types.Object)
	}
	if r.HotType() != types.Object {
		t.Errorf("Expected hot Object, got %v", r.HotType())
	}
	if r.HotPrimitiveType() != types.DValueRef {
		t.Errorf("Object is not primitive, got %v", r.HotPrimitiveType())
	}

	var missing *GuardNodeProfile
	if missing.GetHotPrimitiveType() != types.DValueRef {
		t.Error("Missing profile should fall back to DValueRef")
	}
}

func TestMapNodeProfile(t *testing.T) {
	a := runtime.NewPlainObject(nil, nil)
	a.Set("x", runtime.NewInt32(1))
	b := runtime.NewPlainObject(nil, nil)
	b.Set("y", runtime.NewInt32(1))
	b.Set("x", runtime.NewInt32(2))

	p := &MapNodeProfile{}
	id := runtime.FieldIDOf("x")
	m, pd := runtime.DescribeField(runtime.NewObject(a), id)
	p.UpdateNodeProfile(m, pd)
	if !p.IsMonomorphic() || p.IsTooDynamic() {
		t.Fatal("Expected monomorphic after first shape")
	}
	p.UpdateNodeProfile(m, pd)
	if !p.IsMonomorphic() {
		t.Error("Same shape should stay monomorphic")
	}

	m2, pd2 := runtime.DescribeField(runtime.NewObject(b), id)
	if !p.UpdateNodeProfile(m2, pd2) {
		t.Error("Expected transition to polymorphic")
	}
	p.UpdateNodeProfile(m, pd)
	if !p.IsTooDynamic() {
		t.Error("Polymorphic state must be permanent")
	}
}

func TestCallNodeProfile(t *testing.T) {
	f1 := runtime.NewNativeFunction("f1", 0, nil)
	f2 := runtime.NewNativeFunction("f2", 0, nil)

	p := &CallNodeProfile{}
	p.UpdateNodeProfile(f1)
	p.UpdateNodeProfile(f1)
	if p.Target() != f1 {
		t.Errorf("Expected monomorphic target f1, got %v", p.Target())
	}
	p.UpdateNodeProfile(f2)
	if p.Target() != nil || !p.IsPolymorphic() {
		t.Error("Expected polymorphic after second target")
	}
	p.UpdateNodeProfile(f1)
	if p.Target() != nil {
		t.Error("Polymorphic call site must not return to monomorphic")
	}
}

func TestFunctionProfiler(t *testing.T) {
	f := ir.NewProgram()
	fn := f.Function("g", "a")
	guard := fn.Guard(fn.Read("a")).(*ir.GuardedCast)
	meta := fn.Body(fn.Return(guard))

	p := NewFunctionProfiler(meta, DefaultPolicy())
	if p.HotPrimitiveType(guard) != types.DValueRef {
		t.Error("Expected DValueRef before any update")
	}
	for i := 0; i < 4; i++ {
		p.GetOrAddGuardProfile(guard).UpdateNodeProfile(types.Double)
	}
	if p.HotPrimitiveType(guard) != types.Double {
		t.Errorf("Expected Double, got %v", p.HotPrimitiveType(guard))
	}

	clone := ir.CloneFunction(meta)
	var cloned *ir.GuardedCast
	ir.Inspect(clone, func(n ir.Node) bool {
		if g, ok := n.(*ir.GuardedCast); ok && cloned == nil {
			cloned = g
		}
		return true
	})
	if p.HotPrimitiveType(cloned) != types.Double {
		t.Error("Clones should share profile indices with the original")
	}

	if p.GetOrAddMapProfile(1000) != nil || p.CallProfile(-1) != nil {
		t.Error("Out of range indices should return nil")
	}
}

func TestRecordCallStates(t *testing.T) {
	f := ir.NewProgram()
	meta := f.Function("h").Body()
	p := NewProfiler(20, DefaultPolicy())

	hot := 0
	for i := 1; i <= 25; i++ {
		if p.RecordCall(meta) {
			hot++
			if i != 20 {
				t.Errorf("Expected function to become hot at call 20, got %d", i)
			}
		}
		if i == 2 && p.Function(meta).HotState() != StateWarm {
			t.Errorf("Expected warm at call 2, got %v", p.Function(meta).HotState())
		}
	}
	if hot != 1 {
		t.Errorf("Expected exactly one hot transition, got %d", hot)
	}
	if !p.ShouldCompile(meta) {
		t.Error("Hot function should be compiled")
	}
	p.MarkCompiled(meta)
	if p.Function(meta).HotState() != StateCompiled {
		t.Error("Expected compiled state")
	}

	stats := p.GetStats()
	if stats.TotalCalls != 25 || stats.HotFunctions != 1 || stats.Functions != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestRecordCallZeroThreshold(t *testing.T) {
	meta := ir.NewProgram().Function("z").Body()
	p := NewProfiler(0, DefaultPolicy())
	if !p.RecordCall(meta) {
		t.Error("Zero threshold should make the first call hot")
	}
}

func TestCountersAndTimers(t *testing.T) {
	c := NewCounters()
	c.Get("JS/Deopt").Inc()
	c.Get("JS/Deopt").Inc()
	c.Get("JS/Execute/f").Inc()
	if c.Value("JS/Deopt") != 2 {
		t.Errorf("Expected 2, got %d", c.Value("JS/Deopt"))
	}
	if names := c.Names(); len(names) != 2 || names[0] != "JS/Deopt" {
		t.Errorf("Unexpected names %v", names)
	}

	timers := NewTimers()
	stop := timers.Get("JS/Jit").Start()
	stop()
	if timers.Snapshot()["JS/Jit"].Count != 1 {
		t.Error("Expected one timed interval")
	}
}
