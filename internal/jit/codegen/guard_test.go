package codegen

import (
	"testing"

	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/jit/types"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

func TestCheck(t *testing.T) {
	n := &ir.GuardedCast{ProfileIndex: 7, Narrowed: types.Int32, IsRequired: true}
	if !NeedsCheck(n) {
		t.Fatal("Expected required guard to need a check")
	}

	var failure *SpeculationFailure
	func() {
		defer CatchSpeculation(&failure)
		Check(n, runtime.NewInt32(1), 0)
	}()
	if failure != nil {
		t.Fatalf("Expected matching tag to pass, got %v", failure)
	}

	func() {
		defer CatchSpeculation(&failure)
		Check(n, runtime.NewString("s"), 2)
	}()
	if failure == nil {
		t.Fatal("Expected speculation failure")
	}
	if failure.GuardID != 7 || failure.Expected != types.Int32 || failure.Observed != types.String {
		t.Errorf("Expected guard 7 Int32/String, got %d %s/%s", failure.GuardID, failure.Expected, failure.Observed)
	}
	if failure.Depth != 2 || failure.Value.Type != types.String {
		t.Errorf("Expected raw String at depth 2, got %v at %d", failure.Value, failure.Depth)
	}
}

func TestCatchSpeculationPassesOtherPanics(t *testing.T) {
	var exc *runtime.JSException
	var failure *SpeculationFailure
	func() {
		defer runtime.CatchException(&exc)
		func() {
			defer CatchSpeculation(&failure)
			runtime.Throw(runtime.NewString("boom"))
		}()
	}()
	if failure != nil {
		t.Errorf("Expected no speculation failure, got %v", failure)
	}
	if exc == nil || runtime.ToString(exc.Value) != "boom" {
		t.Errorf("Expected guest exception to pass through, got %v", exc)
	}
}
