package runtime

import (
	"bytes"
	"math"
	"testing"

	"github.com/tangzhangming/mcjit/internal/errors"
	"github.com/tangzhangming/mcjit/internal/jit/types"
)

func TestToString(t *testing.T) {
	tests := []struct {
		v        Value
		expected string
	}{
		{UndefinedValue, "undefined"},
		{NullValue, "null"},
		{TrueValue, "true"},
		{NewInt32(-42), "-42"},
		{NewUInt32(4294967295), "4294967295"},
		{NewDouble(1.5), "1.5"},
		{NewDouble(100), "100"},
		{NewDouble(1e21), "1e+21"},
		{NewDouble(1.5e-7), "1.5e-7"},
		{NewDouble(math.NaN()), "NaN"},
		{NewDouble(math.Inf(-1)), "-Infinity"},
		{NewDouble(math.Copysign(0, -1)), "0"},
		{NewString("abc"), "abc"},
		{NewChar('x'), "x"},
		{NewArray(NewArrayObject([]Value{NewInt32(1), NullValue, NewString("a")})), "1,,a"},
		{NewObject(NewPlainObject(nil, nil)), "[object Object]"},
	}
	for _, tt := range tests {
		if got := ToString(tt.v); got != tt.expected {
			t.Errorf("ToString(%v): expected %q, got %q", tt.v.Type, tt.expected, got)
		}
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		v        Value
		expected float64
	}{
		{NullValue, 0},
		{TrueValue, 1},
		{NewString(" 12 "), 12},
		{NewString("0x10"), 16},
		{NewString(""), 0},
		{NewString("-Infinity"), math.Inf(-1)},
		{NewInt8(-3), -3},
		{NewUInt64(7), 7},
	}
	for _, tt := range tests {
		if got := ToNumber(tt.v); got != tt.expected {
			t.Errorf("ToNumber(%v): expected %v, got %v", tt.v, tt.expected, got)
		}
	}
	for _, s := range []string{"abc", "1_000", "inf", "0xZZ"} {
		if got := ToNumber(NewString(s)); !math.IsNaN(got) {
			t.Errorf("ToNumber(%q): expected NaN, got %v", s, got)
		}
	}
	if !math.IsNaN(ToNumber(UndefinedValue)) {
		t.Error("ToNumber(undefined) should be NaN")
	}
}

func TestToInt32(t *testing.T) {
	tests := []struct {
		d        float64
		expected int32
	}{
		{0, 0},
		{-1.9, -1},
		{4294967296 + 5, 5},
		{2147483648, -2147483648},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		if got := ToInt32(NewDouble(tt.d)); got != tt.expected {
			t.Errorf("ToInt32(%v): expected %d, got %d", tt.d, tt.expected, got)
		}
	}
	if got := ToUInt32(NewInt32(-1)); got != 4294967295 {
		t.Errorf("Expected 4294967295, got %d", got)
	}
}

func TestToBoolean(t *testing.T) {
	falsy := []Value{UndefinedValue, NullValue, FalseValue, NewInt32(0), NewDouble(0), NaNValue, NewString("")}
	for _, v := range falsy {
		if ToBoolean(v) {
			t.Errorf("Expected %v to be falsy", v)
		}
	}
	truthy := []Value{TrueValue, NewInt32(-1), NewDouble(0.5), NewString("0"), NewObject(NewPlainObject(nil, nil))}
	for _, v := range truthy {
		if !ToBoolean(v) {
			t.Errorf("Expected %v to be truthy", v)
		}
	}
}

func TestAsConversions(t *testing.T) {
	v := NewDouble(300.7)
	if r := v.As(types.Int8); r.Type != types.Int8 || r.RawInt() != 44 {
		t.Errorf("Expected Int8 44, got %v %d", r.Type, r.RawInt())
	}
	if r := v.As(types.UInt8); r.Type != types.UInt8 || r.RawUInt() != 44 {
		t.Errorf("Expected UInt8 44, got %v %d", r.Type, r.RawUInt())
	}
	if r := NewString("7").As(types.Int32); r.RawInt() != 7 {
		t.Errorf("Expected 7, got %d", r.RawInt())
	}
	if r := NewInt32(3).As(types.DValueRef); r.Type != types.Int32 {
		t.Errorf("Boxing should keep the tag, got %v", r.Type)
	}

	var err error
	func() {
		defer errors.Recover(&err)
		NewInt32(1).As(types.Array)
	}()
	if err == nil {
		t.Error("Expected internal error for Int32 -> Array")
	}

	var exc *JSException
	func() {
		defer CatchException(&exc)
		NewInt32(1).As(types.Function)
	}()
	if exc == nil {
		t.Error("Expected TypeError for Int32 -> Function")
	}
}

func TestEquality(t *testing.T) {
	o := NewObject(NewPlainObject(nil, nil))
	tests := []struct {
		a, b          Value
		strict, loose bool
	}{
		{NewInt32(1), NewDouble(1), true, true},
		{NewInt32(1), NewString("1"), false, true},
		{NullValue, UndefinedValue, false, true},
		{NaNValue, NaNValue, false, false},
		{o, o, true, true},
		{o, NewObject(NewPlainObject(nil, nil)), false, false},
		{TrueValue, NewInt32(1), false, true},
		{NewString("a"), NewChar('a'), true, true},
	}
	for i, tt := range tests {
		if got := StrictEquals(tt.a, tt.b); got != tt.strict {
			t.Errorf("case %d: StrictEquals expected %v, got %v", i, tt.strict, got)
		}
		if got := LooseEquals(tt.a, tt.b); got != tt.loose {
			t.Errorf("case %d: LooseEquals expected %v, got %v", i, tt.loose, got)
		}
	}
}

func TestObjectShapes(t *testing.T) {
	a := NewPlainObject(nil, nil)
	b := NewPlainObject(nil, nil)
	a.Set("x", NewInt32(1))
	a.Set("y", NewInt32(2))
	b.Set("x", NewInt32(3))
	b.Set("y", NewInt32(4))
	if a.Map != b.Map {
		t.Error("Objects with the same field order should share a map")
	}
	b.Set("z", NewInt32(5))
	if a.Map == b.Map {
		t.Error("Adding a field should transition the map")
	}

	proto := NewPlainObject(nil, nil)
	proto.Set("p", NewString("inherited"))
	c := NewPlainObject(nil, proto)
	pd := c.GetPropertyDescriptor(FieldIDOf("p"))
	if !pd.IsInherited(c) {
		t.Error("Expected inherited descriptor")
	}
	pd.Set(c, NewString("own"))
	if proto.Get("p").RawString() != "inherited" {
		t.Error("Writing through an inherited descriptor must not modify the prototype")
	}
	if c.Get("p").RawString() != "own" {
		t.Errorf("Expected own, got %v", c.Get("p"))
	}

	a.DeleteField(FieldIDOf("x"))
	if a.HasField(FieldIDOf("x")) || a.Get("y").RawInt() != 2 {
		t.Error("DeleteField should drop x and keep y")
	}
}

func TestArrayAndArguments(t *testing.T) {
	a := NewArrayObject(nil)
	a.SetKey(NewInt32(2), NewString("c"))
	if a.Length() != 3 || !a.GetIndex(0).IsUndefined() {
		t.Errorf("Expected length 3 with holes, got %d", a.Length())
	}
	if got := a.GetKey(NewString("length")); got.RawInt() != 3 {
		t.Errorf("Expected length 3, got %v", got)
	}
	a.SetKey(NewString("length"), NewInt32(1))
	if a.Length() != 1 {
		t.Errorf("Expected truncated length 1, got %d", a.Length())
	}

	args := NewArguments(nil, []Value{NewInt32(1), NewInt32(2)})
	args.SetIndex(0, NewInt32(10))
	if args.GetIndex(0).RawInt() != 10 {
		t.Error("Arguments element should be writable")
	}
	args.SetLength(0)
	if !args.GetIndex(1).IsUndefined() {
		t.Error("Truncated arguments should read undefined")
	}
}

func TestGlobalPrint(t *testing.T) {
	var buf bytes.Buffer
	g := NewGlobalObject(&buf)
	g.Get("print").AsFunction().Call(UndefinedValue, NewInt32(1), NewString("a"))
	if buf.String() != "1 a\n" {
		t.Errorf("Expected \"1 a\\n\", got %q", buf.String())
	}
}

func TestCallValueNonFunction(t *testing.T) {
	var exc *JSException
	func() {
		defer CatchException(&exc)
		CallValue(NewInt32(3), UndefinedValue, nil, "foo")
	}()
	if exc == nil || exc.Error() != "TypeError: foo is not a function" {
		t.Errorf("Unexpected exception %v", exc)
	}
}
