package types

import "testing"

// TestResolveTypeTotal 所有标签对都有定义的合并结果
func TestResolveTypeTotal(t *testing.T) {
	for _, a := range All() {
		for _, b := range All() {
			r := ResolveType(a, b)
			if !r.IsValid() {
				t.Errorf("ResolveType(%v, %v) returned invalid tag %d", a, b, r)
			}
		}
	}
}

// TestResolveTypeBoxedCurrent DValue/DValueRef 作为 current 时返回自身
func TestResolveTypeBoxedCurrent(t *testing.T) {
	for _, cur := range []ValueType{DValue, DValueRef} {
		for _, b := range All() {
			if r := ResolveType(cur, b); r != cur {
				t.Errorf("ResolveType(%v, %v): expected %v, got %v", cur, b, cur, r)
			}
		}
	}
}

// TestResolveTypeUnknown Unknown 返回另一侧
func TestResolveTypeUnknown(t *testing.T) {
	for _, b := range All() {
		if r := ResolveType(Unknown, b); r != b {
			t.Errorf("ResolveType(Unknown, %v): expected %v, got %v", b, b, r)
		}
		if b == Undefined {
			continue
		}
		if r := ResolveType(b, Unknown); r != b {
			t.Errorf("ResolveType(%v, Unknown): expected %v, got %v", b, b, r)
		}
	}
}

func TestResolveTypeTable(t *testing.T) {
	tests := []struct {
		a, b     ValueType
		expected ValueType
	}{
		{Int8, UInt8, Int16},
		{UInt8, Int8, Int16},
		{Int16, UInt16, Int32},
		{Int32, UInt32, Int64},
		{Int64, UInt64, Double},
		{Int8, UInt32, Int64},
		{Int8, UInt64, Double},
		{Int8, Int32, Int32},
		{UInt8, UInt32, UInt32},
		{Float, Int16, Float},
		{Float, Int32, Double},
		{Float, Int64, Double},
		{Double, UInt64, Double},
		{Boolean, Int32, Int32},
		{Char, UInt8, UInt16},
		{Char, Int8, Int32},
		{Char, Int16, Int32},
		{Char, Char, Char},
		{String, Int32, DValueRef},
		{Int32, String, DValueRef},
		{Function, Array, Object},
		{Array, Property, Object},
		{Null, Array, Object},
		{Object, Null, Object},
		{Null, Null, Null},
		{Undefined, String, String},
		{String, Undefined, DValueRef},
		{Any, Int32, DValueRef},
		{Int32, Any, DValueRef},
		{Int32, DValueRef, DValueRef},
	}

	for _, tt := range tests {
		if r := ResolveType(tt.a, tt.b); r != tt.expected {
			t.Errorf("ResolveType(%v, %v): expected %v, got %v", tt.a, tt.b, tt.expected, r)
		}
	}
}

// TestResolveTypeNumericWidening 数值合并能容纳双方量级，且与参数顺序无关
func TestResolveTypeNumericWidening(t *testing.T) {
	numeric := []ValueType{Boolean, Char, Int8, Int16, Int32, Int64, UInt8, UInt16, UInt32, UInt64, Float, Double}
	for _, a := range numeric {
		for _, b := range numeric {
			r := ResolveType(a, b)
			if r2 := ResolveType(b, a); r != r2 {
				t.Errorf("ResolveType not symmetric for %v,%v: %v vs %v", a, b, r, r2)
			}
			if !holds(r, a) || !holds(r, b) {
				t.Errorf("ResolveType(%v, %v) = %v loses magnitude", a, b, r)
			}
		}
	}
}

func holds(r, t ValueType) bool {
	if r == t || t == Boolean {
		return true
	}
	if r == Double {
		return true
	}
	if r == Float {
		return t.bits() <= 16
	}
	if t.IsFloating() || !r.IsInteger() && r != Char {
		return false
	}
	if r == Char {
		return t == UInt8
	}
	if t == Char {
		t = UInt16
	}
	if r.IsUnsigned() {
		return t.IsUnsigned() && r.bits() >= t.bits()
	}
	if t.IsUnsigned() {
		return r.bits() > t.bits()
	}
	return r.bits() >= t.bits()
}

func TestResolveAll(t *testing.T) {
	if r := ResolveAll(); r != Unknown {
		t.Errorf("Expected Unknown, got %v", r)
	}
	if r := ResolveAll(Int8, UInt8, Int32); r != Int32 {
		t.Errorf("Expected Int32, got %v", r)
	}
	if r := ResolveAll(Int32, String); r != DValueRef {
		t.Errorf("Expected DValueRef, got %v", r)
	}
}

func TestSignature(t *testing.T) {
	s := NewSignature(Int32, String, Double)
	if s.Arg(0) != Int32 || s.Arg(1) != String || s.Arg(2) != Double {
		t.Errorf("Unexpected signature args: %v", s)
	}
	if s.Arg(3) != Undefined {
		t.Errorf("Expected unconstrained arg 3, got %v", s.Arg(3))
	}
	if s.KnownCount() != 3 {
		t.Errorf("Expected 3 known args, got %d", s.KnownCount())
	}
	if s.String() != "(Int32,String,Double)" {
		t.Errorf("Unexpected string %q", s.String())
	}

	// 装箱类型不参与编码
	if NewSignature(DValueRef).Arg(0) != Undefined {
		t.Error("DValueRef should not be encoded")
	}

	mask := Mask(2)
	spec := NewSignature(Int32, String)
	if !spec.Matches(s, mask) {
		t.Error("Signature should match under 2-arg mask")
	}
	if spec.Matches(NewSignature(Double, String), mask) {
		t.Error("Signature should not match Double first arg")
	}
	if !EmptySignature.Matches(s, EmptySignature) {
		t.Error("Empty signature should match everything under empty mask")
	}
	if Mask(MaxSignatureArgs+1) != EmptySignature {
		t.Error("Too many parameters should disable signature masking")
	}
}
