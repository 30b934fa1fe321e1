package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		code     string
		args     []interface{}
		expected string
	}{
		{E0304, nil, "Illegal break statement"},
		{E0305, nil, "Illegal continue statement"},
		{E0306, []interface{}{"outer"}, "Undefined label 'outer'"},
		{E0309, []interface{}{"foo"}, "foo is not a function"},
		{I0001, []interface{}{2, 3}, "stack depth mismatch: expected 2, got 3"},
		{"X9999", nil, "X9999"},
	}
	for _, tt := range tests {
		if got := Message(tt.code, tt.args...); got != tt.expected {
			t.Errorf("Message(%s): expected %q, got %q", tt.code, tt.expected, got)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	if !IsGuestError(E0304) || IsInternalError(E0304) {
		t.Error("E0304 should be a guest error")
	}
	if !IsInternalError(I0002) || IsGuestError(I0002) {
		t.Error("I0002 should be an internal error")
	}
	info, ok := GetInternalErrorInfo(I0004)
	if !ok || info.Level != LevelFatal {
		t.Errorf("Expected fatal level for I0004, got %v", info.Level)
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		Fail(I0004, "String", "Int8")
		return nil
	}
	err := run()
	if err == nil {
		t.Fatal("Expected error from Fail")
	}
	var ie *InternalError
	if !stderrors.As(err, &ie) {
		t.Fatalf("Expected InternalError, got %T", err)
	}
	if ie.Code != I0004 {
		t.Errorf("Expected code I0004, got %s", ie.Code)
	}
	if !strings.Contains(err.Error(), "cannot convert String to Int8") {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if len(ie.StackTrace()) == 0 {
		t.Error("Expected stack trace")
	}
}

func TestRecoverPassesOtherPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("Expected boom panic, got %v", r)
		}
	}()
	var err error
	func() {
		defer Recover(&err)
		panic("boom")
	}()
}

func TestAssert(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
		Assert(true, I0001, 1, 1)
	}()
	if err != nil {
		t.Errorf("Unexpected error %v", err)
	}
	func() {
		defer Recover(&err)
		Assert(false, I0001, 1, 2)
	}()
	if err == nil {
		t.Error("Expected assertion failure")
	}
}
