package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew_RegisteredCode(t *testing.T) {
	err := New("E101")
	if err.Code != "E101" {
		t.Errorf("Code = %q", err.Code)
	}
	if err.Category != CategoryLoad {
		t.Errorf("Category = %q", err.Category)
	}
	if !strings.Contains(err.Error(), "E101") {
		t.Errorf("Error() = %q, expected code prefix", err.Error())
	}
}

func TestNew_UnknownCode(t *testing.T) {
	err := New("E999")
	if err.Code != "E999" {
		t.Errorf("Code = %q", err.Code)
	}
	if err.Message != "unknown error" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("exec: not found")
	err := New("E141").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is failed to find the wrapped cause")
	}

	var bridgeErr *BridgeError
	if !stderrors.As(err.Wrap(cause), &bridgeErr) {
		t.Error("errors.As failed to extract *BridgeError")
	}
}

func TestFormat(t *testing.T) {
	err := New("E101").
		WithDetail("main.go:3:1: undefined: gatway").
		Wrap(stderrors.New("exit status 1"))

	out := err.Format()
	for _, want := range []string{"ERROR E101", "undefined: gatway", "exit status 1", "Hint:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}
