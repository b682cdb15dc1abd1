package errors

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"config", "N101", "Configuration file not found", CategoryConfig},
		{"snapshot", "N202", "Invalid snapshot", CategorySnapshot},
		{"server", "N302", "Invalid update filter expression", CategoryServer},
		{"unknown", "N999", "Unknown error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := New("N104").Wrap(cause)

	if got, want := err.Error(), "N104: Could not write configuration file: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := Newf(CategoryCLI, "bad %s", "flag").Error(); got != "bad flag" {
		t.Errorf("Newf Error() = %q", got)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "N301") != nil {
		t.Error("FromError(nil) should be nil")
	}
	orig := New("N202")
	if FromError(orig, "N301") != orig {
		t.Error("FromError should keep an existing NodesyncError")
	}
	wrapped := FromError(stderrors.New("boom"), "N301")
	if wrapped.Code != "N301" || wrapped.Wrapped == nil {
		t.Errorf("FromError = %+v", wrapped)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("N302").Wrap(stderrors.New("undeclared reference")).Format()
	for _, want := range []string{
		"ERROR N302: Invalid update filter expression",
		"must evaluate to a bool",
		"Cause: undeclared reference",
		"Hint: Try something like",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() should not contain color codes when disabled")
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("Fprint plain = %q", buf.String())
	}
	buf.Reset()
	Fprint(&buf, New("N101"))
	if !strings.Contains(buf.String(), "Hint:") {
		t.Errorf("Fprint coded = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	want := []string{"one two", "three", "four five"}
	if len(lines) != len(want) {
		t.Fatalf("wrapText = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestGetAllCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
	if _, ok := GetTemplate("N101"); !ok {
		t.Error("N101 should be registered")
	}
}
