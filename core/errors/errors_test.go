package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "format", ID: "docx"},
			wantMsg:  "format not found: docx",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "resource"},
			wantMsg:  "resource not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	// Test with underlying error separately
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "file", ID: "test.txt", Err: underlyingErr}
		if got := err.Error(); got != "file not found: test.txt" {
			t.Errorf("Error() = %q, want %q", got, "file not found: test.txt")
		}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with field",
			err:      &ValidationError{Field: "username", Message: "must not be empty"},
			wantMsg:  "validation failed for username: must not be empty",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "without field",
			err:      &ValidationError{Message: "invalid format"},
			wantMsg:  "validation failed: invalid format",
			wantBase: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	// Test with underlying error separately
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("regex parse error")
		err := &ValidationError{Field: "pattern", Message: "invalid regex", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestIOError(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := NewIO("write", "/tmp/out.txt", base)

	if got := err.Error(); got != "failed to write /tmp/out.txt: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrIO) {
		t.Error("IOError should match ErrIO")
	}
	if !errors.Is(err, base) {
		t.Error("IOError should match its cause")
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "invalid",
			err:      NewParse(ParseInvalid, "native", "unexpected token"),
			wantMsg:  "failed to parse native: unexpected token",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "unsupported format",
			err:      NewParse(ParseUnsupportedFormat, "sqlite", "not a database"),
			wantMsg:  "failed to parse sqlite: not a database",
			wantBase: ErrUnsupported,
		},
		{
			name:     "io",
			err:      &ParseError{Kind: ParseIO, Format: "csv", Reason: "read failed", Err: fmt.Errorf("eof")},
			wantMsg:  "failed to parse csv: read failed: eof",
			wantBase: ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantBase) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantBase)
			}
		})
	}
}

func TestEmitError(t *testing.T) {
	err := &EmitError{Kind: EmitUnsupportedNode, Format: "csv", Node: "math:fraction", Reason: "cannot traverse"}

	if got := err.Error(); got != `failed to emit csv: node "math:fraction": cannot traverse` {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnsupportedNode) {
		t.Error("EmitError should match ErrUnsupportedNode")
	}
	if errors.Is(err, ErrIO) {
		t.Error("EmitUnsupportedNode should not match ErrIO")
	}

	ioErr := NewEmit(EmitIO, "sqlite", "write failed")
	if !errors.Is(ioErr, ErrIO) {
		t.Error("EmitIO should match ErrIO")
	}
}

func TestTransformError(t *testing.T) {
	cause := fmt.Errorf("bad delta")
	err := &TransformError{Transform: "shift_headings", Reason: "invalid argument", Err: cause}

	if got := err.Error(); got != "transform shift_headings failed: invalid argument: bad delta" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrTransformFailed) || !errors.Is(err, cause) {
		t.Error("TransformError should match both sentinel and cause")
	}

	var te *TransformError
	if !As(Wrap(err, "pipeline"), &te) || te.Transform != "shift_headings" {
		t.Errorf("As() through Wrap failed: %+v", te)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("format", "write-only")
	if got := err.Error(); got != "unsupported format: write-only" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should match ErrUnsupported")
	}
	if got := (&UnsupportedError{Feature: "x"}).Error(); got != "unsupported x" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHelperFunctions(t *testing.T) {
	t.Run("NewNotFound", func(t *testing.T) {
		err := NewNotFound("format", "docx")
		if err.Resource != "format" || err.ID != "docx" {
			t.Errorf("NewNotFound() = %+v, unexpected values", err)
		}
	})

	t.Run("NewValidation", func(t *testing.T) {
		err := NewValidation("to", "required")
		if err.Field != "to" || err.Message != "required" {
			t.Errorf("NewValidation() = %+v, unexpected values", err)
		}
	})

	t.Run("NewTransform", func(t *testing.T) {
		err := NewTransform("strip_empty", "boom")
		if err.Transform != "strip_empty" || err.Err != nil {
			t.Errorf("NewTransform() = %+v, unexpected values", err)
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("wraps error", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrap(baseErr, "context message")
		if wrapped == nil {
			t.Fatal("Wrap() returned nil")
		}
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrap() error does not unwrap to base error")
		}
		wantMsg := "context message: base error"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrap() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})
}

func TestWrapf(t *testing.T) {
	t.Run("wraps error with formatting", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrapf(baseErr, "failed to process %s", "file.txt")
		if wrapped == nil {
			t.Fatal("Wrapf() returned nil")
		}
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrapf() error does not unwrap to base error")
		}
		wantMsg := "failed to process file.txt: base error"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrapf() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrapf(nil, "context %s", "test"); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})
}

func TestIs(t *testing.T) {
	err := &NotFoundError{Resource: "test"}
	if !Is(err, ErrNotFound) {
		t.Error("Is() failed to match NotFoundError to ErrNotFound")
	}
}

func TestAs(t *testing.T) {
	err := &NotFoundError{Resource: "test", ID: "123"}
	var nfErr *NotFoundError
	if !As(err, &nfErr) {
		t.Error("As() failed to match NotFoundError")
	}
	if nfErr.ID != "123" {
		t.Errorf("As() nfErr.ID = %q, want %q", nfErr.ID, "123")
	}
}
