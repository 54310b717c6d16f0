package exitcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapNil(t *testing.T) {
	if err := Wrap(Unrecoverable, nil); err != nil {
		t.Fatalf("Wrap(code, nil) = %v, want nil", err)
	}
}

func TestWrapFromRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"ok", OK},
		{"any-failed", AnyFailed},
		{"usage-error", UsageError},
		{"unrecoverable", Unrecoverable},
		{"canceled", Canceled},
		{"arbitrary", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := errors.New("boom")
			wrapped := Wrap(tt.code, base)
			if wrapped == nil {
				t.Fatal("Wrap returned nil for non-nil error")
			}
			if got := From(wrapped); got != tt.code {
				t.Errorf("From() = %d, want %d", got, tt.code)
			}
			if wrapped.Error() != base.Error() {
				t.Errorf("Error() = %q, want %q", wrapped.Error(), base.Error())
			}
		})
	}
}

func TestFromNil(t *testing.T) {
	if got := From(nil); got != OK {
		t.Errorf("From(nil) = %d, want %d", got, OK)
	}
}

func TestFromUnwrappedError(t *testing.T) {
	if got := From(errors.New("plain")); got != AnyFailed {
		t.Errorf("From(plain error) = %d, want %d", got, AnyFailed)
	}
}

func TestWrapUnwraps(t *testing.T) {
	base := errors.New("underlying")
	wrapped := Wrap(UsageError, base)
	if !errors.Is(wrapped, base) {
		t.Errorf("errors.Is(wrapped, base) = false, want true")
	}
}

func TestWrapPreservesFmtErrorfChain(t *testing.T) {
	base := errors.New("root cause")
	outer := fmt.Errorf("context: %w", base)
	wrapped := Wrap(Unrecoverable, outer)
	if !errors.Is(wrapped, base) {
		t.Errorf("errors.Is through fmt.Errorf chain failed")
	}
	if From(wrapped) != Unrecoverable {
		t.Errorf("From() = %d, want %d", From(wrapped), Unrecoverable)
	}
}
