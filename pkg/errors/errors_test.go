package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "Without cause",
			err:  New(ErrCodeNotFound, "session not found"),
			want: "NOT_FOUND: session not found",
		},
		{
			name: "With cause",
			err:  Wrap(fmt.Errorf("dial tcp"), ErrCodeUnavailable, "redis unavailable"),
			want: "UNAVAILABLE: redis unavailable (dial tcp)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", New(ErrCodeConflict, "already ended"))

	if got := CodeOf(wrapped); got != ErrCodeConflict {
		t.Errorf("CodeOf() = %q, want %q", got, ErrCodeConflict)
	}
	if got := CodeOf(stderrors.New("plain")); got != ErrCodeInternalError {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrCodeInternalError)
	}
	if !Is(wrapped, ErrCodeConflict) {
		t.Error("Is() = false, want true")
	}
	if Is(wrapped, ErrCodeNotFound) {
		t.Error("Is(NOT_FOUND) = true, want false")
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, ErrCodeInternalError, "failed")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not find the wrapped cause")
	}
}
