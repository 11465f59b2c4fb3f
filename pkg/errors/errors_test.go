package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("loading: %w", ErrPageNotFound), http.StatusNotFound},
		{"cancelled", fmt.Errorf("build: %w", ErrBuildCancelled), http.StatusConflict},
		{"conflict", ErrVersionConflict, http.StatusConflict},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"malformed", ErrMalformedPage, http.StatusUnprocessableEntity},
		{"unavailable", fmt.Errorf("fetch: %w", ErrSourceUnavailable), http.StatusServiceUnavailable},
		{"empty collection", ErrEmptyCollection, http.StatusInternalServerError},
		{"app error wins", New(ErrPageNotFound, http.StatusGone, "gone"), http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "scope %q", "bogus")
	if !Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if err.Error() != `invalid input: scope "bogus"` {
		t.Errorf("unexpected message %q", err.Error())
	}
}
