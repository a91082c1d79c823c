package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"connection", fmt.Errorf("lookup main: %w", ErrConnectionNotFound), http.StatusNotFound},
		{"table missing", TableMissing("users"), http.StatusNotFound},
		{"table hidden", TableHidden("secrets"), http.StatusNotFound},
		{"column", ColumnMissing("nope"), http.StatusBadRequest},
		{"option", &OptionError{Option: "foo"}, http.StatusBadRequest},
		{"format", fmt.Errorf("%w: doc", ErrInvalidFormat), http.StatusBadRequest},
		{"execution", Execution("query", errors.New("connection reset")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestHiddenTableIndistinguishable(t *testing.T) {
	hidden := TableHidden("secrets")
	missing := TableMissing("secrets")

	if hidden.Error() != missing.Error() {
		t.Errorf("messages differ: %q vs %q", hidden.Error(), missing.Error())
	}
	if Message(hidden) != Message(missing) {
		t.Errorf("client messages differ: %q vs %q", Message(hidden), Message(missing))
	}
	if !errors.Is(hidden, ErrVisibilityDenied) {
		t.Error("hidden table should unwrap to ErrVisibilityDenied")
	}
	if errors.Is(missing, ErrVisibilityDenied) {
		t.Error("missing table should not unwrap to ErrVisibilityDenied")
	}
}

func TestMessageHidesExecutionDetail(t *testing.T) {
	err := Execution("query", errors.New("password authentication failed for user root"))
	if got := Message(err); got != "Internal Server Error" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(&OptionError{Option: "foo"}); got != "invalid option specified: foo" {
		t.Errorf("Message() = %q", got)
	}
}
