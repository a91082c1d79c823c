// Package apperr defines the error taxonomy shared by the catalog, the query
// engine and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnectionNotFound is returned for connection names missing from configuration.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrVisibilityDenied marks a table hidden by the visibility policy. It is
	// only ever returned wrapped in a TableNotFound SchemaError.
	ErrVisibilityDenied = errors.New("table hidden by visibility policy")
	// ErrUnknownDialect is returned when a connection declares a dialect without a driver mapping.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrInvalidFormat is returned for unsupported output formats.
	ErrInvalidFormat = errors.New("invalid output format")
)

// SchemaKind distinguishes the two schema lookup failures.
type SchemaKind int

const (
	TableNotFound SchemaKind = iota
	ColumnNotFound
)

func (k SchemaKind) String() string {
	switch k {
	case TableNotFound:
		return "table not found"
	case ColumnNotFound:
		return "invalid column specified"
	default:
		return "schema error"
	}
}

// SchemaError reports an unknown table or column.
type SchemaError struct {
	Kind SchemaKind
	Name string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TableMissing builds a TableNotFound error.
func TableMissing(name string) *SchemaError {
	return &SchemaError{Kind: TableNotFound, Name: name}
}

// TableHidden builds a TableNotFound error for a table the visibility policy
// rejects. Its message is identical to TableMissing.
func TableHidden(name string) *SchemaError {
	return &SchemaError{Kind: TableNotFound, Name: name, Err: ErrVisibilityDenied}
}

// ColumnMissing builds a ColumnNotFound error.
func ColumnMissing(name string) *SchemaError {
	return &SchemaError{Kind: ColumnNotFound, Name: name}
}

// OptionError reports an option token that matches neither the ordering nor the limit grammar.
type OptionError struct {
	Option string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option specified: %s", e.Option)
}

// ExecutionError wraps a backend failure. These are surfaced, never retried.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Execution wraps err as an ExecutionError unless it is nil.
func Execution(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Op: op, Err: err}
}

// IsNotFound reports whether err should be surfaced as "not found".
func IsNotFound(err error) bool {
	if errors.Is(err, ErrConnectionNotFound) {
		return true
	}
	var se *SchemaError
	return errors.As(err, &se) && se.Kind == TableNotFound
}

// HTTPStatus maps an error from the core onto a response status.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsNotFound(err) {
		return http.StatusNotFound
	}

	var se *SchemaError
	var oe *OptionError
	switch {
	case errors.As(err, &se), errors.As(err, &oe), errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Server-side failures are
// not described beyond their status.
func Message(err error) string {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return "Internal Server Error"
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}
