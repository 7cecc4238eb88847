package sqlsource

import "fmt"

// QueryError reports a failed database query. It is returned as is; retries
// are left to the caller.
type QueryError struct {
	// Operation is the terminal operation being executed (count, list, ...)
	Operation string

	// SQL is the statement that failed
	SQL string

	// Err is the driver error
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("sql %s query failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError creates a QueryError.
func NewQueryError(operation, sql string, err error) *QueryError {
	return &QueryError{Operation: operation, SQL: sql, Err: err}
}
