package db

import "fmt"

// ConnectionError means the backend could not be reached when a connection
// was acquired. It is fatal to the request that hit it; nothing in this
// package retries.
type ConnectionError struct {
	Backend string // backend family, e.g. "postgres"
	Err     error  // driver error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("db: %s unavailable: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError carries the backend's own message for a statement that failed:
// malformed SQL, constraint violations, type errors.
type QueryError struct {
	Query string // statement as sent to the backend (after rebinding)
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("db: query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
