package db

import "errors"

// ErrKeyNotFound is returned by GetEx for a missing or expired key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op constants map to Redis/Valkey command names for error context.
const (
	OpPing  = "PING"
	OpGetEx = "GETEX"
	OpSet   = "SET"
	OpDel   = "DEL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
