package db

import "errors"

// Sentinel errors for gateway operations.
var (
	ErrNotConnected = errors.New("db: not connected")
	ErrNoDatabase   = errors.New("db: database name is required")
	ErrDuplicateKey = errors.New("db: duplicate key")
	ErrUnsupported  = errors.New("db: operation not supported by the server")
)

// Op constants name gateway operations for error context.
const (
	OpConnect     = "connect"
	OpFind        = "find"
	OpCount       = "count"
	OpDistinct    = "distinct"
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpRemove      = "remove"
	OpEnsureIndex = "ensure_index"
	OpDrop        = "drop"
	OpStats       = "stats"
	OpPing        = "ping"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
