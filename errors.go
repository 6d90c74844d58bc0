package docmap

import (
	"errors"
	"fmt"
)

// Sentinel errors. Detailed errors wrap one of these; check with errors.Is.
var (
	ErrTypeMismatch   = errors.New("docmap: type mismatch")
	ErrInvalidUsage   = errors.New("docmap: invalid usage")
	ErrStoreOperation = errors.New("docmap: store operation failed")
	ErrConfiguration  = errors.New("docmap: configuration error")
	ErrStale          = errors.New("docmap: object does not exist any more")
	ErrValidation     = errors.New("docmap: validation failed")

	// ErrUnknownType is returned when a schema name is not registered.
	ErrUnknownType = fmt.Errorf("%w: unknown type", ErrInvalidUsage)
)
