package storage

import "errors"

// Typed storage errors every backend must map its native driver
// errors onto: UNIQUE violations surface as a typed DUPLICATE error,
// never as a generic error string.
var (
	ErrDuplicate = errors.New("storage: duplicate")
	ErrNotFound  = errors.New("storage: not found")
)
