package entity

import "errors"

// ErrDuplicate is returned by storage when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate key")
