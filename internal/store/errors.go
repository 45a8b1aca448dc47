package store

import (
	"github.com/logan676/booklibrio-engine/internal/errors"
)

// Sentinel errors returned by store implementations. They carry domain error
// codes so callers can match with errors.Is against either these values or
// the generic domain sentinels.
var (
	ErrNotFound = errors.NotFound("resource not found")

	ErrAlreadyExists = &errors.Error{Code: errors.CodeConflict, Message: "resource already exists"}

	ErrInvalidInput = errors.Validation("invalid input")
)
