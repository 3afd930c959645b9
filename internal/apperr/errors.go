package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDecode           = errors.New("decode failed")
	ErrMissingVersion   = errors.New("metadata has no version")
	ErrAmbiguousVersion = errors.New("ambiguous version")
)
