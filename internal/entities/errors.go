package entities

import "errors"

var (
	// ErrUnsupportedFormat means the picture key's extension is outside the
	// accepted set. Returned before the origin store is ever touched.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrNotFound means the origin store has no object (or an empty object)
	// for the requested key.
	ErrNotFound = errors.New("image not found")
)
