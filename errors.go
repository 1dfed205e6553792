package iconcache

import "errors"

var (
	// ErrClosed is returned by administrative operations after Close.
	ErrClosed = errors.New("iconcache: service closed")

	// ErrInvalidRequest is returned by Export for an empty path or a size
	// outside 1..MaxIconSize.
	ErrInvalidRequest = errors.New("iconcache: invalid request")
)
