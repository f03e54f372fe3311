// Package imagedev provides block devices for the filesystem core: a flat
// image file on disk and an in-memory device for tests.
package imagedev

import "errors"

const FILE_MODE = 0644

var (
	ErrBufSize       = errors.New("buffer is not exactly one block")
	ErrBufNoAlign    = errors.New("buffer is not aligned to block size")
	ErrShortWrite    = errors.New("short block write")
	ErrImageClosed   = errors.New("image device is closed")
	ErrImageReadOnly = errors.New("image device is read-only")
)
