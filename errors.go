package blockfs

import (
	"errors"
	"fmt"
)

var (
	ErrReadOnlyFilesystem = errors.New("filesystem is not open for writing")
	ErrReadOnly           = errors.New("file handle is not open for writing")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrFileTooBig         = errors.New("file size exceeds addressable block range")
	ErrNoSpace            = errors.New("no free blocks left on device")
	ErrIO                 = errors.New("input/output error")
	ErrNotFound           = errors.New("inode does not exist")
)

// OpError annotates a collaborator failure with the high-level operation
// that was in progress. The underlying error is preserved for errors.Is.
type OpError struct {
	Op  string
	Ino Ino
	Err error
}

func (e *OpError) Error() string {
	if e.Ino == 0 {
		return fmt.Sprintf("blockfs: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blockfs: %s inode %d: %v", e.Op, e.Ino, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op string, ino Ino, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Ino: ino, Err: err}
}
