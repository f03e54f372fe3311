//go:build !linux
// +build !linux

package blockbuf

// New returns a heap-backed block buffer. Non-linux builds have no direct
// I/O path, so alignment is not required.
func New(size int) *Block {
	return &Block{Data: make([]byte, size)}
}

func release(b *Block) error {
	return nil
}
