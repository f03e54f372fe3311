//go:build linux
// +build linux

package blockbuf

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// New returns a block buffer backed by an anonymous page-aligned mapping.
// If the mapping fails it falls back to a heap slice, which is fine for
// buffered devices but will be rejected by O_DIRECT ones.
func New(size int) *Block {
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		log.Warn().Msgf("blockbuf: mmap failed, falling back to heap buffer: %v", err)
		return &Block{Data: make([]byte, size)}
	}
	return &Block{
		Data: b,
		mmap: b,
	}
}

func release(b *Block) error {
	if b.mmap == nil {
		return nil
	}
	err := unix.Munmap(b.mmap)
	b.mmap = nil
	return err
}
