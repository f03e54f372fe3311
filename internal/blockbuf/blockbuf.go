// Package blockbuf provides single-block I/O buffers whose backing memory
// is page aligned where the platform allows it. Alignment matters because
// image devices opened with O_DIRECT reject unaligned buffers.
package blockbuf

// Block holds exactly one filesystem block of bytes.
type Block struct {
	Data []byte
	mmap []byte
}

// Zero clears the whole buffer.
func (b *Block) Zero() {
	for i := range b.Data {
		b.Data[i] = 0
	}
}

// ZeroFrom clears the buffer from off to the end.
func (b *Block) ZeroFrom(off int) {
	for i := off; i < len(b.Data); i++ {
		b.Data[i] = 0
	}
}

// Release returns the backing memory to the OS. The block must not be used
// afterwards.
func (b *Block) Release() error {
	err := release(b)
	b.Data = nil
	return err
}
