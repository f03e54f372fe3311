//go:build !linux
// +build !linux

package imagedev

import (
	"fmt"
	"io"
	"os"
)

// ImageConfig configures an image-file block device.
type ImageConfig struct {
	Filename   string
	BlockSize  int
	ReadOnly   bool
	PunchHoles bool // ignored, no punch support off linux
}

// Stat counts physical operations against the image.
type Stat struct {
	ReadCount  int64
	WriteCount int64
	PunchCount int64
}

// Image is a block device over a flat file: physical block n lives at byte
// offset n*blocksize. Non-linux builds use plain buffered I/O.
type Image struct {
	DirectIO  bool
	blockSize int
	file      *os.File
	readOnly  bool
	Stat      *Stat
}

// OpenImage opens (creating if necessary) the image file named in config.
func OpenImage(config ImageConfig) (*Image, error) {
	if config.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", config.BlockSize)
	}
	flags := os.O_RDWR | os.O_CREATE
	if config.ReadOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(config.Filename, flags, FILE_MODE)
	if err != nil {
		return nil, err
	}
	return &Image{
		blockSize: config.BlockSize,
		file:      file,
		readOnly:  config.ReadOnly,
		Stat:      &Stat{},
	}, nil
}

// BlockSize returns the block size the image was opened with.
func (img *Image) BlockSize() int {
	return img.blockSize
}

// ReadBlock reads physical block phys into buf. Blocks past the current
// end of the image file read as zero, matching sparse image semantics.
func (img *Image) ReadBlock(phys uint64, buf []byte) error {
	if img.file == nil {
		return ErrImageClosed
	}
	if len(buf) != img.blockSize {
		return ErrBufSize
	}
	n, err := img.file.ReadAt(buf, int64(phys)*int64(img.blockSize))
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	img.Stat.ReadCount++
	return nil
}

// WriteBlock writes buf to physical block phys.
func (img *Image) WriteBlock(phys uint64, buf []byte) error {
	if img.file == nil {
		return ErrImageClosed
	}
	if img.readOnly {
		return ErrImageReadOnly
	}
	if len(buf) != img.blockSize {
		return ErrBufSize
	}
	n, err := img.file.WriteAt(buf, int64(phys)*int64(img.blockSize))
	if err != nil {
		return err
	}
	if n != img.blockSize {
		return ErrShortWrite
	}
	img.Stat.WriteCount++
	return nil
}

// DiscardBlock is a no-op off linux; freed blocks simply stay backed.
func (img *Image) DiscardBlock(phys uint64) error {
	return nil
}

// Close releases the image file.
func (img *Image) Close() error {
	if img.file == nil {
		return nil
	}
	err := img.file.Close()
	img.file = nil
	return err
}
