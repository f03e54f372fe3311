//go:build linux
// +build linux

package imagedev

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const O_DIRECT = 0x4000

// ImageConfig configures an image-file block device.
type ImageConfig struct {
	Filename   string
	BlockSize  int
	ReadOnly   bool
	PunchHoles bool // discard freed blocks with fallocate punch-hole
}

// Stat counts physical operations against the image.
type Stat struct {
	ReadCount  int64
	WriteCount int64
	PunchCount int64
}

// Image is a block device over a flat file: physical block n lives at byte
// offset n*blocksize. It tries to open the file with O_DIRECT|O_DSYNC and
// falls back to buffered I/O when direct I/O is unsupported.
type Image struct {
	DirectIO  bool
	blockSize int
	fd        int
	file      *os.File
	readOnly  bool
	punch     bool
	Stat      *Stat
}

func openImageFd(filename string, readOnly bool) (int, bool, error) {
	access := syscall.O_RDWR | syscall.O_CREAT
	if readOnly {
		access = syscall.O_RDONLY
	}

	flags := O_DIRECT | access | syscall.O_DSYNC
	fd, err := syscall.Open(filename, flags, FILE_MODE)
	if err != nil {
		// If DIRECT_IO is not supported, fall back to regular flags
		log.Warn().Msgf("DIRECT_IO not supported, falling back to regular flags: %v", err)
		fd, err = syscall.Open(filename, access, FILE_MODE)
		if err != nil {
			return 0, false, err
		}
		return fd, false, nil
	}
	return fd, true, nil
}

// OpenImage opens (creating if necessary) the image file named in config.
func OpenImage(config ImageConfig) (*Image, error) {
	if config.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", config.BlockSize)
	}
	fd, direct, err := openImageFd(config.Filename, config.ReadOnly)
	if err != nil {
		return nil, err
	}
	file := os.NewFile(uintptr(fd), config.Filename)
	if file == nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("failed to create file from fd")
	}
	return &Image{
		DirectIO:  direct,
		blockSize: config.BlockSize,
		fd:        fd,
		file:      file,
		readOnly:  config.ReadOnly,
		punch:     config.PunchHoles,
		Stat:      &Stat{},
	}, nil
}

// BlockSize returns the block size the image was opened with.
func (img *Image) BlockSize() int {
	return img.blockSize
}

func (img *Image) checkBuf(buf []byte) error {
	if len(buf) != img.blockSize {
		return ErrBufSize
	}
	if img.DirectIO && !isAlignedBuffer(buf, img.blockSize) {
		return ErrBufNoAlign
	}
	return nil
}

// ReadBlock reads physical block phys into buf. Blocks past the current
// end of the image file read as zero, matching sparse image semantics.
func (img *Image) ReadBlock(phys uint64, buf []byte) error {
	if img.file == nil {
		return ErrImageClosed
	}
	if err := img.checkBuf(buf); err != nil {
		return err
	}
	n, err := syscall.Pread(img.fd, buf, int64(phys)*int64(img.blockSize))
	if err != nil {
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
	if err := img.checkBuf(buf); err != nil {
		return err
	}
	n, err := syscall.Pwrite(img.fd, buf, int64(phys)*int64(img.blockSize))
	if err != nil {
		return err
	}
	if n != img.blockSize {
		return ErrShortWrite
	}
	img.Stat.WriteCount++
	return nil
}

// DiscardBlock returns the storage behind a freed physical block to the
// filesystem hosting the image, when punching was enabled. Errors from the
// punch are ignored beyond accounting: a block that stays backed is
// correct, just not reclaimed.
func (img *Image) DiscardBlock(phys uint64) error {
	if !img.punch || img.file == nil || img.readOnly {
		return nil
	}
	err := unix.Fallocate(img.fd,
		unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE,
		int64(phys)*int64(img.blockSize), int64(img.blockSize))
	if err != nil {
		return nil
	}
	img.Stat.PunchCount++
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

// isAlignedBuffer checks if the buffer is aligned to the block size
func isAlignedBuffer(buf []byte, alignment int) bool {
	pt := uintptr(alignment)
	if len(buf) == 0 {
		return false
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	return addr%pt == 0
}
