package blockfs

// Ino identifies an inode within a filesystem image. Ino 0 is reserved for
// anonymous handles that are not backed by a persistent inode.
type Ino uint32

// File type bits stored in Inode.Mode, POSIX layout.
const (
	ModeTypeMask = 0xF000
	ModeRegular  = 0x8000
	ModeDir      = 0x4000
)

// Inode is the in-memory copy of a file's metadata record. The size field
// is split into low and high halves the way the on-disk record stores it;
// use Size and setSize rather than touching the halves directly.
type Inode struct {
	Mode     uint16
	SizeLo   uint32
	SizeHigh uint32
}

// Size returns the declared file size in bytes.
func (ino *Inode) Size() uint64 {
	return uint64(ino.SizeHigh)<<32 | uint64(ino.SizeLo)
}

func (ino *Inode) setSize(size uint64) {
	ino.SizeLo = uint32(size & 0xffffffff)
	ino.SizeHigh = uint32(size >> 32)
}

// IsRegular reports whether the inode describes a regular file.
func (ino *Inode) IsRegular() bool {
	return ino.Mode&ModeTypeMask == ModeRegular
}
