package blockfs

import (
	"io"

	"github.com/KuzCOrp/blockfs/internal/blockbuf"
)

// OpenFlags select the access mode of a file handle. Read access is always
// implied.
type OpenFlags uint32

const (
	OpenWrite OpenFlags = 1 << iota
	OpenCreate
)

// bufState tracks the handle's single block buffer. Dirty implies the
// buffer holds valid data, so the illegal "dirty but not loaded" pair
// cannot be represented.
type bufState uint8

const (
	bufEmpty bufState = iota
	bufClean
	bufDirty
)

// File is a buffered byte-offset view of one file on a block-addressed
// image. A handle owns its inode snapshot and one block of write-back
// buffer; two handles on the same inode do not see each other's buffered
// writes until each flushes. A handle is not safe for concurrent use.
type File struct {
	fs    *Filesystem
	ino   Ino
	inode Inode
	flags OpenFlags

	pos       uint64
	blockno   uint64
	physblock uint64
	state     bufState
	buf       *blockbuf.Block
}

// Open opens the file behind ino, loading its metadata record from the
// filesystem's inode store.
func Open(fs *Filesystem, ino Ino, flags OpenFlags) (*File, error) {
	return OpenWithInode(fs, ino, nil, flags)
}

// OpenWithInode opens a file handle using a caller-supplied metadata
// snapshot, skipping the inode store lookup. With ino 0 the handle is
// anonymous: it is never persisted and flushing it never allocates.
func OpenWithInode(fs *Filesystem, ino Ino, inode *Inode, flags OpenFlags) (*File, error) {
	// Refuse to create or open for writing on a read-only image before any
	// state is built.
	if flags&(OpenWrite|OpenCreate) != 0 && !fs.writable {
		return nil, ErrReadOnlyFilesystem
	}

	f := &File{
		fs:    fs,
		ino:   ino,
		flags: flags,
	}
	if inode != nil {
		f.inode = *inode
	} else if ino != 0 {
		if fs.inodes == nil {
			return nil, opErr("open", ino, ErrNotFound)
		}
		rec, err := fs.inodes.ReadInode(ino)
		if err != nil {
			return nil, opErr("open", ino, err)
		}
		f.inode = rec
	}
	f.buf = blockbuf.New(fs.blocksize)
	return f, nil
}

// Filesystem returns the filesystem context the handle was opened on.
func (f *File) Filesystem() *Filesystem {
	return f.fs
}

// InodeNum returns the file's inode number, 0 for anonymous handles.
func (f *File) InodeNum() Ino {
	return f.ino
}

// Inode returns the handle's live metadata snapshot. The pointer stays
// valid until Close; mutating it between operations is the caller's risk.
func (f *File) Inode() *Inode {
	return &f.inode
}

// Size returns the declared file size from the inode snapshot.
func (f *File) Size() uint64 {
	return f.inode.Size()
}

// Size32 returns the size as a 32-bit quantity. ok is false when the size
// does not fit.
func (f *File) Size32() (uint32, bool) {
	size := f.inode.Size()
	if size>>32 != 0 {
		return 0, false
	}
	return uint32(size), true
}

// flush writes the buffered block back to the device if it is dirty. The
// dirty bit is cleared only after the write succeeds, so a failed flush can
// be retried.
func (f *File) flush() error {
	if f.state != bufDirty {
		return nil
	}

	// The physical block may still be unallocated if the last write hit a
	// hole; back it with real storage now. Anonymous handles never
	// allocate.
	if f.physblock == 0 {
		phys, _, err := f.fs.mapper.Map(f.ino, &f.inode, f.blockno, f.ino != 0)
		if err != nil {
			return err
		}
		if phys == 0 {
			return ErrNoSpace
		}
		f.physblock = phys
	}

	if err := f.fs.dev.WriteBlock(f.physblock, f.buf.Data); err != nil {
		return err
	}
	f.state = bufClean
	return nil
}

// Flush writes any buffered dirty block out to the device.
func (f *File) Flush() error {
	return opErr("flush", f.ino, f.flush())
}

// syncPosition re-points the buffer at the block under the current
// position, flushing and invalidating the old block first when moving.
// This is the only place the buffer changes blocks, so at most one block
// per handle is ever dirty.
func (f *File) syncPosition() error {
	b := f.pos / uint64(f.fs.blocksize)
	if b != f.blockno {
		if err := f.flush(); err != nil {
			return err
		}
		f.state = bufEmpty
	}
	f.blockno = b
	return nil
}

// loadBlock makes the buffer valid for the current block. Holes and
// uninitialized extents read as zero. With dontfill set the fill is
// skipped because the caller is about to overwrite the entire block; only
// the physical mapping and the valid state are established.
func (f *File) loadBlock(dontfill bool) error {
	if f.state != bufEmpty {
		return nil
	}
	phys, flags, err := f.fs.mapper.Map(f.ino, &f.inode, f.blockno, false)
	if err != nil {
		return err
	}
	f.physblock = phys
	if !dontfill {
		if phys != 0 && flags&MapUninit == 0 {
			if err := f.fs.dev.ReadBlock(phys, f.buf.Data); err != nil {
				return err
			}
		} else {
			f.buf.Zero()
		}
	}
	f.state = bufClean
	return nil
}

// Close flushes the handle and releases its buffer. The buffer is released
// even when the flush fails; the flush error is still returned so a lost
// write is reported rather than silently dropped.
func (f *File) Close() error {
	err := f.flush()

	if f.buf != nil {
		f.buf.Release()
		f.buf = nil
	}
	f.state = bufEmpty

	return opErr("close", f.ino, err)
}

// Read copies up to len(p) bytes at the current position into p and
// advances the position. It returns the number of bytes actually copied;
// at or past end of file that is 0 with a nil error, not io.EOF. Reading
// never allocates blocks and never dirties the buffer. On a collaborator
// failure the count copied so far is returned alongside the error.
func (f *File) Read(p []byte) (int, error) {
	bs := uint64(f.fs.blocksize)
	count := 0

	for f.pos < f.inode.Size() && count < len(p) {
		if err := f.syncPosition(); err != nil {
			return count, opErr("read", f.ino, err)
		}
		if err := f.loadBlock(false); err != nil {
			return count, opErr("read", f.ino, err)
		}

		start := f.pos % bs
		c := bs - start
		if wanted := uint64(len(p) - count); c > wanted {
			c = wanted
		}
		if left := f.inode.Size() - f.pos; c > left {
			c = left
		}

		copy(p[count:], f.buf.Data[start:start+c])
		f.pos += c
		count += int(c)
	}
	return count, nil
}

// Write copies p into the file at the current position, extending the file
// if the write runs past the end. Whole-block segments skip the
// read-modify-write fill. Even when the loop fails partway, a size update
// still runs if any bytes were transferred, so the declared size never
// lags behind data actually written; the write's own error takes
// precedence over the size update's.
func (f *File) Write(p []byte) (int, error) {
	if f.flags&OpenWrite == 0 {
		return 0, ErrReadOnly
	}

	bs := uint64(f.fs.blocksize)
	count := 0
	var werr error

	for count < len(p) {
		if err := f.syncPosition(); err != nil {
			werr = opErr("write", f.ino, err)
			break
		}

		start := f.pos % bs
		c := bs - start
		if left := uint64(len(p) - count); c > left {
			c = left
		}

		// A full-block segment overwrites everything, so skip the fill.
		if err := f.loadBlock(c == bs); err != nil {
			werr = opErr("write", f.ino, err)
			break
		}

		// Writing into a hole: allocate before dirtying the buffer so a
		// dirty block is never mapped to physical 0.
		if f.physblock == 0 {
			phys, _, err := f.fs.mapper.Map(f.ino, &f.inode, f.blockno, f.ino != 0)
			if err != nil {
				werr = opErr("write", f.ino, err)
				break
			}
			if phys == 0 {
				werr = opErr("write", f.ino, ErrNoSpace)
				break
			}
			f.physblock = phys
		}

		copy(f.buf.Data[start:start+c], p[count:])
		f.state = bufDirty
		f.pos += c
		count += int(c)
	}

	if count != 0 && f.inode.Size() < f.pos {
		if rc := f.SetSize(f.pos); werr == nil {
			werr = rc
		}
	}
	return count, werr
}

// Seek moves the position using the io.Seek* whence values. The position
// may land past end of file: a later read there returns 0 bytes, a later
// write extends the file. No block I/O happens here.
func (f *File) Seek(offset int64, whence int) (uint64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = uint64(offset)
	case io.SeekCurrent:
		f.pos += uint64(offset)
	case io.SeekEnd:
		f.pos = f.inode.Size() + uint64(offset)
	default:
		return 0, ErrInvalidArgument
	}
	return f.pos, nil
}
