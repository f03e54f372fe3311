package blockfs

import "github.com/KuzCOrp/blockfs/internal/blockbuf"

// zeroPastOffset clears the bytes of the end-of-file block that sit past
// size, so shrinking and later regrowing the file exposes zeros instead of
// stale data. Holes and uninitialized extents already read as zero and are
// left alone. The read-zero-write runs through a scratch block, not the
// handle buffer.
func (f *File) zeroPastOffset(size uint64) error {
	bs := uint64(f.fs.blocksize)
	off := size % bs
	if off == 0 {
		return nil
	}

	if err := f.syncPosition(); err != nil {
		return err
	}

	phys, flags, err := f.fs.mapper.Map(f.ino, &f.inode, size/bs, false)
	if err != nil {
		return err
	}
	if phys == 0 || flags&MapUninit != 0 {
		return nil
	}

	scratch := blockbuf.New(f.fs.blocksize)
	defer scratch.Release()

	if err := f.fs.dev.ReadBlock(phys, scratch.Data); err != nil {
		return err
	}
	scratch.ZeroFrom(int(off))
	return f.fs.dev.WriteBlock(phys, scratch.Data)
}

// reconcileBuffer aligns the handle buffer with a new size. A buffered
// block lying wholly past the new end is discarded, mapping included, so a
// later flush can never write stale bytes into storage the shrink is about
// to release. A buffered end-of-file block gets its tail zeroed in place,
// keeping it consistent with what zeroPastOffset puts on disk.
func (f *File) reconcileBuffer(size uint64) {
	if f.state == bufEmpty {
		return
	}
	bs := uint64(f.fs.blocksize)
	truncateBlock := (size + bs - 1) / bs
	if f.blockno >= truncateBlock {
		f.state = bufEmpty
		f.physblock = 0
		return
	}
	if off := size % bs; off != 0 && f.blockno == size/bs {
		f.buf.ZeroFrom(int(off))
	}
}

// SetSize grows or shrinks the file to size bytes. Growth past the
// large-file threshold promotes the image's large-file feature, one-way.
// The new size is recorded in the inode snapshot and persisted for handles
// backed by a real inode; shrinks zero the tail of the final block and
// release every whole block past the new end through the punch
// collaborator.
func (f *File) SetSize(size uint64) error {
	bs := uint64(f.fs.blocksize)

	if size != 0 && f.fs.blockOffsetTooBig((size-1)/bs) {
		return ErrFileTooBig
	}
	truncateBlock := (size + bs - 1) / bs
	oldSize := f.inode.Size()
	oldTruncate := (oldSize + bs - 1) / bs

	if f.inode.IsRegular() && size > largeFileThreshold &&
		(!f.fs.HasFeature(FeatureLargeFile) || f.fs.rev == RevOriginal) {
		f.fs.MarkLargeFileFeature()
		f.fs.MarkSuperDirty()
	}

	f.inode.setSize(size)
	if f.ino != 0 && f.fs.inodes != nil {
		if err := f.fs.inodes.WriteInode(f.ino, &f.inode); err != nil {
			return opErr("resize", f.ino, err)
		}
	}

	f.reconcileBuffer(size)
	if err := f.zeroPastOffset(size); err != nil {
		return opErr("resize", f.ino, err)
	}

	// Pure grow or no-op at block granularity: nothing to release.
	if truncateBlock >= oldTruncate {
		return nil
	}
	if f.fs.punch == nil {
		return nil
	}
	return opErr("resize", f.ino, f.fs.punch.PunchRange(f.ino, &f.inode, truncateBlock, PunchToEnd))
}
