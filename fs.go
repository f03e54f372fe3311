package blockfs

import "errors"

// Collaborator contracts. The filesystem core turns byte-level file I/O into
// whole-block operations against these; their implementations own the image
// layout, the allocation policy and the physical transport.

// MapFlags carries per-mapping detail back from a BlockMapper.
type MapFlags uint32

const (
	// MapUninit marks a mapping whose physical block is reserved but whose
	// contents were never initialized. Readers must treat it as a hole.
	MapUninit MapFlags = 1 << 0
)

// BlockMapper translates a file-logical block number into a physical block
// number. A physical block of 0 means the logical block is a hole. With
// alloc set the mapper must back the block with real storage or fail.
type BlockMapper interface {
	Map(ino Ino, inode *Inode, logical uint64, alloc bool) (phys uint64, flags MapFlags, err error)
}

// BlockDevice is the raw block channel. Reads and writes are whole-block
// and synchronous; buf is always exactly BlockSize bytes.
type BlockDevice interface {
	BlockSize() int
	ReadBlock(phys uint64, buf []byte) error
	WriteBlock(phys uint64, buf []byte) error
}

// InodeStore persists inode metadata records.
type InodeStore interface {
	ReadInode(ino Ino) (Inode, error)
	WriteInode(ino Ino, inode *Inode) error
}

// PunchToEnd as the end bound frees every mapped block from start onward.
const PunchToEnd = ^uint64(0)

// Puncher releases a range of logical blocks back to the allocator.
type Puncher interface {
	PunchRange(ino Ino, inode *Inode, start, end uint64) error
}

// Rev is the filesystem format revision.
type Rev uint32

const (
	// RevOriginal images predate optional features; promoting a feature on
	// one also promotes the revision.
	RevOriginal Rev = 0
	RevDynamic  Rev = 1
)

// Feature bits tracked in the superblock snapshot.
const (
	FeatureLargeFile uint32 = 1 << 0
)

// Files larger than this need the large-file feature on the image.
const largeFileThreshold = 0x7fffffff

// FilesystemConfig wires a Filesystem to its collaborators.
type FilesystemConfig struct {
	Device   BlockDevice
	Mapper   BlockMapper
	Inodes   InodeStore
	Punch    Puncher
	Writable bool
	Rev      Rev

	// MaxFileBlock is the highest logical block the image's addressing
	// scheme can reach. Zero selects the 32-bit default.
	MaxFileBlock uint64
}

// Filesystem is the per-image context shared by every file handle opened on
// it. Superblock state (features, dirtiness) lives here explicitly; there is
// no process-wide filesystem state.
type Filesystem struct {
	dev    BlockDevice
	mapper BlockMapper
	inodes InodeStore
	punch  Puncher

	blocksize    int
	writable     bool
	maxFileBlock uint64

	rev        Rev
	features   uint32
	superDirty bool
}

// NewFilesystem validates the config and returns a filesystem context.
func NewFilesystem(config FilesystemConfig) (*Filesystem, error) {
	if config.Device == nil || config.Mapper == nil {
		return nil, errors.New("blockfs: device and mapper are required")
	}
	maxBlock := config.MaxFileBlock
	if maxBlock == 0 {
		maxBlock = 1<<32 - 1
	}
	return &Filesystem{
		dev:          config.Device,
		mapper:       config.Mapper,
		inodes:       config.Inodes,
		punch:        config.Punch,
		blocksize:    config.Device.BlockSize(),
		writable:     config.Writable,
		maxFileBlock: maxBlock,
		rev:          config.Rev,
	}, nil
}

// BlockSize returns the image-wide block size in bytes.
func (fs *Filesystem) BlockSize() int {
	return fs.blocksize
}

// Writable reports whether the image was opened read-write.
func (fs *Filesystem) Writable() bool {
	return fs.writable
}

// Rev returns the current format revision.
func (fs *Filesystem) Rev() Rev {
	return fs.rev
}

// HasFeature reports whether the given feature bits are all set.
func (fs *Filesystem) HasFeature(mask uint32) bool {
	return fs.features&mask == mask
}

// MarkLargeFileFeature promotes the image to carry the large-file feature.
// The promotion is one-way and also lifts an original-revision image to the
// dynamic revision. Idempotent.
func (fs *Filesystem) MarkLargeFileFeature() {
	fs.features |= FeatureLargeFile
	if fs.rev < RevDynamic {
		fs.rev = RevDynamic
	}
}

// MarkSuperDirty flags the superblock snapshot as needing write-back.
// Idempotent; clearing it is the image writer's business, not ours.
func (fs *Filesystem) MarkSuperDirty() {
	fs.superDirty = true
}

// SuperDirty reports whether superblock state changed since the image was
// opened.
func (fs *Filesystem) SuperDirty() bool {
	return fs.superDirty
}

func (fs *Filesystem) blockOffsetTooBig(blk uint64) bool {
	return blk > fs.maxFileBlock
}
