package blockfs_test

import (
	"testing"

	"github.com/KuzCOrp/blockfs"
	"github.com/KuzCOrp/blockfs/internal/blockmap"
	"github.com/KuzCOrp/blockfs/internal/imagedev"
	"github.com/KuzCOrp/blockfs/internal/inodestore"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	fs     *blockfs.Filesystem
	dev    *imagedev.Mem
	mapper *blockmap.Map
	inodes *inodestore.Store
}

type envConfig struct {
	blockSize    int
	blocks       uint64
	readOnly     bool
	maxFileBlock uint64
	rev          blockfs.Rev
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	if cfg.blockSize == 0 {
		cfg.blockSize = 64
	}
	if cfg.blocks == 0 {
		cfg.blocks = 128
	}
	dev := imagedev.NewMem(cfg.blockSize)
	mapper := blockmap.New(blockmap.Config{Blocks: cfg.blocks, Discard: dev})
	inodes := inodestore.New()

	fs, err := blockfs.NewFilesystem(blockfs.FilesystemConfig{
		Device:       dev,
		Mapper:       mapper,
		Inodes:       inodes,
		Punch:        mapper,
		Writable:     !cfg.readOnly,
		Rev:          cfg.rev,
		MaxFileBlock: cfg.maxFileBlock,
	})
	require.NoError(t, err)

	return &testEnv{fs: fs, dev: dev, mapper: mapper, inodes: inodes}
}

func (e *testEnv) createFile(t *testing.T, ino blockfs.Ino) {
	t.Helper()
	rec := blockfs.Inode{Mode: blockfs.ModeRegular}
	require.NoError(t, e.inodes.WriteInode(ino, &rec))
}

func (e *testEnv) open(t *testing.T, ino blockfs.Ino, flags blockfs.OpenFlags) *blockfs.File {
	t.Helper()
	f, err := blockfs.Open(e.fs, ino, flags)
	require.NoError(t, err)
	return f
}

// pattern returns n bytes of deterministic non-zero data.
func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i%251)
		if p[i] == 0 {
			p[i] = seed | 1
		}
	}
	return p
}
