// Package blockmap implements a flat block mapper: a per-inode table of
// logical-to-physical block mappings over a word-bitmap allocator.
// Physical block 0 is reserved so it can serve as the hole sentinel.
package blockmap

import (
	"math/bits"

	"github.com/KuzCOrp/blockfs"
)

// Discarder is notified when a physical block is freed, so the device can
// reclaim its storage.
type Discarder interface {
	DiscardBlock(phys uint64) error
}

// Config sizes the allocator.
type Config struct {
	// Blocks is the total physical block count, including reserved block 0.
	Blocks uint64
	// Discard, if set, receives every freed physical block.
	Discard Discarder
}

type extent struct {
	phys   uint64
	uninit bool
}

// Map allocates physical blocks out of a word bitmap and remembers which
// logical block of which inode each one backs. It implements both
// blockfs.BlockMapper and blockfs.Puncher.
type Map struct {
	words   []uint64
	nblocks uint64
	files   map[blockfs.Ino]map[uint64]extent
	discard Discarder
}

// New returns a mapper with every block free except reserved block 0.
func New(config Config) *Map {
	nwords := (config.Blocks + 63) / 64
	m := &Map{
		words:   make([]uint64, nwords),
		nblocks: config.Blocks,
		files:   make(map[blockfs.Ino]map[uint64]extent),
		discard: config.Discard,
	}
	m.words[0] |= 1 // block 0 is the hole sentinel, never handed out
	return m
}

func (m *Map) allocBlock() (uint64, bool) {
	for w, word := range m.words {
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		phys := uint64(w)*64 + uint64(bit)
		if phys >= m.nblocks {
			return 0, false
		}
		m.words[w] |= 1 << uint(bit)
		return phys, true
	}
	return 0, false
}

func (m *Map) freeBlock(phys uint64) {
	m.words[phys/64] &^= 1 << (phys % 64)
}

// Map translates (ino, logical) to a physical block. Unmapped blocks
// report 0 (a hole) unless alloc is set, in which case a free block is
// claimed; blockfs.ErrNoSpace when there is none left.
func (m *Map) Map(ino blockfs.Ino, inode *blockfs.Inode, logical uint64, alloc bool) (uint64, blockfs.MapFlags, error) {
	if ext, ok := m.files[ino][logical]; ok {
		var flags blockfs.MapFlags
		if ext.uninit {
			flags |= blockfs.MapUninit
		}
		return ext.phys, flags, nil
	}
	if !alloc {
		return 0, 0, nil
	}
	phys, ok := m.allocBlock()
	if !ok {
		return 0, 0, blockfs.ErrNoSpace
	}
	extents := m.files[ino]
	if extents == nil {
		extents = make(map[uint64]extent)
		m.files[ino] = extents
	}
	extents[logical] = extent{phys: phys}
	return phys, 0, nil
}

// PunchRange frees every mapped block of ino whose logical number lies in
// [start, end]. blockfs.PunchToEnd as end releases the whole tail.
func (m *Map) PunchRange(ino blockfs.Ino, inode *blockfs.Inode, start, end uint64) error {
	extents := m.files[ino]
	for logical, ext := range extents {
		if logical < start || logical > end {
			continue
		}
		m.freeBlock(ext.phys)
		if m.discard != nil {
			if err := m.discard.DiscardBlock(ext.phys); err != nil {
				return err
			}
		}
		delete(extents, logical)
	}
	return nil
}

// SetMapping installs a mapping directly, claiming phys in the bitmap.
// Anonymous files (ino 0) are wired up this way, since the write path
// never allocates for them.
func (m *Map) SetMapping(ino blockfs.Ino, logical, phys uint64) {
	m.words[phys/64] |= 1 << (phys % 64)
	extents := m.files[ino]
	if extents == nil {
		extents = make(map[uint64]extent)
		m.files[ino] = extents
	}
	extents[logical] = extent{phys: phys}
}

// MarkUninit flags an existing mapping as an uninitialized extent: storage
// is reserved but the contents must read as zero. Reports whether the
// mapping existed.
func (m *Map) MarkUninit(ino blockfs.Ino, logical uint64) bool {
	ext, ok := m.files[ino][logical]
	if !ok {
		return false
	}
	ext.uninit = true
	m.files[ino][logical] = ext
	return true
}

// MappedBlocks returns how many logical blocks of ino are backed by
// storage.
func (m *Map) MappedBlocks(ino blockfs.Ino) int {
	return len(m.files[ino])
}

// FreeBlocks returns how many physical blocks remain unallocated.
func (m *Map) FreeBlocks() uint64 {
	var used uint64
	for _, word := range m.words {
		used += uint64(bits.OnesCount64(word))
	}
	return m.nblocks - used
}
