// Package inodestore keeps inode metadata records in memory, keyed by
// inode number. It stands in for the on-image inode table.
package inodestore

import "github.com/KuzCOrp/blockfs"

// Store implements blockfs.InodeStore over a map. Records are copied on
// the way in and out, so callers never share a live *Inode with the store.
type Store struct {
	records map[blockfs.Ino]blockfs.Inode

	// WriteCount counts persisted records, useful in tests.
	WriteCount int
}

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[blockfs.Ino]blockfs.Inode)}
}

// ReadInode returns a copy of the record for ino, or blockfs.ErrNotFound.
func (s *Store) ReadInode(ino blockfs.Ino) (blockfs.Inode, error) {
	rec, ok := s.records[ino]
	if !ok {
		return blockfs.Inode{}, blockfs.ErrNotFound
	}
	return rec, nil
}

// WriteInode persists a copy of the record for ino.
func (s *Store) WriteInode(ino blockfs.Ino, inode *blockfs.Inode) error {
	s.records[ino] = *inode
	s.WriteCount++
	return nil
}

// Exists reports whether a record for ino is present.
func (s *Store) Exists(ino blockfs.Ino) bool {
	_, ok := s.records[ino]
	return ok
}
