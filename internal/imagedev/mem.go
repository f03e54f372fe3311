package imagedev

// Mem is an in-memory block device. Beyond backing fast tests it can
// inject per-block read and write failures to exercise error paths that a
// real image cannot produce on demand.
type Mem struct {
	blockSize int
	blocks    map[uint64][]byte
	readErr   map[uint64]error
	writeErr  map[uint64]error
	Stat      *Stat
}

// NewMem returns an empty in-memory device; every block reads as zero
// until written.
func NewMem(blockSize int) *Mem {
	return &Mem{
		blockSize: blockSize,
		blocks:    make(map[uint64][]byte),
		readErr:   make(map[uint64]error),
		writeErr:  make(map[uint64]error),
		Stat:      &Stat{},
	}
}

// BlockSize returns the device's block size.
func (m *Mem) BlockSize() int {
	return m.blockSize
}

// FailRead makes the next and all further reads of phys return err.
func (m *Mem) FailRead(phys uint64, err error) {
	m.readErr[phys] = err
}

// FailWrite makes the next and all further writes of phys return err.
func (m *Mem) FailWrite(phys uint64, err error) {
	m.writeErr[phys] = err
}

// ClearFaults removes all injected failures.
func (m *Mem) ClearFaults() {
	m.readErr = make(map[uint64]error)
	m.writeErr = make(map[uint64]error)
}

// ReadBlock copies the stored block, or zeros for a never-written one.
func (m *Mem) ReadBlock(phys uint64, buf []byte) error {
	if len(buf) != m.blockSize {
		return ErrBufSize
	}
	if err := m.readErr[phys]; err != nil {
		return err
	}
	stored, ok := m.blocks[phys]
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		m.Stat.ReadCount++
		return nil
	}
	copy(buf, stored)
	m.Stat.ReadCount++
	return nil
}

// WriteBlock stores a copy of buf as block phys.
func (m *Mem) WriteBlock(phys uint64, buf []byte) error {
	if len(buf) != m.blockSize {
		return ErrBufSize
	}
	if err := m.writeErr[phys]; err != nil {
		return err
	}
	stored, ok := m.blocks[phys]
	if !ok {
		stored = make([]byte, m.blockSize)
		m.blocks[phys] = stored
	}
	copy(stored, buf)
	m.Stat.WriteCount++
	return nil
}

// DiscardBlock drops a freed block's contents.
func (m *Mem) DiscardBlock(phys uint64) error {
	delete(m.blocks, phys)
	m.Stat.PunchCount++
	return nil
}

// Written reports whether phys has ever been written.
func (m *Mem) Written(phys uint64) bool {
	_, ok := m.blocks[phys]
	return ok
}
