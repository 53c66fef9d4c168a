package blockstore

import (
	"fmt"

	"github.com/INLOpen/nexusflash/core"
)

// MemStore is a RAM-backed flash simulation with uniform sector geometry.
// It reproduces the two properties the engine's crash-safety depends on:
// programming ANDs bits into the array and fails verification when a bit
// would need to go from 0 to 1, and a configurable write budget freezes the
// image mid-operation the way a reset would.
//
// The zero write budget trick drives the interrupted-write test scenarios:
// once the budget is exhausted every mutating call is a no-op that returns
// an error, leaving the image exactly as it was at the simulated reset.
type MemStore struct {
	base       uint32
	sectorSize uint32
	mem        []byte

	// writeBudget counts remaining mutating operations. Negative means
	// unlimited.
	writeBudget int
	writeOps    int
	eraseOps    int
}

var _ BlockStore = (*MemStore)(nil)

// NewMemStore creates a store of sectorCount sectors of sectorSize bytes,
// addressed starting at base. The initial contents are unformatted garbage,
// as factory-fresh flash would be.
func NewMemStore(base uint32, sectorCount, sectorSize uint32) *MemStore {
	s := &MemStore{
		base:        base,
		sectorSize:  sectorSize,
		mem:         make([]byte, sectorCount*sectorSize),
		writeBudget: -1,
	}
	// Deterministic garbage that matches no defined status word.
	x := uint32(0x2545F491)
	for i := range s.mem {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		s.mem[i] = byte(x)
	}
	return s
}

func (s *MemStore) index(offset uint32, length int) (int, error) {
	if offset < s.base || uint64(offset)+uint64(length) > uint64(s.base)+uint64(len(s.mem)) {
		return 0, fmt.Errorf("%w: offset 0x%X length %d", core.ErrOutOfRange, offset, length)
	}
	return int(offset - s.base), nil
}

func (s *MemStore) Read(offset uint32, p []byte) error {
	i, err := s.index(offset, len(p))
	if err != nil {
		return err
	}
	copy(p, s.mem[i:i+len(p)])
	return nil
}

func (s *MemStore) Write(offset uint32, p []byte) error {
	i, err := s.index(offset, len(p))
	if err != nil {
		return err
	}
	if !s.consumeBudget() {
		return fmt.Errorf("write at 0x%X: %w", offset, core.ErrWriteVerify)
	}
	s.writeOps++
	verified := true
	for j, b := range p {
		s.mem[i+j] &= b
		if s.mem[i+j] != b {
			verified = false
		}
	}
	if !verified {
		return fmt.Errorf("write at 0x%X: %w", offset, core.ErrWriteVerify)
	}
	return nil
}

func (s *MemStore) EraseSector(start uint32) error {
	i, err := s.index(start, int(s.sectorSize))
	if err != nil {
		return err
	}
	if start%s.sectorSize != s.base%s.sectorSize {
		return fmt.Errorf("%w: 0x%X is not a sector boundary", core.ErrOutOfRange, start)
	}
	if !s.consumeBudget() {
		return fmt.Errorf("erase at 0x%X: %w", start, core.ErrWriteVerify)
	}
	s.eraseOps++
	for j := 0; j < int(s.sectorSize); j++ {
		s.mem[i+j] = core.FlashErased
	}
	return nil
}

func (s *MemStore) DataAt(offset, length uint32) ([]byte, error) {
	i, err := s.index(offset, int(length))
	if err != nil {
		return nil, err
	}
	return s.mem[i : i+int(length) : i+int(length)], nil
}

// consumeBudget reports whether one more mutating operation may proceed.
func (s *MemStore) consumeBudget() bool {
	if s.writeBudget < 0 {
		return true
	}
	if s.writeBudget == 0 {
		return false
	}
	s.writeBudget--
	return true
}

// SetWriteLimit allows n further mutating operations (writes and erases);
// operations past the limit fail without touching the array, simulating a
// reset at that exact point. Pass a negative n to lift the limit.
func (s *MemStore) SetWriteLimit(n int) {
	s.writeBudget = n
}

// WriteOps returns the number of successful program operations, useful for
// sweeping interruption points in tests.
func (s *MemStore) WriteOps() int { return s.writeOps }

// EraseOps returns the number of successful sector erases.
func (s *MemStore) EraseOps() int { return s.eraseOps }

// Size returns the total addressable span in bytes.
func (s *MemStore) Size() uint32 { return uint32(len(s.mem)) }
