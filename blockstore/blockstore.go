// Package blockstore defines the raw flash access layer consumed by the
// emulated-EEPROM engine, and provides a RAM-backed implementation for
// testing and a file-backed implementation for working on flash image
// dumps.
//
// All implementations model NOR flash physics: a write can only clear bits
// (1 -> 0) and must verify the programmed value, and erasing restores a
// whole sector to 0xFF at once.
package blockstore

// BlockStore is the hardware-facing interface of the engine. Offsets are
// absolute flash addresses; geometry (sector bases and sizes) is the
// caller's knowledge, not the store's concern beyond bounds checking.
type BlockStore interface {
	// Read copies len(p) bytes starting at offset into p.
	Read(offset uint32, p []byte) error

	// Write programs len(p) bytes at offset. Bits can only transition from
	// 1 to 0; the implementation must read the result back and fail with a
	// verification error if it differs from p (marginal write).
	Write(offset uint32, p []byte) error

	// EraseSector resets the sector beginning at start to all 0xFF.
	EraseSector(start uint32) error

	// DataAt returns a read-only view of length bytes at offset, backed by
	// the store's memory-mapped contents. It is used for bulk verification
	// scans; callers must not mutate or retain the slice across writes.
	DataAt(offset, length uint32) ([]byte, error)
}
