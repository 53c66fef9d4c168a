package core

import "errors"

var (
	// ErrNotFound is returned when no committed record exists for an id, or
	// when the latest committed record is a tombstone. Absence is an
	// expected condition, not a fault.
	ErrNotFound = errors.New("record not found")

	// ErrCapacityExhausted is returned by a put that cannot fit even after
	// a sector swap reclaims all superseded and removed records.
	ErrCapacityExhausted = errors.New("eeprom capacity exhausted")

	// ErrSectorFull indicates the target sector has no room for one more
	// record. The caller decides whether to trigger a swap.
	ErrSectorFull = errors.New("no room left in sector")

	// ErrWriteVerify indicates a flash program operation did not read back
	// as written, the signature of a marginal erase or marginal write.
	ErrWriteVerify = errors.New("flash write verification failed")

	// ErrSwapFailed is returned when the sector swap failed on both
	// attempts, including the forced-erase retry. It indicates a
	// hardware-level fault rather than a recoverable state.
	ErrSwapFailed = errors.New("sector swap failed after retry")

	// ErrInvalidRecordSize is returned for put payloads that are empty or
	// larger than the record length field can express.
	ErrInvalidRecordSize = errors.New("invalid record payload size")

	// ErrOutOfRange is returned by a block store for accesses outside its
	// address span.
	ErrOutOfRange = errors.New("flash access out of range")

	// ErrCorrupted indicates a snapshot stream whose checksum does not
	// match its payload.
	ErrCorrupted = errors.New("snapshot stream corrupted")
)
