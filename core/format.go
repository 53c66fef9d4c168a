package core

// This file centralizes constants related to the on-flash format of the
// emulated EEPROM: sector and record status words, header sizes and the
// erased-cell pattern.
//
// WARNING: These values are persisted in flash. Changing any of them breaks
// compatibility with images written by earlier builds.

// FlashErased is the value of an erased flash byte. Programming can only
// clear bits (1 -> 0); restoring a bit requires a whole-sector erase.
const FlashErased byte = 0xFF

// ErasedWord is the value of an erased 16-bit status field.
const ErasedWord uint16 = 0xFFFF

const (
	// SectorHeaderSize is the size of the status word at the start of each
	// sector.
	SectorHeaderSize = 2
	// RecordHeaderSize is the size of a record header: status, id and
	// length, each 16 bits little-endian.
	RecordHeaderSize = 6
)

// MaxRecordDataLen is the largest payload a single record may carry. The
// length field is 16 bits and 0xFFFF is reserved as the erased pattern.
const MaxRecordDataLen = 0xFFFE

// SectorStatus is the lifecycle state of a sector, persisted as the first
// word of the sector. Each reachable transition only clears bits so that it
// can be programmed over the previous state without an erase:
//
//	ERASED (0xFFFF) -> COPY (0x0FFF) -> ACTIVE (0x00FF) -> INACTIVE (0x000F)
type SectorStatus uint16

const (
	SectorErased   SectorStatus = 0xFFFF
	SectorCopy     SectorStatus = 0x0FFF
	SectorActive   SectorStatus = 0x00FF
	SectorInactive SectorStatus = 0x000F
)

// IsKnown reports whether s is one of the defined sector states. Anything
// else is garbage left by an interrupted erase or factory-fresh flash.
func (s SectorStatus) IsKnown() bool {
	switch s {
	case SectorErased, SectorCopy, SectorActive, SectorInactive:
		return true
	}
	return false
}

func (s SectorStatus) String() string {
	switch s {
	case SectorErased:
		return "erased"
	case SectorCopy:
		return "copy"
	case SectorActive:
		return "active"
	case SectorInactive:
		return "inactive"
	}
	return "unknown"
}

// RecordStatus is the lifecycle state of a record. As with SectorStatus,
// every transition clears bits only:
//
//	EMPTY (0xFFFF) -> INVALID (0x0FFF) -> VALID (0x00FF) -> REMOVED (0x000F)
//
// A record is written INVALID first and promoted to VALID once its payload
// has been verified, so a reset mid-write never yields a half-written record
// that reads back as authoritative.
type RecordStatus uint16

const (
	RecordEmpty   RecordStatus = 0xFFFF
	RecordInvalid RecordStatus = 0x0FFF
	RecordValid   RecordStatus = 0x00FF
	RecordRemoved RecordStatus = 0x000F
)

// IsCommitted reports whether the record completed its initial write:
// either promoted to VALID or later tombstoned. Only committed records
// settle which value of an id is authoritative.
func (s RecordStatus) IsCommitted() bool {
	return s == RecordValid || s == RecordRemoved
}

// IsKnown reports whether s is one of the defined record states.
func (s RecordStatus) IsKnown() bool {
	switch s {
	case RecordEmpty, RecordInvalid, RecordValid, RecordRemoved:
		return true
	}
	return false
}

func (s RecordStatus) String() string {
	switch s {
	case RecordEmpty:
		return "empty"
	case RecordInvalid:
		return "invalid"
	case RecordValid:
		return "valid"
	case RecordRemoved:
		return "removed"
	}
	return "unknown"
}

// --- Default geometry ---
//
// These mirror the flash layout of the reference hardware: a 16 KiB and a
// 64 KiB sector of the internal flash bank. Only the smaller sector's size
// counts toward capacity since either sector must be able to hold the full
// record set after a swap.
const (
	DefaultSector1Base uint32 = 0x0800C000
	DefaultSector1Size uint32 = 16 * 1024
	DefaultSector2Base uint32 = 0x08010000
	DefaultSector2Size uint32 = 64 * 1024
)
