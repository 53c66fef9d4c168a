package core

import (
	"encoding/binary"
	"fmt"
)

// RecordHeader is the fixed 6-byte header preceding every record payload.
//
// On flash the fields are laid out little-endian in declaration order.
// A header whose Length still reads as the erased pattern belongs to a
// record whose write was interrupted before the header completed.
type RecordHeader struct {
	Status RecordStatus
	ID     uint16
	Length uint16
}

// EncodeRecordHeader serializes h into p, which must be at least
// RecordHeaderSize bytes.
func EncodeRecordHeader(p []byte, h RecordHeader) {
	_ = p[RecordHeaderSize-1]
	binary.LittleEndian.PutUint16(p[0:2], uint16(h.Status))
	binary.LittleEndian.PutUint16(p[2:4], h.ID)
	binary.LittleEndian.PutUint16(p[4:6], h.Length)
}

// DecodeRecordHeader parses a header from p.
func DecodeRecordHeader(p []byte) (RecordHeader, error) {
	if len(p) < RecordHeaderSize {
		return RecordHeader{}, fmt.Errorf("record header needs %d bytes, got %d", RecordHeaderSize, len(p))
	}
	return RecordHeader{
		Status: RecordStatus(binary.LittleEndian.Uint16(p[0:2])),
		ID:     binary.LittleEndian.Uint16(p[2:4]),
		Length: binary.LittleEndian.Uint16(p[4:6]),
	}, nil
}

// HasLength reports whether the length field was ever programmed. An
// interrupted write can leave a header with only the status word cleared;
// such a record occupies just its header on flash.
func (h RecordHeader) HasLength() bool {
	return h.Length != ErasedWord
}

// SizeOnFlash is the number of bytes the record occupies in its sector:
// the header plus the declared payload, or the header alone when the
// length field was never programmed.
func (h RecordHeader) SizeOnFlash() uint32 {
	if !h.HasLength() {
		return RecordHeaderSize
	}
	return RecordHeaderSize + uint32(h.Length)
}

// EncodeSectorStatus serializes a sector status word into p.
func EncodeSectorStatus(p []byte, s SectorStatus) {
	binary.LittleEndian.PutUint16(p[0:2], uint16(s))
}

// DecodeSectorStatus parses a sector status word from p.
func DecodeSectorStatus(p []byte) SectorStatus {
	return SectorStatus(binary.LittleEndian.Uint16(p[0:2]))
}
