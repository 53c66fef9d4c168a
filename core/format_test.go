package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every reachable status transition must only clear bits: flash can program
// 1 -> 0 but never the reverse without a full sector erase.
func TestStatusTransitionsOnlyClearBits(t *testing.T) {
	clearsOnly := func(from, to uint16) bool {
		return from&to == to
	}

	sectorChain := []SectorStatus{SectorErased, SectorCopy, SectorActive, SectorInactive}
	for i := 0; i < len(sectorChain)-1; i++ {
		for j := i + 1; j < len(sectorChain); j++ {
			assert.Truef(t, clearsOnly(uint16(sectorChain[i]), uint16(sectorChain[j])),
				"sector %s -> %s must clear bits only", sectorChain[i], sectorChain[j])
		}
	}

	recordChain := []RecordStatus{RecordEmpty, RecordInvalid, RecordValid, RecordRemoved}
	for i := 0; i < len(recordChain)-1; i++ {
		for j := i + 1; j < len(recordChain); j++ {
			assert.Truef(t, clearsOnly(uint16(recordChain[i]), uint16(recordChain[j])),
				"record %s -> %s must clear bits only", recordChain[i], recordChain[j])
		}
	}
}

func TestSectorStatusPredicates(t *testing.T) {
	assert.True(t, SectorErased.IsKnown())
	assert.True(t, SectorCopy.IsKnown())
	assert.True(t, SectorActive.IsKnown())
	assert.True(t, SectorInactive.IsKnown())
	assert.False(t, SectorStatus(999).IsKnown())
	assert.Equal(t, "unknown", SectorStatus(999).String())
	assert.Equal(t, "active", SectorActive.String())
}

func TestRecordStatusPredicates(t *testing.T) {
	assert.True(t, RecordValid.IsCommitted())
	assert.True(t, RecordRemoved.IsCommitted())
	assert.False(t, RecordEmpty.IsCommitted())
	assert.False(t, RecordInvalid.IsCommitted())
	assert.False(t, RecordStatus(0xABCD).IsKnown())
}

func TestRecordHeaderRoundTrip(t *testing.T) {
	h := RecordHeader{Status: RecordValid, ID: 0x1234, Length: 42}
	buf := make([]byte, RecordHeaderSize)
	EncodeRecordHeader(buf, h)

	// Layout is little-endian status, id, length.
	assert.Equal(t, []byte{0xFF, 0x00, 0x34, 0x12, 42, 0x00}, buf)

	got, err := DecodeRecordHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeRecordHeaderShortBuffer(t *testing.T) {
	_, err := DecodeRecordHeader(make([]byte, 3))
	require.Error(t, err)
}

func TestErasedHeaderReadsAsEmpty(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	h, err := DecodeRecordHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, RecordEmpty, h.Status)
	assert.False(t, h.HasLength())
	assert.Equal(t, uint32(RecordHeaderSize), h.SizeOnFlash())
}

func TestSizeOnFlash(t *testing.T) {
	h := RecordHeader{Status: RecordInvalid, ID: 7, Length: 10}
	assert.Equal(t, uint32(RecordHeaderSize+10), h.SizeOnFlash())
}
