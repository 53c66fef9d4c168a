package engine

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/nexusflash/blockstore"
	"github.com/INLOpen/nexusflash/config"
	"github.com/INLOpen/nexusflash/core"
)

// Test geometry: two equally sized 16 KiB sectors.
const (
	testBase       uint32 = 0xC000
	testSectorSize uint32 = 0x4000

	sectorBase1 = testBase
	sectorBase2 = testBase + testSectorSize
)

func testConfig() *config.Config {
	return &config.Config{
		Sector1: config.SectorConfig{Base: sectorBase1, Size: testSectorSize},
		Sector2: config.SectorConfig{Base: sectorBase2, Size: testSectorSize},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine over a fresh (unformatted) in-memory
// store. Tests call Init themselves so they can exercise boot states.
func newTestEngine(t *testing.T) (*Engine, *storeRig) {
	t.Helper()
	store := blockstore.NewMemStore(testBase, 2, testSectorSize)
	// Pin the garbage header words to a value outside the status
	// lifecycle so first-boot behavior does not depend on the fill
	// pattern.
	require.NoError(t, store.Write(sectorBase1, []byte{0x00, 0x00}))
	require.NoError(t, store.Write(sectorBase2, []byte{0x00, 0x00}))
	e, err := NewEngine(Options{Store: store, Config: testConfig(), Logger: testLogger()})
	require.NoError(t, err)
	return e, &storeRig{t: t, store: store}
}

// storeRig pokes raw bytes into the store to pre-write records (complete
// and deliberately broken ones) and to assert the exact on-flash layout.
type storeRig struct {
	t     *testing.T
	store *blockstore.MemStore
}

func (r *storeRig) eraseAll() {
	require.NoError(r.t, r.store.EraseSector(sectorBase1))
	require.NoError(r.t, r.store.EraseSector(sectorBase2))
}

func (r *storeRig) setSectorStatus(base uint32, status core.SectorStatus) {
	buf := make([]byte, core.SectorHeaderSize)
	core.EncodeSectorStatus(buf, status)
	require.NoError(r.t, r.store.Write(base, buf))
}

func (r *storeRig) sectorStatus(base uint32) core.SectorStatus {
	buf := make([]byte, core.SectorHeaderSize)
	require.NoError(r.t, r.store.Read(base, buf))
	return core.DecodeSectorStatus(buf)
}

func (r *storeRig) requireSectorStatus(base uint32, want core.SectorStatus) {
	r.t.Helper()
	require.Equal(r.t, want, r.sectorStatus(base))
}

// writeRecord pre-writes a complete VALID record and returns the offset
// where the next record would start.
func (r *storeRig) writeRecord(offset uint32, id uint16, data []byte) uint32 {
	r.t.Helper()
	hdr := make([]byte, core.RecordHeaderSize)
	core.EncodeRecordHeader(hdr, core.RecordHeader{Status: core.RecordValid, ID: id, Length: uint16(len(data))})
	require.NoError(r.t, r.store.Write(offset, hdr))
	require.NoError(r.t, r.store.Write(offset+core.RecordHeaderSize, data))
	return offset + core.RecordHeaderSize + uint32(len(data))
}

// writeInvalidStatusOnly simulates an interrupted write where only the
// status word was programmed: id and length still read as erased, so the
// record occupies the header alone.
func (r *storeRig) writeInvalidStatusOnly(offset uint32) uint32 {
	r.t.Helper()
	var status [2]byte
	binary.LittleEndian.PutUint16(status[:], uint16(core.RecordInvalid))
	require.NoError(r.t, r.store.Write(offset, status[:]))
	return offset + core.RecordHeaderSize
}

// writeUnpromotedRecord pre-writes a complete record whose status never
// advanced past INVALID, as an interrupted promotion leaves it.
func (r *storeRig) writeUnpromotedRecord(offset uint32, id uint16, data []byte) uint32 {
	r.t.Helper()
	hdr := make([]byte, core.RecordHeaderSize)
	core.EncodeRecordHeader(hdr, core.RecordHeader{Status: core.RecordInvalid, ID: id, Length: uint16(len(data))})
	require.NoError(r.t, r.store.Write(offset, hdr))
	require.NoError(r.t, r.store.Write(offset+core.RecordHeaderSize, data))
	return offset + core.RecordHeaderSize + uint32(len(data))
}

// writeHeaderNoPayload simulates an interrupted write where the header
// completed but no payload byte was programmed.
func (r *storeRig) writeHeaderNoPayload(offset uint32, id uint16, length uint16) uint32 {
	r.t.Helper()
	hdr := make([]byte, core.RecordHeaderSize)
	core.EncodeRecordHeader(hdr, core.RecordHeader{Status: core.RecordInvalid, ID: id, Length: length})
	require.NoError(r.t, r.store.Write(offset, hdr))
	return offset + core.RecordHeaderSize + uint32(length)
}

// writePartialRecord simulates an interrupted write with a complete header
// but only the first payload byte programmed.
func (r *storeRig) writePartialRecord(offset uint32, id uint16, data []byte) uint32 {
	r.t.Helper()
	hdr := make([]byte, core.RecordHeaderSize)
	core.EncodeRecordHeader(hdr, core.RecordHeader{Status: core.RecordInvalid, ID: id, Length: uint16(len(data))})
	require.NoError(r.t, r.store.Write(offset, hdr))
	require.NoError(r.t, r.store.Write(offset+core.RecordHeaderSize, data[:1]))
	return offset + core.RecordHeaderSize + uint32(len(data))
}

// requireValidRecord asserts the exact bytes of a VALID record at offset
// and returns the offset right after it.
func (r *storeRig) requireValidRecord(offset uint32, id uint16, data []byte) uint32 {
	r.t.Helper()
	view, err := r.store.DataAt(offset, core.RecordHeaderSize+uint32(len(data)))
	require.NoError(r.t, err)

	header, err := core.DecodeRecordHeader(view)
	require.NoError(r.t, err)
	require.Equal(r.t, core.RecordValid, header.Status, "record status at 0x%X", offset)
	require.Equal(r.t, id, header.ID, "record id at 0x%X", offset)
	require.Equal(r.t, uint16(len(data)), header.Length, "record length at 0x%X", offset)
	require.Equal(r.t, data, view[core.RecordHeaderSize:core.RecordHeaderSize+len(data)], "record payload at 0x%X", offset)
	return offset + core.RecordHeaderSize + uint32(len(data))
}
