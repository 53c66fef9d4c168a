package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/nexusflash/core"
)

// writeRecord appends a record to the first empty slot of a sector using
// the two-phase protocol: header and payload are programmed with INVALID
// status, then a second write promotes the status to its final value. A
// reset between the two phases leaves an INVALID record that readers
// ignore and the next write compacts away.
//
// finalStatus is RecordValid for ordinary puts; the atomic batch path
// passes RecordInvalid to defer the promotion.
//
// Returns the record's offset. Fails with ErrSectorFull when the sector
// has no room, or a verification error from the store on a marginal write.
func (e *Engine) writeRecord(s logicalSector, id uint16, data []byte, finalStatus core.RecordStatus) (uint32, error) {
	offset, err := e.findEmptyOffset(s)
	if err != nil {
		return 0, err
	}
	need := uint32(core.RecordHeaderSize + len(data))
	if e.sectorEnd(s)-offset < need {
		return 0, fmt.Errorf("record %d (%d bytes) in %s: %w", id, need, s, core.ErrSectorFull)
	}

	var header [core.RecordHeaderSize]byte
	core.EncodeRecordHeader(header[:], core.RecordHeader{
		Status: core.RecordInvalid,
		ID:     id,
		Length: uint16(len(data)),
	})
	if err := e.store.Write(offset, header[:]); err != nil {
		return 0, fmt.Errorf("failed to write record %d header: %w", id, err)
	}
	if err := e.store.Write(offset+core.RecordHeaderSize, data); err != nil {
		return 0, fmt.Errorf("failed to write record %d payload: %w", id, err)
	}
	if finalStatus != core.RecordInvalid {
		if err := e.writeRecordStatus(offset, finalStatus); err != nil {
			return 0, err
		}
	}
	return offset, nil
}

// writeRecordStatus programs only the status field of a record at offset.
// Status transitions clear bits exclusively, so this needs no erase and is
// the engine's cheapest commit primitive: it promotes INVALID records to
// VALID and tombstones VALID records as REMOVED.
func (e *Engine) writeRecordStatus(offset uint32, status core.RecordStatus) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(status))
	if err := e.store.Write(offset, buf[:]); err != nil {
		return fmt.Errorf("failed to write record status at 0x%X: %w", offset, err)
	}
	return nil
}
