package engine

import (
	"fmt"

	"github.com/INLOpen/nexusflash/core"
)

// recordRef locates one record inside a sector.
type recordRef struct {
	offset uint32
	header core.RecordHeader
}

// forEachRecord walks a sector's record list from the first slot after the
// sector header, yielding every record (valid, invalid and removed) until
// the end marker or the sector end. It returns the offset where appending
// may continue: the first EMPTY slot, or the sector end when the sector is
// full or its tail is unusable.
//
// The walk trusts the declared length field only after sanity checks. A
// header whose status matches no known state was half-programmed by an
// interrupted write; the tail beyond it cannot be parsed, so the scan stops
// and the remaining space is written off. An INVALID header whose length
// field still reads as erased occupies the header alone.
func (e *Engine) forEachRecord(s logicalSector, fn func(recordRef) bool) (uint32, error) {
	offset := e.sectorStart(s) + core.SectorHeaderSize
	end := e.sectorEnd(s)
	var buf [core.RecordHeaderSize]byte

	for offset+core.RecordHeaderSize <= end {
		if err := e.store.Read(offset, buf[:]); err != nil {
			return end, fmt.Errorf("failed to read record header at 0x%X: %w", offset, err)
		}
		header, err := core.DecodeRecordHeader(buf[:])
		if err != nil {
			return end, err
		}

		// End of live data.
		if header.Status == core.RecordEmpty {
			return offset, nil
		}
		// Garbage status: the rest of the sector is unparseable.
		if !header.Status.IsKnown() {
			return end, nil
		}
		size := header.SizeOnFlash()
		// A length that walks past the sector end is as good as garbage.
		if size > end-offset {
			return end, nil
		}

		if fn != nil && !fn(recordRef{offset: offset, header: header}) {
			return end, nil
		}
		offset += size
	}
	return end, nil
}

// findEmptyOffset returns the offset of the first empty record slot, or
// the sector end if none is usable.
func (e *Engine) findEmptyOffset(s logicalSector) (uint32, error) {
	return e.forEachRecord(s, nil)
}

// forEachCommittedRecord yields committed (VALID or REMOVED) records in
// physical (append) order. Committed records sitting past the first
// INVALID record are withheld: an INVALID record marks where an
// interrupted multi-record write stopped promoting, so anything committed
// beyond it is the already promoted tail of that same write. Hiding the
// tail keeps every id on its pre-batch value until the whole batch
// commits. New appends never land behind an INVALID record, so no
// legitimate record is ever hidden.
func (e *Engine) forEachCommittedRecord(s logicalSector, fn func(recordRef) bool) error {
	sawInvalid := false
	_, err := e.forEachRecord(s, func(r recordRef) bool {
		if r.header.Status == core.RecordInvalid {
			sawInvalid = true
			return true
		}
		if sawInvalid || !r.header.Status.IsCommitted() {
			return true
		}
		return fn(r)
	})
	return err
}

// forEachValidRecord yields VALID records in physical (append) order, so
// earlier calls see older values.
func (e *Engine) forEachValidRecord(s logicalSector, fn func(recordRef) bool) error {
	return e.forEachCommittedRecord(s, func(r recordRef) bool {
		if r.header.Status != core.RecordValid {
			return true
		}
		return fn(r)
	})
}

// forEachValidRecordSortedByID yields the authoritative VALID record of
// each id in ascending id order. Each round rescans the sector for the
// smallest id above the previous one; with n records that is O(n^2), which
// is acceptable for the record counts a sector can hold and avoids any
// allocation during a swap.
//
// Duplicate ids resolve to the latest appended record. Ids whose latest
// committed record is a tombstone are skipped.
func (e *Engine) forEachValidRecordSortedByID(s logicalSector, fn func(recordRef) bool) error {
	previous := -1
	for {
		var best recordRef
		bestID := -1
		if err := e.forEachCommittedRecord(s, func(r recordRef) bool {
			id := int(r.header.ID)
			if id <= previous {
				return true
			}
			if bestID == -1 || id < bestID {
				best, bestID = r, id
			} else if id == bestID {
				// Later append of the same id supersedes.
				best = r
			}
			return true
		}); err != nil {
			return err
		}
		if bestID == -1 {
			return nil
		}
		if best.header.Status == core.RecordValid {
			if !fn(best) {
				return nil
			}
		}
		previous = bestID
	}
}

// findRecord returns the latest committed record for id. The caller must
// still check the status: a REMOVED result means the id was tombstoned and
// reads as absent, hiding any older VALID duplicates beneath it.
func (e *Engine) findRecord(s logicalSector, id uint16) (recordRef, bool, error) {
	var last recordRef
	found := false
	err := e.forEachCommittedRecord(s, func(r recordRef) bool {
		if r.header.ID == id {
			last = r
			found = true
		}
		return true
	})
	if err != nil {
		return recordRef{}, false, err
	}
	return last, found, nil
}

// hasInvalidRecords reports whether the sector holds records whose write
// never completed. No new write may proceed over them; the caller resolves
// the state with a compaction.
func (e *Engine) hasInvalidRecords(s logicalSector) (bool, error) {
	found := false
	_, err := e.forEachRecord(s, func(r recordRef) bool {
		if r.header.Status == core.RecordInvalid {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// readPayload fetches a record's payload bytes.
func (e *Engine) readPayload(r recordRef) ([]byte, error) {
	if !r.header.HasLength() || r.header.Length == 0 {
		return nil, nil
	}
	data := make([]byte, r.header.Length)
	if err := e.store.Read(r.offset+core.RecordHeaderSize, data); err != nil {
		return nil, fmt.Errorf("failed to read record payload at 0x%X: %w", r.offset, err)
	}
	return data, nil
}
