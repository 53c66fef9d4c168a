package engine

import (
	"errors"
	"fmt"

	"github.com/INLOpen/nexusflash/core"
)

// swapAndWrite compacts every live record into the alternate sector,
// appends the replacement entries there, and retargets the sector roles.
// A nil entries slice performs a pure compaction.
//
// Write order is what makes the swap crash-safe:
//
//  1. erase the destination unless it verifies as fully erased
//  2. destination header = COPY
//  3. copy live records in ascending id order, skipping superseded ids
//  4. append the new entries
//  5. source header = INACTIVE
//  6. destination header = ACTIVE
//
// The commit point is step 5: before it the source is still ACTIVE and
// authoritative, after it the (INACTIVE, COPY) pair resolves to the
// destination. Marking the source first means no interruption can leave
// two ACTIVE sectors.
//
// The whole sequence is retried once with a forced erase, which recovers a
// marginally erased destination that read back as 0xFF but dropped bits
// when programmed. A second failure is reported as a hardware fault.
func (e *Engine) swapAndWrite(entries []Entry) error {
	source, destination := e.active, e.alternate
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		erased, err := e.sectorErased(destination)
		if err != nil {
			return err
		}
		if !erased || attempt > 0 {
			if err := e.eraseSector(destination); err != nil {
				lastErr = err
				continue
			}
		}

		if err := e.populateSector(source, destination, entries); err != nil {
			lastErr = err
			continue
		}

		e.active, e.alternate = destination, source
		if err := e.recomputeUsed(); err != nil {
			return err
		}
		e.logger.Debug("sector swap complete",
			"active", e.active.String(),
			"pending_erase", e.alternate.String(),
			"used_bytes", e.used)
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrSwapFailed, lastErr)
}

// populateSector runs steps 2-6 of the swap sequence against an erased
// destination.
func (e *Engine) populateSector(source, destination logicalSector, entries []Entry) error {
	if err := e.writeSectorStatus(destination, core.SectorCopy); err != nil {
		return err
	}
	if err := e.copyAllRecordsToSector(source, destination, entries); err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := e.writeRecord(destination, entry.ID, entry.Data, core.RecordValid); err != nil {
			return err
		}
	}
	if err := e.writeSectorStatus(source, core.SectorInactive); err != nil {
		return err
	}
	return e.writeSectorStatus(destination, core.SectorActive)
}

// copyAllRecordsToSector copies the authoritative VALID record of every id
// from source to destination in ascending id order, dropping tombstones and
// superseded duplicates, and skipping the ids in except (they are about to
// be rewritten). Ascending order keeps repeated swaps from reshuffling
// record positions and bounds the destination growth to the live set.
func (e *Engine) copyAllRecordsToSector(source, destination logicalSector, except []Entry) error {
	var copyErr error
	err := e.forEachValidRecordSortedByID(source, func(r recordRef) bool {
		for _, entry := range except {
			if entry.ID == r.header.ID {
				return true
			}
		}
		data, err := e.readPayload(r)
		if err != nil {
			copyErr = err
			return false
		}
		if _, err := e.writeRecord(destination, r.header.ID, data, core.RecordValid); err != nil {
			copyErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return copyErr
}

// isWriteFailure reports whether err is the kind of record-write failure a
// sector swap can resolve: a full sector or a marginal write.
func isWriteFailure(err error) bool {
	return errors.Is(err, core.ErrSectorFull) || errors.Is(err, core.ErrWriteVerify)
}
