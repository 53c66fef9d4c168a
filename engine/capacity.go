package engine

import "github.com/INLOpen/nexusflash/core"

// Capacity accounting keeps a cached total of the flash consumed by live
// records so that admission checks and swap decisions stay O(1). Scanning
// the sector on every put would make N writes cost O(N^2) over the life of
// the device. The cache is recomputed by a full scan only where the live
// set can change wholesale (init, clear, completed swap) and adjusted
// incrementally by each put and remove.

// TotalCapacity returns the number of bytes available for records,
// bounded by the smaller sector since either sector must hold the full
// live set after a swap.
func (e *Engine) TotalCapacity() uint32 {
	return e.total
}

// UsedCapacity returns the bytes consumed by live records, counting each
// id once (its authoritative record) regardless of superseded duplicates
// still sitting in flash.
func (e *Engine) UsedCapacity() uint32 {
	return e.used
}

// RemainingCapacity returns how many more record bytes (headers included)
// fit before puts start failing with ErrCapacityExhausted.
func (e *Engine) RemainingCapacity() uint32 {
	return e.total - e.used
}

// recomputeUsed rebuilds the cached usage from a full scan of the active
// sector: the size of the latest committed record of each id, counting
// tombstoned ids as zero.
func (e *Engine) recomputeUsed() error {
	latest := make(map[uint16]core.RecordHeader)
	if err := e.forEachCommittedRecord(e.active, func(r recordRef) bool {
		latest[r.header.ID] = r.header
		return true
	}); err != nil {
		return err
	}
	var used uint32
	for _, header := range latest {
		if header.Status == core.RecordValid {
			used += header.SizeOnFlash()
		}
	}
	e.used = used
	return nil
}

// liveSize returns the flash footprint of id's authoritative record, or 0
// when the id is absent or tombstoned.
func (e *Engine) liveSize(id uint16) (uint32, error) {
	ref, found, err := e.findRecord(e.active, id)
	if err != nil {
		return 0, err
	}
	if !found || ref.header.Status != core.RecordValid {
		return 0, nil
	}
	return ref.header.SizeOnFlash(), nil
}
