package engine

import (
	"fmt"

	"github.com/INLOpen/nexusflash/core"
)

// logicalSector names one of the two physical sectors used in ping-pong
// fashion, or none when the store is in a factory-fresh state.
type logicalSector int

const (
	noSector logicalSector = iota
	sector1
	sector2
)

func (s logicalSector) String() string {
	switch s {
	case sector1:
		return "sector1"
	case sector2:
		return "sector2"
	}
	return "none"
}

func (s logicalSector) other() logicalSector {
	switch s {
	case sector1:
		return sector2
	case sector2:
		return sector1
	}
	return noSector
}

func (e *Engine) sectorStart(s logicalSector) uint32 {
	switch s {
	case sector1:
		return e.cfg.Sector1.Base
	case sector2:
		return e.cfg.Sector2.Base
	}
	return 0
}

func (e *Engine) sectorEnd(s logicalSector) uint32 {
	switch s {
	case sector1:
		return e.cfg.Sector1.End()
	case sector2:
		return e.cfg.Sector2.End()
	}
	return 0
}

func (e *Engine) sectorSize(s logicalSector) uint32 {
	return e.sectorEnd(s) - e.sectorStart(s)
}

func (e *Engine) readSectorStatus(s logicalSector) (core.SectorStatus, error) {
	var buf [core.SectorHeaderSize]byte
	if err := e.store.Read(e.sectorStart(s), buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read %s header: %w", s, err)
	}
	return core.DecodeSectorStatus(buf[:]), nil
}

func (e *Engine) writeSectorStatus(s logicalSector, status core.SectorStatus) error {
	var buf [core.SectorHeaderSize]byte
	core.EncodeSectorStatus(buf[:], status)
	if err := e.store.Write(e.sectorStart(s), buf[:]); err != nil {
		return fmt.Errorf("failed to mark %s %s: %w", s, status, err)
	}
	return nil
}

func (e *Engine) eraseSector(s logicalSector) error {
	if err := e.store.EraseSector(e.sectorStart(s)); err != nil {
		return fmt.Errorf("failed to erase %s: %w", s, err)
	}
	return nil
}

// sectorErased reports whether every byte of the sector reads as erased.
// A sector that passes this check can still be marginally erased, which is
// why the swap engine retries with a forced erase; this scan catches the
// common case of an interrupted erase cheaply.
func (e *Engine) sectorErased(s logicalSector) (bool, error) {
	view, err := e.store.DataAt(e.sectorStart(s), e.sectorSize(s))
	if err != nil {
		return false, fmt.Errorf("failed to map %s for verification: %w", s, err)
	}
	for _, b := range view {
		if b != core.FlashErased {
			return false, nil
		}
	}
	return true, nil
}

// updateActiveSector resolves which sector is authoritative from the
// persisted status pair. Every state reachable by interrupting a swap maps
// to exactly one answer:
//
//	(ACTIVE, any)        -> the ACTIVE sector; a COPY partner never committed
//	(COPY, INACTIVE)     -> the COPY sector; the swap committed when the
//	                        source was marked INACTIVE, only the final
//	                        header promotion was lost. It is finished here.
//	anything else        -> none (factory fresh or double-garbage)
func (e *Engine) updateActiveSector() error {
	status1, err := e.readSectorStatus(sector1)
	if err != nil {
		return err
	}
	status2, err := e.readSectorStatus(sector2)
	if err != nil {
		return err
	}

	switch {
	case status1 == core.SectorActive:
		e.active = sector1
	case status2 == core.SectorActive:
		e.active = sector2
	case status1 == core.SectorCopy && status2 == core.SectorInactive:
		if err := e.finishSectorPromotion(sector1); err != nil {
			return err
		}
		e.active = sector1
	case status2 == core.SectorCopy && status1 == core.SectorInactive:
		if err := e.finishSectorPromotion(sector2); err != nil {
			return err
		}
		e.active = sector2
	default:
		e.active = noSector
	}
	e.alternate = e.active.other()
	return nil
}

// finishSectorPromotion completes an interrupted swap whose source was
// already superseded by programming the destination's final ACTIVE status.
func (e *Engine) finishSectorPromotion(s logicalSector) error {
	e.logger.Info("finishing interrupted sector swap", "sector", s.String())
	return e.writeSectorStatus(s, core.SectorActive)
}

// erasableSector returns the sector left behind by a completed swap, or
// noSector when nothing is pending. Any non-erased alternate qualifies: an
// INACTIVE sector after a clean swap, or a COPY sector from a swap that
// never committed.
func (e *Engine) erasableSector() (logicalSector, error) {
	if e.active == noSector {
		return noSector, nil
	}
	status, err := e.readSectorStatus(e.alternate)
	if err != nil {
		return noSector, err
	}
	if status != core.SectorErased {
		return e.alternate, nil
	}
	return noSector, nil
}
