// Package engine implements a wear-leveling emulated-EEPROM storage engine
// on top of raw NOR flash sectors.
//
// Flash can only erase whole sectors to 0xFF and program individual bits
// from 1 to 0, so values are stored as append-only records in one of two
// ping-pong sectors. Each record carries a status word whose transitions
// clear bits exclusively, which lets the engine commit and tombstone
// records without erasing. When the active sector fills up, the live
// records are compacted into the alternate sector and the roles switch.
// A reset during a write, a sector copy or an erase leaves a state the
// next Init or Put resolves without losing committed data.
//
// The engine assumes a single logical owner and performs no internal
// locking; callers invoking it from multiple goroutines must serialize
// access themselves.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/INLOpen/nexusflash/blockstore"
	"github.com/INLOpen/nexusflash/config"
	"github.com/INLOpen/nexusflash/core"
)

// Entry is one id/value pair, used by batch writes and listings.
type Entry struct {
	ID   uint16
	Data []byte
}

// Options configures an Engine.
type Options struct {
	// Store is the flash access layer. Required.
	Store blockstore.BlockStore
	// Config is the sector geometry. Defaults to config.DefaultConfig().
	Config *config.Config
	// Logger receives swap and recovery events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the emulated-EEPROM storage engine.
type Engine struct {
	store  blockstore.BlockStore
	cfg    *config.Config
	logger *slog.Logger

	active    logicalSector
	alternate logicalSector

	// Cached capacity accounting, see capacity.go.
	used  uint32
	total uint32
}

// NewEngine creates an engine over the given store. Call Init before any
// other operation.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a block store")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sector geometry: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  opts.Store,
		cfg:    cfg,
		logger: logger,
		total:  cfg.SmallestSectorSize() - core.SectorHeaderSize,
	}, nil
}

// Open is a convenience for NewEngine followed by Init.
func Open(opts Options) (*Engine, error) {
	e, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}

// Init resolves the active sector, formatting the store on first boot, and
// eagerly performs any erase left pending by an interrupted or deferred
// swap. Call at boot before any read or write.
func (e *Engine) Init() error {
	if err := e.updateActiveSector(); err != nil {
		return err
	}
	if e.active == noSector {
		e.logger.Info("no active sector found, formatting store")
		return e.Clear()
	}
	// Eager cleanup at boot: nobody is waiting on the write path yet, so
	// the blocking erase is cheapest now.
	if err := e.PerformPendingErase(); err != nil {
		return err
	}
	return e.recomputeUsed()
}

// Clear erases both sectors and activates sector 1, destroying all data.
// Used for factory reset and first boot. An erase failure here is fatal:
// with no erasable sector there is no escape hatch for persistence.
func (e *Engine) Clear() error {
	if err := e.eraseSector(sector1); err != nil {
		return err
	}
	if err := e.eraseSector(sector2); err != nil {
		return err
	}
	if err := e.writeSectorStatus(sector1, core.SectorActive); err != nil {
		return err
	}
	e.active, e.alternate = sector1, sector2
	e.used = 0
	return nil
}

// Get returns the value of the latest committed record for id, or
// ErrNotFound when the id was never written or was removed.
func (e *Engine) Get(id uint16) ([]byte, error) {
	ref, found, err := e.findRecord(e.active, id)
	if err != nil {
		return nil, err
	}
	if !found || ref.header.Status != core.RecordValid {
		return nil, core.ErrNotFound
	}
	return e.readPayload(ref)
}

// GetByte reads the first byte of id's value, the common case for ported
// byte-oriented EEPROM code. Returns the erased pattern alongside
// ErrNotFound so callers can use the value unconditionally.
func (e *Engine) GetByte(id uint16) (byte, error) {
	data, err := e.Get(id)
	if err != nil {
		return core.FlashErased, err
	}
	if len(data) == 0 {
		return core.FlashErased, core.ErrNotFound
	}
	return data[0], nil
}

// Put stores data as the new value for id. Rewrites of an identical value
// are skipped to save wear. When the active sector lacks room, or holds
// stale INVALID records from an interrupted write, the engine compacts
// into the alternate sector first. Fails with ErrCapacityExhausted when
// the record cannot fit even after compaction.
func (e *Engine) Put(id uint16, data []byte) error {
	if len(data) == 0 || len(data) > core.MaxRecordDataLen {
		return fmt.Errorf("record %d with %d bytes: %w", id, len(data), core.ErrInvalidRecordSize)
	}

	current, err := e.Get(id)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if err == nil && bytes.Equal(current, data) {
		return nil
	}

	oldSize, err := e.liveSize(id)
	if err != nil {
		return err
	}
	need := uint32(core.RecordHeaderSize + len(data))
	if e.used-oldSize+need > e.total {
		return fmt.Errorf("record %d needs %d bytes, %d live of %d: %w",
			id, need, e.used, e.total, core.ErrCapacityExhausted)
	}

	stale, err := e.hasInvalidRecords(e.active)
	if err != nil {
		return err
	}
	if !stale {
		if _, err := e.writeRecord(e.active, id, data, core.RecordValid); err == nil {
			e.used = e.used - oldSize + need
			return nil
		} else if !isWriteFailure(err) {
			return err
		} else {
			e.logger.Debug("record write failed, swapping sectors", "id", id, "error", err)
		}
	} else {
		e.logger.Debug("stale invalid records found, forcing compaction", "id", id)
	}
	return e.swapAndWrite([]Entry{{ID: id, Data: data}})
}

// PutByte stores a single-byte value for id.
func (e *Engine) PutByte(id uint16, value byte) error {
	return e.Put(id, []byte{value})
}

// PutBatch stores several records atomically. Entries are appended in
// ascending id order with INVALID status, then promoted to VALID in
// reverse append order. Readers hide committed records behind the first
// INVALID one, so an interruption at any point leaves every entry on its
// old value; only the final promotion makes the whole batch visible at
// once. Re-running an interrupted batch converges to the new values.
// Entry ids must be distinct.
func (e *Engine) PutBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[uint16]struct{}, len(entries))
	for _, entry := range entries {
		if len(entry.Data) == 0 || len(entry.Data) > core.MaxRecordDataLen {
			return fmt.Errorf("record %d with %d bytes: %w", entry.ID, len(entry.Data), core.ErrInvalidRecordSize)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("duplicate id %d in batch", entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}

	// Skip entries whose value is unchanged.
	changed := make([]Entry, 0, len(entries))
	var oldSize, need uint32
	for _, entry := range entries {
		current, err := e.Get(entry.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if err == nil && bytes.Equal(current, entry.Data) {
			continue
		}
		size, err := e.liveSize(entry.ID)
		if err != nil {
			return err
		}
		oldSize += size
		need += uint32(core.RecordHeaderSize + len(entry.Data))
		changed = append(changed, entry)
	}
	if len(changed) == 0 {
		return nil
	}
	if e.used-oldSize+need > e.total {
		return fmt.Errorf("batch of %d records needs %d bytes, %d live of %d: %w",
			len(changed), need, e.used, e.total, core.ErrCapacityExhausted)
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })

	stale, err := e.hasInvalidRecords(e.active)
	if err != nil {
		return err
	}
	if !stale {
		if done, err := e.writeBatchInPlace(changed); err != nil {
			return err
		} else if done {
			e.used = e.used - oldSize + need
			return nil
		}
		e.logger.Debug("batch write failed, swapping sectors", "records", len(changed))
	} else {
		e.logger.Debug("stale invalid records found, forcing compaction", "records", len(changed))
	}
	return e.swapAndWrite(changed)
}

// writeBatchInPlace appends the batch as INVALID records and promotes them
// in reverse append order. Returns done=false for write failures a swap
// can resolve.
func (e *Engine) writeBatchInPlace(entries []Entry) (bool, error) {
	offsets := make([]uint32, 0, len(entries))
	for _, entry := range entries {
		offset, err := e.writeRecord(e.active, entry.ID, entry.Data, core.RecordInvalid)
		if err != nil {
			if isWriteFailure(err) {
				return false, nil
			}
			return false, err
		}
		offsets = append(offsets, offset)
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		if err := e.writeRecordStatus(offsets[i], core.RecordValid); err != nil {
			if errors.Is(err, core.ErrWriteVerify) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// Remove tombstones the record for id, freeing its capacity immediately
// and its flash space at the next swap. Returns ErrNotFound when no live
// record exists.
func (e *Engine) Remove(id uint16) error {
	ref, found, err := e.findRecord(e.active, id)
	if err != nil {
		return err
	}
	if !found || ref.header.Status != core.RecordValid {
		return core.ErrNotFound
	}
	if err := e.writeRecordStatus(ref.offset, core.RecordRemoved); err != nil {
		return err
	}
	e.used -= ref.header.SizeOnFlash()
	return nil
}

// CountRecords returns the number of live ids.
func (e *Engine) CountRecords() (int, error) {
	count := 0
	err := e.forEachValidRecordSortedByID(e.active, func(recordRef) bool {
		count++
		return true
	})
	return count, err
}

// ListRecords returns the live ids in ascending order.
func (e *Engine) ListRecords() ([]uint16, error) {
	var ids []uint16
	err := e.forEachValidRecordSortedByID(e.active, func(r recordRef) bool {
		ids = append(ids, r.header.ID)
		return true
	})
	return ids, err
}

// ActiveSector names the sector currently holding the records, for
// diagnostics and tooling.
func (e *Engine) ActiveSector() string {
	return e.active.String()
}

// HasPendingErase reports whether a superseded sector is waiting to be
// erased. Erases block flash access for hundreds of milliseconds on real
// hardware, so a completed swap defers the erase for the application to
// schedule via PerformPendingErase. Skipping it is safe: the next swap or
// boot erases the sector anyway.
func (e *Engine) HasPendingErase() (bool, error) {
	s, err := e.erasableSector()
	return s != noSector, err
}

// PerformPendingErase erases the superseded sector left behind by the
// last swap, if any.
func (e *Engine) PerformPendingErase() error {
	s, err := e.erasableSector()
	if err != nil {
		return err
	}
	if s == noSector {
		return nil
	}
	e.logger.Debug("erasing superseded sector", "sector", s.String())
	return e.eraseSector(s)
}
