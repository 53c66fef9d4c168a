package blockstore

import (
	"fmt"
	"os"

	"github.com/INLOpen/nexusflash/core"
)

// SectorRange describes one flash sector by its address and size. Sectors
// on real parts are not uniform; the reference geometry pairs a 16 KiB
// sector with a 64 KiB one.
type SectorRange struct {
	Base uint32
	Size uint32
}

// FileStore provides NOR-flash semantics over a flash image file, used by
// the offline tools to inspect and modify EEPROM dumps. The image holds
// the sectors back to back in declaration order. Reads served through
// DataAt use a read-only memory mapping where the platform supports it and
// fall back to ReadAt elsewhere.
type FileStore struct {
	f       *os.File
	sectors []SectorRange
	size    uint32
	mapped  []byte // nil when mapping is unavailable
}

var _ BlockStore = (*FileStore)(nil)

// OpenFileStore opens (or creates) a flash image holding the given
// sectors. A newly created image is fully erased; an existing image must
// match the geometry's total size.
func OpenFileStore(path string, sectors []SectorRange) (*FileStore, error) {
	if len(sectors) == 0 {
		return nil, fmt.Errorf("flash image %s: no sectors configured", path)
	}
	var size uint32
	for _, sec := range sectors {
		size += sec.Size
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash image %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat flash image %s: %w", path, err)
	}
	s := &FileStore{f: f, sectors: sectors, size: size}
	if st.Size() == 0 {
		erased := make([]byte, size)
		for i := range erased {
			erased[i] = core.FlashErased
		}
		if _, err := f.WriteAt(erased, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to initialize flash image %s: %w", path, err)
		}
	} else if st.Size() != int64(size) {
		f.Close()
		return nil, fmt.Errorf("flash image %s is %d bytes, geometry expects %d", path, st.Size(), size)
	}
	s.remap()
	return s, nil
}

// Close releases the mapping and the underlying file.
func (s *FileStore) Close() error {
	s.unmap()
	return s.f.Close()
}

// index maps a flash address range to its image file position. The range
// must lie inside a single sector.
func (s *FileStore) index(offset uint32, length int) (int64, error) {
	var pos int64
	for _, sec := range s.sectors {
		if offset >= sec.Base && uint64(offset)+uint64(length) <= uint64(sec.Base)+uint64(sec.Size) {
			return pos + int64(offset-sec.Base), nil
		}
		pos += int64(sec.Size)
	}
	return 0, fmt.Errorf("%w: offset 0x%X length %d", core.ErrOutOfRange, offset, length)
}

func (s *FileStore) Read(offset uint32, p []byte) error {
	at, err := s.index(offset, len(p))
	if err != nil {
		return err
	}
	if _, err := s.f.ReadAt(p, at); err != nil {
		return fmt.Errorf("failed to read flash image at 0x%X: %w", offset, err)
	}
	return nil
}

func (s *FileStore) Write(offset uint32, p []byte) error {
	at, err := s.index(offset, len(p))
	if err != nil {
		return err
	}
	cur := make([]byte, len(p))
	if _, err := s.f.ReadAt(cur, at); err != nil {
		return fmt.Errorf("failed to read back flash image at 0x%X: %w", offset, err)
	}
	verified := true
	for i, b := range p {
		cur[i] &= b
		if cur[i] != b {
			verified = false
		}
	}
	if _, err := s.f.WriteAt(cur, at); err != nil {
		return fmt.Errorf("failed to program flash image at 0x%X: %w", offset, err)
	}
	if !verified {
		return fmt.Errorf("write at 0x%X: %w", offset, core.ErrWriteVerify)
	}
	return nil
}

// EraseSector resets a whole sector to the erased pattern. start must be a
// configured sector base.
func (s *FileStore) EraseSector(start uint32) error {
	for _, sec := range s.sectors {
		if sec.Base != start {
			continue
		}
		at, err := s.index(start, int(sec.Size))
		if err != nil {
			return err
		}
		erased := make([]byte, sec.Size)
		for i := range erased {
			erased[i] = core.FlashErased
		}
		if _, err := s.f.WriteAt(erased, at); err != nil {
			return fmt.Errorf("failed to erase sector at 0x%X: %w", start, err)
		}
		return nil
	}
	return fmt.Errorf("%w: 0x%X is not a sector base", core.ErrOutOfRange, start)
}

func (s *FileStore) DataAt(offset, length uint32) ([]byte, error) {
	at, err := s.index(offset, int(length))
	if err != nil {
		return nil, err
	}
	if s.mapped != nil {
		return s.mapped[at : at+int64(length) : at+int64(length)], nil
	}
	p := make([]byte, length)
	if _, err := s.f.ReadAt(p, at); err != nil {
		return nil, fmt.Errorf("failed to read flash image at 0x%X: %w", offset, err)
	}
	return p, nil
}

// Sync flushes the image file to stable storage.
func (s *FileStore) Sync() error {
	return s.f.Sync()
}
