package blockstore

import (
	"path/filepath"
	"testing"

	"github.com/INLOpen/nexusflash/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSectors() []SectorRange {
	return []SectorRange{
		{Base: testBase, Size: testSectorSize},
		{Base: testBase + testSectorSize, Size: testSectorSize},
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flash.img")
	s, err := OpenFileStore(path, testSectors())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileStoreNewImageIsErased(t *testing.T) {
	s := newTestFileStore(t)

	for _, sec := range testSectors() {
		view, err := s.DataAt(sec.Base, sec.Size)
		require.NoError(t, err)
		for i, b := range view {
			if b != core.FlashErased {
				t.Fatalf("byte %d of sector 0x%X is 0x%02X, want erased", i, sec.Base, b)
			}
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")

	s, err := OpenFileStore(path, testSectors())
	require.NoError(t, err)
	require.NoError(t, s.Write(testBase+10, []byte{0x12, 0x34}))
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	// Reopen and verify persistence.
	s, err = OpenFileStore(path, testSectors())
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 2)
	require.NoError(t, s.Read(testBase+10, buf))
	assert.Equal(t, []byte{0x12, 0x34}, buf)
}

func TestFileStoreNORSemantics(t *testing.T) {
	s := newTestFileStore(t)

	require.NoError(t, s.Write(testBase, []byte{0xF0}))
	// Programming 0x0F over 0xF0 would need bits set; result is 0x00 and
	// verification fails.
	err := s.Write(testBase, []byte{0x0F})
	require.ErrorIs(t, err, core.ErrWriteVerify)

	buf := make([]byte, 1)
	require.NoError(t, s.Read(testBase, buf))
	assert.Equal(t, byte(0x00), buf[0])

	require.NoError(t, s.EraseSector(testBase))
	require.NoError(t, s.Read(testBase, buf))
	assert.Equal(t, core.FlashErased, buf[0])
}

func TestFileStoreUnevenSectors(t *testing.T) {
	// The reference geometry pairs a small sector with a large one, with
	// the addresses not back to back.
	sectors := []SectorRange{
		{Base: 0x1000, Size: 0x100},
		{Base: 0x8000, Size: 0x400},
	}
	path := filepath.Join(t.TempDir(), "flash.img")
	s, err := OpenFileStore(path, sectors)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(0x8000+0x3FF, []byte{0x42}))
	buf := make([]byte, 1)
	require.NoError(t, s.Read(0x8000+0x3FF, buf))
	assert.Equal(t, byte(0x42), buf[0])

	require.NoError(t, s.EraseSector(0x8000))
	require.NoError(t, s.Read(0x8000+0x3FF, buf))
	assert.Equal(t, core.FlashErased, buf[0])

	// Between the sectors lies no flash.
	require.ErrorIs(t, s.Read(0x2000, buf), core.ErrOutOfRange)
	// Erase targets sector bases only.
	require.ErrorIs(t, s.EraseSector(0x1001), core.ErrOutOfRange)
}

func TestFileStoreGeometryMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")

	s, err := OpenFileStore(path, testSectors())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	bigger := append(testSectors(), SectorRange{Base: testBase + 2*testSectorSize, Size: testSectorSize})
	_, err = OpenFileStore(path, bigger)
	require.Error(t, err)
}
