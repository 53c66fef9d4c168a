// Package snapshot serializes a full flash image into a compressed,
// checksummed stream and restores it onto a block store. Snapshots back up
// EEPROM contents before reflashing and move images between hosts.
//
// Stream layout, all integers little-endian:
//
//	magic      [4]byte "EESN"
//	version    byte
//	codec      byte (compressors.Type)
//	imageSize  uint32  uncompressed size, sum of the sector sizes
//	blockSize  uint32  compressed payload size
//	payload    [blockSize]byte
//	checksum   uint32  CRC-32 (IEEE) of the payload
package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/INLOpen/nexusflash/blockstore"
	"github.com/INLOpen/nexusflash/compressors"
	"github.com/INLOpen/nexusflash/core"
)

var magic = [4]byte{'E', 'E', 'S', 'N'}

const version = 1

// snapshotOverhead bounds the per-stream framing a codec may add on top of
// the raw image bytes (block headers, size markers).
const snapshotOverhead = 256

// Write serializes every configured sector of the store into w.
func Write(w io.Writer, store blockstore.BlockStore, sectors []blockstore.SectorRange, c compressors.Compressor) error {
	var imageSize uint32
	for _, sec := range sectors {
		imageSize += sec.Size
	}
	image := make([]byte, 0, imageSize)
	for _, sec := range sectors {
		view, err := store.DataAt(sec.Base, sec.Size)
		if err != nil {
			return fmt.Errorf("failed to read sector at 0x%X: %w", sec.Base, err)
		}
		image = append(image, view...)
	}

	payload, err := c.Compress(image)
	if err != nil {
		return err
	}

	header := make([]byte, 14)
	copy(header, magic[:])
	header[4] = version
	header[5] = byte(c.Type())
	binary.LittleEndian.PutUint32(header[6:], imageSize)
	binary.LittleEndian.PutUint32(header[10:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc32.ChecksumIEEE(payload))
	if _, err := w.Write(sum[:]); err != nil {
		return fmt.Errorf("failed to write snapshot checksum: %w", err)
	}
	return nil
}

// Restore reads a snapshot from r and programs it onto the store, erasing
// each sector first. The snapshot's image size must match the configured
// geometry.
func Restore(r io.Reader, store blockstore.BlockStore, sectors []blockstore.SectorRange) error {
	header := make([]byte, 14)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if [4]byte(header[:4]) != magic {
		return fmt.Errorf("not a snapshot stream (bad magic)")
	}
	if header[4] != version {
		return fmt.Errorf("unsupported snapshot version %d", header[4])
	}
	imageSize := binary.LittleEndian.Uint32(header[6:])
	blockSize := binary.LittleEndian.Uint32(header[10:])

	var geometrySize uint32
	for _, sec := range sectors {
		geometrySize += sec.Size
	}
	if imageSize != geometrySize {
		return fmt.Errorf("snapshot image is %d bytes, geometry expects %d", imageSize, geometrySize)
	}
	// Every supported codec expands an incompressible image by at most a
	// small framing overhead, so a payload claiming more than twice the
	// image size cannot be genuine. Checked before allocating: blockSize
	// comes from an unverified header.
	if blockSize > 2*imageSize+snapshotOverhead {
		return fmt.Errorf("%w: payload of %d bytes for a %d byte image", core.ErrCorrupted, blockSize, imageSize)
	}

	payload := make([]byte, blockSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("failed to read snapshot payload: %w", err)
	}
	var sum [4]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return fmt.Errorf("failed to read snapshot checksum: %w", err)
	}
	if got := crc32.ChecksumIEEE(payload); got != binary.LittleEndian.Uint32(sum[:]) {
		return fmt.Errorf("%w: snapshot checksum mismatch", core.ErrCorrupted)
	}

	c, err := compressors.Get(compressors.Type(header[5]))
	if err != nil {
		return err
	}
	image, err := c.Decompress(payload, imageSize)
	if err != nil {
		return err
	}

	offset := uint32(0)
	for _, sec := range sectors {
		if err := store.EraseSector(sec.Base); err != nil {
			return err
		}
		if err := store.Write(sec.Base, image[offset:offset+sec.Size]); err != nil {
			return fmt.Errorf("failed to program sector at 0x%X: %w", sec.Base, err)
		}
		offset += sec.Size
	}
	return nil
}
