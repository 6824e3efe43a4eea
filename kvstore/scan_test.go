package kvstore

import (
	"bytes"
	"hash"
	"hash/crc32"
	"testing"

	"gotest.tools/v3/assert"
)

func newCRC() hash.Hash32 { return crc32.New(crc32.MakeTable(crc32.Castagnoli)) }

// packRecord encodes one record into buf at off and returns the offset just
// past it.
func packRecord(t *testing.T, buf []byte, off int, h Header, value []byte) int {
	t.Helper()
	total := HeaderBytes + len(value) + ChecksumBytes
	h.Length = total
	assert.NilError(t, EncodeHeader(buf[off:], h))
	copy(buf[off+HeaderBytes:], value)
	putChecksum(newCRC, buf[off:off+total])
	return off + total
}

func erased(n int) []byte {
	return bytes.Repeat([]byte{0xFF}, n)
}

func TestScanWalksPackedRecords(t *testing.T) {
	buf := erased(256)
	off := packRecord(t, buf, 0, Header{Version: Version, Live: true, KeyHash: 0x1111}, []byte("one"))
	off = packRecord(t, buf, off, Header{Version: Version, Live: false, KeyHash: 0x2222}, []byte("two!"))
	end := packRecord(t, buf, off, Header{Version: Version, Live: true, KeyHash: 0x3333}, nil)

	scan := newRegionScan(buf)
	var hashes []uint64
	for {
		rec, ok, err := scan.next()
		assert.NilError(t, err)
		if !ok {
			break
		}
		hashes = append(hashes, rec.hdr.KeyHash)
	}
	assert.DeepEqual(t, hashes, []uint64{0x1111, 0x2222, 0x3333})
	assert.Equal(t, scan.count, 3)
	assert.Equal(t, scan.free, end)
	assert.Equal(t, scan.corruptEnd, false)
}

func TestScanEmptyRegion(t *testing.T) {
	scan := newRegionScan(erased(128))
	_, ok, err := scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, false)
	assert.Equal(t, scan.count, 0)
	assert.Equal(t, scan.free, 0)
}

func TestScanFullRegionHasNoFreeSlot(t *testing.T) {
	// A single record filling all but a sub-header tail leaves nowhere for
	// another header, so the walk ends without a free offset.
	buf := erased(64)
	value := make([]byte, 64-HeaderBytes-ChecksumBytes-4)
	packRecord(t, buf, 0, Header{Version: Version, Live: true, KeyHash: 0xAB}, value)

	scan := newRegionScan(buf)
	_, ok, err := scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, true)
	_, ok, err = scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, false)
	assert.Equal(t, scan.free, -1)
}

func TestScanUnsupportedVersionAdvances(t *testing.T) {
	buf := erased(128)
	off := packRecord(t, buf, 0, Header{Version: Version, Live: true, KeyHash: 0xA1}, []byte("x"))
	next := packRecord(t, buf, off, Header{Version: Version, Live: true, KeyHash: 0xB2}, []byte("y"))
	buf[off] = 0x01 // future format version

	scan := newRegionScan(buf)
	rec, ok, err := scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, true)
	assert.Equal(t, rec.unsupported, false)

	rec, ok, err = scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, true)
	assert.Equal(t, rec.unsupported, true)
	assert.Equal(t, rec.hdr.KeyHash, uint64(0xB2))

	_, ok, err = scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, false)
	assert.Equal(t, scan.free, next)
}

func TestScanZeroLengthHeaderEndsCorrupt(t *testing.T) {
	buf := erased(128)
	off := packRecord(t, buf, 0, Header{Version: Version, Live: true, KeyHash: 0xC3}, []byte("z"))
	buf[off] = 0x00 // committed version
	buf[off+1] = 0x00
	buf[off+2] = 0x00 // zero total length

	scan := newRegionScan(buf)
	_, ok, err := scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, true)
	_, ok, err = scan.next()
	assert.NilError(t, err)
	assert.Equal(t, ok, false)
	assert.Equal(t, scan.corruptEnd, true)
	assert.Equal(t, scan.free, -1)
}

func TestScanTornHeaderIsCorrupt(t *testing.T) {
	buf := erased(128)
	buf[5] = 0x00 // key byte written, version still unwritten

	scan := newRegionScan(buf)
	_, _, err := scan.next()
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestScanRecordOverrunsRegion(t *testing.T) {
	buf := erased(64)
	assert.NilError(t, EncodeHeader(buf, Header{Version: Version, Live: true, Length: 80, KeyHash: 0xD4}))

	scan := newRegionScan(buf)
	_, _, err := scan.next()
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestChecksumBytesAreLittleEndian(t *testing.T) {
	obj := make([]byte, HeaderBytes+3+ChecksumBytes)
	assert.NilError(t, EncodeHeader(obj, Header{Version: Version, Live: true, Length: len(obj), KeyHash: 0xE5}))
	copy(obj[HeaderBytes:], "abc")
	putChecksum(newCRC, obj)

	sum := crc32.Checksum(obj[:len(obj)-ChecksumBytes], crc32.MakeTable(crc32.Castagnoli))
	tail := obj[len(obj)-ChecksumBytes:]
	assert.Equal(t, tail[0], byte(sum))
	assert.Equal(t, tail[1], byte(sum>>8))
	assert.Equal(t, tail[2], byte(sum>>16))
	assert.Equal(t, tail[3], byte(sum>>24))

	assert.Equal(t, verifyChecksum(newCRC, obj, 0, len(obj)), true)
	obj[HeaderBytes] ^= 0xFF
	assert.Equal(t, verifyChecksum(newCRC, obj, 0, len(obj)), false)
}
