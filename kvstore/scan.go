package kvstore

import (
	"errors"
	"hash"
)

// regionScan walks the packed records of one loaded region buffer.
//
// Records are contiguous: each starts where the previous one ended. The walk
// ends at the first unwritten header, at a zero-length header (which can
// only mean corruption and terminates any search), or at a tail too short
// to hold another header.
type regionScan struct {
	buf []byte
	off int

	// count is the number of written records seen so far, including
	// tombstoned and unsupported-version ones. The probe continuation
	// heuristic depends on it: a lookup only moves to the next candidate
	// region when the current one held no records at all.
	count int

	// free is the offset of the first unwritten slot, or -1 if the walk
	// ended without reaching one.
	free int

	// corruptEnd records that the walk stopped at a zero-length header.
	// The region is then neither appendable nor further searchable.
	corruptEnd bool
}

type scannedRecord struct {
	off int
	hdr Header
	// unsupported marks a record whose version this package does not
	// implement. Its length still advances the walk but its content is
	// opaque and it never matches a key.
	unsupported bool
}

func newRegionScan(buf []byte) *regionScan {
	return &regionScan{buf: buf, free: -1}
}

// next returns the next written record. ok=false means the walk is over;
// the scanner fields then describe how it ended. The only errors are
// ErrCorruptData for a damaged region.
func (s *regionScan) next() (rec scannedRecord, ok bool, err error) {
	if s.off+HeaderBytes > len(s.buf) {
		return scannedRecord{}, false, nil
	}
	h, written, derr := DecodeHeader(s.buf[s.off:])
	if derr != nil && !errors.Is(derr, ErrUnsupportedVersion) {
		return scannedRecord{}, false, ErrCorruptData
	}
	if !written {
		s.free = s.off
		return scannedRecord{}, false, nil
	}
	if h.Length == 0 {
		s.corruptEnd = true
		return scannedRecord{}, false, nil
	}
	if s.off+h.Length > len(s.buf) {
		return scannedRecord{}, false, ErrCorruptData
	}
	rec = scannedRecord{off: s.off, hdr: h, unsupported: derr != nil}
	s.count++
	s.off += h.Length
	return rec, true, nil
}

// verifyChecksum recomputes the CRC over the header and value bytes of the
// record at off and compares it with the stored trailing bytes.
func verifyChecksum(newCRC func() hash.Hash32, buf []byte, off, length int) bool {
	crc := newCRC()
	crc.Write(buf[off : off+length-ChecksumBytes])
	stored := buf[off+length-ChecksumBytes : off+length]
	sum := crc.Sum32()
	// Fixed little-endian order, see the format comment in header.go.
	return stored[0] == byte(sum) &&
		stored[1] == byte(sum>>8) &&
		stored[2] == byte(sum>>16) &&
		stored[3] == byte(sum>>24)
}

// putChecksum appends the CRC over obj[:len(obj)-ChecksumBytes] into the
// trailing checksum bytes of obj.
func putChecksum(newCRC func() hash.Hash32, obj []byte) {
	crc := newCRC()
	crc.Write(obj[:len(obj)-ChecksumBytes])
	sum := crc.Sum32()
	n := len(obj) - ChecksumBytes
	obj[n] = byte(sum)
	obj[n+1] = byte(sum >> 8)
	obj[n+2] = byte(sum >> 16)
	obj[n+3] = byte(sum >> 24)
}
