package kvstore

import "encoding/binary"

// On-flash object layout, packed contiguously within a region:
//
//	+--------------------+ byte 0: version, 0xFF means unwritten
//	| version            |
//	+--------------------+ byte 1: flags nibble | length bits 11..8
//	| flags + length hi  |         bit 0x80 is the valid (live) flag
//	+--------------------+ byte 2: length bits 7..0
//	| length lo          |
//	+--------------------+ bytes 3..10: hashed key, most significant first
//	| hashed key         |
//	+--------------------+ bytes 11..14: reserved, written as zero
//	| reserved           |
//	+--------------------+
//	| value              | Length - HeaderBytes - ChecksumBytes bytes
//	+--------------------+
//	| checksum           | 4 bytes, little-endian CRC over header and value
//	+--------------------+
//
// The checksum byte order is fixed as part of the format so that images are
// portable between hosts of differing endianness.

// EncodeHeader writes h into the first HeaderBytes of dst.
func EncodeHeader(dst []byte, h Header) error {
	if len(dst) < HeaderBytes {
		return ErrShortRegion
	}
	if h.Length > MaxObjectLength {
		return ErrObjectTooLarge
	}
	dst[0] = h.Version
	dst[1] = byte(h.Length >> 8)
	if h.Live {
		dst[1] |= flagValid
	}
	dst[2] = byte(h.Length)
	binary.BigEndian.PutUint64(dst[3:11], h.KeyHash)
	dst[11], dst[12], dst[13], dst[14] = 0, 0, 0, 0
	return nil
}

// DecodeHeader decodes the object header at the start of b.
//
// ok=false with a nil error means the slot is unwritten: the version byte
// and every hashed key byte read 0xFF. A version byte of 0xFF over a key
// that is not all 0xFF is the signature of an interrupted write and is
// reported as ErrCorruptData.
//
// A non-0xFF version this package does not implement is reported as
// ErrUnsupportedVersion; the returned header is still fully decoded so that
// callers able to skip the record can use its Length.
func DecodeHeader(b []byte) (h Header, ok bool, err error) {
	if len(b) < HeaderBytes {
		return Header{}, false, ErrShortRegion
	}

	if b[0] == unwritten {
		for _, kb := range b[3:11] {
			if kb != unwritten {
				return Header{}, false, ErrCorruptData
			}
		}
		return Header{}, false, nil
	}

	h.Version = b[0]
	h.Live = b[1]&flagValid != 0
	h.Length = int(b[1]&0x0F)<<8 | int(b[2])
	h.KeyHash = binary.BigEndian.Uint64(b[3:11])

	if h.Version != Version {
		return h, true, ErrUnsupportedVersion
	}
	// A written record is at least a header and a checksum. Anything
	// shorter cannot be walked over and means the region is damaged,
	// except length zero which terminates a search (see the scanner).
	if h.Length != 0 && h.Length < HeaderBytes+ChecksumBytes {
		return h, true, ErrCorruptData
	}
	return h, true, nil
}
