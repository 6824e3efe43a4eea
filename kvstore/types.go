package kvstore

const (
	// Version is the object format version this package reads and writes.
	Version uint8 = 0

	// HeaderBytes is the fixed serialized size of an object header:
	// version (1), flags+length (2), hashed key (8), reserved (4).
	HeaderBytes = 15

	// ChecksumBytes is the size of the trailing CRC.
	ChecksumBytes = 4

	// MaxObjectLength is the largest encodable total object length. The
	// length field is 12 bits and 0xFFF is reserved, so header + value +
	// checksum must not exceed this.
	MaxObjectLength = 0xFFE

	// unwritten is the value every byte of erased flash reads as.
	unwritten byte = 0xFF

	// flagValid is the live bit within the flags byte (byte 1 of the
	// header). Clearing it tombstones the record; no other bit of a stored
	// record is ever altered in place.
	flagValid byte = 0x80
)

// DefaultMainKey is the key string whose record acts as the format sentinel:
// its presence means the flash range has been initialized by this store.
const DefaultMainKey = "flashstore-main-key"

// Header is the decoded form of an object header.
type Header struct {
	Version uint8
	// Live is the valid flag; false means the record is tombstoned.
	Live bool
	// Length is the total object length: header, value and checksum.
	Length int
	// KeyHash is the caller's 64 bit hashed key.
	KeyHash uint64
}

// ValueLength returns the length of the value carried by an object with
// this header.
func (h Header) ValueLength() int {
	return h.Length - HeaderBytes - ChecksumBytes
}

// Outcome distinguishes how far an operation got with respect to the flash
// controller.
type Outcome int

const (
	// OutcomeNone is the zero Outcome, reported alongside errors.
	OutcomeNone Outcome = iota
	// OutcomeWritten means the flash write was issued and completed
	// synchronously.
	OutcomeWritten
	// OutcomeQueued means the controller accepted the write asynchronously;
	// it will commit without further involvement from the store.
	OutcomeQueued
	// OutcomeComplete means a read or verify operation fully finished.
	OutcomeComplete
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeWritten:
		return "written"
	case OutcomeQueued:
		return "queued"
	case OutcomeComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Result is the uniform completion value returned by Resume. N carries the
// value length for a get, Freed the byte count for a garbage collection.
type Result struct {
	Outcome Outcome
	N       int
	Freed   int
}

// RecordInfo describes one stored object, as reported by ScanRegion.
type RecordInfo struct {
	Offset     int
	Length     int
	Version    uint8
	Live       bool
	KeyHash    uint64
	ChecksumOK bool
}
