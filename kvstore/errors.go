package kvstore

import (
	"errors"
	"fmt"

	"github.com/forestrie/go-flashstore/flash"
)

var (
	// ErrKeyNotFound is returned when no live record matches the hashed key.
	ErrKeyNotFound = errors.New("kvstore: key not found")

	// ErrKeyAlreadyExists is returned by append when a live record with the
	// same hashed key is already stored.
	ErrKeyAlreadyExists = errors.New("kvstore: key already exists")

	// ErrUnsupportedVersion is returned when a header carries an object
	// format version this package does not implement. It is fatal to that
	// record only, not to the rest of the region.
	ErrUnsupportedVersion = errors.New("kvstore: unsupported object version")

	// ErrCorruptData is returned when a region fails an integrity check,
	// for example a partially written header.
	ErrCorruptData = errors.New("kvstore: corrupt region data")

	// ErrInvalidCheckSum is returned when a stored object's trailing CRC
	// does not match its content.
	ErrInvalidCheckSum = errors.New("kvstore: object checksum mismatch")

	// ErrObjectTooLarge is returned when header, value and checksum exceed
	// the encodable object length.
	ErrObjectTooLarge = errors.New("kvstore: object too large")

	// ErrFlashFull is returned when the probe sequence exhausts every
	// candidate region without finding room.
	ErrFlashFull = errors.New("kvstore: no region has room for the object")

	// ErrInvalidKeyHash is returned for the reserved hash values 0 and
	// 2^64-1, which can never identify a record.
	ErrInvalidKeyHash = errors.New("kvstore: key hash 0 and max are reserved")

	// ErrOperationPending is returned when a new operation is started while
	// an earlier one is still suspended on a not-ready flash access.
	ErrOperationPending = errors.New("kvstore: an operation is already pending")

	// ErrStaleContinuation is returned when Resume is handed a continuation
	// the store did not issue, or one it has already consumed.
	ErrStaleContinuation = errors.New("kvstore: continuation is not the pending one")

	// ErrNothingPending is returned by Async.Continue when no operation is
	// suspended.
	ErrNothingPending = errors.New("kvstore: nothing to continue")

	// ErrBufferTooSmall is the errors.Is target for BufferTooSmallError.
	ErrBufferTooSmall = errors.New("kvstore: destination buffer too small")

	// ErrShortRegion is returned when a buffer is smaller than the header
	// or region it is supposed to hold.
	ErrShortRegion = errors.New("kvstore: buffer too short")
)

// BufferTooSmallError reports that a get destination cannot hold the stored
// value. Nothing is copied; Required is the length the caller must provide.
type BufferTooSmallError struct {
	Required int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("kvstore: destination buffer too small, need %d bytes", e.Required)
}

func (e *BufferTooSmallError) Is(target error) bool {
	return target == ErrBufferTooSmall
}

// NotReadyError reports that the operation suspended on an asynchronous
// flash access. The embedded Continuation is the only value Resume accepts,
// so a caller cannot re-drive the wrong operation.
type NotReadyError struct {
	Op           flash.Op
	Region       int
	Continuation *Continuation

	cause error
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("kvstore: suspended on %s of region %d", e.Op, e.Region)
}

func (e *NotReadyError) Unwrap() error { return e.cause }
