package flash

import (
	"errors"
	"fmt"
)

// Op identifies which controller operation an error or completion refers to.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpErase
)

// String returns the string representation of the operation.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpErase:
		return "erase"
	default:
		return "unknown"
	}
}

var (
	ErrBadRegionSize = errors.New("flash: region size must be positive")
	ErrBadFlashSize  = errors.New("flash: flash size must be a positive multiple of the region size")
	ErrOutOfRange    = errors.New("flash: access outside the device range")
	ErrShortBuffer   = errors.New("flash: buffer smaller than a region")
)

// NotReadyError reports that a controller operation was launched
// asynchronously and has not yet completed.
//
// The contract for a not-ready operation is:
//
//   - ReadRegion: the read into the caller's buffer has been started. The
//     caller must not touch the buffer until the controller signals
//     completion, after which the buffer holds the region content.
//   - Write: the write has been queued and will commit without further
//     involvement from the caller.
//   - EraseRegion: the erase has been started and will have completed by the
//     time the caller resumes.
type NotReadyError struct {
	Op     Op
	Region int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("flash: %s of region %d not ready", e.Op, e.Region)
}

// Device is the narrow contract the store consumes. Implementations map a
// linear byte address space onto erase-unit regions of a fixed size.
//
// Erasing a region resets every byte in it to 0xFF. Writes may only clear
// bits; writing a byte stores the bitwise AND of the old and new values,
// which is the behavior of NOR flash and what the store's single-byte
// tombstone write relies on.
type Device interface {
	// ReadRegion fills buf with the content of the given region. buf must
	// be at least one region long.
	ReadRegion(region int, buf []byte) error

	// Write stores data starting at the linear byte address. The store
	// never issues a write that crosses a region boundary.
	Write(address int, data []byte) error

	// EraseRegion resets the given region to all 0xFF bytes.
	EraseRegion(region int) error
}

// Geometry describes the erase-unit layout of a device.
type Geometry struct {
	RegionSize int
	NumRegions int
}

// NewGeometry derives a Geometry from a region size and a total flash size.
// The flash size must be a positive multiple of the region size.
func NewGeometry(regionSize, flashSize int) (Geometry, error) {
	if regionSize <= 0 {
		return Geometry{}, ErrBadRegionSize
	}
	if flashSize <= 0 || flashSize%regionSize != 0 {
		return Geometry{}, ErrBadFlashSize
	}
	return Geometry{RegionSize: regionSize, NumRegions: flashSize / regionSize}, nil
}

// FlashSize returns the total byte size of the device.
func (g Geometry) FlashSize() int {
	return g.RegionSize * g.NumRegions
}

// Address returns the linear byte address of offset within region.
func (g Geometry) Address(region, offset int) int {
	return region*g.RegionSize + offset
}
