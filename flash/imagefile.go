package flash

import (
	"fmt"
	"os"
)

// ImageFile is a Device backed by a raw flash image file, for host-side
// tooling. The file holds exactly the device's byte content; an erased
// region is a run of 0xFF bytes, the same as on the part itself, so an
// image can be flashed verbatim.
type ImageFile struct {
	f *os.File
	g Geometry
}

// CreateImage creates (or truncates) an image file of the given geometry
// with every region erased.
func CreateImage(path string, g Geometry) (*ImageFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	blank := make([]byte, g.RegionSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	for r := 0; r < g.NumRegions; r++ {
		if _, err := f.WriteAt(blank, int64(g.Address(r, 0))); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &ImageFile{f: f, g: g}, nil
}

// OpenImage opens an existing image file, deriving the region count from the
// file size, which must be a multiple of regionSize.
func OpenImage(path string, regionSize int) (*ImageFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	g, err := NewGeometry(regionSize, int(info.Size()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: image %s is %d bytes", err, path, info.Size())
	}
	return &ImageFile{f: f, g: g}, nil
}

// Geometry returns the image geometry.
func (d *ImageFile) Geometry() Geometry { return d.g }

func (d *ImageFile) ReadRegion(region int, buf []byte) error {
	if region < 0 || region >= d.g.NumRegions {
		return ErrOutOfRange
	}
	if len(buf) < d.g.RegionSize {
		return ErrShortBuffer
	}
	_, err := d.f.ReadAt(buf[:d.g.RegionSize], int64(d.g.Address(region, 0)))
	return err
}

func (d *ImageFile) Write(address int, data []byte) error {
	if address < 0 || address+len(data) > d.g.FlashSize() {
		return ErrOutOfRange
	}
	// AND onto the existing bytes so the file tracks what the part would hold.
	old := make([]byte, len(data))
	if _, err := d.f.ReadAt(old, int64(address)); err != nil {
		return err
	}
	for i := range old {
		old[i] &= data[i]
	}
	_, err := d.f.WriteAt(old, int64(address))
	return err
}

func (d *ImageFile) EraseRegion(region int) error {
	if region < 0 || region >= d.g.NumRegions {
		return ErrOutOfRange
	}
	blank := make([]byte, d.g.RegionSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	_, err := d.f.WriteAt(blank, int64(d.g.Address(region, 0)))
	return err
}

// Sync flushes the image to stable storage.
func (d *ImageFile) Sync() error { return d.f.Sync() }

// Close syncs and closes the image file.
func (d *ImageFile) Close() error {
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}
