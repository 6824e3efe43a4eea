package flash

// MemDevice is a synchronous in-memory Device. It reproduces the bit
// semantics of real NOR flash: erases set bytes to 0xFF and writes AND new
// bytes onto the existing image.
type MemDevice struct {
	g     Geometry
	image []byte
}

// NewMemDevice returns a MemDevice of the given geometry with every byte
// erased (0xFF).
func NewMemDevice(g Geometry) *MemDevice {
	image := make([]byte, g.FlashSize())
	for i := range image {
		image[i] = 0xFF
	}
	return &MemDevice{g: g, image: image}
}

// Geometry returns the device geometry.
func (d *MemDevice) Geometry() Geometry { return d.g }

// Bytes returns the live backing image. Tests use it to inject corruption
// that the write semantics would otherwise forbid.
func (d *MemDevice) Bytes() []byte { return d.image }

func (d *MemDevice) ReadRegion(region int, buf []byte) error {
	if region < 0 || region >= d.g.NumRegions {
		return ErrOutOfRange
	}
	if len(buf) < d.g.RegionSize {
		return ErrShortBuffer
	}
	start := d.g.Address(region, 0)
	copy(buf, d.image[start:start+d.g.RegionSize])
	return nil
}

func (d *MemDevice) Write(address int, data []byte) error {
	if address < 0 || address+len(data) > len(d.image) {
		return ErrOutOfRange
	}
	for i, b := range data {
		d.image[address+i] &= b
	}
	return nil
}

func (d *MemDevice) EraseRegion(region int) error {
	if region < 0 || region >= d.g.NumRegions {
		return ErrOutOfRange
	}
	start := d.g.Address(region, 0)
	for i := start; i < start+d.g.RegionSize; i++ {
		d.image[i] = 0xFF
	}
	return nil
}
