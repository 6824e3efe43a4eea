package flash

// DeferredDevice wraps a Device and reports every selected operation as not
// ready, while still performing it against the inner device immediately.
// This models an interrupt-driven controller whose completion callback fires
// before the caller gets around to resuming: by the time the store is
// re-driven, the read buffer is filled and the erase has taken effect, which
// is exactly the state the NotReadyError contract promises.
type DeferredDevice struct {
	Inner Device

	DeferReads  bool
	DeferWrites bool
	DeferErases bool

	// Counts of not-ready responses handed out, for test assertions.
	Reads  int
	Writes int
	Erases int
}

// NewDeferredDevice defers every operation kind.
func NewDeferredDevice(inner Device) *DeferredDevice {
	return &DeferredDevice{Inner: inner, DeferReads: true, DeferWrites: true, DeferErases: true}
}

func (d *DeferredDevice) ReadRegion(region int, buf []byte) error {
	if err := d.Inner.ReadRegion(region, buf); err != nil {
		return err
	}
	if d.DeferReads {
		d.Reads++
		return &NotReadyError{Op: OpRead, Region: region}
	}
	return nil
}

func (d *DeferredDevice) Write(address int, data []byte) error {
	if err := d.Inner.Write(address, data); err != nil {
		return err
	}
	if d.DeferWrites {
		d.Writes++
		return &NotReadyError{Op: OpWrite, Region: address / regionSizeOf(d.Inner)}
	}
	return nil
}

func (d *DeferredDevice) EraseRegion(region int) error {
	if err := d.Inner.EraseRegion(region); err != nil {
		return err
	}
	if d.DeferErases {
		d.Erases++
		return &NotReadyError{Op: OpErase, Region: region}
	}
	return nil
}

// regionSizeOf recovers a region size for address attribution in write
// errors. Devices that do not expose a geometry report region 0.
func regionSizeOf(d Device) int {
	type geometried interface{ Geometry() Geometry }
	if g, ok := d.(geometried); ok {
		return g.Geometry().RegionSize
	}
	return 1 << 62
}
