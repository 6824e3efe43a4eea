package kvstore

type opKind int

const (
	opNone opKind = iota
	opInit
	opAppend
	opGet
	opInvalidate
	opGC
)

type phase int

const (
	// phaseRun means no flash access is outstanding.
	phaseRun phase = iota
	// phaseRead means the operation suspended on a region read; by the
	// time it is resumed the continuation's buffer holds the region.
	phaseRead
	// phaseErase means the operation suspended on a region erase; by the
	// time it is resumed the region reads all 0xFF.
	phaseErase
)

type initStep int

const (
	initLookup initStep = iota
	initErase
	initAppend
)

// Continuation is the resumption token for a suspended operation. It stands
// in for the locals an async runtime would keep for a suspended coroutine:
// the operation kind and arguments, the probe position, the region whose
// flash access is outstanding, and the region buffer handed to the
// controller. It is created by the store, carried to the caller inside a
// NotReadyError, and consumed exactly once by Resume; it has no exported
// fields and cannot be fabricated, so the wrong operation cannot be
// resumed.
type Continuation struct {
	op    opKind
	key   uint64
	value []byte
	dst   []byte

	home   int
	probeN int
	region int
	phase  phase

	// loaded records that buf holds the content of region, letting a
	// resumed or re-entered pass skip a redundant flash read.
	loaded bool
	buf    []byte

	// freed accumulates reclaimed bytes across a garbage collection sweep.
	freed int

	// Initialization drives nested lookup and append operations.
	step initStep
	sub  *Continuation
}

func (c *Continuation) leaf() *Continuation {
	if c.sub != nil {
		return c.sub.leaf()
	}
	return c
}

// absorb applies the completion of the outstanding flash access. The device
// contract guarantees the access has finished by the time the caller
// resumes: a suspended read has filled the buffer and a suspended erase has
// blanked its region.
func (c *Continuation) absorb(regionSize int) {
	l := c.leaf()
	switch l.phase {
	case phaseRead:
		l.loaded = true
	case phaseErase:
		switch l.op {
		case opGC:
			l.freed += regionSize
			l.region++
			l.loaded = false
		case opInit:
			l.region++
		}
	}
	l.phase = phaseRun
}
