package kvstore

import (
	"errors"
	"hash"
	"hash/crc32"
	"hash/fnv"

	"github.com/forestrie/go-flashstore/flash"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Store is the log-structured key-value engine. It owns a single
// region-sized scratch buffer and issues at most one flash access per
// region visited; it performs no retries and never blocks, surfacing a
// controller's not-ready condition as a NotReadyError carrying the
// resumption token.
//
// A Store must be driven serially: one logical operation at a time, with a
// suspended operation resumed (or abandoned) before the next one starts.
type Store struct {
	dev flash.Device
	g   flash.Geometry

	newHash func() hash.Hash64
	newCRC  func() hash.Hash32
	mainKey string

	// scratch is the store's only region buffer. It is nil exactly while
	// handed to a suspended continuation.
	scratch []byte

	pending *Continuation
}

// Option configures a Store.
type Option func(*Store)

// WithHash sets the key hash constructor. The function must be a pure,
// time-stable mapping: re-hashing the same key bytes must always reproduce
// the same value, or previously stored records become unreachable.
func WithHash(f func() hash.Hash64) Option {
	return func(s *Store) { s.newHash = f }
}

// WithChecksum sets the record CRC constructor.
func WithChecksum(f func() hash.Hash32) Option {
	return func(s *Store) { s.newCRC = f }
}

// WithMainKey overrides the sentinel key string. All stores sharing a flash
// range must agree on it.
func WithMainKey(key string) Option {
	return func(s *Store) { s.mainKey = key }
}

// New creates a Store over dev. The default key hash is 64 bit FNV-1a and
// the default checksum is CRC-32C (Castagnoli).
func New(dev flash.Device, g flash.Geometry, opts ...Option) (*Store, error) {
	if g.RegionSize <= HeaderBytes+ChecksumBytes {
		return nil, flash.ErrBadRegionSize
	}
	if g.NumRegions <= 0 {
		return nil, flash.ErrBadFlashSize
	}
	s := &Store{
		dev:     dev,
		g:       g,
		newHash: fnv.New64a,
		newCRC:  func() hash.Hash32 { return crc32.New(castagnoli) },
		mainKey: DefaultMainKey,
		scratch: make([]byte, g.RegionSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Geometry returns the region layout the store was created with.
func (s *Store) Geometry() flash.Geometry { return s.g }

// HashKey hashes a caller key with the store's key hash.
func (s *Store) HashKey(key []byte) uint64 {
	h := s.newHash()
	h.Write(key)
	return h.Sum64()
}

// Pending reports whether an operation is suspended on a flash access.
func (s *Store) Pending() bool { return s.pending != nil }

func checkKeyHash(keyHash uint64) error {
	if keyHash == 0 || keyHash == ^uint64(0) {
		return ErrInvalidKeyHash
	}
	return nil
}

// Init checks for the sentinel record and, if the flash range has never
// been formatted for this store, erases every region and appends it. The
// outcome is OutcomeComplete when the sentinel was already present, and
// OutcomeWritten or OutcomeQueued when it was appended.
func (s *Store) Init() (Outcome, error) {
	c := &Continuation{op: opInit, step: initLookup}
	res, err := s.start(c)
	return res.Outcome, err
}

// AppendKey stores value under the hashed key. At most one live record may
// exist per hash: a second append without an intervening InvalidateKey
// fails with ErrKeyAlreadyExists. The store may suspend holding a
// reference to value; the caller must keep it unchanged until the
// operation completes.
func (s *Store) AppendKey(keyHash uint64, value []byte) (Outcome, error) {
	if err := checkKeyHash(keyHash); err != nil {
		return OutcomeNone, err
	}
	if HeaderBytes+len(value)+ChecksumBytes > MaxObjectLength {
		return OutcomeNone, ErrObjectTooLarge
	}
	c := s.newKeyedContinuation(opAppend, keyHash)
	c.value = value
	res, err := s.start(c)
	return res.Outcome, err
}

// GetKey copies the live value stored under the hashed key into dst and
// returns its length. If dst cannot hold the value, a BufferTooSmallError
// reports the required length and nothing is copied.
//
// The search only moves past a probed region when that region holds no
// records, or was too full to take an append. A key that overflowed into a
// neighboring region while its home region still had an empty slot (one
// too small for that record) is therefore reported as missing; the
// heuristic is part of the preserved on-flash behavior.
func (s *Store) GetKey(keyHash uint64, dst []byte) (int, error) {
	if err := checkKeyHash(keyHash); err != nil {
		return 0, err
	}
	c := s.newKeyedContinuation(opGet, keyHash)
	c.dst = dst
	res, err := s.start(c)
	return res.N, err
}

// InvalidateKey tombstones the live record stored under the hashed key by
// clearing the valid bit with a single one-byte flash write. Every other
// byte of the record is left in place until its whole region is garbage
// collected.
func (s *Store) InvalidateKey(keyHash uint64) (Outcome, error) {
	if err := checkKeyHash(keyHash); err != nil {
		return OutcomeNone, err
	}
	c := s.newKeyedContinuation(opInvalidate, keyHash)
	res, err := s.start(c)
	return res.Outcome, err
}

// GarbageCollect erases every region whose records are all tombstoned and
// returns the total bytes reclaimed. Regions holding any live record, and
// regions holding no records, are left untouched.
func (s *Store) GarbageCollect() (int, error) {
	c := &Continuation{op: opGC}
	res, err := s.start(c)
	return res.Freed, err
}

// Resume re-drives the pending operation after its outstanding flash
// access completed. The continuation must be the one carried by the
// NotReadyError that suspended the store.
func (s *Store) Resume(c *Continuation) (Result, error) {
	if c == nil || s.pending != c {
		return Result{}, ErrStaleContinuation
	}
	s.pending = nil
	c.absorb(s.g.RegionSize)
	res, err := s.dispatch(c)
	return s.finish(c, res, err)
}

func (s *Store) newKeyedContinuation(op opKind, keyHash uint64) *Continuation {
	home := homeRegion(keyHash, s.g.NumRegions)
	region, n, _ := nextProbeRegion(home, 0, s.g.NumRegions)
	return &Continuation{op: op, key: keyHash, home: home, region: region, probeN: n}
}

func (s *Store) start(c *Continuation) (Result, error) {
	if s.pending != nil {
		return Result{}, ErrOperationPending
	}
	c.buf = s.takeBuffer()
	res, err := s.dispatch(c)
	return s.finish(c, res, err)
}

func (s *Store) finish(c *Continuation, res Result, err error) (Result, error) {
	var nr *flash.NotReadyError
	if errors.As(err, &nr) {
		s.pending = c
		return Result{}, &NotReadyError{Op: nr.Op, Region: nr.Region, Continuation: c, cause: nr}
	}
	s.replaceBuffer(c.buf)
	c.buf = nil
	return res, err
}

func (s *Store) dispatch(c *Continuation) (Result, error) {
	switch c.op {
	case opInit:
		return s.runInit(c)
	case opAppend:
		return s.runAppend(c)
	case opGet:
		return s.runGet(c)
	case opInvalidate:
		return s.runInvalidate(c)
	case opGC:
		return s.runGC(c)
	default:
		return Result{}, ErrStaleContinuation
	}
}

func (s *Store) takeBuffer() []byte {
	b := s.scratch
	s.scratch = nil
	return b
}

func (s *Store) replaceBuffer(b []byte) { s.scratch = b }

// loadRegion fills the continuation's buffer with its current region,
// unless an earlier pass or a completed asynchronous read already did.
func (s *Store) loadRegion(c *Continuation) error {
	if c.loaded {
		return nil
	}
	if err := s.dev.ReadRegion(c.region, c.buf); err != nil {
		if isNotReady(err) {
			c.phase = phaseRead
		}
		return err
	}
	c.loaded = true
	return nil
}

func isNotReady(err error) bool {
	var nr *flash.NotReadyError
	return errors.As(err, &nr)
}

func (s *Store) runAppend(c *Continuation) (Result, error) {
	total := HeaderBytes + len(c.value) + ChecksumBytes
	for {
		if err := s.loadRegion(c); err != nil {
			return Result{}, err
		}
		scan := newRegionScan(c.buf[:s.g.RegionSize])
		for {
			rec, ok, err := scan.next()
			if err != nil {
				return Result{}, err
			}
			if !ok {
				break
			}
			if !rec.unsupported && rec.hdr.Live && rec.hdr.KeyHash == c.key {
				return Result{}, ErrKeyAlreadyExists
			}
		}
		if scan.free >= 0 && scan.free+total < s.g.RegionSize {
			obj := make([]byte, total)
			if err := EncodeHeader(obj, Header{Version: Version, Live: true, Length: total, KeyHash: c.key}); err != nil {
				return Result{}, err
			}
			copy(obj[HeaderBytes:], c.value)
			putChecksum(s.newCRC, obj)
			if err := s.dev.Write(s.g.Address(c.region, scan.free), obj); err != nil {
				if isNotReady(err) {
					return Result{Outcome: OutcomeQueued}, nil
				}
				return Result{}, err
			}
			return Result{Outcome: OutcomeWritten}, nil
		}
		region, n, ok := nextProbeRegion(c.home, c.probeN, s.g.NumRegions)
		if !ok {
			return Result{}, ErrFlashFull
		}
		c.region, c.probeN, c.loaded = region, n, false
	}
}

func (s *Store) runGet(c *Continuation) (Result, error) {
	for {
		if err := s.loadRegion(c); err != nil {
			return Result{}, err
		}
		scan := newRegionScan(c.buf[:s.g.RegionSize])
		for {
			rec, ok, err := scan.next()
			if err != nil {
				return Result{}, err
			}
			if !ok {
				break
			}
			if rec.unsupported || !rec.hdr.Live || rec.hdr.KeyHash != c.key {
				continue
			}
			if !verifyChecksum(s.newCRC, c.buf, rec.off, rec.hdr.Length) {
				return Result{}, ErrInvalidCheckSum
			}
			n := rec.hdr.ValueLength()
			if len(c.dst) < n {
				return Result{}, &BufferTooSmallError{Required: n}
			}
			copy(c.dst, c.buf[rec.off+HeaderBytes:rec.off+HeaderBytes+n])
			return Result{Outcome: OutcomeComplete, N: n}, nil
		}
		// The search stops when the scan reached an empty header in a
		// region that held records: the key would have been appended
		// here. It keeps probing past regions with no records and past
		// full regions (where the append itself would have overflowed).
		// A zero-length header terminates the search outright.
		if scan.corruptEnd || (scan.count > 0 && scan.free >= 0) {
			return Result{}, ErrKeyNotFound
		}
		region, n, ok := nextProbeRegion(c.home, c.probeN, s.g.NumRegions)
		if !ok {
			return Result{}, ErrKeyNotFound
		}
		c.region, c.probeN, c.loaded = region, n, false
	}
}

func (s *Store) runInvalidate(c *Continuation) (Result, error) {
	for {
		if err := s.loadRegion(c); err != nil {
			return Result{}, err
		}
		scan := newRegionScan(c.buf[:s.g.RegionSize])
		for {
			rec, ok, err := scan.next()
			if err != nil {
				return Result{}, err
			}
			if !ok {
				break
			}
			if rec.unsupported || !rec.hdr.Live || rec.hdr.KeyHash != c.key {
				continue
			}
			// Clear only the valid bit, with a single one-byte write at
			// the flags byte of the matched record.
			flags := c.buf[rec.off+1] &^ flagValid
			if err := s.dev.Write(s.g.Address(c.region, rec.off+1), []byte{flags}); err != nil {
				if isNotReady(err) {
					return Result{Outcome: OutcomeQueued}, nil
				}
				return Result{}, err
			}
			return Result{Outcome: OutcomeWritten}, nil
		}
		// Same continuation rule as the lookup in runGet.
		if scan.corruptEnd || (scan.count > 0 && scan.free >= 0) {
			return Result{}, ErrKeyNotFound
		}
		region, n, ok := nextProbeRegion(c.home, c.probeN, s.g.NumRegions)
		if !ok {
			return Result{}, ErrKeyNotFound
		}
		c.region, c.probeN, c.loaded = region, n, false
	}
}

func (s *Store) runGC(c *Continuation) (Result, error) {
	for c.region < s.g.NumRegions {
		if err := s.loadRegion(c); err != nil {
			return Result{}, err
		}
		scan := newRegionScan(c.buf[:s.g.RegionSize])
		live := false
		for {
			rec, ok, err := scan.next()
			if err != nil {
				return Result{}, err
			}
			if !ok {
				break
			}
			// A record of an unimplemented version is opaque; treat it as
			// live so its region is never erased.
			if rec.hdr.Live || rec.unsupported {
				live = true
			}
		}
		// Erase only when every record present is a tombstone. Regions
		// with no records have nothing to reclaim, and a corrupt scan end
		// leaves content we cannot account for.
		if !live && scan.count > 0 && !scan.corruptEnd {
			c.phase = phaseErase
			if err := s.dev.EraseRegion(c.region); err != nil {
				if isNotReady(err) {
					return Result{}, err
				}
				c.phase = phaseRun
				return Result{}, err
			}
			c.phase = phaseRun
			c.freed += s.g.RegionSize
		}
		c.region++
		c.loaded = false
	}
	return Result{Outcome: OutcomeComplete, Freed: c.freed}, nil
}

func (s *Store) runInit(c *Continuation) (Result, error) {
	mainHash := s.HashKey([]byte(s.mainKey))

	if c.step == initLookup {
		if c.sub == nil {
			c.sub = s.newKeyedContinuation(opGet, mainHash)
			c.sub.buf = c.buf
		}
		if _, err := s.runGet(c.sub); err != nil {
			if !errors.Is(err, ErrKeyNotFound) {
				return Result{}, err
			}
			// Never formatted: fall through to a full format.
			c.sub = nil
			c.step = initErase
			c.region = 0
		} else {
			c.sub = nil
			return Result{Outcome: OutcomeComplete}, nil
		}
	}

	if c.step == initErase {
		for c.region < s.g.NumRegions {
			c.phase = phaseErase
			if err := s.dev.EraseRegion(c.region); err != nil {
				if isNotReady(err) {
					return Result{}, err
				}
				c.phase = phaseRun
				return Result{}, err
			}
			c.phase = phaseRun
			c.region++
		}
		c.step = initAppend
	}

	if c.sub == nil {
		c.sub = s.newKeyedContinuation(opAppend, mainHash)
		c.sub.buf = c.buf
	}
	res, err := s.runAppend(c.sub)
	if err != nil {
		return Result{}, err
	}
	c.sub = nil
	return res, nil
}

// ScanRegion decodes every record header in a loaded region buffer, for
// inspection tooling. Values are not copied; ChecksumOK reflects a CRC
// verification of each record of the supported version. A zero-length
// header terminates the scan and is reported as ErrCorruptData alongside
// the records decoded before it.
func (s *Store) ScanRegion(buf []byte) ([]RecordInfo, error) {
	if len(buf) < s.g.RegionSize {
		return nil, ErrShortRegion
	}
	scan := newRegionScan(buf[:s.g.RegionSize])
	var infos []RecordInfo
	for {
		rec, ok, err := scan.next()
		if err != nil {
			return infos, err
		}
		if !ok {
			break
		}
		info := RecordInfo{
			Offset:  rec.off,
			Length:  rec.hdr.Length,
			Version: rec.hdr.Version,
			Live:    rec.hdr.Live,
			KeyHash: rec.hdr.KeyHash,
		}
		if !rec.unsupported {
			info.ChecksumOK = verifyChecksum(s.newCRC, buf, rec.off, rec.hdr.Length)
		}
		infos = append(infos, info)
	}
	if scan.corruptEnd {
		return infos, ErrCorruptData
	}
	return infos, nil
}
