package kvstore

import "errors"

// Async drives a Store against an interrupt-style flash controller. Each
// call mirrors the Store operation of the same name; when one suspends,
// Async keeps the continuation from the NotReadyError so the controller's
// completion handler (or a poll loop) only has to call Continue.
//
// Async adds no concurrency of its own: the serial-access precondition of
// the underlying store still applies.
type Async struct {
	s *Store
	c *Continuation
}

// NewAsync wraps a store.
func NewAsync(s *Store) *Async { return &Async{s: s} }

// Store returns the wrapped store.
func (a *Async) Store() *Store { return a.s }

// Pending reports whether an operation is waiting to be continued.
func (a *Async) Pending() bool { return a.c != nil }

func (a *Async) capture(err error) error {
	var nr *NotReadyError
	if errors.As(err, &nr) {
		a.c = nr.Continuation
	}
	return err
}

func (a *Async) Init() (Outcome, error) {
	o, err := a.s.Init()
	return o, a.capture(err)
}

func (a *Async) AppendKey(keyHash uint64, value []byte) (Outcome, error) {
	o, err := a.s.AppendKey(keyHash, value)
	return o, a.capture(err)
}

func (a *Async) GetKey(keyHash uint64, dst []byte) (int, error) {
	n, err := a.s.GetKey(keyHash, dst)
	return n, a.capture(err)
}

func (a *Async) InvalidateKey(keyHash uint64) (Outcome, error) {
	o, err := a.s.InvalidateKey(keyHash)
	return o, a.capture(err)
}

func (a *Async) GarbageCollect() (int, error) {
	n, err := a.s.GarbageCollect()
	return n, a.capture(err)
}

// Continue re-drives the suspended operation. It may suspend again; drive
// it until the error is no longer a NotReadyError.
func (a *Async) Continue() (Result, error) {
	if a.c == nil {
		return Result{}, ErrNothingPending
	}
	c := a.c
	a.c = nil
	res, err := a.s.Resume(c)
	return res, a.capture(err)
}
