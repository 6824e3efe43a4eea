// Package flash defines the controller contract the kvstore engine is
// written against, together with reference devices.
//
// The store never talks to hardware directly; it consumes the three-method
// Device interface and treats a NotReadyError return as its only suspension
// signal. MemDevice gives the synchronous in-memory behavior used by most
// tests, DeferredDevice layers interrupt-style asynchrony on top of any
// device, and ImageFile adapts a raw flash image file for host-side tools.
package flash
