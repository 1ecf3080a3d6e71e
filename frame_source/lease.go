package frame_source

import (
	"context"

	"github.com/mahatoankit/CampusConvo/endpointing"
)

// Device is what a lease guards: a startable, exclusive frame reader.
// *Source is the production implementation.
type Device interface {
	Start() error
	Stop()
	ReadFrame(ctx context.Context) (endpointing.Frame, error)
}

// Lease is the exclusive, transferable right to read from the input device.
// It is a one-slot channel holding the device: Acquire takes the slot,
// Release puts it back, so two readers can never hold the device at once.
type Lease struct {
	slot chan Device
}

func NewLease(dev Device) *Lease {
	l := &Lease{slot: make(chan Device, 1)}
	l.slot <- dev

	return l
}

// Acquire blocks until the device is free or the context ends.
func (l *Lease) Acquire(ctx context.Context) (Device, error) {
	select {
	case dev := <-l.slot:
		return dev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes the device only if it is currently free.
func (l *Lease) TryAcquire() (Device, bool) {
	select {
	case dev := <-l.slot:
		return dev, true
	default:
		return nil, false
	}
}

// Release returns the device for the next consumer. Releasing a lease that
// was never acquired is a programming error and will block.
func (l *Lease) Release(dev Device) {
	l.slot <- dev
}
