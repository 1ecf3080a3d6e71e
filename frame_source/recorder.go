package frame_source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mahatoankit/CampusConvo/endpointing"
)

// Recorder binds an endpointing engine to the device lease: one Record call
// is one exclusive, endpointed capture. The lease is held only for the
// duration of the capture and released before Record returns.
type Recorder struct {
	lease  *Lease
	engine *endpointing.Engine
}

func NewRecorder(lease *Lease, engine *endpointing.Engine) (*Recorder, error) {
	if lease == nil {
		return nil, fmt.Errorf("frame_source: lease is nil")
	}

	if engine == nil {
		return nil, fmt.Errorf("frame_source: engine is nil")
	}

	return &Recorder{lease: lease, engine: engine}, nil
}

func (r *Recorder) Record(ctx context.Context) (*endpointing.Utterance, error) {
	dev, err := r.lease.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	defer r.lease.Release(dev)

	if err := dev.Start(); err != nil {
		// Device open/start failures are recoverable: warn and report an
		// abandoned capture so the caller retries on its next cycle.
		slog.Warn("could not start audio stream", "err", err)

		return &endpointing.Utterance{Reason: endpointing.ReasonNoSpeech}, nil
	}

	defer dev.Stop()

	return r.engine.Capture(ctx, dev)
}
