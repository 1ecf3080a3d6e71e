package frame_source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mahatoankit/CampusConvo/endpointing"
)

// countingDevice fails the test if it is ever read by two holders at once.
type countingDevice struct {
	holders atomic.Int32
	speech  bool
}

func (d *countingDevice) Start() error { return nil }
func (d *countingDevice) Stop()        {}

func (d *countingDevice) ReadFrame(ctx context.Context) (endpointing.Frame, error) {
	if d.holders.Add(1) > 1 {
		panic("device read from two places at once")
	}

	defer d.holders.Add(-1)

	if err := ctx.Err(); err != nil {
		return endpointing.Frame{}, err
	}

	samples := make([]int16, 4)
	if d.speech {
		samples[0] = 1000
	}

	return endpointing.Frame{Samples: samples}, nil
}

func TestLease_SingleHolder(t *testing.T) {
	dev := &countingDevice{}
	lease := NewLease(dev)

	got, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, ok := lease.TryAcquire(); ok {
		t.Fatal("second acquire succeeded while lease was held")
	}

	lease.Release(got)

	if _, ok := lease.TryAcquire(); !ok {
		t.Fatal("acquire failed after release")
	}
}

func TestLease_AcquireHonorsContext(t *testing.T) {
	lease := NewLease(&countingDevice{})

	dev, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := lease.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	lease.Release(dev)
}

func TestLease_ContendedAcquireNeverOverlaps(t *testing.T) {
	dev := &countingDevice{}
	lease := NewLease(dev)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				d, err := lease.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire: %v", err)

					return
				}

				if _, err := d.ReadFrame(context.Background()); err != nil {
					t.Errorf("ReadFrame: %v", err)
				}

				lease.Release(d)
			}
		}()
	}

	wg.Wait()
}
