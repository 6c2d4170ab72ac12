// Package dispatch fans a decoded frame out to N bounded, independent
// consumer channels with a drop-oldest backpressure policy: a slow
// consumer never slows a fast one, and never stalls the ingest path.
package dispatch

import (
	"sync/atomic"
	"time"

	"github.com/rpi3seismo/stationd/internal/frame"
	"github.com/rpi3seismo/stationd/internal/sample"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

var logger = xlog.For("dispatch")

// Dispatcher publishes each decoded frame, timestamped once, to every
// registered consumer channel in a fixed order.
type Dispatcher struct {
	outs    []chan sample.Timestamped
	dropped []atomic.Uint64
	now     func() time.Time
}

// New creates a Dispatcher with n bounded consumer channels of the given
// capacity.
func New(n int, capacity int) *Dispatcher {
	d := &Dispatcher{
		outs:    make([]chan sample.Timestamped, n),
		dropped: make([]atomic.Uint64, n),
		now:     time.Now,
	}
	for i := range d.outs {
		d.outs[i] = make(chan sample.Timestamped, capacity)
	}
	return d
}

// Channel returns the i-th consumer's receive-only queue.
func (d *Dispatcher) Channel(i int) <-chan sample.Timestamped {
	return d.outs[i]
}

// Dropped reports how many samples have been dropped (queue-full,
// drop-oldest) for the i-th consumer.
func (d *Dispatcher) Dropped(i int) uint64 {
	return d.dropped[i].Load()
}

// Publish timestamps f once and sends a copy to every consumer channel,
// in the same fixed order every time. A full channel has its oldest
// buffered item discarded to make room; the drop is counted and logged.
func (d *Dispatcher) Publish(f frame.SampleFrame) {
	s := sample.Timestamped{
		Time: d.now(),
		Ch0:  f.Ch0,
		Ch1:  f.Ch1,
		Ch2:  f.Ch2,
	}

	for i, out := range d.outs {
		select {
		case out <- s:
		default:
			select {
			case <-out:
			default:
			}
			select {
			case out <- s:
				d.dropped[i].Add(1)
				logger.Warn("consumer queue full, dropped oldest sample", "consumer", i, "total_dropped", d.dropped[i].Load())
			default:
				// Consumer drained concurrently faster than we could
				// refill; nothing more to do this cycle.
			}
		}
	}
}

// Close closes every consumer channel. Call only after the producer side
// has stopped publishing.
func (d *Dispatcher) Close() {
	for _, out := range d.outs {
		close(out)
	}
}
