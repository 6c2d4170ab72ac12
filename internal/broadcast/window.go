package broadcast

import "time"

// channelWindow is the per-channel 5-second sliding window the
// broadcaster decimates from: a ring of data samples, a parallel ring of
// timestamps, and a counter used to find the 1-second cadence boundary.
// It is deliberately separate from the detector's window (spec §9
// "Sliding window reuse" - the two serve different stability
// requirements and must not share a lifecycle).
type channelWindow struct {
	data   []float64
	times  []time.Time
	next   int
	filled int
	count  uint64
}

func newChannelWindow(size int) *channelWindow {
	return &channelWindow{
		data:  make([]float64, size),
		times: make([]time.Time, size),
	}
}

// push appends one sample, wrapping the ring once full.
func (w *channelWindow) push(v float64, t time.Time) {
	w.data[w.next] = v
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.data)
	if w.filled < len(w.data) {
		w.filled++
	}
	w.count++
}

// primed reports whether the ring has been filled at least once.
func (w *channelWindow) primed() bool {
	return w.filled == len(w.data)
}

// onCadenceBoundary reports whether count is a multiple of step,
// i.e. roughly one second's worth of samples have arrived since the
// last boundary.
func (w *channelWindow) onCadenceBoundary(step int) bool {
	return step > 0 && w.count%uint64(step) == 0
}

// orderedSnapshot returns the window's contents in chronological order
// (oldest first), for feeding to the decimator.
func (w *channelWindow) orderedSnapshot() []float64 {
	out := make([]float64, len(w.data))
	if !w.primed() {
		// Not used before priming, but keep this safe regardless.
		copy(out, w.data)
		return out
	}
	n := len(w.data)
	for i := 0; i < n; i++ {
		out[i] = w.data[(w.next+i)%n]
	}
	return out
}
