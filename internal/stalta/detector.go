// Package stalta implements the streaming short-term/long-term-average
// energy detector used to arm the event-triggered MiniSEED flush: two
// ring buffers of squared signal values, a hysteresis state machine, and
// a defined-but-disarmed output until the long window fills.
package stalta

import "time"

// State is the detector's hysteresis state.
type State int

const (
	Disarmed State = iota
	Armed
)

// Defaults per spec §4.E / Glossary.
const (
	DefaultSTASeconds   = 1.0
	DefaultLTASeconds   = 30.0
	DefaultOnThreshold  = 3.5
	DefaultOffThreshold = 1.5
)

// Event describes a hysteresis transition, emitted for observability.
type Event struct {
	ChannelName string
	Ratio       float64
	Timestamp   time.Time
	NewState    State
}

// ring is a fixed-capacity circular buffer of float64 with a running
// sum, so the mean is O(1) to query instead of O(n) per sample.
type ring struct {
	buf   []float64
	next  int
	full  bool
	sum   float64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	if r.full {
		r.sum -= r.buf[r.next]
	}
	r.buf[r.next] = v
	r.sum += v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) isFull() bool {
	return r.full
}

func (r *ring) mean() float64 {
	n := len(r.buf)
	if r.full {
		return r.sum / float64(n)
	}
	if r.next == 0 {
		return 0
	}
	return r.sum / float64(r.next)
}

// Detector maintains the STA and LTA rings and the armed/disarmed state
// for a single (trigger) channel.
type Detector struct {
	channelName  string
	sta          *ring
	lta          *ring
	state        State
	onThreshold  float64
	offThreshold float64
	now          func() time.Time
}

// Config bundles the detector's tunables; zero values fall back to the
// spec's documented defaults.
type Config struct {
	ChannelName    string
	SamplingRate   int
	STASeconds     float64
	LTASeconds     float64
	OnThreshold    float64
	OffThreshold   float64
}

// New builds a Detector sized for the given sampling rate.
func New(cfg Config) *Detector {
	sta := cfg.STASeconds
	if sta <= 0 {
		sta = DefaultSTASeconds
	}
	lta := cfg.LTASeconds
	if lta <= 0 {
		lta = DefaultLTASeconds
	}
	on := cfg.OnThreshold
	if on <= 0 {
		on = DefaultOnThreshold
	}
	off := cfg.OffThreshold
	if off <= 0 {
		off = DefaultOffThreshold
	}

	staLen := max(1, int(sta*float64(cfg.SamplingRate)))
	ltaLen := max(1, int(lta*float64(cfg.SamplingRate)))

	return &Detector{
		channelName:  cfg.ChannelName,
		sta:          newRing(staLen),
		lta:          newRing(ltaLen),
		state:        Disarmed,
		onThreshold:  on,
		offThreshold: off,
		now:          time.Now,
	}
}

// State reports the current armed/disarmed state.
func (d *Detector) State() State {
	return d.state
}

// Process feeds one sample of the trigger channel into the detector. It
// returns the current ratio (1.0, undefined, until the long window
// fills), whether the detector is now armed, and an Event pointer
// (non-nil only on a state transition).
func (d *Detector) Process(value int32) (ratio float64, armed bool, ev *Event) {
	energy := float64(value) * float64(value)
	d.sta.push(energy)
	d.lta.push(energy)

	if !d.lta.isFull() {
		return 1.0, d.state == Armed, nil
	}

	ltaMean := d.lta.mean()
	staMean := d.sta.mean()

	if ltaMean <= 0 {
		ratio = 1.0
	} else {
		ratio = staMean / ltaMean
	}

	prev := d.state
	switch d.state {
	case Disarmed:
		if ratio > d.onThreshold {
			d.state = Armed
		}
	case Armed:
		if ratio < d.offThreshold {
			d.state = Disarmed
		}
	}

	if d.state != prev {
		ev = &Event{
			ChannelName: d.channelName,
			Ratio:       ratio,
			Timestamp:   d.now(),
			NewState:    d.state,
		}
	}

	return ratio, d.state == Armed, ev
}
