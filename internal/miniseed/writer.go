package miniseed

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/rpi3seismo/stationd/internal/sample"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

var logger = xlog.For("writer")

const filenameTimestampPattern = "%Y%m%dT%H%M%S"

// Clock abstracts time.Now so flush scheduling can be driven by a fake
// clock in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ChannelInfo names a configured channel and the ADC input it reads.
type ChannelInfo struct {
	Name       string
	ADCChannel int
}

// Writer buffers incoming timestamped samples per channel and flushes
// them to MiniSEED files on a schedule perturbed by trigger events
// (spec §4.F).
type Writer struct {
	mu sync.Mutex

	network          string
	station          string
	samplingRate     int
	dataDir          string
	writeInterval    time.Duration
	eventWindow      time.Duration
	channels         []ChannelInfo
	clock            Clock
	enc              *Encoder

	buffers        map[string][]int32
	batchStart     time.Time
	hasBatchStart  bool
	nextFlush      time.Time
	eventTracked   bool // true if an arm happened during the current batch

	// FlushedFiles records every filename produced, for tests and
	// diagnostics; production code only needs the side effect on disk.
	FlushedFiles []string
}

// Config bundles the Writer's fixed parameters.
type Config struct {
	Network          string
	Station          string
	SamplingRate     int
	DataDir          string
	WriteIntervalSec int
	EventWindowSec   int
	Channels         []ChannelInfo
	Clock            Clock
}

// New builds a Writer, scheduling its first flush WriteIntervalSec from
// the clock's current time.
func New(cfg Config) *Writer {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	interval := cfg.WriteIntervalSec
	if interval <= 0 {
		interval = 1800
	}
	eventWindow := cfg.EventWindowSec
	if eventWindow <= 0 {
		eventWindow = 300
	}

	w := &Writer{
		network:       cfg.Network,
		station:       cfg.Station,
		samplingRate:  cfg.SamplingRate,
		dataDir:       cfg.DataDir,
		writeInterval: time.Duration(interval) * time.Second,
		eventWindow:   time.Duration(eventWindow) * time.Second,
		channels:      cfg.Channels,
		clock:         clock,
		enc:           NewEncoder(),
		buffers:       make(map[string][]int32),
	}
	w.nextFlush = clock.Now().Add(w.writeInterval)
	return w
}

// Accumulate appends one decoded, timestamped sample into each
// configured channel's buffer, stamping the batch start on the first
// sample of a new batch.
func (w *Writer) Accumulate(s sample.Timestamped) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasBatchStart {
		w.batchStart = s.Time
		w.hasBatchStart = true
	}

	for _, ch := range w.channels {
		w.buffers[ch.Name] = append(w.buffers[ch.Name], s.Value(ch.ADCChannel))
	}
}

// NoteArmed must be called whenever the detector transitions into (or
// remains in) the armed state. It pins the next flush EventWindowSec out
// from now, and repeated calls during the window simply reset the timer,
// per spec §4.F "a new ground motion extends the capture".
func (w *Writer) NoteArmed() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.eventTracked = true
	w.nextFlush = w.clock.Now().Add(w.eventWindow)
}

// Tick should be called periodically (the teacher's loops poll on a
// short sleep; here the lifecycle coordinator drives it from a ticker).
// It flushes if the schedule has come due.
func (w *Writer) Tick() {
	w.mu.Lock()
	now := w.clock.Now()
	due := !now.Before(w.nextFlush)
	w.mu.Unlock()

	if due {
		w.Flush()
	}
}

// Flush atomically swaps out the buffer, writes one MiniSEED file
// containing every channel with non-empty data, and resets scheduling
// state. A write failure is logged with context and the buffer is
// discarded anyway, per spec §7, so a disk fault cannot grow memory
// without bound.
func (w *Writer) Flush() {
	w.mu.Lock()
	buffers := w.buffers
	batchStart := w.batchStart
	hasBatchStart := w.hasBatchStart
	triggered := w.eventTracked
	now := w.clock.Now()

	w.buffers = make(map[string][]int32)
	w.hasBatchStart = false
	w.eventTracked = false
	w.nextFlush = now.Add(w.writeInterval)
	w.mu.Unlock()

	if len(buffers) == 0 || !hasBatchStart {
		return
	}

	if err := w.writeFile(buffers, batchStart, triggered, now); err != nil {
		logger.Error("failed to write MiniSEED file, discarding buffer", "err", err)
	}
}

func (w *Writer) writeFile(buffers map[string][]int32, batchStart time.Time, triggered bool, now time.Time) error {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", w.dataDir, err)
	}

	stampSource := now
	if !batchStart.IsZero() {
		stampSource = batchStart
	}

	prefix := "data_"
	if triggered {
		prefix = "data_EQ_"
	}

	stamp, err := strftime.Format(filenameTimestampPattern, stampSource.UTC())
	if err != nil {
		return fmt.Errorf("formatting filename timestamp: %w", err)
	}

	filename := filepath.Join(w.dataDir, fmt.Sprintf("%s%s.mseed", prefix, stamp))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()

	for _, ch := range w.channels {
		values := buffers[ch.Name]
		if len(values) == 0 {
			continue
		}

		data := make([]float32, len(values))
		for i, v := range values {
			data[i] = float32(v)
		}

		meta := TraceMeta{
			Network:      w.network,
			Station:      w.station,
			Channel:      ch.Name,
			SamplingRate: float64(w.samplingRate),
			StartTime:    batchStart,
		}

		if err := w.enc.WriteTrace(f, meta, data); err != nil {
			return fmt.Errorf("writing trace %s: %w", ch.Name, err)
		}
	}

	w.mu.Lock()
	w.FlushedFiles = append(w.FlushedFiles, filename)
	w.mu.Unlock()

	logger.Info("wrote MiniSEED file", "filename", filename, "channels", len(buffers))
	return nil
}

// Shutdown performs the final flush demanded by spec §4.F.5, and should
// be called exactly once after the shutdown signal is observed.
func (w *Writer) Shutdown() {
	w.Flush()
}
