// Package broadcast implements the live-viewer websocket endpoint
// (spec §4.G): it decimates each channel's running window down to a
// viewer-friendly rate on a 1-second cadence and fans the resulting
// payload out to every connected viewer. A message for a viewer whose
// send queue is full is dropped rather than blocking acquisition; a
// viewer is removed when a read or write on its connection fails.
package broadcast

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpi3seismo/stationd/internal/decimate"
	"github.com/rpi3seismo/stationd/internal/sample"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

var logger = xlog.For("broadcast")

// windowSeconds is the sliding window width the broadcaster decimates
// from, independent of the detector's window (spec §9).
const windowSeconds = 5

// Payload is the JSON message shape sent to every connected viewer on
// each cadence boundary for one channel (spec §6).
type Payload struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	FS        int       `json:"fs"`
	Data      []float64 `json:"data"`
}

// ChannelInfo names a configured channel and the ADC input it reads.
type ChannelInfo struct {
	Name       string
	ADCChannel int
}

// Config bundles the Server's fixed parameters.
type Config struct {
	BindAddr         string
	SamplingRate     int
	DecimationFactor int
	Channels         []ChannelInfo
	StationName      string // used as the DNS-SD service instance name
}

// Server accepts websocket viewers, decimates each incoming sample
// batch, and broadcasts the result. It is driven by repeated calls to
// Ingest from the dispatcher's consumer loop.
type Server struct {
	cfg       Config
	upgrader  websocket.Upgrader
	decimator *decimate.Decimator

	mu       sync.Mutex
	windows  map[string]*channelWindow
	viewers  map[*viewer]struct{}

	step int // samples per 1-second cadence boundary
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// New builds a Server. Channels not listed in cfg.Channels are ignored
// by Ingest.
func New(cfg Config) *Server {
	windowLen := cfg.SamplingRate * windowSeconds
	windows := make(map[string]*channelWindow, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		windows[ch.Name] = newChannelWindow(windowLen)
	}

	return &Server{
		cfg:       cfg,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}, //nolint:exhaustruct
		decimator: decimate.NewDecimator(cfg.DecimationFactor),
		windows:   windows,
		viewers:   make(map[*viewer]struct{}),
		step:      cfg.SamplingRate,
	}
}

// Ingest feeds one dispatched sample into every configured channel's
// window, broadcasting a decimated payload for each channel that just
// crossed a 1-second cadence boundary.
func (s *Server) Ingest(smp sample.Timestamped) {
	for _, ch := range s.cfg.Channels {
		w := s.windows[ch.Name]
		w.push(float64(smp.Value(ch.ADCChannel)), smp.Time)

		if !w.primed() || !w.onCadenceBoundary(s.step) {
			continue
		}

		decimated := s.decimator.Apply(w.orderedSnapshot())

		// Per spec, a viewer only wants the newest second's worth of the
		// decimated series, not the full 5-second window it was computed
		// over.
		keep := s.step / s.decimator.Factor
		if keep <= 0 {
			keep = 1
		}
		if keep > len(decimated) {
			keep = len(decimated)
		}
		recent := decimated[len(decimated)-keep:]

		payload := Payload{
			Channel:   ch.Name,
			Timestamp: smp.Time,
			FS:        s.cfg.SamplingRate,
			Data:      recent,
		}

		s.broadcast(payload)
	}
}

func (s *Server) broadcast(payload Payload) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal payload", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for v := range s.viewers {
		select {
		case v.send <- encoded:
		default:
			// Slow viewer: drop this message rather than block the
			// broadcast path (spec §4.G "a stalled viewer must never
			// slow or stall acquisition").
			logger.Warn("viewer send queue full, dropping message")
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and registers the
// viewer until it disconnects or a write fails.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("viewer upgrade failed", "err", err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, 32)}

	s.mu.Lock()
	s.viewers[v] = struct{}{}
	s.mu.Unlock()

	logger.Info("viewer connected", "remote", conn.RemoteAddr())

	go s.readPump(v)
	s.writePump(v)
}

// readPump discards viewer input but must run so gorilla/websocket
// processes control frames (ping/pong/close) and detects disconnects.
func (s *Server) readPump(v *viewer) {
	defer s.remove(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(v *viewer) {
	defer func() {
		s.remove(v)
		v.conn.Close()
	}()

	for msg := range v.send {
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Info("viewer write failed, dropping", "err", err)
			return
		}
	}
}

func (s *Server) remove(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[v]; ok {
		delete(s.viewers, v)
		close(v.send)
	}
}

// Run starts the HTTP/websocket listener and the DNS-SD announcement,
// blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)

	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		return err
	}

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err == nil {
		if port, convErr := strconv.Atoi(portStr); convErr == nil {
			announce(ctx, s.cfg.StationName, port)
		}
	}

	srv := &http.Server{Handler: mux} //nolint:exhaustruct

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("broadcast server listening", "addr", ln.Addr())

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
