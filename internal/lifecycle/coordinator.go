// Package lifecycle wires every component together into the running
// station process (spec §4.H): it owns the serial link, fans decoded
// samples out to the detector, MiniSEED writer and broadcaster, and
// drains everything cleanly on shutdown.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rpi3seismo/stationd/internal/broadcast"
	"github.com/rpi3seismo/stationd/internal/config"
	"github.com/rpi3seismo/stationd/internal/dispatch"
	"github.com/rpi3seismo/stationd/internal/frame"
	"github.com/rpi3seismo/stationd/internal/gpioline"
	"github.com/rpi3seismo/stationd/internal/ingest"
	"github.com/rpi3seismo/stationd/internal/miniseed"
	"github.com/rpi3seismo/stationd/internal/procpriority"
	"github.com/rpi3seismo/stationd/internal/serial"
	"github.com/rpi3seismo/stationd/internal/stalta"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

var logger = xlog.For("lifecycle")

// Consumer indices into the Dispatcher: fixed, so every run publishes
// in the same order (spec §4.D).
const (
	consumerWriter = iota
	consumerDetector
	consumerBroadcast
	consumerCount
)

const dispatchQueueCapacity = 256

// Coordinator owns every long-lived component and a shutdown flag that
// is set once the run context ends. Worker loops stop on context
// cancellation; the detector loop reports the armed state to the writer
// by calling Writer.NoteArmed directly.
type Coordinator struct {
	cfg config.Config

	shuttingDown atomic.Bool

	link      *serial.Link
	dispatch  *dispatch.Dispatcher
	writer    *miniseed.Writer
	detector  *stalta.Detector
	broadcast *broadcast.Server
}

// New constructs every component from cfg but does not yet open the
// serial link or start any goroutines.
func New(cfg config.Config, de gpioline.DigitalPin) (*Coordinator, error) {
	trigger, err := config.TriggerChannel(cfg)
	if err != nil {
		return nil, err
	}

	device := cfg.SerialDevice
	if device == "" {
		discovered, discErr := serial.Discover()
		if discErr != nil {
			return nil, discErr
		}
		device = discovered
		logger.Info("auto-discovered serial device", "device", device)
	}

	link, err := serial.Open(device, de)
	if err != nil {
		return nil, err
	}

	writerChannels := make([]miniseed.ChannelInfo, len(cfg.Channels))
	broadcastChannels := make([]broadcast.ChannelInfo, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		writerChannels[i] = miniseed.ChannelInfo{Name: ch.Name, ADCChannel: ch.ADCChannel}
		broadcastChannels[i] = broadcast.ChannelInfo{Name: ch.Name, ADCChannel: ch.ADCChannel}
	}

	writer := miniseed.New(miniseed.Config{
		Network:          cfg.Network,
		Station:          cfg.Station,
		SamplingRate:     cfg.SamplingRate,
		DataDir:          cfg.DataDir,
		WriteIntervalSec: cfg.WriteIntervalSec,
		EventWindowSec:   cfg.EventWindowSec,
		Channels:         writerChannels,
	})

	detector := stalta.New(stalta.Config{
		ChannelName:  trigger.Name,
		SamplingRate: cfg.SamplingRate,
		STASeconds:   cfg.STASeconds,
		LTASeconds:   cfg.LTASeconds,
		OnThreshold:  cfg.OnThreshold,
		OffThreshold: cfg.OffThreshold,
	})

	broadcastSrv := broadcast.New(broadcast.Config{
		BindAddr:         cfg.BroadcastBindAddr,
		SamplingRate:     cfg.SamplingRate,
		DecimationFactor: cfg.DecimationFactor,
		Channels:         broadcastChannels,
		StationName:      cfg.Station,
	})

	return &Coordinator{
		cfg:       cfg,
		link:      link,
		dispatch:  dispatch.New(consumerCount, dispatchQueueCapacity),
		writer:    writer,
		detector:  detector,
		broadcast: broadcastSrv,
	}, nil
}

// keepAliveConfig is the configuration frame resent periodically over
// the link as a keep-alive (spec §4.B).
func (c *Coordinator) keepAliveConfig() frame.ConfigFrame {
	return frame.ConfigFrame{
		SamplingRate: uint16(c.cfg.SamplingRate),
		PGA:          c.cfg.ADCPGA,
		DataRate:     c.cfg.ADCDataRateIndex,
	}
}

// Run performs the startup handshake, then drives every worker loop
// until ctx is cancelled or an OS termination signal arrives, draining
// cleanly on the way out.
func (c *Coordinator) Run(ctx context.Context) error {
	procpriority.Raise()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handshakeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.link.Handshake(handshakeCtx, c.keepAliveConfig()); err != nil {
		return err
	}

	parser := ingest.NewParser()

	errCh := make(chan error, 4)

	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		errCh <- c.link.Run(ctx, c.keepAliveConfig(), func(raw []byte) {
			for _, f := range parser.Feed(raw) {
				c.dispatch.Publish(f)
			}
		})
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.runWriterLoop(ctx)
	}()
	go c.runDetectorLoop(ctx)
	go c.runBroadcastLoop(ctx)

	go func() {
		errCh <- c.broadcast.Run(ctx)
	}()

	go func() {
		for err := range errCh {
			if err != nil {
				logger.Error("worker exited with error", "err", err)
			}
		}
	}()

	<-ctx.Done()
	c.shuttingDown.Store(true)

	// The producer must stop publishing before the queues are closed, and
	// the writer loop must stop accumulating before the final flush.
	<-linkDone
	<-writerDone

	logger.Info("shutting down, performing final drain")
	c.writer.Shutdown()
	c.dispatch.Close()

	if err := c.link.Close(); err != nil {
		logger.Error("closing serial link", "err", err)
	}

	return nil
}

func (c *Coordinator) runWriterLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ch := c.dispatch.Channel(consumerWriter)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			c.writer.Accumulate(s)
		case <-ticker.C:
			c.writer.Tick()
		}
	}
}

func (c *Coordinator) runDetectorLoop(ctx context.Context) {
	trigger, err := config.TriggerChannel(c.cfg)
	if err != nil {
		logger.Error("detector loop: no trigger channel", "err", err)
		return
	}

	ch := c.dispatch.Channel(consumerDetector)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			_, armed, ev := c.detector.Process(s.Value(trigger.ADCChannel))
			if ev != nil {
				logger.Info("detector state transition", "channel", ev.ChannelName, "ratio", ev.Ratio, "armed", ev.NewState == stalta.Armed)
			}
			if armed {
				c.writer.NoteArmed()
			}
		}
	}
}

func (c *Coordinator) runBroadcastLoop(ctx context.Context) {
	ch := c.dispatch.Channel(consumerBroadcast)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			c.broadcast.Ingest(s)
		}
	}
}
