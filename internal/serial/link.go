// Package serial drives the RS-485 half-duplex link to the
// acquisition MCU (spec §4.B): 250000 baud 8-N-1, a 100ms read
// timeout, and a driver-enable GPIO line asserted only for the
// duration of each write, mirroring the teacher's serial_port.go
// wrapper around pkg/term.
package serial

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/term"

	"github.com/rpi3seismo/stationd/internal/frame"
	"github.com/rpi3seismo/stationd/internal/gpioline"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

var logger = xlog.For("serial")

const (
	baudRate       = 250000
	readTimeout    = 100 * time.Millisecond
	keepAliveEvery = 500 * time.Millisecond

	// handshakeRebootSleep gives the MCU time to finish rebooting before
	// the host starts talking to it.
	handshakeRebootSleep = 2 * time.Second

	// handshakeListenWindow is how long the host waits for the MCU to
	// echo the configuration frame back after it is sent.
	handshakeListenWindow = 10 * time.Second
)

// HandshakeFailedError reports that the startup handshake did not
// complete: either the MCU never echoed the configuration frame within
// the listen window, or it echoed something other than what was sent
// (spec §7 "handshake-failed").
type HandshakeFailedError struct {
	Reason string
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("serial: handshake failed: %s", e.Reason)
}

// Link owns the open serial port and driver-enable line, and provides
// the handshake and steady-state read/dispatch loop.
type Link struct {
	port *term.Term
	de   gpioline.DigitalPin

	device string
}

// Open opens device at the fixed link parameters and sets the
// driver-enable line low (receive mode).
func Open(device string, de gpioline.DigitalPin) (*Link, error) {
	port, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serial: opening %s: %w", device, err)
	}

	if err := port.SetSpeed(baudRate); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: setting speed on %s: %w", device, err)
	}

	if err := port.SetTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: setting read timeout on %s: %w", device, err)
	}

	if err := de.Deassert(); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: deasserting driver-enable: %w", err)
	}

	return &Link{port: port, de: de, device: device}, nil
}

// Close releases the serial port and the driver-enable line.
func (l *Link) Close() error {
	deErr := l.de.Close()
	portErr := l.port.Close()
	if portErr != nil {
		return portErr
	}
	return deErr
}

// write asserts the driver-enable line for the duration of the write
// only, per spec §4.B, so the bus reverts to listen mode immediately
// after.
func (l *Link) write(p []byte) error {
	if err := l.de.Assert(); err != nil {
		return fmt.Errorf("serial: asserting driver-enable: %w", err)
	}
	defer l.de.Deassert()

	n, err := l.port.Write(p)
	if err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("serial: short write (%d of %d bytes)", n, len(p))
	}
	return nil
}

// Handshake performs the startup handshake described in spec §4.B: sleep
// ~2s for the MCU's reboot window, transmit the configuration frame,
// then listen up to 10s for the MCU to echo the same bytes back,
// resynchronizing on the configuration frame's two-byte magic as bytes
// arrive. A timeout, or an echo that doesn't match what was sent, is a
// fatal handshake-failed error.
func (l *Link) Handshake(ctx context.Context, cfg frame.ConfigFrame) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(handshakeRebootSleep):
	}

	encoded := frame.EncodeConfig(cfg)
	if err := l.write(encoded); err != nil {
		return fmt.Errorf("serial: sending handshake config: %w", err)
	}

	deadline := time.Now().Add(handshakeListenWindow)
	var buf []byte
	readBuf := make([]byte, 32)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := l.port.Read(readBuf)
		if err != nil {
			continue // read timeout: keep polling until the deadline
		}
		if n == 0 {
			continue
		}
		buf = append(buf, readBuf[:n]...)

		// Two-byte magic resynchronization: discard any leading bytes
		// that aren't the start of a configuration frame.
		for len(buf) >= 2 && !(buf[0] == frame.ConfigMagic1 && buf[1] == frame.ConfigMagic2) {
			buf = buf[1:]
		}

		if len(buf) < frame.ConfigFrameSize {
			continue
		}

		echoed := buf[:frame.ConfigFrameSize]
		if !bytes.Equal(echoed, encoded) {
			return &HandshakeFailedError{Reason: "MCU echoed a configuration frame that did not match what was sent"}
		}

		logger.Info("MCU echoed handshake configuration", "device", l.device)
		return nil
	}

	return &HandshakeFailedError{Reason: fmt.Sprintf("MCU did not echo the configuration frame within %s", handshakeListenWindow)}
}

// Run reads from the port until ctx is cancelled, feeding raw bytes to
// onBytes, and sends a keep-alive config frame every 500ms so the MCU
// can detect a dead host link (spec §4.B steady state).
func (l *Link) Run(ctx context.Context, keepAlive frame.ConfigFrame, onBytes func([]byte)) error {
	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	buf := make([]byte, 256)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.write(frame.EncodeConfig(keepAlive)); err != nil {
				logger.Error("keep-alive write failed", "err", err)
			}
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			continue // read timeout is the normal idle case
		}
		if n > 0 {
			onBytes(buf[:n])
		}
	}
}
