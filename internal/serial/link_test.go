package serial_test

import (
	"context"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"

	"github.com/rpi3seismo/stationd/internal/frame"
	"github.com/rpi3seismo/stationd/internal/gpioline"
	"github.com/rpi3seismo/stationd/internal/serial"
)

func TestHandshakeSucceedsWhenMCUEchoesExactFrame(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	de := gpioline.NewMockPin()
	link, err := serial.Open(pts.Name(), de)
	require.NoError(t, err)
	defer link.Close()

	cfg := frame.ConfigFrame{SamplingRate: 100}

	go func() {
		buf := make([]byte, frame.ConfigFrameSize)
		ptmx.Read(buf) // drain the outbound config frame
		ptmx.Write(frame.EncodeConfig(cfg))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = link.Handshake(ctx, cfg)
	require.NoError(t, err)
}

func TestHandshakeFailsWhenEchoMismatches(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	de := gpioline.NewMockPin()
	link, err := serial.Open(pts.Name(), de)
	require.NoError(t, err)
	defer link.Close()

	sent := frame.ConfigFrame{SamplingRate: 100}
	mismatched := frame.EncodeConfig(frame.ConfigFrame{SamplingRate: 50})

	go func() {
		buf := make([]byte, frame.ConfigFrameSize)
		ptmx.Read(buf) // drain the outbound config frame
		ptmx.Write(mismatched)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = link.Handshake(ctx, sent)
	require.Error(t, err)

	var hsErr *serial.HandshakeFailedError
	require.ErrorAs(t, err, &hsErr)
}

func TestHandshakeFailsWhenMCUSilent(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	de := gpioline.NewMockPin()
	link, err := serial.Open(pts.Name(), de)
	require.NoError(t, err)
	defer link.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 14*time.Second)
	defer cancel()

	err = link.Handshake(ctx, frame.ConfigFrame{SamplingRate: 100})
	require.Error(t, err)

	var hsErr *serial.HandshakeFailedError
	require.ErrorAs(t, err, &hsErr)
}

func TestHandshakeResyncsPastLeadingNoise(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	de := gpioline.NewMockPin()
	link, err := serial.Open(pts.Name(), de)
	require.NoError(t, err)
	defer link.Close()

	cfg := frame.ConfigFrame{SamplingRate: 100}

	go func() {
		buf := make([]byte, frame.ConfigFrameSize)
		ptmx.Read(buf) // drain the outbound config frame

		// Leading noise bytes, including one that happens to match the
		// magic's first byte alone, must be discarded before the real
		// echo resynchronizes.
		ptmx.Write([]byte{0x00, frame.ConfigMagic1, 0x00})
		ptmx.Write(frame.EncodeConfig(cfg))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = link.Handshake(ctx, cfg)
	require.NoError(t, err)
}

func TestWriteLeavesDriverEnableDeasserted(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	de := gpioline.NewMockPin()
	link, err := serial.Open(pts.Name(), de)
	require.NoError(t, err)
	defer link.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, frame.ConfigFrameSize)
		ptmx.Read(buf)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = link.Handshake(ctx, frame.ConfigFrame{SamplingRate: 100})

	<-done
	require.False(t, de.Asserted, "driver-enable line should be deasserted once the write completes")
}
