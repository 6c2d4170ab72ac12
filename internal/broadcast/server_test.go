package broadcast_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rpi3seismo/stationd/internal/broadcast"
	"github.com/rpi3seismo/stationd/internal/sample"
)

// testServer uses the spec's own worked example (100Hz, decimation
// factor 4) so expected payload lengths can be checked against the
// documented numbers directly.
func testServer() *broadcast.Server {
	return broadcast.New(broadcast.Config{
		BindAddr:         "127.0.0.1:0",
		SamplingRate:     100,
		DecimationFactor: 4,
		Channels: []broadcast.ChannelInfo{
			{Name: "EHZ", ADCChannel: 0},
		},
		StationName: "TEST",
	})
}

func feedSamples(s *broadcast.Server, n int) {
	base := time.Unix(0, 0)
	for i := 0; i < n; i++ {
		s.Ingest(sample.Timestamped{
			Time: base.Add(time.Duration(i) * 10 * time.Millisecond),
			Ch0:  int32(i),
		})
	}
}

func TestViewerReceivesPayloadOnCadenceBoundary(t *testing.T) {
	s := testServer()

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a moment to register the viewer before we start
	// feeding samples, since registration happens on a separate goroutine.
	time.Sleep(20 * time.Millisecond)

	// The window (5s at 100Hz = 500 samples) must fill before the first
	// cadence boundary produces a broadcast.
	feedSamples(s, 500)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload broadcast.Payload
	require.NoError(t, json.Unmarshal(msg, &payload))
	require.Equal(t, "EHZ", payload.Channel)
	require.Equal(t, 100, payload.FS)

	// spec §8: "each data array has length 25" at sampling_rate=100,
	// decimation_factor=4 — the newest second's worth of the decimated
	// series, not the full decimated 5-second window (125 samples).
	require.Len(t, payload.Data, 25)
}

func TestIngestDoesNotBlockWithoutViewers(t *testing.T) {
	s := testServer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		feedSamples(s, 500)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Ingest blocked with no connected viewers")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	s := broadcast.New(broadcast.Config{
		BindAddr:         "127.0.0.1:0",
		SamplingRate:     10,
		DecimationFactor: 2,
		Channels:         []broadcast.ChannelInfo{{Name: "EHZ", ADCChannel: 0}},
		StationName:      "TEST",
	})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
