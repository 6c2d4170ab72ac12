package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/rpi3seismo/stationd/internal/frame"
)

// Framing round trip: for every valid (ch0, ch1, ch2) tuple,
// decode(encode(tuple)) == (tuple, ok=true).
func TestSampleRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := frame.SampleFrame{
			Ch0: rapid.Int32().Draw(t, "ch0"),
			Ch1: rapid.Int32().Draw(t, "ch1"),
			Ch2: rapid.Int32().Draw(t, "ch2"),
		}

		wire := frame.EncodeSample(in)
		assert.Len(t, wire, frame.SampleFrameSize)

		out, err := frame.DecodeSample(wire)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestConfigRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := frame.ConfigFrame{
			SamplingRate: rapid.Uint16().Draw(t, "sps"),
			PGA:          rapid.Byte().Draw(t, "pga"),
			DataRate:     rapid.Byte().Draw(t, "drate"),
		}

		wire := frame.EncodeConfig(in)
		assert.Len(t, wire, frame.ConfigFrameSize)

		out, err := frame.DecodeConfig(wire)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestDecodeSampleBadHeader(t *testing.T) {
	wire := frame.EncodeSample(frame.SampleFrame{Ch0: 1, Ch1: 2, Ch2: 3})
	wire[0] = 0x00

	_, err := frame.DecodeSample(wire)
	assert.ErrorIs(t, err, frame.ErrBadHeader)
}

func TestDecodeSampleBadChecksum(t *testing.T) {
	wire := frame.EncodeSample(frame.SampleFrame{Ch0: 1, Ch1: 2, Ch2: 3})
	wire[14] ^= 0xFF

	_, err := frame.DecodeSample(wire)
	assert.ErrorIs(t, err, frame.ErrBadChecksum)
}

func TestDecodeSampleShortBuffer(t *testing.T) {
	_, err := frame.DecodeSample(make([]byte, 10))
	assert.ErrorIs(t, err, frame.ErrShortBuffer)
}
