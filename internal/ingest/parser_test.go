package ingest_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/rpi3seismo/stationd/internal/frame"
	"github.com/rpi3seismo/stationd/internal/ingest"
)

// Resync: [garbage of length k] ++ [valid frame] ++ [garbage] yields
// exactly one emission equal to valid_frame, for any k in [0, 1024].
func TestResync(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(0, 1024).Draw(t, "k")
		garbageLen := rapid.IntRange(0, 200).Draw(t, "garbageLen")

		rng := rand.New(rand.NewSource(int64(k)*7919 + int64(garbageLen)))

		garbage := make([]byte, k)
		rng.Read(garbage)
		// Make sure we never accidentally embed the real magic sequence
		// followed by a valid checksum in the prefix garbage.
		for i := range garbage {
			if garbage[i] == frame.SampleMagic1 {
				garbage[i]++
			}
		}

		valid := frame.SampleFrame{Ch0: 111, Ch1: -222, Ch2: 333}
		wire := frame.EncodeSample(valid)

		trailing := make([]byte, garbageLen)
		rng.Read(trailing)
		for i := range trailing {
			if trailing[i] == frame.SampleMagic1 {
				trailing[i]++
			}
		}

		stream := append(append(append([]byte{}, garbage...), wire...), trailing...)

		p := ingest.NewParser()
		got := p.Feed(stream)

		assert.Len(t, got, 1)
		if len(got) == 1 {
			assert.Equal(t, valid, got[0])
		}
	})
}

// A corrupted frame followed immediately by a valid frame yields exactly
// one emission - the valid one - within at most 15 extra bytes of input.
func TestChecksumRejectionIsSurgical(t *testing.T) {
	corrupt := frame.EncodeSample(frame.SampleFrame{Ch0: 1, Ch1: 2, Ch2: 3})
	corrupt[14] ^= 0xFF // break the checksum only

	valid := frame.SampleFrame{Ch0: 9, Ch1: 8, Ch2: 7}
	wire := frame.EncodeSample(valid)

	stream := append(append([]byte{}, corrupt...), wire...)

	p := ingest.NewParser()
	got := p.Feed(stream)

	assert.Len(t, got, 1)
	assert.Equal(t, valid, got[0])
	assert.LessOrEqual(t, int(p.DroppedBytes()), frame.SampleFrameSize)
}

func TestFeedNeverBlocksOnPartialFrame(t *testing.T) {
	p := ingest.NewParser()
	got := p.Feed([]byte{frame.SampleMagic1, frame.SampleMagic2, 1, 2, 3})
	assert.Empty(t, got)
	assert.Equal(t, 5, p.Pending())
}

func TestFeedAcrossMultipleCalls(t *testing.T) {
	valid := frame.SampleFrame{Ch0: 42, Ch1: -1, Ch2: 1000}
	wire := frame.EncodeSample(valid)

	p := ingest.NewParser()
	assert.Empty(t, p.Feed(wire[:7]))
	got := p.Feed(wire[7:])
	assert.Len(t, got, 1)
	assert.Equal(t, valid, got[0])
}
