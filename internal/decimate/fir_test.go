package decimate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rpi3seismo/stationd/internal/decimate"
)

func sineWave(freqHz, samplingRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / samplingRate)
	}
	return out
}

func rmsAmplitude(x []float64) float64 {
	// Skip the filter's transient edges when measuring steady-state amplitude.
	margin := len(x) / 4
	if margin*2 >= len(x) {
		return 0
	}
	mid := x[margin : len(x)-margin]

	var sumSq float64
	for _, v := range mid {
		sumSq += v * v
	}
	return math.Sqrt(2 * sumSq / float64(len(mid))) // sqrt(2)*RMS = amplitude for a sine
}

func TestPassbandAmplitudePreserved(t *testing.T) {
	const samplingRate = 100.0
	const factor = 4

	d := decimate.NewDecimator(factor)

	in := sineWave(2.0, samplingRate, 2000) // well within the decimated Nyquist (12.5Hz)
	out := d.Apply(in)

	inAmp := rmsAmplitude(in)
	outAmp := rmsAmplitude(out)

	assert.InDelta(t, inAmp, outAmp, 0.01, "passband amplitude should be preserved within 1%%")
}

func TestStopbandAttenuated(t *testing.T) {
	const samplingRate = 100.0
	const factor = 4
	newNyquist := samplingRate / factor / 2 // 12.5Hz

	d := decimate.NewDecimator(factor)

	// A tone comfortably above the new Nyquist should be suppressed.
	in := sineWave(newNyquist*2.5, samplingRate, 4000)
	out := d.Apply(in)

	inAmp := rmsAmplitude(in)
	outAmp := rmsAmplitude(out)

	attenuationDB := 20 * math.Log10(inAmp/math.Max(outAmp, 1e-12))
	assert.GreaterOrEqual(t, attenuationDB, 60.0)
}

func TestDecimatedLengthMatchesFactor(t *testing.T) {
	d := decimate.NewDecimator(4)
	in := make([]float64, 500)
	out := d.Apply(in)
	assert.Equal(t, 125, len(out))
}
