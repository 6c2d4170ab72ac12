// Package decimate implements the anti-alias low-pass filter and
// integer-factor downsampling used by the live broadcaster, ported in
// spirit from the windowed-sinc filter design the teacher's dsp.go uses
// to build its demodulator filters (Blackman window, unity DC gain).
package decimate

import "math"

// LowPass builds a normalized low-pass FIR kernel with cutoff expressed
// as a fraction of the sampling frequency (e.g. 0.5/factor for a
// decimate-by-factor anti-alias filter at the new Nyquist), windowed
// with a Blackman window (per the teacher's dsp.go window shapes) and
// normalized for unity gain at DC. Blackman trades a wider transition
// band for deeper sidelobe suppression, which is what the spec's >=60dB
// stopband contract needs.
func LowPass(cutoff float64, taps int) []float64 {
	if taps < 3 {
		taps = 3
	}

	kernel := make([]float64, taps)
	center := 0.5 * float64(taps-1)

	for j := 0; j < taps; j++ {
		x := float64(j) - center

		var sinc float64
		if x == 0 {
			sinc = 2 * cutoff
		} else {
			sinc = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}

		theta := (float64(j) * 2 * math.Pi) / float64(taps-1)
		blackman := 0.42659 - 0.49656*math.Cos(theta) + 0.076849*math.Cos(2*theta)
		kernel[j] = sinc * blackman
	}

	var sum float64
	for _, v := range kernel {
		sum += v
	}
	if sum != 0 {
		for i := range kernel {
			kernel[i] /= sum
		}
	}

	return kernel
}

// DefaultTaps is a reasonable default filter length for the broadcaster's
// integer decimation factors (4, 5, 10, ...): long enough for >=60dB
// stopband attenuation, short enough to keep the 5s window's transient
// cost small.
const DefaultTaps = 129

// Decimator applies a low-pass FIR then strides by Factor.
type Decimator struct {
	Factor int
	kernel []float64
}

// NewDecimator builds a Decimator for the given integer downsample
// factor, with a low-pass cutoff at the new Nyquist frequency
// (0.5/Factor of the original sampling rate).
func NewDecimator(factor int) *Decimator {
	if factor < 1 {
		factor = 1
	}
	return &Decimator{
		Factor: factor,
		kernel: LowPass(0.5/float64(factor), DefaultTaps),
	}
}

// Apply filters in and returns every Factor-th filtered sample, using
// "same"-length convolution (zero-padded at the edges) so the output
// aligns 1:1 with a decimated time axis of len(in)/Factor samples.
func (d *Decimator) Apply(in []float64) []float64 {
	if d.Factor <= 1 {
		out := make([]float64, len(in))
		copy(out, in)
		return out
	}

	filtered := convolveSame(in, d.kernel)

	out := make([]float64, 0, len(filtered)/d.Factor+1)
	for i := 0; i < len(filtered); i += d.Factor {
		out = append(out, filtered[i])
	}
	return out
}

// convolveSame performs a same-length (zero-padded) convolution of in
// with kernel.
func convolveSame(in []float64, kernel []float64) []float64 {
	n := len(in)
	k := len(kernel)
	out := make([]float64, n)
	half := k / 2

	for i := 0; i < n; i++ {
		var acc float64
		for j := 0; j < k; j++ {
			idx := i - half + j
			if idx < 0 || idx >= n {
				continue
			}
			acc += in[idx] * kernel[j]
		}
		out[i] = acc
	}

	return out
}
