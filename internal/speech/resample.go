package speech

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// sincDepth is the number of neighbours on each side used by the
// interpolating sinc.
const sincDepth = 50

// Resample returns a copy of the sound at newRate Hz covering the same time
// span. Downsampling first removes everything above the new Nyquist
// frequency in the frequency domain.
func (s *Sound) Resample(newRate float64) (*Sound, error) {
	if newRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v", newRate)
	}
	if math.Abs(newRate/s.SampleRate-1) < 1e-12 {
		out := make([]float64, len(s.Samples))
		copy(out, s.Samples)
		return &Sound{Samples: out, SampleRate: s.SampleRate}, nil
	}

	src := s.Samples
	factor := newRate / s.SampleRate
	if factor < 1 {
		src = lowPass(src, factor)
	}

	duration := s.Duration()
	n := int(math.Round(duration * newRate))
	if n < 1 {
		return nil, fmt.Errorf("%w: %d samples at %v Hz", ErrTooShort, len(s.Samples), newRate)
	}
	// first sample time of the new grid, centred within the old span
	x1 := 0.5 * (duration - float64(n-1)/newRate)
	oldX1 := 0.5 * s.dx()

	out := make([]float64, n)
	for j := range out {
		t := x1 + float64(j)/newRate
		out[j] = interpolateSinc(src, (t-oldX1)*s.SampleRate, sincDepth)
	}
	return &Sound{Samples: out, SampleRate: newRate}, nil
}

// lowPass zeroes the spectrum above factor times the Nyquist frequency. The
// signal is zero padded so that the circular transform does not wrap one end
// into the other.
func lowPass(x []float64, factor float64) []float64 {
	const antiTurnAround = 1000
	nfft := 1
	for nfft < len(x)+2*antiTurnAround {
		nfft *= 2
	}
	buf := make([]float64, nfft)
	copy(buf[antiTurnAround:], x)

	spec := fft.FFTReal(buf)
	cut := int(math.Floor(factor * float64(nfft) / 2))
	for k := cut; k <= nfft-cut; k++ {
		if k >= 0 && k < nfft {
			spec[k] = 0
		}
	}
	filtered := fft.IFFT(spec)

	out := make([]float64, len(x))
	for i := range out {
		out[i] = real(filtered[i+antiTurnAround])
	}
	return out
}

// interpolateSinc evaluates y at fractional index x with a Hann-windowed sinc
// of the given depth. Samples outside y count as zero.
func interpolateSinc(y []float64, x float64, depth int) float64 {
	left := int(math.Floor(x))
	if float64(left) == x && left >= 0 && left < len(y) {
		return y[left]
	}
	sum := 0.0
	for k := left - depth + 1; k <= left+depth; k++ {
		if k < 0 || k >= len(y) {
			continue
		}
		d := x - float64(k)
		arg := math.Pi * d
		w := 0.5 + 0.5*math.Cos(arg/(float64(depth)+0.5))
		sum += y[k] * math.Sin(arg) / arg * w
	}
	return sum
}
