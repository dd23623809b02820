package speech

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// UnvoicedHarmonicity marks harmonicity frames without a periodic component.
// Such frames are skipped by Mean.
const UnvoicedHarmonicity = -200.0

// Harmonicity is a harmonics-to-noise ratio track in dB.
type Harmonicity struct {
	T1     float64
	Dt     float64
	Values []float64
}

// ToHarmonicityCC computes the harmonics-to-noise ratio from the forward
// cross-correlation of each frame with its lagged copy. A frame whose best
// normalised correlation is r gets 10*log10(r/(1-r)) dB.
func (s *Sound) ToHarmonicityCC(timeStep, minimumPitch, silenceThreshold, periodsPerWindow float64) (*Harmonicity, error) {
	if minimumPitch <= 0 || periodsPerWindow <= 0 {
		return nil, fmt.Errorf("invalid harmonicity settings: pitch floor %v, periods %v", minimumPitch, periodsPerWindow)
	}
	dx := s.dx()
	if timeStep <= 0 {
		timeStep = periodsPerWindow / minimumPitch / 4
	}
	ceiling := 0.5 * s.SampleRate
	windowDuration := periodsPerWindow / minimumPitch

	nsampWindow := int(windowDuration / dx)
	half := nsampWindow / 2
	if half < 2 {
		return nil, fmt.Errorf("sample rate %v too low for pitch floor %v", s.SampleRate, minimumPitch)
	}
	minLag := max(2, int(1/(dx*ceiling)))
	maxLag := int(float64(nsampWindow)/periodsPerWindow) + 2

	nFrames, t1, err := frameGrid(s.Duration(), 1/minimumPitch+windowDuration, timeStep)
	if err != nil {
		return nil, fmt.Errorf("harmonicity analysis: %w", err)
	}

	pitch := &Pitch{T1: t1, Dt: timeStep, Ceiling: ceiling, Frames: make([]PitchFrame, nFrames)}
	globalPeak := peakDeviation(s.Samples, stat.Mean(s.Samples, nil))

	for i := range pitch.Frames {
		pf := PitchFrame{Candidates: []PitchCandidate{{}}}
		if globalPeak > 0 {
			t := t1 + float64(i)*timeStep
			start := s.leftIndex(t) + 1 - half
			localMaxLag := min(maxLag, len(s.Samples)-(start+nsampWindow)-1)
			span := s.segment(start, nsampWindow+max(localMaxLag, 0)+1)
			localMean := stat.Mean(span[:nsampWindow], nil)
			for j := range span {
				span[j] -= localMean
			}
			localPeak := peakDeviation(span[:nsampWindow], 0)
			pf.Intensity = math.Min(localPeak/globalPeak, 1)
			if localPeak > 0 && localMaxLag > minLag {
				r := crossCorrelation(span, nsampWindow, localMaxLag)
				pf.Candidates = appendPeaks(pf.Candidates, r, minLag, localMaxLag-1, dx, ceiling, 0, 15)
			}
		}
		pitch.Frames[i] = pf
	}
	pitch.pathFinder(silenceThreshold, 0, 0, 0, 0)

	h := &Harmonicity{T1: t1, Dt: timeStep, Values: make([]float64, nFrames)}
	for i, frame := range pitch.Frames {
		best := frame.Candidates[0]
		switch r := best.Strength; {
		case best.Frequency == 0:
			h.Values[i] = UnvoicedHarmonicity
		case r <= 1e-15:
			h.Values[i] = -150
		case r > 1-1e-15:
			h.Values[i] = 150
		default:
			h.Values[i] = 10 * math.Log10(r/(1-r))
		}
	}
	return h, nil
}

// crossCorrelation returns, for every lag up to maxLag, the correlation of
// the first n samples of x with the n samples starting at that lag,
// normalised by the energies of both segments.
func crossCorrelation(x []float64, n, maxLag int) []float64 {
	r := make([]float64, maxLag+1)
	head := x[:n]
	sumx2 := floats.Dot(head, head)
	if sumx2 == 0 {
		return r
	}
	sumy2 := sumx2
	r[0] = 1
	for lag := 1; lag <= maxLag; lag++ {
		tail := x[lag : lag+n]
		sumy2 += x[lag+n-1]*x[lag+n-1] - x[lag-1]*x[lag-1]
		if sumy2 <= 0 {
			continue
		}
		r[lag] = floats.Dot(head, tail) / math.Sqrt(sumx2*sumy2)
	}
	return r
}

// Mean averages the voiced frames whose centres lie within [tmin, tmax]. When
// tmax <= tmin the whole track is used. The second result is false when no
// voiced frame is in range.
func (h *Harmonicity) Mean(tmin, tmax float64) (float64, bool) {
	var voiced []float64
	for i, v := range h.Values {
		t := h.T1 + float64(i)*h.Dt
		if tmax > tmin && (t < tmin || t > tmax) {
			continue
		}
		if v != UnvoicedHarmonicity {
			voiced = append(voiced, v)
		}
	}
	if len(voiced) == 0 {
		return 0, false
	}
	return stat.Mean(voiced, nil), true
}
