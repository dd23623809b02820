package speech

import (
	"fmt"
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// PitchParams controls autocorrelation pitch tracking.
type PitchParams struct {
	TimeStep           float64 // seconds; 0 selects PeriodsPerWindow / Floor / 4
	Floor              float64 // Hz
	Ceiling            float64 // Hz
	MaxCandidates      int
	SilenceThreshold   float64 // fraction of the global peak
	VoicingThreshold   float64 // minimum normalised autocorrelation for a voiced frame
	OctaveCost         float64 // per octave, favours higher candidates
	OctaveJumpCost     float64 // per octave between consecutive frames
	VoicedUnvoicedCost float64
	PeriodsPerWindow   float64
}

// DefaultPitchParams returns the standard settings for speech: a 75-600 Hz
// search range, three periods per window and a 10 ms step.
func DefaultPitchParams() PitchParams {
	return PitchParams{
		Floor:              75,
		Ceiling:            600,
		MaxCandidates:      15,
		SilenceThreshold:   0.03,
		VoicingThreshold:   0.45,
		OctaveCost:         0.01,
		OctaveJumpCost:     0.35,
		VoicedUnvoicedCost: 0.14,
		PeriodsPerWindow:   3,
	}
}

// PitchCandidate is one f0 hypothesis for a frame. A zero Frequency is the
// unvoiced hypothesis.
type PitchCandidate struct {
	Frequency float64
	Strength  float64
}

// PitchFrame holds the candidates of one frame. After path finding the
// winning candidate is Candidates[0].
type PitchFrame struct {
	Intensity  float64 // local peak relative to the global peak, in [0, 1]
	Candidates []PitchCandidate
}

// Frequency returns the selected f0 of the frame, or 0 when unvoiced.
func (f PitchFrame) Frequency() float64 {
	if len(f.Candidates) == 0 {
		return 0
	}
	return f.Candidates[0].Frequency
}

// Pitch is an f0 track on a regular frame grid.
type Pitch struct {
	T1      float64 // centre of the first frame, seconds
	Dt      float64 // frame step, seconds
	Ceiling float64
	Frames  []PitchFrame
}

// Times returns the frame centre times.
func (p *Pitch) Times() []float64 {
	times := make([]float64, len(p.Frames))
	for i := range times {
		times[i] = p.T1 + float64(i)*p.Dt
	}
	return times
}

// Frequencies returns the selected f0 per frame; unvoiced frames are 0.
func (p *Pitch) Frequencies() []float64 {
	f0 := make([]float64, len(p.Frames))
	for i, frame := range p.Frames {
		f0[i] = frame.Frequency()
	}
	return f0
}

// ToPitch tracks f0 with the Hanning-windowed autocorrelation method and a
// Viterbi path through the per-frame candidates.
func (s *Sound) ToPitch(params PitchParams) (*Pitch, error) {
	if params.Floor <= 0 || params.Ceiling <= params.Floor {
		return nil, fmt.Errorf("invalid pitch range %v-%v Hz", params.Floor, params.Ceiling)
	}
	if params.PeriodsPerWindow <= 0 {
		return nil, fmt.Errorf("invalid periods per window %v", params.PeriodsPerWindow)
	}
	if params.MaxCandidates < 2 {
		params.MaxCandidates = 2
	}

	dx := s.dx()
	dt := params.TimeStep
	if dt <= 0 {
		dt = params.PeriodsPerWindow / params.Floor / 4
	}
	ceiling := math.Min(params.Ceiling, 0.5*s.SampleRate)
	windowDuration := params.PeriodsPerWindow / params.Floor

	half := int(windowDuration/dx)/2 - 1
	if half < 2 {
		return nil, fmt.Errorf("sample rate %v too low for pitch floor %v", s.SampleRate, params.Floor)
	}
	nsampWindow := 2 * half
	minLag := max(2, int(1/(dx*ceiling)))
	maxLag := min(int(float64(nsampWindow)/params.PeriodsPerWindow)+2, nsampWindow/2)
	if minLag >= maxLag {
		return nil, fmt.Errorf("no lag range for pitch %v-%v Hz at %v Hz", params.Floor, ceiling, s.SampleRate)
	}

	nFrames, t1, err := frameGrid(s.Duration(), windowDuration, dt)
	if err != nil {
		return nil, fmt.Errorf("pitch analysis: %w", err)
	}

	pitch := &Pitch{T1: t1, Dt: dt, Ceiling: ceiling, Frames: make([]PitchFrame, nFrames)}

	globalPeak := peakDeviation(s.Samples, stat.Mean(s.Samples, nil))
	if globalPeak == 0 {
		for i := range pitch.Frames {
			pitch.Frames[i].Candidates = []PitchCandidate{{}}
		}
		return pitch, nil
	}

	nfft := 1
	for nfft < nsampWindow*3/2 {
		nfft *= 2
	}
	window := hanning(nsampWindow)
	windowR := autocorrelation(window, nfft)

	for i := range pitch.Frames {
		t := t1 + float64(i)*dt
		frame := s.segment(s.leftIndex(t)+1-half, nsampWindow)
		localMean := stat.Mean(frame, nil)
		localPeak := peakDeviation(frame, localMean)

		pf := PitchFrame{
			Intensity:  math.Min(localPeak/globalPeak, 1),
			Candidates: []PitchCandidate{{}},
		}
		if localPeak > 0 {
			for j := range frame {
				frame[j] = (frame[j] - localMean) * window[j]
			}
			r := autocorrelation(frame, nfft)
			for lag := 0; lag <= maxLag+1; lag++ {
				r[lag] /= windowR[lag]
			}
			pf.Candidates = appendPeaks(pf.Candidates, r, minLag, maxLag, dx, ceiling,
				0.5*params.VoicingThreshold, params.MaxCandidates)
		}
		pitch.Frames[i] = pf
	}

	pitch.pathFinder(params.SilenceThreshold, params.VoicingThreshold, params.OctaveCost,
		params.OctaveJumpCost, params.VoicedUnvoicedCost)
	return pitch, nil
}

// appendPeaks adds the local maxima of the normalised correlation r between
// minLag and maxLag as voiced candidates, refined by parabolic interpolation.
// When more than maxCandidates are found the weakest are dropped.
func appendPeaks(cands []PitchCandidate, r []float64, minLag, maxLag int, dx, ceiling, threshold float64, maxCandidates int) []PitchCandidate {
	for i := max(minLag, 1); i <= maxLag && i+1 < len(r); i++ {
		if r[i] <= threshold || r[i] <= r[i-1] || r[i] < r[i+1] {
			continue
		}
		dr := 0.5 * (r[i+1] - r[i-1])
		d2r := 2*r[i] - r[i-1] - r[i+1]
		lag := float64(i) + dr/d2r
		strength := r[i] + 0.5*dr*dr/d2r
		if strength > 1 {
			strength = 1 / strength
		}
		freq := 1 / (dx * lag)
		if freq > ceiling {
			continue
		}
		cands = append(cands, PitchCandidate{Frequency: freq, Strength: strength})
	}
	if len(cands) > maxCandidates {
		voiced := cands[1:]
		sort.SliceStable(voiced, func(a, b int) bool { return voiced[a].Strength > voiced[b].Strength })
		cands = cands[:maxCandidates]
	}
	return cands
}

// pathFinder chooses one candidate per frame by maximising summed candidate
// strength minus octave-jump and voicing-transition costs, and moves each
// winner to Candidates[0].
func (p *Pitch) pathFinder(silenceThreshold, voicingThreshold, octaveCost, octaveJumpCost, voicedUnvoicedCost float64) {
	n := len(p.Frames)
	if n == 0 {
		return
	}
	correction := 0.01 / p.Dt
	octaveJumpCost *= correction
	voicedUnvoicedCost *= correction

	voiceless := func(c PitchCandidate) bool {
		return c.Frequency <= 0 || c.Frequency > p.Ceiling
	}

	delta := make([][]float64, n)
	psi := make([][]int, n)
	for i, frame := range p.Frames {
		unvoiced := 0.0
		if silenceThreshold > 0 {
			unvoiced = 2 - frame.Intensity/(silenceThreshold/(1+voicingThreshold))
		}
		unvoiced = voicingThreshold + math.Max(0, unvoiced)

		delta[i] = make([]float64, len(frame.Candidates))
		psi[i] = make([]int, len(frame.Candidates))
		for j, c := range frame.Candidates {
			if voiceless(c) {
				delta[i][j] = unvoiced
			} else {
				delta[i][j] = c.Strength - octaveCost*math.Log2(p.Ceiling/c.Frequency)
			}
		}
	}

	for i := 1; i < n; i++ {
		prev := p.Frames[i-1].Candidates
		for j, c2 := range p.Frames[i].Candidates {
			best, bestPrev := math.Inf(-1), 0
			for k, c1 := range prev {
				var cost float64
				switch {
				case voiceless(c2) && voiceless(c1):
					cost = 0
				case voiceless(c2) || voiceless(c1):
					cost = voicedUnvoicedCost
				default:
					cost = octaveJumpCost * math.Abs(math.Log2(c1.Frequency/c2.Frequency))
				}
				if v := delta[i-1][k] - cost; v > best {
					best, bestPrev = v, k
				}
			}
			delta[i][j] += best
			psi[i][j] = bestPrev
		}
	}

	place := 0
	for j, v := range delta[n-1] {
		if v > delta[n-1][place] {
			place = j
		}
	}
	for i := n - 1; i >= 0; i-- {
		cands := p.Frames[i].Candidates
		next := psi[i][place]
		cands[0], cands[place] = cands[place], cands[0]
		if voiceless(cands[0]) {
			cands[0].Frequency = 0
		}
		place = next
	}
}

// autocorrelation returns the circular autocorrelation of x zero-padded to
// nfft samples, normalised so that lag 0 equals 1.
func autocorrelation(x []float64, nfft int) []float64 {
	buf := make([]float64, nfft)
	copy(buf, x)
	spec := fft.FFTReal(buf)
	for k, c := range spec {
		spec[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	ac := fft.IFFT(spec)
	r := make([]float64, nfft)
	r0 := real(ac[0])
	if r0 == 0 {
		return r
	}
	for i := range r {
		r[i] = real(ac[i]) / r0
	}
	return r
}

func hanning(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i+1)/float64(n+1))
	}
	return w
}

func peakDeviation(x []float64, mean float64) float64 {
	peak := 0.0
	for _, v := range x {
		if d := math.Abs(v - mean); d > peak {
			peak = d
		}
	}
	return peak
}
