package speech

import (
	"fmt"
	"math"
)

// FormantPoint is one resonance of the vocal tract.
type FormantPoint struct {
	Frequency float64 // Hz
	Bandwidth float64 // Hz
}

// FormantFrame lists the formants found in one frame, lowest first.
type FormantFrame struct {
	Intensity float64
	Formants  []FormantPoint
}

// Formant is a formant track on a regular frame grid.
type Formant struct {
	T1       float64
	Dt       float64
	Duration float64
	Frames   []FormantFrame
}

// ToFormantBurg tracks up to numFormants formants below maxFrequency. The
// sound is resampled to twice maxFrequency, pre-emphasised from
// preEmphasisFrom Hz, cut into Gaussian windows of effective length
// windowLength and fitted with a Burg all-pole model of order 2*numFormants.
// A timeStep of 0 selects windowLength / 4.
func (s *Sound) ToFormantBurg(timeStep float64, numFormants int, maxFrequency, windowLength, preEmphasisFrom float64) (*Formant, error) {
	const safetyMargin = 50.0

	if numFormants < 1 {
		return nil, fmt.Errorf("invalid number of formants %d", numFormants)
	}
	if maxFrequency <= 0 || windowLength <= 0 {
		return nil, fmt.Errorf("invalid formant settings: ceiling %v Hz, window %vs", maxFrequency, windowLength)
	}
	if timeStep <= 0 {
		timeStep = windowLength / 4
	}

	sound, err := s.Resample(2 * maxFrequency)
	if err != nil {
		return nil, fmt.Errorf("resample for formants: %w", err)
	}
	sound.preEmphasize(preEmphasisFrom)

	order := 2 * numFormants
	physicalWindow := 2 * windowLength
	nsampWindow := int(math.Floor(physicalWindow / sound.dx()))
	half := nsampWindow / 2
	if nsampWindow < order+1 {
		return nil, fmt.Errorf("formant window of %d samples too short for order %d", nsampWindow, order)
	}

	nFrames, t1, err := frameGrid(sound.Duration(), physicalWindow, timeStep)
	if err != nil {
		return nil, fmt.Errorf("formant analysis: %w", err)
	}

	window := gaussian(nsampWindow)
	track := &Formant{T1: t1, Dt: timeStep, Duration: s.Duration(), Frames: make([]FormantFrame, nFrames)}

	for i := range track.Frames {
		t := t1 + float64(i)*timeStep
		frame := sound.segment(sound.leftIndex(t)+1-half, nsampWindow)

		peak := 0.0
		for _, v := range frame {
			peak = math.Max(peak, v*v)
		}
		track.Frames[i].Intensity = peak
		if peak == 0 {
			continue
		}
		for j := range frame {
			frame[j] *= window[j]
		}
		coefs, _ := burg(frame, order)
		track.Frames[i].Formants = polesToFormants(predictorRoots(coefs), sound.SampleRate, safetyMargin)
		if len(track.Frames[i].Formants) > numFormants {
			track.Frames[i].Formants = track.Frames[i].Formants[:numFormants]
		}
	}
	return track, nil
}

// ValueAtTime returns the frequency of formant n (1-based) at time t,
// linearly interpolated between the two nearest frames. Past the first or last
// frame the nearest value is used. The second result is false when t is
// outside the sound or either neighbouring frame has no such formant.
func (f *Formant) ValueAtTime(n int, t float64) (float64, bool) {
	if n < 1 || len(f.Frames) == 0 || t < 0 || t > f.Duration {
		return 0, false
	}
	index := (t - f.T1) / f.Dt
	left := int(math.Floor(index))
	phase := index - float64(left)
	near, far := left, left+1
	if phase >= 0.5 {
		near, far = left+1, left
		phase = 1 - phase
	}

	nearValue, ok := f.frameValue(near, n)
	if !ok {
		return 0, false
	}
	if far < 0 || far >= len(f.Frames) {
		return nearValue, true
	}
	farValue, ok := f.frameValue(far, n)
	if !ok {
		return 0, false
	}
	return nearValue + phase*(farValue-nearValue), true
}

func (f *Formant) frameValue(frame, n int) (float64, bool) {
	if frame < 0 || frame >= len(f.Frames) {
		return 0, false
	}
	formants := f.Frames[frame].Formants
	if n > len(formants) || formants[n-1].Frequency <= 0 {
		return 0, false
	}
	return formants[n-1].Frequency, true
}

// preEmphasize applies a first-order high-pass from the given frequency in
// place, working backwards so each sample sees its unmodified predecessor.
func (s *Sound) preEmphasize(from float64) {
	if from <= 0 || from >= 0.5*s.SampleRate {
		return
	}
	alpha := math.Exp(-2 * math.Pi * from * s.dx())
	for i := len(s.Samples) - 1; i >= 1; i-- {
		s.Samples[i] -= alpha * s.Samples[i-1]
	}
}

// gaussian returns a Gaussian window that reaches zero at both ends.
func gaussian(n int) []float64 {
	w := make([]float64, n)
	imid := 0.5 * float64(n+1)
	edge := math.Exp(-12)
	denom := float64(n+1) * float64(n+1)
	for i := range w {
		d := float64(i+1) - imid
		w[i] = (math.Exp(-48*d*d/denom) - edge) / (1 - edge)
	}
	return w
}
