// Package speech implements the short-term voice analyses used for acoustic
// health readings: autocorrelation pitch tracking, cross-correlation
// harmonicity and Burg formant tracking.
//
// All analyses work on a Sound, a mono signal whose sample i sits at time
// (i + 0.5) / SampleRate. Analysis frames are laid out on a grid centred
// within the sound, so the first and last frames are equally far from the
// edges.
package speech

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooShort is returned when a sound cannot hold a single analysis window.
var ErrTooShort = errors.New("sound too short for analysis window")

// Sound is a mono sampled signal.
type Sound struct {
	Samples    []float64
	SampleRate float64
}

// NewSound validates and wraps samples recorded at sampleRate Hz.
func NewSound(samples []float64, sampleRate float64) (*Sound, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v", sampleRate)
	}
	if len(samples) == 0 {
		return nil, errors.New("sound has no samples")
	}
	return &Sound{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration returns the length of the sound in seconds.
func (s *Sound) Duration() float64 {
	return float64(len(s.Samples)) / s.SampleRate
}

func (s *Sound) dx() float64 {
	return 1 / s.SampleRate
}

// leftIndex returns the index of the last sample at or before time t.
func (s *Sound) leftIndex(t float64) int {
	return int(math.Floor((t - 0.5*s.dx()) / s.dx()))
}

// frameGrid lays out analysis frames of windowDuration seconds stepped by
// timeStep, centred within a sound of the given duration. It returns the
// number of frames and the time of the first frame centre.
func frameGrid(duration, windowDuration, timeStep float64) (int, float64, error) {
	if timeStep <= 0 {
		return 0, 0, fmt.Errorf("invalid time step %v", timeStep)
	}
	if windowDuration > duration {
		return 0, 0, fmt.Errorf("%w: need %.4fs, have %.4fs", ErrTooShort, windowDuration, duration)
	}
	n := int(math.Floor((duration-windowDuration)/timeStep)) + 1
	if n < 1 {
		return 0, 0, ErrTooShort
	}
	t1 := 0.5*duration - 0.5*float64(n-1)*timeStep
	return n, t1, nil
}

// segment copies length samples starting at start, zero-filling anything that
// falls outside the sound.
func (s *Sound) segment(start, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		j := start + i
		if j >= 0 && j < len(s.Samples) {
			out[i] = s.Samples[j]
		}
	}
	return out
}
