// Package spectral computes frame-based energy features on raw waveforms.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrNoFrames is returned when an analysis produces no frames.
var ErrNoFrames = errors.New("no analysis frames")

// Waveform is a mono signal at its native sample rate.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Energy computes short-time RMS energy over centred frames, matching the
// usual center=True convention: the signal is padded with frameSize/2 zeros
// on both sides so frame i is centred on sample i*hopSize.
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new RMS calculator.
func NewEnergy(frameSize, hopSize int) (*Energy, error) {
	if frameSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d or hop %d", frameSize, hopSize)
	}
	return &Energy{frameSize: frameSize, hopSize: hopSize}, nil
}

// RMS returns one value per frame; there are 1 + len(signal)/hopSize frames.
func (e *Energy) RMS(signal []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrNoFrames
	}
	pad := e.frameSize / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)

	numFrames := 1 + (len(padded)-e.frameSize)/e.hopSize
	if numFrames < 1 {
		return nil, ErrNoFrames
	}
	rms := make([]float64, numFrames)
	for i := range numFrames {
		frame := padded[i*e.hopSize : i*e.hopSize+e.frameSize]
		rms[i] = math.Sqrt(floats.Dot(frame, frame) / float64(e.frameSize))
	}
	return rms, nil
}

// FrameTimes returns the time in seconds of each of n frames spaced hopSize
// samples apart.
func (e *Energy) FrameTimes(n, sampleRate int) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i*e.hopSize) / float64(sampleRate)
	}
	return times
}

// NearestIndex returns the index of the timestamp closest to t in the
// ascending slice times. Ties go to the lower index. It returns -1 for an
// empty slice.
func NearestIndex(times []float64, t float64) int {
	if len(times) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(times, t)
	switch {
	case i == 0:
		return 0
	case i == len(times):
		return len(times) - 1
	}
	if t-times[i-1] <= times[i]-t {
		return i - 1
	}
	return i
}
