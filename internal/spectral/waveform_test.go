package spectral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyRMS(t *testing.T) {
	e, err := NewEnergy(2048, 512)
	require.NoError(t, err)

	t.Run("frame count", func(t *testing.T) {
		for _, n := range []int{1, 511, 512, 513, 22050, 48000} {
			rms, err := e.RMS(make([]float64, n))
			require.NoError(t, err)
			assert.Len(t, rms, 1+n/512, "n=%d", n)
		}
	})

	t.Run("constant signal", func(t *testing.T) {
		signal := make([]float64, 16000)
		for i := range signal {
			signal[i] = 0.25
		}
		rms, err := e.RMS(signal)
		require.NoError(t, err)

		// interior frames see no padding
		for i := 2; i < len(rms)-4; i++ {
			assert.InDelta(t, 0.25, rms[i], 1e-12, "frame %d", i)
		}
		// the first frame is half padding
		assert.InDelta(t, 0.25*0.7071067811865476, rms[0], 1e-9)
	})

	t.Run("empty signal", func(t *testing.T) {
		_, err := e.RMS(nil)
		assert.ErrorIs(t, err, ErrNoFrames)
	})
}

func TestNewEnergyRejectsInvalidSizes(t *testing.T) {
	_, err := NewEnergy(0, 512)
	assert.Error(t, err)
	_, err = NewEnergy(2048, 0)
	assert.Error(t, err)
}

func TestFrameTimes(t *testing.T) {
	e, err := NewEnergy(2048, 512)
	require.NoError(t, err)

	times := e.FrameTimes(3, 16000)
	assert.Equal(t, []float64{0, 0.032, 0.064}, times)
}

func TestNearestIndex(t *testing.T) {
	times := []float64{0, 0.1, 0.2, 0.3}

	tests := []struct {
		name string
		t    float64
		want int
	}{
		{name: "before first", t: -1, want: 0},
		{name: "exact", t: 0.2, want: 2},
		{name: "closer to left", t: 0.12, want: 1},
		{name: "closer to right", t: 0.18, want: 2},
		{name: "tie goes low", t: 0.25, want: 2},
		{name: "after last", t: 5, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearestIndex(times, tt.t))
		})
	}

	assert.Equal(t, -1, NearestIndex(nil, 1))
}
