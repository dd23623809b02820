// Package features turns a recording into an AcousticReading: f0 statistics,
// jitter, shimmer, harmonics-to-noise ratio and formants.
package features

import (
	"context"
	"fmt"
	"math"

	"github.com/RMahshie/echohealth/internal/spectral"
	"github.com/RMahshie/echohealth/internal/speech"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Config holds the analysis settings.
type Config struct {
	Pitch speech.PitchParams

	HNRTimeStep         float64
	HNRMinPitch         float64
	HNRSilenceThreshold float64
	HNRPeriodsPerWindow float64

	FormantTimeStep float64 // 0 selects a quarter of the window length
	NumFormants     int
	MaxFormant      float64
	FormantWindow   float64
	PreEmphasisFrom float64

	RMSFrameLength int
	RMSHopLength   int
}

// DefaultConfig returns the standard speech settings.
func DefaultConfig() Config {
	return Config{
		Pitch: speech.DefaultPitchParams(),

		HNRTimeStep:         0.01,
		HNRMinPitch:         75,
		HNRSilenceThreshold: 0.1,
		HNRPeriodsPerWindow: 1.0,

		NumFormants:     5,
		MaxFormant:      5500,
		FormantWindow:   0.025,
		PreEmphasisFrom: 50,

		RMSFrameLength: 2048,
		RMSHopLength:   512,
	}
}

// Loader decodes a recording into both analysis representations.
type Loader interface {
	LoadSound(ctx context.Context, path string) (*speech.Sound, error)
	LoadWaveform(ctx context.Context, path string) (*spectral.Waveform, error)
}

// Extractor computes acoustic readings from audio files.
type Extractor interface {
	Extract(ctx context.Context, audioPath string) (*models.AcousticReading, error)
}

// ExtractionError reports a failure of the extraction pipeline as a whole.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "feature extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type extractor struct {
	loader Loader
	config Config
}

// NewExtractor creates an extractor that decodes files with loader.
func NewExtractor(loader Loader, config Config) Extractor {
	return &extractor{loader: loader, config: config}
}

func (e *extractor) Extract(ctx context.Context, audioPath string) (*models.AcousticReading, error) {
	sound, err := e.loader.LoadSound(ctx, audioPath)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	wave, err := e.loader.LoadWaveform(ctx, audioPath)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	reading, err := Analyze(sound, wave, e.config)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	return reading, nil
}

// Analyze computes the reading from already decoded audio. Only a failure of
// pitch tracking is returned as an error; shimmer, harmonicity and formant
// failures leave the affected metrics undefined.
func Analyze(sound *speech.Sound, wave *spectral.Waveform, config Config) (*models.AcousticReading, error) {
	pitch, err := sound.ToPitch(config.Pitch)
	if err != nil {
		return nil, err
	}

	times := pitch.Times()
	var voicedF0, voicedTimes []float64
	for i, f := range pitch.Frequencies() {
		if f > 0 {
			voicedF0 = append(voicedF0, f)
			voicedTimes = append(voicedTimes, times[i])
		}
	}

	reading := &models.AcousticReading{}
	if len(voicedF0) > 0 {
		meanF0 := stat.Mean(voicedF0, nil)
		reading.MeanF0 = models.Metric(meanF0)
		if meanF0 > 0 {
			reading.VoicePeriod = models.Metric(1 / meanF0)
		}
		reading.VoicedRatio = models.Metric(float64(len(voicedF0)) / float64(len(pitch.Frames)) * 100)
	}

	if len(voicedF0) >= 2 {
		periods := make([]float64, len(voicedF0))
		for i, f := range voicedF0 {
			periods[i] = 1 / f
		}
		reading.Jitter = models.Metric(relativeVariation(periods))

		shimmer, err := shimmer(wave, voicedTimes, config)
		if err != nil {
			log.Debug().Err(err).Msg("Shimmer undefined")
		} else {
			reading.Shimmer = models.Metric(shimmer)
		}
	}

	duration := sound.Duration()

	if h, err := sound.ToHarmonicityCC(config.HNRTimeStep, config.HNRMinPitch,
		config.HNRSilenceThreshold, config.HNRPeriodsPerWindow); err != nil {
		log.Debug().Err(err).Msg("Harmonicity analysis failed")
	} else if mean, ok := h.Mean(0, duration); ok {
		reading.HNR = models.Metric(mean)
	}

	if track, err := sound.ToFormantBurg(config.FormantTimeStep, config.NumFormants,
		config.MaxFormant, config.FormantWindow, config.PreEmphasisFrom); err != nil {
		log.Debug().Err(err).Msg("Formant analysis failed")
	} else {
		mid := duration / 2
		slots := []**float64{&reading.Formants.F1, &reading.Formants.F2, &reading.Formants.F3}
		for i, slot := range slots {
			if f, ok := track.ValueAtTime(i+1, mid); ok {
				*slot = models.Metric(f)
			}
		}
	}

	return reading, nil
}

// shimmer samples the RMS envelope of wave at the voiced frame times and
// returns its relative variation.
func shimmer(wave *spectral.Waveform, voicedTimes []float64, config Config) (float64, error) {
	if wave == nil || wave.SampleRate <= 0 {
		return 0, fmt.Errorf("no waveform")
	}
	energy, err := spectral.NewEnergy(config.RMSFrameLength, config.RMSHopLength)
	if err != nil {
		return 0, err
	}
	rms, err := energy.RMS(wave.Samples)
	if err != nil {
		return 0, err
	}
	rmsTimes := energy.FrameTimes(len(rms), wave.SampleRate)

	amps := make([]float64, len(voicedTimes))
	for i, t := range voicedTimes {
		amps[i] = rms[spectral.NearestIndex(rmsTimes, t)]
	}
	if stat.Mean(amps, nil) == 0 {
		return 0, fmt.Errorf("zero mean amplitude")
	}
	return relativeVariation(amps), nil
}

// relativeVariation returns the mean absolute difference of consecutive
// values divided by their mean, in percent.
func relativeVariation(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	sum := 0.0
	for i := 1; i < len(x); i++ {
		sum += math.Abs(x[i] - x[i-1])
	}
	return sum / float64(len(x)-1) / stat.Mean(x, nil) * 100
}
