package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RMahshie/echohealth/internal/audio"
	"github.com/RMahshie/echohealth/internal/features"
	"github.com/RMahshie/echohealth/pkg/models"
)

type extractOptions struct {
	pitchFloor   float64
	pitchCeiling float64
	maxFormant   float64
	ffmpeg       string
	ffprobe      string
	timeout      time.Duration
	maxDuration  time.Duration
}

var extractOpts extractOptions

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract acoustic features from recordings",
	Long: `Extract jitter, shimmer, mean F0, HNR, voice period, voiced ratio
and the first three formants from one or more recordings.

Any format ffmpeg can decode is accepted. One JSON object is printed per
file; metrics that could not be computed are null.

Examples:
  voicefeat extract sample.wav
  voicefeat extract --pitch-floor 100 --pitch-ceiling 600 child.m4a`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		extractor := newExtractor(extractOpts)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, path := range args {
			reading, err := extractor.Extract(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := enc.Encode(fileResult{File: path, AcousticReading: reading}); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		return nil
	},
}

type fileResult struct {
	File string `json:"file"`
	*models.AcousticReading
}

func init() {
	defaults := features.DefaultConfig()
	decoder := audio.DefaultConfig()

	flags := extractCmd.Flags()
	flags.Float64Var(&extractOpts.pitchFloor, "pitch-floor", defaults.Pitch.Floor, "lowest pitch candidate in Hz")
	flags.Float64Var(&extractOpts.pitchCeiling, "pitch-ceiling", defaults.Pitch.Ceiling, "highest pitch candidate in Hz")
	flags.Float64Var(&extractOpts.maxFormant, "max-formant", defaults.MaxFormant, "formant ceiling in Hz")
	flags.StringVar(&extractOpts.ffmpeg, "ffmpeg", decoder.FFmpegPath, "path to the ffmpeg binary")
	flags.StringVar(&extractOpts.ffprobe, "ffprobe", decoder.FFprobePath, "path to the ffprobe binary")
	flags.DurationVar(&extractOpts.timeout, "timeout", decoder.Timeout, "decode timeout per file")
	flags.DurationVar(&extractOpts.maxDuration, "max-duration", decoder.MaxDuration, "analyse at most this much of each file; 0 analyses everything")
}

func newExtractor(opts extractOptions) features.Extractor {
	config := features.DefaultConfig()
	config.Pitch.Floor = opts.pitchFloor
	config.Pitch.Ceiling = opts.pitchCeiling
	config.MaxFormant = opts.maxFormant

	decoder := audio.NewDecoder(audio.Config{
		FFmpegPath:  opts.ffmpeg,
		FFprobePath: opts.ffprobe,
		Timeout:     opts.timeout,
		MaxDuration: opts.maxDuration,
	})
	return features.NewExtractor(decoder, config)
}
