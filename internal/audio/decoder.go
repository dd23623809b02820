// Package audio decodes recordings into mono float samples using ffprobe and
// ffmpeg.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/RMahshie/echohealth/internal/spectral"
	"github.com/RMahshie/echohealth/internal/speech"
	"github.com/rs/zerolog/log"
)

// ErrNoAudio is returned for files without a decodable audio stream.
var ErrNoAudio = errors.New("no audio stream")

// Config holds decoder configuration
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration // per ffprobe/ffmpeg invocation; 0 disables
	MaxDuration time.Duration // audio past this point is not decoded; 0 disables
}

// DefaultConfig returns default decoder configuration
func DefaultConfig() Config {
	return Config{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     60 * time.Second,
		MaxDuration: 2 * time.Minute,
	}
}

// Metadata holds the properties ffprobe reports for the first audio stream.
type Metadata struct {
	SampleRate int
	Channels   int
	Codec      string
	Duration   float64 // seconds, 0 when unknown
}

// Decoder handles audio decoding using FFmpeg
type Decoder struct {
	config Config
}

// NewDecoder creates a new audio decoder
func NewDecoder(config Config) *Decoder {
	def := DefaultConfig()
	if config.FFmpegPath == "" {
		config.FFmpegPath = def.FFmpegPath
	}
	if config.FFprobePath == "" {
		config.FFprobePath = def.FFprobePath
	}
	return &Decoder{config: config}
}

// LoadSound decodes path into the representation used by pitch, harmonicity
// and formant analysis.
func (d *Decoder) LoadSound(ctx context.Context, path string) (*speech.Sound, error) {
	samples, meta, err := d.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	return speech.NewSound(samples, float64(meta.SampleRate))
}

// LoadWaveform decodes path into a raw waveform at its native sample rate.
func (d *Decoder) LoadWaveform(ctx context.Context, path string) (*spectral.Waveform, error) {
	samples, meta, err := d.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	return &spectral.Waveform{Samples: samples, SampleRate: meta.SampleRate}, nil
}

// Decode returns the first audio stream of path as mono samples at the
// native sample rate. Multi-channel audio is averaged.
func (d *Decoder) Decode(ctx context.Context, path string) ([]float64, *Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("open audio: %w", err)
	}

	meta, err := d.Probe(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().
		Str("path", path).
		Int("sample_rate", meta.SampleRate).
		Int("channels", meta.Channels).
		Str("codec", meta.Codec).
		Msg("Decoding audio")

	if limit := d.config.MaxDuration; limit > 0 && meta.Duration > limit.Seconds() {
		log.Warn().
			Str("path", path).
			Float64("duration", meta.Duration).
			Dur("max_duration", limit).
			Msg("Recording truncated")
	}

	output, err := d.run(ctx, d.config.FFmpegPath, d.decodeArgs(path, meta))
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := downmix(bytesToFloat64(output), meta.Channels)
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%w: %s decoded to zero samples", ErrNoAudio, path)
	}
	return samples, meta, nil
}

// decodeArgs builds the ffmpeg arguments that write the first audio stream
// to stdout as native-rate f64le, cut at MaxDuration.
func (d *Decoder) decodeArgs(path string, meta *Metadata) []string {
	args := []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-map", "0:a:0",
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(d.config.MaxDuration.Seconds(), 'f', -1, 64))
	}
	return append(args,
		"-f", "f64le",
		"-ac", strconv.Itoa(meta.Channels),
		"-ar", strconv.Itoa(meta.SampleRate),
		"pipe:1",
	)
}

// Probe uses ffprobe to read the sample rate and channel count of the first
// audio stream.
func (d *Decoder) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}
	output, err := d.run(ctx, d.config.FFprobePath, args)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func (d *Decoder) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", bin, ctxErr)
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%w, stderr: %s", err, msg)
		}
		return nil, err
	}
	return output, nil
}

func parseProbe(data []byte) (*Metadata, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, ErrNoAudio
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is %s", ErrNoAudio, stream.CodecType)
	}
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}
	if stream.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	return &Metadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
	}, nil
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping any
// trailing partial sample.
func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}

// downmix averages interleaved frames of the given channel count.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	mono := make([]float64, len(interleaved)/channels)
	for i := range mono {
		sum := 0.0
		for _, v := range interleaved[i*channels : (i+1)*channels] {
			sum += v
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
