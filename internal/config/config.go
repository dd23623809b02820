package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	AWS      AWSConfig
	Decoder  DecoderConfig
	Analysis AnalysisConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           string
	Env            string
	AllowedOrigins []string
	ScratchDir     string
	MaxUploadBytes int64
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// DecoderConfig holds ffmpeg configuration
type DecoderConfig struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	MaxDuration time.Duration
}

// AnalysisConfig holds the tunable analysis ranges
type AnalysisConfig struct {
	PitchFloor   float64
	PitchCeiling float64
	MaxFormant   float64
	NumFormants  int
}

var keys = []string{
	"HOST", "PORT", "ENVIRONMENT", "ALLOWED_ORIGINS", "SCRATCH_DIR", "MAX_UPLOAD_BYTES",
	"FFMPEG_PATH", "FFPROBE_PATH", "DECODE_TIMEOUT", "MAX_AUDIO_DURATION",
	"PITCH_FLOOR", "PITCH_CEILING", "MAX_FORMANT", "NUM_FORMANTS",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "S3_BUCKET", "S3_ENDPOINT",
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", "8001")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("SCRATCH_DIR", "temp_files")
	v.SetDefault("MAX_UPLOAD_BYTES", 50*1024*1024)
	v.SetDefault("FFMPEG_PATH", "ffmpeg")
	v.SetDefault("FFPROBE_PATH", "ffprobe")
	v.SetDefault("DECODE_TIMEOUT", "60s")
	v.SetDefault("MAX_AUDIO_DURATION", "2m")
	v.SetDefault("PITCH_FLOOR", 75.0)
	v.SetDefault("PITCH_CEILING", 600.0)
	v.SetDefault("MAX_FORMANT", 5500.0)
	v.SetDefault("NUM_FORMANTS", 5)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")

	// Environment variables override .env file values
	v.AutomaticEnv()
	for _, key := range keys {
		v.BindEnv(key)
	}

	// Read from .env files based on environment
	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev" // Use "dev" to match .env.dev filename
	}
	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error - file may not exist

	var config Config
	config.Server.Host = v.GetString("HOST")
	config.Server.Port = v.GetString("PORT")
	config.Server.Env = env
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.Server.ScratchDir = v.GetString("SCRATCH_DIR")
	config.Server.MaxUploadBytes = v.GetInt64("MAX_UPLOAD_BYTES")
	config.Decoder.FFmpegPath = v.GetString("FFMPEG_PATH")
	config.Decoder.FFprobePath = v.GetString("FFPROBE_PATH")
	config.Decoder.Timeout = v.GetDuration("DECODE_TIMEOUT")
	config.Decoder.MaxDuration = v.GetDuration("MAX_AUDIO_DURATION")
	config.Analysis.PitchFloor = v.GetFloat64("PITCH_FLOOR")
	config.Analysis.PitchCeiling = v.GetFloat64("PITCH_CEILING")
	config.Analysis.MaxFormant = v.GetFloat64("MAX_FORMANT")
	config.Analysis.NumFormants = v.GetInt("NUM_FORMANTS")
	config.AWS.Region = v.GetString("AWS_REGION")
	config.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = v.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")

	log.Debug().
		Str("addr", config.Server.Addr()).
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Bool("object_store", config.AWS.S3Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
