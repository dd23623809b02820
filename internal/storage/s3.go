package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrInvalidContentType is returned for recordings in unsupported formats
var ErrInvalidContentType = errors.New("invalid content type")

// ErrInvalidKey is returned for object keys RecordingKey could not have produced
var ErrInvalidKey = errors.New("invalid recording key")

const recordingPrefix = "recordings/"

// recordingExtensions maps accepted MIME types to file extensions
var recordingExtensions = map[string]string{
	"audio/wav":  ".wav",
	"audio/mpeg": ".mp3",
	"audio/flac": ".flac",
	"audio/webm": ".webm", // Browser MediaRecorder WebM format
	"audio/ogg":  ".ogg",  // Browser MediaRecorder OGG format (fallback)
}

// S3Service handles recording storage in S3 or MinIO
type S3Service interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	DownloadFile(ctx context.Context, key string, w io.Writer) (int64, error)
	DeleteFile(ctx context.Context, key string) error
	URLExpiry() time.Duration
}

type s3Service struct {
	client    *s3.Client
	bucket    string
	urlExpiry time.Duration
	endpoint  string // For MinIO compatibility
}

// S3Config holds configuration for S3 service
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Service creates a new S3 service instance
func NewS3Service(cfg S3Config) (S3Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	region := cfg.Region
	if region == "" || cfg.Endpoint != "" {
		region = "us-east-1" // MinIO doesn't care about region
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}

		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true // MinIO requires path-style URLs
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &s3Service{
		client:    client,
		bucket:    cfg.Bucket,
		urlExpiry: 15 * time.Minute, // 15 minutes for uploads
		endpoint:  cfg.Endpoint,
	}, nil
}

// RecordingKey returns a fresh object key for a recording of the given type
func RecordingKey(contentType string) (string, error) {
	if err := ValidateContentType(contentType); err != nil {
		return "", err
	}
	return recordingPrefix + uuid.New().String() + recordingExtensions[contentType], nil
}

// ValidRecordingKey reports whether key has the shape RecordingKey produces:
// recordings/<uuid><ext> with a supported extension.
func ValidRecordingKey(key string) bool {
	name, ok := strings.CutPrefix(key, recordingPrefix)
	if !ok {
		return false
	}
	ext := path.Ext(name)
	known := false
	for _, e := range recordingExtensions {
		if e == ext {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	id, err := uuid.Parse(strings.TrimSuffix(name, ext))
	return err == nil && id.String()+ext == name
}

// URLExpiry returns how long upload URLs stay valid
func (s *s3Service) URLExpiry() time.Duration {
	return s.urlExpiry
}

// GenerateUploadURL generates a pre-signed URL for uploading files
func (s *s3Service) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	if err := ValidateContentType(contentType); err != nil {
		return "", err
	}

	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})

	if err != nil {
		return "", fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return request.URL, nil
}

// DownloadFile streams an object from S3/MinIO into w
func (s *s3Service) DownloadFile(ctx context.Context, key string, w io.Writer) (int64, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	n, err := io.Copy(w, result.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download file: %w", err)
	}
	return n, nil
}

// DeleteFile deletes a file from S3/MinIO
func (s *s3Service) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// ValidateContentType validates that the content type is supported
func ValidateContentType(contentType string) error {
	if _, ok := recordingExtensions[contentType]; !ok {
		return fmt.Errorf("%w: %s. Supported types: audio/wav, audio/mpeg, audio/flac, audio/webm, audio/ogg", ErrInvalidContentType, contentType)
	}
	return nil
}
