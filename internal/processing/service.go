package processing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RMahshie/echohealth/internal/features"
	"github.com/RMahshie/echohealth/internal/storage"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrObjectStoreDisabled is returned by ProcessObject when no bucket is configured
var ErrObjectStoreDisabled = errors.New("object storage is not configured")

// ProcessingService runs one recording through feature extraction
type ProcessingService interface {
	ProcessUpload(ctx context.Context, r io.Reader, filename string) (*models.AcousticReading, error)
	ProcessObject(ctx context.Context, key string) (*models.AcousticReading, error)
}

type processingService struct {
	scratch   storage.ScratchStore
	s3        storage.S3Service
	extractor features.Extractor
}

// NewProcessingService wires the scratch store and extractor. s3Service may be
// nil when recordings are only uploaded directly.
func NewProcessingService(scratch storage.ScratchStore, s3Service storage.S3Service, extractor features.Extractor) ProcessingService {
	return &processingService{
		scratch:   scratch,
		s3:        s3Service,
		extractor: extractor,
	}
}

// ProcessUpload saves r to a scratch file, extracts features from it and
// removes the file whatever the outcome.
func (s *processingService) ProcessUpload(ctx context.Context, r io.Reader, filename string) (*models.AcousticReading, error) {
	path, err := s.scratch.Save(r, filename)
	if err != nil {
		return nil, err
	}
	defer s.remove(path)

	log.Debug().Str("filename", filename).Str("path", path).Msg("Upload saved, extracting features")
	return s.extractor.Extract(ctx, path)
}

// ProcessObject downloads a recording from the bucket, extracts features and
// then deletes both the scratch copy and the object.
func (s *processingService) ProcessObject(ctx context.Context, key string) (*models.AcousticReading, error) {
	if s.s3 == nil {
		return nil, ErrObjectStoreDisabled
	}
	if !storage.ValidRecordingKey(key) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}

	f, err := s.scratch.Create(key)
	if err != nil {
		return nil, err
	}
	path := f.Name()

	reading, err := func() (*models.AcousticReading, error) {
		defer s.remove(path)

		n, err := s.s3.DownloadFile(ctx, key, f)
		closeErr := f.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to write scratch file: %w", closeErr)
		}
		log.Debug().Str("key", key).Int64("bytes", n).Msg("Recording downloaded, extracting features")

		return s.extractor.Extract(ctx, path)
	}()

	// The recording is not retained once it has been analysed.
	if reading != nil || errors.As(err, new(*features.ExtractionError)) {
		if delErr := s.s3.DeleteFile(ctx, key); delErr != nil {
			log.Error().Err(delErr).Str("key", key).Msg("Failed to delete recording")
		}
	}
	return reading, err
}

func (s *processingService) remove(path string) {
	if err := s.scratch.Remove(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to remove scratch file")
	}
}
