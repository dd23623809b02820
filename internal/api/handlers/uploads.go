package handlers

import (
	"context"
	"errors"

	"github.com/RMahshie/echohealth/internal/processing"
	"github.com/RMahshie/echohealth/internal/storage"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
)

// UploadsHandler handles direct-to-bucket uploads
type UploadsHandler struct {
	s3Service      storage.S3Service
	processingSvc  processing.ProcessingService
	maxUploadBytes int64
}

// NewUploadsHandler creates a new uploads handler
func NewUploadsHandler(s3Service storage.S3Service, processingSvc processing.ProcessingService, maxUploadBytes int64) *UploadsHandler {
	return &UploadsHandler{
		s3Service:      s3Service,
		processingSvc:  processingSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateUpload returns a pre-signed URL the client can PUT a recording to
func (h *UploadsHandler) CreateUpload(ctx context.Context, req *models.CreateUploadRequest) (*models.CreateUploadResponse, error) {
	log.Info().Int64("fileSize", req.Body.FileSize).Str("mimeType", req.Body.MimeType).Msg("Creating upload URL")

	if h.maxUploadBytes > 0 && req.Body.FileSize > h.maxUploadBytes {
		return nil, huma.Error400BadRequest("Recording too large. Please try a shorter recording.", nil)
	}

	key, err := storage.RecordingKey(req.Body.MimeType)
	if err != nil {
		return nil, huma.Error400BadRequest("Recording format not supported.", err)
	}

	uploadURL, err := h.s3Service.GenerateUploadURL(ctx, key, req.Body.MimeType)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidContentType) {
			return nil, huma.Error400BadRequest("Recording format not supported.", err)
		}
		return nil, huma.Error400BadRequest("Failed to prepare upload. Please try again.", err)
	}
	log.Info().Str("key", key).Msg("Upload URL generated successfully")

	return &models.CreateUploadResponse{
		Body: models.CreateUploadResponseBody{
			Key:       key,
			UploadURL: uploadURL,
			ExpiresIn: int(h.s3Service.URLExpiry().Seconds()),
		},
	}, nil
}

// ExtractRecording extracts features from a previously uploaded object. Like
// the multipart endpoint it always answers with status 200.
func (h *UploadsHandler) ExtractRecording(ctx context.Context, req *models.ExtractRecordingRequest) (*models.ExtractFeaturesResponse, error) {
	log.Info().Str("key", req.Body.Key).Msg("Extracting features from stored recording")

	reading, err := h.processingSvc.ProcessObject(ctx, req.Body.Key)
	if err != nil {
		log.Error().Err(err).Str("key", req.Body.Key).Msg("Feature extraction failed")
		return models.NewFeaturesError(err), nil
	}
	return models.NewFeaturesResponse(reading), nil
}
