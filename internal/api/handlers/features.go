package handlers

import (
	"context"
	"errors"

	"github.com/RMahshie/echohealth/internal/processing"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/rs/zerolog/log"
)

// errMissingFile is reported when the multipart form has no file field
var errMissingFile = errors.New("no file uploaded: expected multipart field \"file\"")

// FeaturesHandler handles feature extraction requests
type FeaturesHandler struct {
	processingSvc processing.ProcessingService
}

// NewFeaturesHandler creates a new features handler
func NewFeaturesHandler(processingSvc processing.ProcessingService) *FeaturesHandler {
	return &FeaturesHandler{processingSvc: processingSvc}
}

// ExtractFeatures runs the uploaded recording through the extractor. Every
// outcome is reported in the response envelope with status 200.
func (h *FeaturesHandler) ExtractFeatures(ctx context.Context, req *models.ExtractFeaturesRequest) (*models.ExtractFeaturesResponse, error) {
	form := req.RawBody.Data()
	if form == nil || !form.File.IsSet {
		log.Error().Err(errMissingFile).Msg("Feature extraction request rejected")
		return models.NewFeaturesError(errMissingFile), nil
	}
	defer form.File.Close()

	log.Info().Str("filename", form.File.Filename).Int64("size", form.File.Size).Msg("Extracting features from upload")

	reading, err := h.processingSvc.ProcessUpload(ctx, form.File, form.File.Filename)
	if err != nil {
		log.Error().Err(err).Str("filename", form.File.Filename).Msg("Feature extraction failed")
		return models.NewFeaturesError(err), nil
	}

	log.Info().Str("filename", form.File.Filename).Msg("Features extracted successfully")
	return models.NewFeaturesResponse(reading), nil
}
