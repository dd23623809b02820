package api

import (
	"context"
	"net/http"
	"time"

	"github.com/RMahshie/echohealth/internal/api/handlers"
	"github.com/RMahshie/echohealth/internal/processing"
	"github.com/RMahshie/echohealth/internal/storage"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// NewAPI creates the huma API on router. Response bodies are served exactly
// as modelled, without a $schema link.
func NewAPI(router chi.Router) huma.API {
	config := huma.DefaultConfig("EchoHealth API", Version)
	config.DocsPath = "/docs"
	config.CreateHooks = nil
	return humachi.New(router, config)
}

// RegisterRoutes sets up all API routes. s3Service may be nil, in which case
// the direct-to-bucket routes are not registered.
func RegisterRoutes(router chi.Router, api huma.API, processingSvc processing.ProcessingService, s3Service storage.S3Service, maxUploadBytes int64) {
	// Register health endpoint
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	// Serve OpenAPI spec at /api/docs
	router.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		spec, err := api.OpenAPI().MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to generate OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Write(spec)
	})

	featuresHandler := handlers.NewFeaturesHandler(processingSvc)

	huma.Register(api, huma.Operation{
		OperationID:  "extractFeatures",
		Method:       http.MethodPost,
		Path:         "/extract-features/",
		Summary:      "Extract acoustic features",
		Description:  "Computes jitter, shimmer, f0, HNR, voiced ratio and formants from a recording sent as the multipart/form-data field `file`. Every extraction outcome, including a missing `file` field, answers 200 with a success envelope. A body that is not multipart/form-data is rejected with a 422 problem response before extraction.",
		Tags:         []string{"Features"},
		MaxBodyBytes: maxUploadBytes,
	}, featuresHandler.ExtractFeatures)

	if s3Service == nil {
		return
	}

	uploadsHandler := handlers.NewUploadsHandler(s3Service, processingSvc, maxUploadBytes)

	huma.Register(api, huma.Operation{
		OperationID: "createUpload",
		Method:      http.MethodPost,
		Path:        "/api/uploads",
		Summary:     "Create an upload URL",
		Description: "Returns a pre-signed URL for uploading a recording directly to object storage",
		Tags:        []string{"Uploads"},
	}, uploadsHandler.CreateUpload)

	huma.Register(api, huma.Operation{
		OperationID: "extractRecording",
		Method:      http.MethodPost,
		Path:        "/api/recordings/extract",
		Summary:     "Extract features from an uploaded recording",
		Description: "Downloads the recording, extracts features and deletes the recording. Always answers 200 with a success envelope.",
		Tags:        []string{"Uploads"},
	}, uploadsHandler.ExtractRecording)
}
