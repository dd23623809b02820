package models

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// ExtractFeaturesForm is the multipart form accepted by the upload endpoint
type ExtractFeaturesForm struct {
	File huma.FormFile `form:"file" doc:"Voice recording in any format ffmpeg can decode"`
}

// ExtractFeaturesRequest represents a multipart upload of one recording
type ExtractFeaturesRequest struct {
	RawBody huma.MultipartFormFiles[ExtractFeaturesForm]
}

// FeaturesEnvelope wraps every extraction outcome. Exactly one of Data and
// Error is set.
type FeaturesEnvelope struct {
	Success bool             `json:"success" doc:"Whether extraction succeeded"`
	Data    *AcousticReading `json:"data,omitempty" doc:"Acoustic reading, present on success"`
	Error   string           `json:"error,omitempty" doc:"Failure description, present on failure"`
}

// ExtractFeaturesResponse is always returned with status 200
type ExtractFeaturesResponse struct {
	Body FeaturesEnvelope
}

// NewFeaturesResponse builds the success envelope
func NewFeaturesResponse(reading *AcousticReading) *ExtractFeaturesResponse {
	return &ExtractFeaturesResponse{Body: FeaturesEnvelope{Success: true, Data: reading}}
}

// NewFeaturesError builds the failure envelope
func NewFeaturesError(err error) *ExtractFeaturesResponse {
	return &ExtractFeaturesResponse{Body: FeaturesEnvelope{Success: false, Error: err.Error()}}
}

// CreateUploadRequest asks for a pre-signed URL to upload a recording
type CreateUploadRequest struct {
	Body struct {
		FileSize int64  `json:"file_size" minimum:"1" required:"true" doc:"Audio file size in bytes"`
		MimeType string `json:"mime_type" enum:"audio/wav,audio/mpeg,audio/flac,audio/webm,audio/ogg" required:"true" doc:"Audio file MIME type"`
	}
}

// CreateUploadResponseBody represents the response body for an upload URL
type CreateUploadResponseBody struct {
	Key       string `json:"key" doc:"Object key to pass to the extract endpoint"`
	UploadURL string `json:"upload_url" doc:"Pre-signed S3 URL for file upload"`
	ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
}

// CreateUploadResponse represents the response from creating an upload
type CreateUploadResponse struct {
	Body CreateUploadResponseBody
}

// ExtractRecordingRequest asks for extraction of an uploaded object
type ExtractRecordingRequest struct {
	Body struct {
		Key string `json:"key" minLength:"1" maxLength:"256" required:"true" doc:"Object key returned by the upload endpoint"`
	}
}
