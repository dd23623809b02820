package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProcessingService implements processing.ProcessingService for testing
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessUpload(ctx context.Context, r io.Reader, filename string) (*models.AcousticReading, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, string(data), filename)
	if reading := args.Get(0); reading != nil {
		return reading.(*models.AcousticReading), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessingService) ProcessObject(ctx context.Context, key string) (*models.AcousticReading, error) {
	args := m.Called(ctx, key)
	if reading := args.Get(0); reading != nil {
		return reading.(*models.AcousticReading), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockS3Service implements storage.S3Service for testing
type MockS3Service struct {
	mock.Mock
}

func (m *MockS3Service) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockS3Service) DownloadFile(ctx context.Context, key string, w io.Writer) (int64, error) {
	args := m.Called(ctx, key, w)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockS3Service) DeleteFile(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockS3Service) URLExpiry() time.Duration {
	return 15 * time.Minute
}

func newTestRouter(proc *MockProcessingService, s3 *MockS3Service) http.Handler {
	router := chi.NewRouter()
	api := NewAPI(router)
	if s3 == nil {
		RegisterRoutes(router, api, proc, nil, 10<<20)
	} else {
		RegisterRoutes(router, api, proc, s3, 10<<20)
	}
	return router
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField(field, string(content)))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postMultipart(t *testing.T, h http.Handler, body *bytes.Buffer, contentType string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/extract-features/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestExtractFeaturesEndpoint(t *testing.T) {
	f0, hnr := 215.5, 18.25

	t.Run("success envelope", func(t *testing.T) {
		proc := &MockProcessingService{}
		proc.On("ProcessUpload", mock.Anything, "RIFF....", "voice.wav").
			Return(&models.AcousticReading{MeanF0: &f0, HNR: &hnr}, nil)

		body, ct := multipartBody(t, "file", "voice.wav", []byte("RIFF...."))
		envelope := postMultipart(t, newTestRouter(proc, nil), body, ct)

		assert.Len(t, envelope, 2)
		assert.Equal(t, true, envelope["success"])
		data := envelope["data"].(map[string]any)
		assert.Equal(t, 215.5, data["mean_f0"])
		assert.Equal(t, 18.25, data["hnr"])
		assert.Contains(t, data, "jitter")
		assert.Nil(t, data["jitter"])
		assert.Equal(t, map[string]any{"F1": nil, "F2": nil, "F3": nil}, data["formants"])
		proc.AssertExpectations(t)
	})

	t.Run("extraction failure envelope", func(t *testing.T) {
		proc := &MockProcessingService{}
		proc.On("ProcessUpload", mock.Anything, mock.Anything, "broken.mp3").
			Return(nil, errors.New("feature extraction failed: ffprobe failed: exit status 1"))

		body, ct := multipartBody(t, "file", "broken.mp3", []byte("junk"))
		envelope := postMultipart(t, newTestRouter(proc, nil), body, ct)

		assert.Equal(t, map[string]any{
			"success": false,
			"error":   "feature extraction failed: ffprobe failed: exit status 1",
		}, envelope)
	})

	t.Run("missing file field", func(t *testing.T) {
		proc := &MockProcessingService{}

		body, ct := multipartBody(t, "note", "", []byte("hello"))
		envelope := postMultipart(t, newTestRouter(proc, nil), body, ct)

		assert.Equal(t, false, envelope["success"])
		assert.Contains(t, envelope["error"], "no file uploaded")
		proc.AssertNotCalled(t, "ProcessUpload", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExtractFeaturesRejectsNonMultipart(t *testing.T) {
	proc := &MockProcessingService{}
	router := newTestRouter(proc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/extract-features/", bytes.NewBufferString(`{"file":"voice.wav"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	proc.AssertNotCalled(t, "ProcessUpload", mock.Anything, mock.Anything, mock.Anything)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Paths map[string]map[string]struct {
			Description string `json:"description"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	description := doc.Paths["/extract-features/"]["post"].Description
	assert.Contains(t, description, "multipart/form-data")
	assert.Contains(t, description, "422")
}

func TestHealthAndDocs(t *testing.T) {
	router := newTestRouter(&MockProcessingService{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, Version, health["version"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var spec map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Contains(t, spec["paths"], "/extract-features/")
	assert.NotContains(t, spec["paths"], "/api/uploads")
}

func TestObjectStoreRoutes(t *testing.T) {
	t.Run("not registered without a bucket", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewBufferString(`{"file_size":1000,"mime_type":"audio/wav"}`))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(&MockProcessingService{}, nil).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("create upload", func(t *testing.T) {
		s3 := &MockS3Service{}
		s3.On("GenerateUploadURL", mock.Anything, mock.Anything, "audio/wav").
			Return("http://minio:9000/bucket/recordings/x.wav?X-Amz-Signature=abc", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewBufferString(`{"file_size":1000,"mime_type":"audio/wav"}`))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(&MockProcessingService{}, s3).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body models.CreateUploadResponseBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 900, body.ExpiresIn)
		assert.Contains(t, body.Key, "recordings/")
		s3.AssertExpectations(t)
	})

	t.Run("extract recording failure still answers 200", func(t *testing.T) {
		proc := &MockProcessingService{}
		proc.On("ProcessObject", mock.Anything, "recordings/x.wav").
			Return(nil, errors.New("failed to download file: NoSuchKey"))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/recordings/extract", bytes.NewBufferString(`{"key":"recordings/x.wav"}`))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(proc, &MockS3Service{}).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"failed to download file: NoSuchKey"}`, rec.Body.String())
	})
}
