package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/RMahshie/echohealth/internal/storage"
	"github.com/RMahshie/echohealth/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockS3Service) URLExpiry() time.Duration {
	return 15 * time.Minute
}

// MockProcessingService implements processing.ProcessingService for testing
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessUpload(ctx context.Context, r io.Reader, filename string) (*models.AcousticReading, error) {
	args := m.Called(ctx, r, filename)
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

func createUploadRequest(size int64, mimeType string) *models.CreateUploadRequest {
	req := &models.CreateUploadRequest{}
	req.Body.FileSize = size
	req.Body.MimeType = mimeType
	return req
}

func TestCreateUpload(t *testing.T) {
	tests := []struct {
		name      string
		input     *models.CreateUploadRequest
		mockSetup func(*MockS3Service)
		wantCode  int
	}{
		{
			name:  "valid recording",
			input: createUploadRequest(5*1024*1024, "audio/webm"),
			mockSetup: func(m *MockS3Service) {
				m.On("GenerateUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
					return len(key) > len("recordings/") && key[len(key)-5:] == ".webm"
				}), "audio/webm").Return("https://bucket.example/upload", nil)
			},
		},
		{
			name:     "too large",
			input:    createUploadRequest(100*1024*1024, "audio/wav"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unsupported format",
			input:    createUploadRequest(1024, "video/mp4"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:  "presign fails",
			input: createUploadRequest(1024, "audio/wav"),
			mockSetup: func(m *MockS3Service) {
				m.On("GenerateUploadURL", mock.Anything, mock.Anything, "audio/wav").
					Return("", errors.New("failed to generate upload URL"))
			},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockS3 := &MockS3Service{}
			if tt.mockSetup != nil {
				tt.mockSetup(mockS3)
			}
			handler := NewUploadsHandler(mockS3, &MockProcessingService{}, 50*1024*1024)

			resp, err := handler.CreateUpload(context.Background(), tt.input)
			if tt.wantCode != 0 {
				var statusErr huma.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantCode, statusErr.GetStatus())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://bucket.example/upload", resp.Body.UploadURL)
			assert.Equal(t, 900, resp.Body.ExpiresIn)
			assert.NotEmpty(t, resp.Body.Key)
			mockS3.AssertExpectations(t)
		})
	}
}

func TestExtractRecording(t *testing.T) {
	f0 := 210.0

	t.Run("success", func(t *testing.T) {
		proc := &MockProcessingService{}
		proc.On("ProcessObject", mock.Anything, "recordings/a.wav").
			Return(&models.AcousticReading{MeanF0: &f0}, nil)

		req := &models.ExtractRecordingRequest{}
		req.Body.Key = "recordings/a.wav"
		resp, err := NewUploadsHandler(&MockS3Service{}, proc, 0).ExtractRecording(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, resp.Body.Success)
		assert.Equal(t, &f0, resp.Body.Data.MeanF0)
		assert.Empty(t, resp.Body.Error)
	})

	t.Run("failure is reported in the envelope", func(t *testing.T) {
		proc := &MockProcessingService{}
		proc.On("ProcessObject", mock.Anything, "recordings/missing.wav").
			Return(nil, errors.New("failed to download file: NoSuchKey"))

		req := &models.ExtractRecordingRequest{}
		req.Body.Key = "recordings/missing.wav"
		resp, err := NewUploadsHandler(&MockS3Service{}, proc, 0).ExtractRecording(context.Background(), req)

		require.NoError(t, err)
		assert.False(t, resp.Body.Success)
		assert.Nil(t, resp.Body.Data)
		assert.Equal(t, "failed to download file: NoSuchKey", resp.Body.Error)
	})
}

func TestExtractFeaturesWithoutForm(t *testing.T) {
	proc := &MockProcessingService{}

	resp, err := NewFeaturesHandler(proc).ExtractFeatures(context.Background(), &models.ExtractFeaturesRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Body.Success)
	assert.Equal(t, errMissingFile.Error(), resp.Body.Error)
	proc.AssertNotCalled(t, "ProcessUpload", mock.Anything, mock.Anything, mock.Anything)
}

var _ storage.S3Service = (*MockS3Service)(nil)
