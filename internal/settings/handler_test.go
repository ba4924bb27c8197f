package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"lessonforge/internal/settings"
)

// MockRepository is a mock implementation of settings.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, s *settings.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func validSettings() *settings.Settings {
	return &settings.Settings{
		DefaultWorkflow: "hybrid",
		MaxChunkSize:    1500,
		MinChunkSize:    300,
		SearchAlpha:     0.5,
		SearchTopK:      5,
	}
}

func TestHandler_GetSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		stored := validSettings()
		stored.GeminiAPIKey = "AIza-secret-1234"
		mockRepo.On("Get", mock.Anything).Return(stored, nil)

		req := httptest.NewRequest("GET", "/settings", nil)
		w := httptest.NewRecorder()

		handler.GetSettings(w, req)

		resp := w.Result()
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&body)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, "hybrid", data["default_workflow"])
		assert.Equal(t, 0.5, data["search_alpha"])
		assert.Equal(t, "****1234", data["gemini_api_key"])

		mockRepo.AssertExpectations(t)
	})

	t.Run("InternalError", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		mockRepo.On("Get", mock.Anything).Return(nil, errors.New("db error"))

		req := httptest.NewRequest("GET", "/settings", nil)
		w := httptest.NewRecorder()

		handler.GetSettings(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	})
}

func TestHandler_UpdateSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		newSettings := validSettings()
		newSettings.DefaultWorkflow = "premium"
		newSettings.GeminiAPIKey = "new-key-9876"

		mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.DefaultWorkflow == "premium" && s.SearchAlpha == 0.5 && s.GeminiAPIKey == "new-key-9876"
		})).Return(nil)

		body, _ := json.Marshal(newSettings)
		req := httptest.NewRequest("PUT", "/settings", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.NotContains(t, w.Body.String(), "new-key-9876")
		mockRepo.AssertExpectations(t)
	})

	t.Run("RedactedKeyKeepsStored", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		stored := validSettings()
		stored.GeminiAPIKey = "AIza-secret-1234"
		mockRepo.On("Get", mock.Anything).Return(stored, nil)
		mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.GeminiAPIKey == "AIza-secret-1234" && s.SearchTopK == 8
		})).Return(nil)

		update := validSettings()
		update.GeminiAPIKey = "****1234"
		update.SearchTopK = 8
		body, _ := json.Marshal(update)
		req := httptest.NewRequest("PUT", "/settings", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ValidationError", func(t *testing.T) {
		handler := settings.NewHandler(settings.NewService(new(MockRepository)))

		req := httptest.NewRequest("PUT", "/settings", bytes.NewBufferString("invalid json"))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})

	t.Run("RejectsUnknownWorkflow", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		bad := validSettings()
		bad.DefaultWorkflow = "bogus"
		body, _ := json.Marshal(bad)
		req := httptest.NewRequest("PUT", "/settings", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("RejectsInvalidChunkBounds", func(t *testing.T) {
		mockRepo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(mockRepo))

		bad := validSettings()
		bad.MinChunkSize = bad.MaxChunkSize + 1
		body, _ := json.Marshal(bad)
		req := httptest.NewRequest("PUT", "/settings", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})
}

func TestService_Seed(t *testing.T) {
	t.Run("FillsBlankFields", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := settings.NewService(mockRepo)

		mockRepo.On("Get", mock.Anything).Return(validSettings(), nil)
		mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.GeminiAPIKey == "env-key" && s.GeminiModel == "gemini-2.0-flash"
		})).Return(nil)

		assert.NoError(t, svc.Seed(context.Background(), "env-key", "gemini-2.0-flash"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("KeepsStoredValues", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := settings.NewService(mockRepo)

		stored := validSettings()
		stored.GeminiAPIKey = "stored"
		stored.GeminiModel = "stored-model"
		mockRepo.On("Get", mock.Anything).Return(stored, nil)

		assert.NoError(t, svc.Seed(context.Background(), "env-key", "gemini-2.0-flash"))
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}
