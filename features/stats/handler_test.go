package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCourseRepo struct{ mock.Mock }

func (m *MockCourseRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCourseRepo) CountLessons(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) CountLessons(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockCourseRepo, *MockJobRepo, *MockVectorStore)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(c *MockCourseRepo, j *MockJobRepo, v *MockVectorStore) {
				c.On("Count", mock.Anything).Return(4, nil)
				c.On("CountLessons", mock.Anything).Return(30, nil)
				j.On("Count", mock.Anything).Return(2, nil)
				v.On("CountLessons", mock.Anything).Return(28, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 4, data["courses"])
				assert.EqualValues(t, 30, data["lessons"])
				assert.EqualValues(t, 28, data["indexed_lessons"])
				assert.EqualValues(t, 2, data["failed_jobs"])
			},
		},
		{
			name: "CourseRepo Error",
			setupMocks: func(c *MockCourseRepo, j *MockJobRepo, v *MockVectorStore) {
				c.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "JobRepo Error",
			setupMocks: func(c *MockCourseRepo, j *MockJobRepo, v *MockVectorStore) {
				c.On("Count", mock.Anything).Return(4, nil)
				c.On("CountLessons", mock.Anything).Return(30, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "VectorStore Error",
			setupMocks: func(c *MockCourseRepo, j *MockJobRepo, v *MockVectorStore) {
				c.On("Count", mock.Anything).Return(4, nil)
				c.On("CountLessons", mock.Anything).Return(30, nil)
				j.On("Count", mock.Anything).Return(2, nil)
				v.On("CountLessons", mock.Anything).Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mCourse := new(MockCourseRepo)
			mJob := new(MockJobRepo)
			mVector := new(MockVectorStore)

			tt.setupMocks(mCourse, mJob, mVector)

			h := NewHandler(mCourse, mJob, mVector)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
