package settings_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"lessonforge/internal/settings"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "gemini_api_key", "gemini_model", "default_workflow", "max_chunk_size", "min_chunk_size", "search_alpha", "search_top_k"}).
			AddRow(1, "key", "gemini-2.0-flash", "hybrid", 1500, 300, 0.5, 10)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, gemini_api_key, gemini_model, default_workflow, max_chunk_size, min_chunk_size, search_alpha, search_top_k FROM settings WHERE id = 1")).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.NotNil(t, s)
		assert.Equal(t, "hybrid", s.DefaultWorkflow)
		assert.Equal(t, 1500, s.MaxChunkSize)
		assert.Equal(t, float32(0.5), s.SearchAlpha)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
			WillReturnError(sqlmock.ErrCancelled)

		s, err := repo.Get(context.Background())
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	s := &settings.Settings{
		GeminiAPIKey:    "k2",
		GeminiModel:     "gemini-2.0-flash",
		DefaultWorkflow: "premium",
		MaxChunkSize:    1200,
		MinChunkSize:    200,
		SearchAlpha:     0.7,
		SearchTopK:      20,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE settings SET gemini_api_key = $1, gemini_model = $2, default_workflow = $3, max_chunk_size = $4, min_chunk_size = $5, search_alpha = $6, search_top_k = $7, updated_at = NOW() WHERE id = 1")).
		WithArgs(s.GeminiAPIKey, s.GeminiModel, s.DefaultWorkflow, s.MaxChunkSize, s.MinChunkSize, s.SearchAlpha, s.SearchTopK).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, repo.Update(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}
