package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, gemini_api_key, gemini_model, default_workflow, max_chunk_size, min_chunk_size, search_alpha, search_top_k FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &s.GeminiAPIKey, &s.GeminiModel, &s.DefaultWorkflow,
		&s.MaxChunkSize, &s.MinChunkSize, &s.SearchAlpha, &s.SearchTopK,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		UPDATE settings
		SET gemini_api_key = $1, gemini_model = $2, default_workflow = $3, max_chunk_size = $4, min_chunk_size = $5, search_alpha = $6, search_top_k = $7, updated_at = NOW()
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query,
		s.GeminiAPIKey, s.GeminiModel, s.DefaultWorkflow, s.MaxChunkSize, s.MinChunkSize, s.SearchAlpha, s.SearchTopK)
	return err
}
