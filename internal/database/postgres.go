package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"movie-recommender-service/internal/config"
)

// NewPostgres creates a new PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS search_history (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			search_query VARCHAR(100) NOT NULL,
			filters JSONB NOT NULL DEFAULT '{}',
			total_results INTEGER NOT NULL DEFAULT 0,
			result_movies JSONB NOT NULL DEFAULT '[]',
			clicked_movies INTEGER[] NOT NULL DEFAULT '{}',
			viewed_details INTEGER[] NOT NULL DEFAULT '{}',
			requested_recommendations INTEGER[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			based_on_movie_id INTEGER NOT NULL,
			based_on_movie_title VARCHAR(500) NOT NULL,
			recommendation_type VARCHAR(32) NOT NULL,
			recommendations JSONB NOT NULL DEFAULT '[]',
			filters JSONB NOT NULL DEFAULT '{}',
			liked INTEGER[] NOT NULL DEFAULT '{}',
			disliked INTEGER[] NOT NULL DEFAULT '{}',
			clicked INTEGER[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Indexes for recency queries and cross-session movie lookups
		`CREATE INDEX IF NOT EXISTS idx_search_history_session_time ON search_history(session_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_search_history_result_movies ON search_history USING GIN (result_movies)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_session_time ON recommendations(session_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_based_on ON recommendations(based_on_movie_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
