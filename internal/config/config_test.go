package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "movie_recommender", cfg.DB.DBName)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "8080", cfg.Port)

	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, "https://image.tmdb.org/t/p", cfg.TMDB.ImageBaseURL)
	assert.Equal(t, 30*time.Second, cfg.TMDB.RequestTimeout)
	assert.Equal(t, 3, cfg.TMDB.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.TMDB.BackoffUnit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "secret")
	t.Setenv("TMDB_TIMEOUT_SECONDS", "5")
	t.Setenv("TMDB_MAX_RETRIES", "1")
	t.Setenv("TMDB_BACKOFF_MS", "100")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.TMDB.APIKey)
	assert.Equal(t, 5*time.Second, cfg.TMDB.RequestTimeout)
	assert.Equal(t, 1, cfg.TMDB.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.TMDB.BackoffUnit)
	assert.Equal(t, "9090", cfg.Port)
}

func TestDSN(t *testing.T) {
	db := DBConfig{
		Host: "db.internal", Port: 5433, User: "app", Password: "pw",
		DBName: "movies", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=app password=pw dbname=movies sslmode=require",
		db.DSN())

	db.SSLRootCert = "/etc/ssl/root.crt"
	assert.Contains(t, db.DSN(), "sslrootcert=/etc/ssl/root.crt")
}
