package database

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/config"
)

// TestConnect_Unreachable проверяет, что Connect возвращает ошибку без базы
func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := NewConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = 1
	cfg.RetryInterval = 10 * time.Millisecond

	_, err := Connect(ctx, cfg)
	if err == nil {
		t.Error("Expected error when connecting to non-existent database")
	}
}

// TestHealthCheck проверяет health check без пула
func TestHealthCheck(t *testing.T) {
	postgres := &Postgres{}
	if err := postgres.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error when pool is not initialized")
	}
}

// TestNewConfig проверяет создание конфигурации по умолчанию
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 20, cfg.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLife)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		Name:     "billing",
		User:     "billing",
		Password: "p@ss word",
		SSLMode:  "require",
		MaxConns: 1,
	})

	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "billing", cfg.Database)
	assert.Equal(t, 1, cfg.MaxConns)
	assert.Equal(t, 1, cfg.MinConns)

	u, err := url.Parse(cfg.ConnString())
	require.NoError(t, err)
	assert.Equal(t, "db:5433", u.Host)
	assert.Equal(t, "/billing", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestConnString_DSN(t *testing.T) {
	cfg := NewConfig()
	cfg.DSN = "postgres://u:p@h:1/d"
	assert.Equal(t, "postgres://u:p@h:1/d", cfg.ConnString())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("other")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(fmt.Errorf("other")))
}
