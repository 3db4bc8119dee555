package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/config"
)

// TestConnect_Unreachable проверяет ошибку подключения без Redis
func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = 1
	cfg.RetryInterval = 10 * time.Millisecond

	_, err := Connect(ctx, cfg)
	if err == nil {
		t.Error("Expected error when connecting to non-existent redis")
	}
}

// TestHealthCheck проверяет health check без клиента
func TestHealthCheck(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error when client is not initialized")
	}
	assert.NoError(t, client.Close())
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RedisConfig{
		Addr:          "cache:6380",
		DB:            2,
		PoolSize:      5,
		RetryInterval: "250ms",
		HealthCheck:   "",
	})

	assert.Equal(t, "cache:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 5, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConn)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.HealthCheck)
}

func TestConnect_Integration(t *testing.T) {
	addr := os.Getenv("BILLING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BILLING_TEST_REDIS_ADDR is not set")
	}

	cfg := NewConfig()
	cfg.Addr = addr
	client, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}
