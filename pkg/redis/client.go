package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"LegalPracticePlatform/pkg/config"
	"LegalPracticePlatform/pkg/connection"
)

// Client представляет подключение к Redis
type Client struct {
	Client *redis.Client
}

// Config представляет конфигурацию Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	// Connection pool settings
	PoolSize    int
	MinIdleConn int
	// Retry settings
	MaxRetries    int
	RetryInterval time.Duration
	// Health check
	HealthCheck time.Duration
}

// NewConfig создает конфигурацию по умолчанию
func NewConfig() *Config {
	return &Config{
		Addr:          "localhost:6379",
		Password:      "",
		DB:            0,
		PoolSize:      10,
		MinIdleConn:   2,
		MaxRetries:    3,
		RetryInterval: 1 * time.Second,
		HealthCheck:   30 * time.Second,
	}
}

// FromConfig строит конфигурацию клиента из секции redis
func FromConfig(cfg config.RedisConfig) *Config {
	c := NewConfig()
	c.Addr = cfg.Addr
	c.Password = cfg.Password
	c.DB = cfg.DB
	if cfg.PoolSize > 0 {
		c.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConn > 0 {
		c.MinIdleConn = cfg.MinIdleConn
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	c.RetryInterval = config.Duration(cfg.RetryInterval, c.RetryInterval)
	c.HealthCheck = config.Duration(cfg.HealthCheck, c.HealthCheck)
	return c
}

// NewClient создает клиент без проверки подключения
func NewClient(config *Config) *Client {
	return &Client{Client: redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConn,
		// Таймауты
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		// Таймаут для получения соединения из пула
		PoolTimeout:        4 * time.Second,
		IdleCheckFrequency: config.HealthCheck,
	})}
}

// Connect устанавливает подключение к Redis с retry логикой
func Connect(ctx context.Context, config *Config) (*Client, error) {
	client := NewClient(config)

	retry := connection.RetryConfig{
		MaxAttempts:  config.MaxRetries + 1,
		InitialDelay: config.RetryInterval,
		MaxDelay:     10 * config.RetryInterval,
		Multiplier:   2,
	}
	err := connection.WithRetry(ctx, retry, func(ctx context.Context) error {
		if err := client.Client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Close закрывает подключение к Redis
func (r *Client) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// HealthCheck проверяет состояние подключения к Redis
func (r *Client) HealthCheck(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	return r.Client.Ping(ctx).Err()
}
