package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"LegalPracticePlatform/pkg/config"
	"LegalPracticePlatform/pkg/connection"
)

// uniqueViolation код ошибки PostgreSQL для нарушения уникального индекса
const uniqueViolation = "23505"

// Postgres представляет подключение к PostgreSQL
type Postgres struct {
	Pool *pgxpool.Pool
}

// Config представляет конфигурацию PostgreSQL
type Config struct {
	// DSN, если задан, используется вместо отдельных параметров
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Connection pool settings
	MaxConns    int
	MinConns    int
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	HealthCheck time.Duration
	// Retry settings
	MaxRetries    int
	RetryInterval time.Duration
}

// NewConfig создает конфигурацию по умолчанию
func NewConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          5432,
		User:          "postgres",
		Password:      "postgres",
		Database:      "postgres",
		SSLMode:       "disable",
		MaxConns:      20,
		MinConns:      2,
		MaxConnLife:   30 * time.Minute,
		MaxConnIdle:   5 * time.Minute,
		HealthCheck:   30 * time.Second,
		MaxRetries:    3,
		RetryInterval: 1 * time.Second,
	}
}

// FromConfig строит конфигурацию пула из секции database
func FromConfig(cfg config.DatabaseConfig) *Config {
	c := NewConfig()
	c.Host = cfg.Host
	c.Port = cfg.Port
	c.User = cfg.User
	c.Password = cfg.Password
	c.Database = cfg.Name
	if cfg.SSLMode != "" {
		c.SSLMode = cfg.SSLMode
	}
	if cfg.MaxConns > 0 {
		c.MaxConns = cfg.MaxConns
		if c.MinConns > c.MaxConns {
			c.MinConns = c.MaxConns
		}
	}
	return c
}

// ConnString возвращает строку подключения
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect устанавливает подключение к PostgreSQL с retry логикой
func Connect(ctx context.Context, config *Config) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.HealthCheckPeriod = config.HealthCheck
	poolConfig.MaxConns = int32(config.MaxConns)
	poolConfig.MinConns = int32(config.MinConns)
	poolConfig.MaxConnLifetime = config.MaxConnLife
	poolConfig.MaxConnIdleTime = config.MaxConnIdle
	poolConfig.MaxConnLifetimeJitter = 30 * time.Second

	var pool *pgxpool.Pool
	retry := connection.RetryConfig{
		MaxAttempts:  config.MaxRetries + 1,
		InitialDelay: config.RetryInterval,
		MaxDelay:     10 * config.RetryInterval,
		Multiplier:   2,
	}
	err = connection.WithRetry(ctx, retry, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Postgres{Pool: pool}, nil
}

// Close закрывает подключение к базе данных
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// HealthCheck проверяет состояние подключения к базе данных
func (p *Postgres) HealthCheck(ctx context.Context) error {
	if p.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	var result string
	return p.Pool.QueryRow(ctx, "SELECT 'healthy'").Scan(&result)
}

// TxBeginner источник транзакций (pgxpool.Pool или pgx.Conn)
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx выполняет fn в транзакции. Ошибка fn или отмена контекста откатывают
// транзакцию целиком.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback после Commit возвращает ErrTxClosed, это ожидаемо
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation проверяет, что ошибка вызвана нарушением уникального индекса
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsNoRows проверяет, что запрос не вернул строк
func IsNoRows(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

// Migrate применяет *.sql файлы из migrations в лексикографическом порядке.
// Примененные версии запоминаются в schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		err = WithTx(ctx, pool, func(tx pgx.Tx) error {
			var applied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
			).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}
