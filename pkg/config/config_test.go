package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig_DefaultValues проверяет загрузку значений по умолчанию
func TestLoadConfig_DefaultValues(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Expected server host to be \"0.0.0.0\", got %s", config.Server.Host)
	}
	if config.Server.Port != 8080 {
		t.Errorf("Expected server port to be 8080, got %d", config.Server.Port)
	}
	if config.Storage.Driver != "postgres" {
		t.Errorf("Expected storage driver to be postgres, got %s", config.Storage.Driver)
	}
	if config.Environment != "dev" {
		t.Errorf("Expected environment to be \"dev\", got %s", config.Environment)
	}

	assert.Equal(t, "250.00", config.Billing.FirmDefaultRate)
	assert.Equal(t, "1.5", config.Billing.WeekendMultiplier)
	assert.Equal(t, "1.25", config.Billing.AfterHoursMultiplier)
	assert.Equal(t, "2.0", config.Billing.EmergencyMultiplier)
	assert.Equal(t, "16.0", config.Billing.DailyHourCap)
	assert.Equal(t, 8, config.Billing.BusinessHoursStart)
	assert.Equal(t, 18, config.Billing.BusinessHoursEnd)
	assert.Equal(t, "500.00", config.Billing.RoleRates["partner"])
	assert.Equal(t, "100.00", config.Billing.RoleRates["legal_assistant"])
}

// TestLoadConfig_FileOverride проверяет переопределение значений из файла
func TestLoadConfig_FileOverride(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "billing.yaml")
	configContent := `server:
  host: "127.0.0.1"
  port: 9090
storage:
  driver: memory
environment: "prod"
billing:
  timezone: "America/New_York"
  role_rates:
    partner: "650.00"
  weekend_multiplier: "1.75"
`
	require.NoError(t, os.WriteFile(tempFile, []byte(configContent), 0644))

	config, err := LoadConfig(tempFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "memory", config.Storage.Driver)
	assert.Equal(t, "prod", config.Environment)
	assert.Equal(t, "America/New_York", config.Billing.Timezone)
	assert.Equal(t, "1.75", config.Billing.WeekendMultiplier)
	assert.Equal(t, "650.00", config.Billing.RoleRates["partner"])
	// Роли без переопределения сохраняют значения по умолчанию
	assert.Equal(t, "300.00", config.Billing.RoleRates["attorney"])
}

// TestLoadConfig_JSONFile проверяет загрузку JSON файла
func TestLoadConfig_JSONFile(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "billing.json")
	require.NoError(t, os.WriteFile(tempFile, []byte(`{"server":{"port":7070},"storage":{"driver":"memory"}}`), 0644))

	config, err := LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "memory", config.Storage.Driver)
}

// TestLoadConfig_EnvOverride проверяет приоритет переменных окружения
func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("BILLING_TIMEZONE", "Europe/London")
	t.Setenv("BILLING_FIRM_DEFAULT_RATE", "275.00")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9191, config.Server.Port)
	assert.Equal(t, "memory", config.Storage.Driver)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "redis:6380", config.Redis.Addr)
	assert.Equal(t, "Europe/London", config.Billing.Timezone)
	assert.Equal(t, "275.00", config.Billing.FirmDefaultRate)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestValidateConfig проверяет правила валидации
func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid environment", func(c *Config) { c.Environment = "qa" }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"postgres without db name", func(c *Config) { c.Database.Name = "" }},
		{"bad duration", func(c *Config) { c.Billing.RateCacheTTL = "soon" }},
		{"zero firm rate", func(c *Config) { c.Billing.FirmDefaultRate = "0" }},
		{"bad role rate", func(c *Config) { c.Billing.RoleRates["partner"] = "abc" }},
		{"multiplier below one", func(c *Config) { c.Billing.WeekendMultiplier = "0.9" }},
		{"bad timezone", func(c *Config) { c.Billing.Timezone = "Mars/Olympus" }},
		{"inverted business hours", func(c *Config) { c.Billing.BusinessHoursStart = 18; c.Billing.BusinessHoursEnd = 8 }},
		{"negative description length", func(c *Config) { c.Billing.MinDescriptionLength = -1 }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, validateConfig(c))
		})
	}

	t.Run("memory driver skips database", func(t *testing.T) {
		c := Default()
		c.Storage.Driver = "memory"
		c.Database = DatabaseConfig{}
		assert.NoError(t, validateConfig(c))
	})
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("bogus", time.Minute))
}

// TestSave проверяет сохранение и повторную загрузку
func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "billing.yaml")
	c := Default()
	c.Server.Port = 8181
	require.NoError(t, c.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, loaded.Server.Port)
}

// TestWatch проверяет перезагрузку конфигурации при изменении файла
func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, nil)
	}()

	// Даем наблюдателю время подписаться на каталог
	time.Sleep(100 * time.Millisecond)
	content := "storage:\n  driver: memory\nbilling:\n  role_rates:\n    partner: \"700.00\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	select {
	case c := <-changes:
		assert.Equal(t, "700.00", c.Billing.RoleRates["partner"])
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_RequiresFile(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "", func(*Config) {}, nil))
}
