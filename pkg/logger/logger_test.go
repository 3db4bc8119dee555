package logger

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestNewLogger_Environments проверяет создание логгера для разных окружений
func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"dev", "test", "prod"} {
		t.Run(env, func(t *testing.T) {
			logger, err := NewLogger(env, "debug", "billing-service")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if logger == nil {
				t.Fatal("Expected logger, got nil")
			}

			logger.Debug("Debug message")
			logger.Info("Info message", String("timer_id", "t-1"))
			logger.Warn("Warn message")
			logger.With(String("component", "rate_engine")).Error("Error message")
		})
	}
}

// TestNewLogger_InvalidLevel при некорректном уровне используется info
func TestNewLogger_InvalidLevel(t *testing.T) {
	logger, err := NewLogger("dev", "invalid", "billing-service")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if logger == nil {
		t.Fatal("Expected logger, got nil")
	}
}

// TestLogger_CtxField проверяет поле trace_id
func TestLogger_CtxField(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")

	field := CtxField(ctx)
	if field.Field.Key != "trace_id" {
		t.Errorf("Expected field key to be 'trace_id', got %s", field.Field.Key)
	}
	if field.Field.String != "trace-123" {
		t.Errorf("Expected trace-123, got %s", field.Field.String)
	}

	field = CtxField(context.Background())
	if field.Field.String != "unknown" {
		t.Errorf("Expected unknown, got %s", field.Field.String)
	}

	if _, ok := TraceID(nil); ok { //nolint:staticcheck
		t.Error("Expected no trace id for nil context")
	}
}

// TestLogger_Fields проверяет создание различных типов полей
func TestLogger_Fields(t *testing.T) {
	fields := map[string]Field{
		"name":     String("name", "test"),
		"tags":     Strings("tags", []string{"a"}),
		"count":    Int("count", 42),
		"seconds":  Int64("seconds", 360),
		"value":    Float64("value", 3.14),
		"active":   Bool("active", true),
		"elapsed":  Duration("elapsed", time.Second),
		"at":       Time("at", time.Unix(0, 0)),
		"error":    Error(errors.New("boom")),
		"data":     Any("data", map[string]interface{}{"key": "value"}),
	}

	for key, field := range fields {
		if field.Field.Key != key {
			t.Errorf("Expected field key %s, got %s", key, field.Field.Key)
		}
	}

	if Error(nil).Field.String != "nil" {
		t.Error("Expected nil error to be rendered as 'nil'")
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	if err := logger.Sync(); err != nil {
		t.Errorf("Expected no error from Sync, got %v", err)
	}
}
