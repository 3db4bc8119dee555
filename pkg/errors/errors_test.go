package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"LegalPracticePlatform/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TestNewError проверяет создание новой ошибки
func TestNewError(t *testing.T) {
	e := New(ErrNotFound, "timer not found")
	if e == nil {
		t.Fatal("Expected error, got nil")
	}

	if e.Code != ErrNotFound {
		t.Errorf("Expected code %s, got %s", ErrNotFound, e.Code)
	}

	if e.Message != "timer not found" {
		t.Errorf("Expected message 'timer not found', got %s", e.Message)
	}

	if e.Cause != nil {
		t.Error("Expected cause to be nil")
	}
}

// TestWrapError проверяет оборачивание существующей ошибки
func TestWrapError(t *testing.T) {
	originalErr := fmt.Errorf("connection refused")
	e := Wrap(originalErr, ErrInternal, "failed to load timer")

	require.NotNil(t, e)
	assert.Equal(t, ErrInternal, e.Code)
	assert.Equal(t, "failed to load timer: connection refused", e.Error())
	assert.ErrorIs(t, e, originalErr)

	assert.Nil(t, Wrap(nil, ErrInternal, "nothing"))
}

// TestWithDetails проверяет, что исходная ошибка не меняется
func TestWithDetails(t *testing.T) {
	e := New(ErrValidation, "invalid input")
	eWithDetails := e.WithDetails("timer_id: t-1")

	assert.Equal(t, "timer_id: t-1", eWithDetails.Details)
	assert.Empty(t, e.Details)

	var nilErr *Error
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Nil(t, nilErr.WithContext(context.Background()))
}

func TestNewValidation(t *testing.T) {
	violations := []string{"description too short", "hours must be positive"}
	e := NewValidation("time entry rejected", violations)
	violations[0] = "mutated"

	assert.Equal(t, ErrValidation, e.Code)
	assert.Equal(t, []string{"description too short", "hours must be positive"}, e.Violations)
	assert.Contains(t, e.Error(), "description too short; hours must be positive")
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(ErrForbidden, "not owner"))

	assert.Equal(t, ErrForbidden, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrForbidden))
	assert.False(t, IsCode(wrapped, ErrNotFound))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.False(t, IsCode(nil, ErrInternal))
}

func TestIs(t *testing.T) {
	err := New(ErrConflict, "timer already running").WithDetails("case_id: 42")
	assert.ErrorIs(t, err, New(ErrConflict, ""))
	assert.NotErrorIs(t, err, New(ErrNotFound, ""))
}

// TestHTTPStatus проверяет сопоставление кодов и HTTP статусов
func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrConfiguration, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrConflict, http.StatusConflict},
		{ErrInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "msg").HTTPStatus())
		})
	}
}

// TestGRPCRoundTrip проверяет преобразование в gRPC статус и обратно
func TestGRPCRoundTrip(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		grpcCode codes.Code
	}{
		{ErrNotFound, codes.NotFound},
		{ErrValidation, codes.InvalidArgument},
		{ErrUnauthorized, codes.Unauthenticated},
		{ErrForbidden, codes.PermissionDenied},
		{ErrConflict, codes.AlreadyExists},
		{ErrConfiguration, codes.FailedPrecondition},
		{ErrInternal, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			grpcErr := New(tt.code, "message").WithDetails("details").ToGRPCErr()
			st, ok := status.FromError(grpcErr)
			require.True(t, ok)
			assert.Equal(t, tt.grpcCode, st.Code())

			back := FromGRPCErr(grpcErr)
			assert.Equal(t, tt.code, back.Code)
			assert.Equal(t, "message", back.Message)
			assert.Equal(t, "details", back.Details)
		})
	}
}

func TestGRPCViolationsAndTraceID(t *testing.T) {
	ctx := logger.WithTraceID(context.Background(), "trace-123")
	e := NewValidation("time entry rejected", []string{"rate must be positive"}).WithContext(ctx)

	back := FromGRPCErr(e.ToGRPCErr())
	assert.Equal(t, ErrValidation, back.Code)
	assert.Equal(t, []string{"rate must be positive"}, back.Violations)

	var nilErr *Error
	assert.NoError(t, nilErr.ToGRPCErr())
	assert.Nil(t, FromGRPCErr(nil))

	plain := FromGRPCErr(fmt.Errorf("plain error"))
	assert.Equal(t, ErrInternal, plain.Code)
}

func TestWriteHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, NewValidation("time entry rejected", []string{"hours must be positive"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrValidation, body.Error.Code)
	assert.Equal(t, []string{"hours must be positive"}, body.Error.Violations)

	rec = httptest.NewRecorder()
	WriteHTTP(rec, fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// TestMiddleware проверяет восстановление после паники
func TestMiddleware(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, rec.Body.String(), "panic: unexpected")
}
