package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/logger"
)

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		exceeded bool
		err      error
		expected int
	}{
		{"under limit", "tenant-1", false, nil, http.StatusOK},
		{"over limit", "tenant-1", true, nil, http.StatusTooManyRequests},
		{"limiter down", "tenant-1", false, fmt.Errorf("redis down"), http.StatusOK},
		{"no tenant", "", false, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &MockRateLimiter{}
			if tt.tenant != "" {
				limiter.On("CheckRateLimit", mock.Anything, tt.tenant, 10, time.Minute).Return(tt.exceeded, tt.err)
			}

			handler := Middleware(limiter, HeaderKey("X-Tenant-ID"), 10, logger.NewNop())(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/timers", nil)
			req.Header.Set("X-Tenant-ID", tt.tenant)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
			limiter.AssertExpectations(t)
		})
	}
}

func TestRedisRateLimiter_Integration(t *testing.T) {
	addr := os.Getenv("BILLING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BILLING_TEST_REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	limiter := NewRedisRateLimiter(client)
	key := "test-" + uuid.NewString()

	for i := 0; i < 3; i++ {
		exceeded, err := limiter.CheckRateLimit(context.Background(), key, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, exceeded)
	}
	exceeded, err := limiter.CheckRateLimit(context.Background(), key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, exceeded)
}
