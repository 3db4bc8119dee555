package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
)

// RateLimiter интерфейс для ограничения частоты запросов
type RateLimiter interface {
	// CheckRateLimit проверяет лимит для заданного ключа
	// Возвращает true, если лимит превышен
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisRateLimiter реализация RateLimiter с фиксированным окном в Redis
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter создает новый экземпляр RedisRateLimiter
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// CheckRateLimit увеличивает счетчик окна и сообщает, превышен ли лимит.
// INCR и EXPIRE выполняются одной транзакцией; TTL ставится только новому ключу.
func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	windowStart := time.Now().Truncate(window).Unix()
	redisKey := fmt.Sprintf("rate_limit:%s:%d", key, windowStart)

	tx := r.client.TxPipeline()
	incr := tx.Incr(ctx, redisKey)
	tx.ExpireNX(ctx, redisKey, window)
	if _, err := tx.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit transaction: %w", err)
	}

	return incr.Val() > int64(limit), nil
}

// KeyFunc извлекает ключ ограничения из запроса; пустой ключ не ограничивается
type KeyFunc func(r *http.Request) string

// HeaderKey ограничивает по значению заголовка (например X-Tenant-ID)
func HeaderKey(header string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

// Middleware ограничивает число запросов на ключ в минуту. При недоступности
// Redis запрос пропускается.
func Middleware(limiter RateLimiter, keyFn KeyFunc, requestsPerMinute int, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			exceeded, err := limiter.CheckRateLimit(r.Context(), key, requestsPerMinute, time.Minute)
			if err != nil {
				log.Warn("Rate limiter unavailable, request allowed",
					logger.CtxField(r.Context()),
					logger.String("key", key),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if exceeded {
				w.Header().Set("Retry-After", strconv.Itoa(60-time.Now().Second()))
				errors.WriteHTTPStatus(w, http.StatusTooManyRequests,
					errors.New(errors.ErrForbidden, "rate limit exceeded").
						WithDetails(fmt.Sprintf("limit: %d requests per minute", requestsPerMinute)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
