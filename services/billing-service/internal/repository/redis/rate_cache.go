package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// CachedRateRepository кэширует чтения ставок и настроек дел в Redis.
//
// Ключи кэша включают поколение арендатора rates:{tenant}:gen. Любая запись
// увеличивает поколение до и после изменения в хранилище, поэтому следующее
// разрешение ставки никогда не видит значение, закэшированное до записи.
type CachedRateRepository struct {
	inner  repository.RateRepository
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedRateRepository оборачивает хранилище ставок кэшем
func NewCachedRateRepository(inner repository.RateRepository, client *redis.Client, ttl time.Duration, log logger.Logger) repository.RateRepository {
	return &CachedRateRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// cacheEntry хранит и найденное значение, и факт отсутствия
type cacheEntry[T any] struct {
	Found bool `json:"found"`
	Value *T   `json:"value,omitempty"`
}

func generationKey(tenantID string) string {
	return fmt.Sprintf("rates:%s:gen", tenantID)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func (r *CachedRateRepository) generation(ctx context.Context, tenantID string) (string, error) {
	gen, err := r.client.Get(ctx, generationKey(tenantID)).Result()
	if err == redis.Nil {
		return "0", nil
	}
	return gen, err
}

// readThrough читает значение из кэша, при промахе или ошибке Redis обращается к хранилищу
func readThrough[T any](ctx context.Context, r *CachedRateRepository, tenantID, key string, load func() (*T, error)) (*T, error) {
	gen, err := r.generation(ctx, tenantID)
	if err != nil {
		r.logger.Warn("Rate cache unavailable, reading from store",
			logger.CtxField(ctx),
			logger.String("tenant_id", tenantID),
			logger.Error(err),
		)
		return load()
	}

	cacheKey := fmt.Sprintf("rates:%s:%s:%s", tenantID, gen, key)
	data, err := r.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var entry cacheEntry[T]
		if jsonErr := json.Unmarshal(data, &entry); jsonErr == nil {
			if !entry.Found {
				return nil, nil
			}
			return entry.Value, nil
		}
	case err != redis.Nil:
		r.logger.Warn("Failed to read rate cache",
			logger.CtxField(ctx),
			logger.String("key", cacheKey),
			logger.Error(err),
		)
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(cacheEntry[T]{Found: value != nil, Value: value})
	if err == nil {
		err = r.client.Set(ctx, cacheKey, data, r.ttl).Err()
	}
	if err != nil {
		r.logger.Warn("Failed to write rate cache",
			logger.CtxField(ctx),
			logger.String("key", cacheKey),
			logger.Error(err),
		)
	}
	return value, nil
}

// invalidate увеличивает поколение арендатора
func (r *CachedRateRepository) invalidate(ctx context.Context, tenantID string) error {
	return r.client.Incr(ctx, generationKey(tenantID)).Err()
}

// write выполняет изменение в хранилище, окруженное инвалидацией кэша.
// Если кэш нельзя инвалидировать заранее, изменение не выполняется.
func (r *CachedRateRepository) write(ctx context.Context, tenantID string, op func() error) error {
	if err := r.invalidate(ctx, tenantID); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to invalidate rate cache").
			WithDetails(fmt.Sprintf("tenant_id: %s", tenantID)).
			WithContext(ctx)
	}

	if err := op(); err != nil {
		return err
	}

	if err := r.invalidate(ctx, tenantID); err != nil {
		r.logger.Error("Failed to invalidate rate cache after write",
			logger.CtxField(ctx),
			logger.String("tenant_id", tenantID),
			logger.Error(err),
		)
	}
	return nil
}

// FindActiveUserRate возвращает базовую ставку пользователя
func (r *CachedRateRepository) FindActiveUserRate(ctx context.Context, tenantID, userID string) (*domain.BillingRate, error) {
	return readThrough(ctx, r, tenantID, "user:"+userID, func() (*domain.BillingRate, error) {
		return r.inner.FindActiveUserRate(ctx, tenantID, userID)
	})
}

// FindCaseSpecificRate возвращает ставку пары (дело, пользователь)
func (r *CachedRateRepository) FindCaseSpecificRate(ctx context.Context, tenantID, caseID, userID string) (*domain.BillingRate, error) {
	return readThrough(ctx, r, tenantID, fmt.Sprintf("case:%s:%s", caseID, userID), func() (*domain.BillingRate, error) {
		return r.inner.FindCaseSpecificRate(ctx, tenantID, caseID, userID)
	})
}

// FindMostSpecificRate возвращает самую специфичную действующую ставку
func (r *CachedRateRepository) FindMostSpecificRate(ctx context.Context, q domain.RateQuery) (*domain.BillingRate, error) {
	key := fmt.Sprintf("specific:%s:%s:%s:%s:%s",
		q.UserID, optional(q.CaseID), optional(q.ClientID), optional(q.MatterTypeID), q.Date.Format("2006-01-02"))
	return readThrough(ctx, r, q.TenantID, key, func() (*domain.BillingRate, error) {
		return r.inner.FindMostSpecificRate(ctx, q)
	})
}

// FindCaseConfiguration возвращает активную настройку дела
func (r *CachedRateRepository) FindCaseConfiguration(ctx context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error) {
	return readThrough(ctx, r, tenantID, "config:"+caseID, func() (*domain.CaseRateConfiguration, error) {
		return r.inner.FindCaseConfiguration(ctx, tenantID, caseID)
	})
}

func (r *CachedRateRepository) CreateRate(ctx context.Context, rate *domain.BillingRate) error {
	return r.write(ctx, rate.TenantID, func() error { return r.inner.CreateRate(ctx, rate) })
}

func (r *CachedRateRepository) UpdateRate(ctx context.Context, rate *domain.BillingRate) error {
	return r.write(ctx, rate.TenantID, func() error { return r.inner.UpdateRate(ctx, rate) })
}

func (r *CachedRateRepository) DeactivateRate(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.write(ctx, tenantID, func() error { return r.inner.DeactivateRate(ctx, tenantID, id, at) })
}

func (r *CachedRateRepository) DeleteRate(ctx context.Context, tenantID, id string) error {
	return r.write(ctx, tenantID, func() error { return r.inner.DeleteRate(ctx, tenantID, id) })
}

// GetRate и ListRates используются администрированием и не кэшируются
func (r *CachedRateRepository) GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error) {
	return r.inner.GetRate(ctx, tenantID, id)
}

func (r *CachedRateRepository) ListRates(ctx context.Context, tenantID string, filter repository.RateFilter) ([]*domain.BillingRate, error) {
	return r.inner.ListRates(ctx, tenantID, filter)
}

func (r *CachedRateRepository) SaveCaseConfiguration(ctx context.Context, cfg *domain.CaseRateConfiguration) error {
	return r.write(ctx, cfg.TenantID, func() error { return r.inner.SaveCaseConfiguration(ctx, cfg) })
}

func (r *CachedRateRepository) DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string, at time.Time) error {
	return r.write(ctx, tenantID, func() error { return r.inner.DeactivateCaseConfiguration(ctx, tenantID, caseID, at) })
}

func (r *CachedRateRepository) DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	return r.write(ctx, tenantID, func() error { return r.inner.DeleteCaseConfiguration(ctx, tenantID, caseID) })
}
