package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// RateRepository хранит ставки и настройки дел в памяти
type RateRepository struct {
	mu      sync.RWMutex
	rates   map[string]*domain.BillingRate
	configs map[string]*domain.CaseRateConfiguration
}

// NewRateRepository создает пустое хранилище ставок
func NewRateRepository() *RateRepository {
	return &RateRepository{
		rates:   make(map[string]*domain.BillingRate),
		configs: make(map[string]*domain.CaseRateConfiguration),
	}
}

var _ repository.RateRepository = (*RateRepository)(nil)

func (r *RateRepository) tenantRates(tenantID string) []*domain.BillingRate {
	result := make([]*domain.BillingRate, 0)
	for _, rate := range r.rates {
		if rate.TenantID == tenantID {
			result = append(result, rate)
		}
	}
	return result
}

// FindActiveUserRate возвращает базовую ставку пользователя
func (r *RateRepository) FindActiveUserRate(_ context.Context, tenantID, userID string) (*domain.BillingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.PickUserBaseRate(r.tenantRates(tenantID), tenantID, userID).Clone(), nil
}

// FindCaseSpecificRate возвращает ставку пары (дело, пользователь)
func (r *RateRepository) FindCaseSpecificRate(_ context.Context, tenantID, caseID, userID string) (*domain.BillingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.PickCaseSpecificRate(r.tenantRates(tenantID), tenantID, caseID, userID).Clone(), nil
}

// FindMostSpecificRate возвращает самую специфичную действующую ставку
func (r *RateRepository) FindMostSpecificRate(_ context.Context, q domain.RateQuery) (*domain.BillingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.PickMostSpecificRate(r.tenantRates(q.TenantID), q).Clone(), nil
}

// FindCaseConfiguration возвращает активную настройку дела
func (r *RateRepository) FindCaseConfiguration(_ context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[configKey(tenantID, caseID)]
	if !ok || !cfg.IsActive {
		return nil, nil
	}
	return cfg.Clone(), nil
}

// CreateRate сохраняет новую ставку
func (r *RateRepository) CreateRate(ctx context.Context, rate *domain.BillingRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rates[rate.ID]; ok {
		return errors.New(errors.ErrConflict, "billing rate already exists").
			WithDetails(fmt.Sprintf("rate_id: %s", rate.ID)).
			WithContext(ctx)
	}
	r.rates[rate.ID] = rate.Clone()
	return nil
}

// UpdateRate заменяет существующую ставку
func (r *RateRepository) UpdateRate(ctx context.Context, rate *domain.BillingRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rates[rate.ID]
	if !ok || existing.TenantID != rate.TenantID {
		return rateNotFound(ctx, rate.ID)
	}
	r.rates[rate.ID] = rate.Clone()
	return nil
}

// DeactivateRate выключает ставку
func (r *RateRepository) DeactivateRate(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rates[id]
	if !ok || existing.TenantID != tenantID {
		return rateNotFound(ctx, id)
	}
	existing.IsActive = false
	existing.UpdatedAt = at
	return nil
}

// DeleteRate удаляет ставку
func (r *RateRepository) DeleteRate(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rates[id]
	if !ok || existing.TenantID != tenantID {
		return rateNotFound(ctx, id)
	}
	delete(r.rates, id)
	return nil
}

// GetRate возвращает ставку по ID
func (r *RateRepository) GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	existing, ok := r.rates[id]
	if !ok || existing.TenantID != tenantID {
		return nil, rateNotFound(ctx, id)
	}
	return existing.Clone(), nil
}

// ListRates возвращает ставки арендатора по фильтру
func (r *RateRepository) ListRates(_ context.Context, tenantID string, filter repository.RateFilter) ([]*domain.BillingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.BillingRate, 0)
	for _, rate := range r.tenantRates(tenantID) {
		if filter.ActiveOnly && !rate.IsActive {
			continue
		}
		if filter.UserID != nil && (rate.UserID == nil || *rate.UserID != *filter.UserID) {
			continue
		}
		if filter.CaseID != nil && (rate.LegalCaseID == nil || *rate.LegalCaseID != *filter.CaseID) {
			continue
		}
		result = append(result, rate.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveDate.Equal(result[j].EffectiveDate) {
			return result[i].EffectiveDate.After(result[j].EffectiveDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SaveCaseConfiguration сохраняет единственную активную настройку дела
func (r *RateRepository) SaveCaseConfiguration(_ context.Context, cfg *domain.CaseRateConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[configKey(cfg.TenantID, cfg.LegalCaseID)] = cfg.Clone()
	return nil
}

// DeactivateCaseConfiguration выключает настройку дела
func (r *RateRepository) DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[configKey(tenantID, caseID)]
	if !ok || !cfg.IsActive {
		return configNotFound(ctx, caseID)
	}
	cfg.IsActive = false
	cfg.UpdatedAt = at
	return nil
}

// DeleteCaseConfiguration удаляет настройку дела
func (r *RateRepository) DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := configKey(tenantID, caseID)
	if _, ok := r.configs[key]; !ok {
		return configNotFound(ctx, caseID)
	}
	delete(r.configs, key)
	return nil
}

func configKey(tenantID, caseID string) string {
	return tenantID + "/" + caseID
}

func rateNotFound(ctx context.Context, id string) error {
	return errors.New(errors.ErrNotFound, "billing rate not found").
		WithDetails(fmt.Sprintf("rate_id: %s", id)).
		WithContext(ctx)
}

func configNotFound(ctx context.Context, caseID string) error {
	return errors.New(errors.ErrNotFound, "case rate configuration not found").
		WithDetails(fmt.Sprintf("case_id: %s", caseID)).
		WithContext(ctx)
}
