package repository

import (
	"context"
	"time"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// RateFilter параметры выборки ставок
type RateFilter struct {
	UserID     *string
	CaseID     *string
	ActiveOnly bool
}

// RateRepository хранилище ставок и настроек дел.
// Методы Find* возвращают (nil, nil), если ничего не найдено.
type RateRepository interface {
	// FindActiveUserRate возвращает базовую ставку пользователя
	FindActiveUserRate(ctx context.Context, tenantID, userID string) (*domain.BillingRate, error)

	// FindCaseSpecificRate возвращает ставку для пары (дело, пользователь)
	FindCaseSpecificRate(ctx context.Context, tenantID, caseID, userID string) (*domain.BillingRate, error)

	// FindMostSpecificRate возвращает самую специфичную ставку, действующую в дату запроса
	FindMostSpecificRate(ctx context.Context, q domain.RateQuery) (*domain.BillingRate, error)

	// FindCaseConfiguration возвращает активную настройку дела
	FindCaseConfiguration(ctx context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error)

	CreateRate(ctx context.Context, rate *domain.BillingRate) error
	UpdateRate(ctx context.Context, rate *domain.BillingRate) error
	DeactivateRate(ctx context.Context, tenantID, id string, at time.Time) error
	DeleteRate(ctx context.Context, tenantID, id string) error
	GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error)
	ListRates(ctx context.Context, tenantID string, filter RateFilter) ([]*domain.BillingRate, error)

	// SaveCaseConfiguration сохраняет настройку дела, деактивируя предыдущую активную
	SaveCaseConfiguration(ctx context.Context, cfg *domain.CaseRateConfiguration) error
	DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string, at time.Time) error
	DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error
}
