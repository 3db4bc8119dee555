package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// RateInput параметры создания или изменения ставки
type RateInput struct {
	UserID        *string         `json:"user_id,omitempty"`
	LegalCaseID   *string         `json:"legal_case_id,omitempty"`
	ClientID      *string         `json:"client_id,omitempty"`
	MatterTypeID  *string         `json:"matter_type_id,omitempty"`
	RateAmount    decimal.Decimal `json:"rate_amount"`
	RateType      domain.RateType `json:"rate_type,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
}

// CaseConfigInput параметры настройки ставок дела
type CaseConfigInput struct {
	DefaultRate          *decimal.Decimal `json:"default_rate,omitempty"`
	AllowMultipliers     bool             `json:"allow_multipliers"`
	WeekendMultiplier    *decimal.Decimal `json:"weekend_multiplier,omitempty"`
	AfterHoursMultiplier *decimal.Decimal `json:"after_hours_multiplier,omitempty"`
	EmergencyMultiplier  *decimal.Decimal `json:"emergency_multiplier,omitempty"`
}

// RateAdminService управляет ставками и настройками дел.
// Запись идет через кэширующее хранилище, которое сбрасывает кэш арендатора.
type RateAdminService struct {
	rates  repository.RateRepository
	cases  repository.CaseDirectory
	clock  clock.Clock
	logger logger.Logger
}

// NewRateAdminService создает сервис администрирования ставок
func NewRateAdminService(rates repository.RateRepository, cases repository.CaseDirectory, clk clock.Clock, log logger.Logger) *RateAdminService {
	return &RateAdminService{rates: rates, cases: cases, clock: clk, logger: log}
}

func validateRateInput(in RateInput) []string {
	var violations []string
	if !in.RateAmount.IsPositive() {
		violations = append(violations, "rate_amount must be greater than zero")
	}
	if in.RateType != "" && !domain.IsValidRateType(in.RateType) {
		violations = append(violations, fmt.Sprintf("rate_type %q is not supported", in.RateType))
	}
	if in.EffectiveDate.IsZero() {
		violations = append(violations, "effective_date is required")
	}
	if in.EndDate != nil && !in.EffectiveDate.IsZero() && in.EndDate.Before(in.EffectiveDate) {
		violations = append(violations, "end_date must not be before effective_date")
	}
	if in.UserID == nil && in.LegalCaseID == nil && in.ClientID == nil && in.MatterTypeID == nil {
		violations = append(violations, "rate must be scoped to a user, case, client or matter type")
	}
	for name, scope := range map[string]*string{
		"user_id":        in.UserID,
		"legal_case_id":  in.LegalCaseID,
		"client_id":      in.ClientID,
		"matter_type_id": in.MatterTypeID,
	} {
		if scope != nil && *scope == "" {
			violations = append(violations, name+" must not be empty")
		}
	}
	return violations
}

func (s *RateAdminService) checkCase(ctx context.Context, tenantID string, caseID *string) error {
	if caseID == nil || *caseID == "" {
		return nil
	}
	if _, err := s.cases.FindCase(ctx, tenantID, *caseID); err != nil {
		return storeFailure(ctx, err, "failed to find legal case")
	}
	return nil
}

func applyRateInput(rate *domain.BillingRate, in RateInput) {
	rate.UserID = in.UserID
	rate.LegalCaseID = in.LegalCaseID
	rate.ClientID = in.ClientID
	rate.MatterTypeID = in.MatterTypeID
	rate.RateAmount = in.RateAmount
	rate.RateType = in.RateType
	if rate.RateType == "" {
		rate.RateType = domain.RateTypeHourly
	}
	rate.EffectiveDate = in.EffectiveDate
	rate.EndDate = in.EndDate
	if in.IsActive != nil {
		rate.IsActive = *in.IsActive
	}
}

// CreateRate создает ставку арендатора
func (s *RateAdminService) CreateRate(ctx context.Context, tenantID string, in RateInput) (*domain.BillingRate, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if violations := validateRateInput(in); len(violations) > 0 {
		return nil, errors.NewValidation("invalid billing rate", violations).WithContext(ctx)
	}
	if err := s.checkCase(ctx, tenantID, in.LegalCaseID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rate := &domain.BillingRate{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyRateInput(rate, in)

	if err := s.rates.CreateRate(ctx, rate); err != nil {
		return nil, storeFailure(ctx, err, "failed to create billing rate")
	}

	s.logger.Info("Billing rate created successfully",
		logger.CtxField(ctx),
		logger.String("rate_id", rate.ID),
		logger.String("tenant_id", tenantID),
		logger.String("rate_amount", rate.RateAmount.StringFixed(2)),
		logger.Int("specificity", rate.Specificity()),
	)
	return rate, nil
}

// UpdateRate заменяет параметры ставки
func (s *RateAdminService) UpdateRate(ctx context.Context, tenantID, id string, in RateInput) (*domain.BillingRate, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if violations := validateRateInput(in); len(violations) > 0 {
		return nil, errors.NewValidation("invalid billing rate", violations).WithContext(ctx)
	}
	if err := s.checkCase(ctx, tenantID, in.LegalCaseID); err != nil {
		return nil, err
	}

	rate, err := s.rates.GetRate(ctx, tenantID, id)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to get billing rate")
	}
	applyRateInput(rate, in)
	rate.UpdatedAt = s.clock.Now()

	if err := s.rates.UpdateRate(ctx, rate); err != nil {
		return nil, storeFailure(ctx, err, "failed to update billing rate")
	}

	s.logger.Info("Billing rate updated successfully",
		logger.CtxField(ctx),
		logger.String("rate_id", id),
		logger.String("tenant_id", tenantID),
	)
	return rate, nil
}

// DeactivateRate снимает ставку с действия, не удаляя ее
func (s *RateAdminService) DeactivateRate(ctx context.Context, tenantID, id string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := s.rates.DeactivateRate(ctx, tenantID, id, s.clock.Now()); err != nil {
		return storeFailure(ctx, err, "failed to deactivate billing rate")
	}
	s.logger.Info("Billing rate deactivated successfully",
		logger.CtxField(ctx),
		logger.String("rate_id", id),
		logger.String("tenant_id", tenantID),
	)
	return nil
}

// DeleteRate удаляет ставку
func (s *RateAdminService) DeleteRate(ctx context.Context, tenantID, id string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := s.rates.DeleteRate(ctx, tenantID, id); err != nil {
		return storeFailure(ctx, err, "failed to delete billing rate")
	}
	s.logger.Info("Billing rate deleted successfully",
		logger.CtxField(ctx),
		logger.String("rate_id", id),
		logger.String("tenant_id", tenantID),
	)
	return nil
}

// GetRate возвращает ставку по ID
func (s *RateAdminService) GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	rate, err := s.rates.GetRate(ctx, tenantID, id)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to get billing rate")
	}
	return rate, nil
}

// ListRates возвращает ставки арендатора по фильтру
func (s *RateAdminService) ListRates(ctx context.Context, tenantID string, filter repository.RateFilter) ([]*domain.BillingRate, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	rates, err := s.rates.ListRates(ctx, tenantID, filter)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to list billing rates")
	}
	return rates, nil
}

// GetCaseConfiguration возвращает активную настройку дела либо NOT_FOUND
func (s *RateAdminService) GetCaseConfiguration(ctx context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := s.checkCase(ctx, tenantID, &caseID); err != nil {
		return nil, err
	}
	cfg, err := s.rates.FindCaseConfiguration(ctx, tenantID, caseID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to find case rate configuration")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrNotFound, "case rate configuration not found").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return cfg, nil
}

// SaveCaseConfiguration создает новую активную настройку дела вместо прежней
func (s *RateAdminService) SaveCaseConfiguration(ctx context.Context, tenantID, caseID string, in CaseConfigInput) (*domain.CaseRateConfiguration, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	var violations []string
	if in.DefaultRate != nil && !in.DefaultRate.IsPositive() {
		violations = append(violations, "default_rate must be greater than zero")
	}
	one := decimal.NewFromInt(1)
	for name, m := range map[string]*decimal.Decimal{
		"weekend_multiplier":     in.WeekendMultiplier,
		"after_hours_multiplier": in.AfterHoursMultiplier,
		"emergency_multiplier":   in.EmergencyMultiplier,
	} {
		if m != nil && m.LessThan(one) {
			violations = append(violations, name+" must be at least 1")
		}
	}
	if len(violations) > 0 {
		return nil, errors.NewValidation("invalid case rate configuration", violations).WithContext(ctx)
	}
	if err := s.checkCase(ctx, tenantID, &caseID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cfg := &domain.CaseRateConfiguration{
		ID:                   uuid.New().String(),
		TenantID:             tenantID,
		LegalCaseID:          caseID,
		DefaultRate:          in.DefaultRate,
		AllowMultipliers:     in.AllowMultipliers,
		WeekendMultiplier:    in.WeekendMultiplier,
		AfterHoursMultiplier: in.AfterHoursMultiplier,
		EmergencyMultiplier:  in.EmergencyMultiplier,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.rates.SaveCaseConfiguration(ctx, cfg); err != nil {
		return nil, storeFailure(ctx, err, "failed to save case rate configuration")
	}

	s.logger.Info("Case rate configuration saved successfully",
		logger.CtxField(ctx),
		logger.String("case_id", caseID),
		logger.String("tenant_id", tenantID),
		logger.Bool("allow_multipliers", cfg.AllowMultipliers),
	)
	return cfg, nil
}

// DeactivateCaseConfiguration снимает настройку дела с действия
func (s *RateAdminService) DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := s.checkCase(ctx, tenantID, &caseID); err != nil {
		return err
	}
	if err := s.rates.DeactivateCaseConfiguration(ctx, tenantID, caseID, s.clock.Now()); err != nil {
		return storeFailure(ctx, err, "failed to deactivate case rate configuration")
	}
	return nil
}

// DeleteCaseConfiguration удаляет настройки дела
func (s *RateAdminService) DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := s.checkCase(ctx, tenantID, &caseID); err != nil {
		return err
	}
	if err := s.rates.DeleteCaseConfiguration(ctx, tenantID, caseID); err != nil {
		return storeFailure(ctx, err, "failed to delete case rate configuration")
	}
	s.logger.Info("Case rate configuration deleted successfully",
		logger.CtxField(ctx),
		logger.String("case_id", caseID),
		logger.String("tenant_id", tenantID),
	)
	return nil
}
