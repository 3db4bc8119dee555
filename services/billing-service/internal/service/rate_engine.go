package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/metrics"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// Названия множителей, попадающие в ответы и логи
const (
	MultiplierEmergency  = "emergency"
	MultiplierWeekend    = "weekend"
	MultiplierAfterHours = "after_hours"
)

// TimerRateRequest параметры расчета ставки для таймера
type TimerRateRequest struct {
	TenantID         string
	UserID           string
	CaseID           string
	ExplicitRate     *decimal.Decimal
	ApplyMultipliers bool
	IsEmergency      bool
	At               time.Time
}

// TimerRate результат расчета ставки таймера
type TimerRate struct {
	BaseRate      decimal.Decimal            `json:"base_rate"`
	BaseSource    domain.RateSource          `json:"base_source"`
	BaseRateID    string                     `json:"base_rate_id,omitempty"`
	EffectiveRate decimal.Decimal            `json:"effective_rate"`
	Multipliers   []string                   `json:"multipliers"`
	Config        domain.EffectiveRateConfig `json:"config"`
	Case          *domain.LegalCase          `json:"-"`
}

// RateEngine выбирает базовую ставку и применяет множители
type RateEngine struct {
	rates     repository.RateRepository
	cases     repository.CaseDirectory
	roles     repository.RoleDirectory
	settings  BillingSettings
	clock     clock.Clock
	roleRates atomic.Pointer[domain.RoleRateTable]
	metrics   *metrics.BillingMetrics
	logger    logger.Logger
}

// NewRateEngine создает движок расчета ставок.
// roles может быть nil, тогда шаг ставки по роли пропускается; clk nil означает системное время.
func NewRateEngine(
	rates repository.RateRepository,
	cases repository.CaseDirectory,
	roles repository.RoleDirectory,
	settings BillingSettings,
	clk clock.Clock,
	m *metrics.BillingMetrics,
	log logger.Logger,
) *RateEngine {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if clk == nil {
		clk = clock.Real()
	}
	e := &RateEngine{
		rates:    rates,
		cases:    cases,
		roles:    roles,
		settings: settings,
		clock:    clk,
		metrics:  m,
		logger:   log,
	}
	table := settings.RoleRates
	if table == nil {
		table = domain.DefaultRoleRateTable()
	}
	e.roleRates.Store(table)
	return e
}

// SetRoleRates атомарно заменяет таблицу ставок по ролям
func (e *RateEngine) SetRoleRates(table *domain.RoleRateTable) {
	if table == nil {
		return
	}
	e.roleRates.Store(table)
	e.logger.Info("Role rate table replaced", logger.Int("roles", len(table.Roles())))
}

// RoleRates возвращает текущую таблицу ставок по ролям
func (e *RateEngine) RoleRates() *domain.RoleRateTable {
	return e.roleRates.Load()
}

// Location часовой пояс, в котором определяются выходные и рабочие часы
func (e *RateEngine) Location() *time.Location {
	return e.settings.Location
}

func requireTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return errors.New(errors.ErrConfiguration, "tenant context is required").WithContext(ctx)
	}
	return nil
}

// ResolveBaseRate проходит каскад ставок: ставка дела для пользователя,
// самая специфичная ставка на дату, базовая ставка пользователя,
// ставка по роли, ставка фирмы. Отсутствие ставки на шаге ошибкой не является.
func (e *RateEngine) ResolveBaseRate(ctx context.Context, q domain.RateQuery) (*domain.RateResolution, error) {
	if err := requireTenant(ctx, q.TenantID); err != nil {
		return nil, err
	}

	res, err := e.resolveBaseRate(ctx, q)
	if err != nil {
		return nil, err
	}

	e.metrics.RateResolved(string(res.Source))
	e.logger.Debug("Base rate resolved",
		logger.CtxField(ctx),
		logger.String("tenant_id", q.TenantID),
		logger.String("user_id", q.UserID),
		logger.String("source", string(res.Source)),
		logger.String("rate", res.Rate.StringFixed(2)),
	)
	return res, nil
}

func (e *RateEngine) resolveBaseRate(ctx context.Context, q domain.RateQuery) (*domain.RateResolution, error) {
	if q.CaseID != nil && q.UserID != "" {
		rate, err := e.rates.FindCaseSpecificRate(ctx, q.TenantID, *q.CaseID, q.UserID)
		if err != nil {
			return nil, storeFailure(ctx, err, "failed to find case specific rate")
		}
		if rate != nil {
			return fromRate(rate, domain.RateSourceCaseSpecific), nil
		}
	}

	rate, err := e.rates.FindMostSpecificRate(ctx, q)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to find scoped rate")
	}
	if rate != nil {
		return fromRate(rate, domain.RateSourceScoped), nil
	}

	if q.UserID != "" {
		rate, err = e.rates.FindActiveUserRate(ctx, q.TenantID, q.UserID)
		if err != nil {
			return nil, storeFailure(ctx, err, "failed to find user base rate")
		}
		if rate != nil {
			return fromRate(rate, domain.RateSourceUserBase), nil
		}
	}

	if e.roles != nil && q.UserID != "" {
		role, err := e.roles.FindUserRole(ctx, q.TenantID, q.UserID)
		if err != nil {
			return nil, storeFailure(ctx, err, "failed to find user role")
		}
		if role != "" {
			// роль без строки в таблице получает ставку для неизвестной роли
			amount, _ := e.RoleRates().RateFor(role)
			return &domain.RateResolution{Rate: amount, Source: domain.RateSourceRoleDefault}, nil
		}
	}

	return &domain.RateResolution{Rate: e.settings.FirmDefaultRate, Source: domain.RateSourceFirmDefault}, nil
}

func fromRate(rate *domain.BillingRate, source domain.RateSource) *domain.RateResolution {
	return &domain.RateResolution{Rate: rate.RateAmount, Source: source, RateID: rate.ID}
}

func storeFailure(ctx context.Context, err error, msg string) error {
	if errors.CodeOf(err) != errors.ErrInternal {
		return err
	}
	if e, ok := errors.As(err); ok {
		return e.WithContext(ctx)
	}
	return errors.Wrap(err, errors.ErrInternal, msg).WithContext(ctx)
}

// ApplyMultipliers применяет множители к базовой ставке.
// Экстренный множитель исключающий; выходной и нерабочее время перемножаются.
// При AllowMultipliers=false ставка не меняется. Результат округляется до центов.
func (e *RateEngine) ApplyMultipliers(base decimal.Decimal, at time.Time, isEmergency bool, cfg domain.EffectiveRateConfig) (decimal.Decimal, []string) {
	applied := []string{}
	if !cfg.AllowMultipliers {
		return domain.RoundMoney(base), applied
	}
	if isEmergency {
		return domain.RoundMoney(base.Mul(cfg.EmergencyMultiplier)), append(applied, MultiplierEmergency)
	}

	rate := base
	local := at.In(e.settings.Location)
	if domain.IsWeekend(local) {
		rate = rate.Mul(cfg.WeekendMultiplier)
		applied = append(applied, MultiplierWeekend)
	}
	if e.IsAfterHours(local) {
		rate = rate.Mul(cfg.AfterHoursMultiplier)
		applied = append(applied, MultiplierAfterHours)
	}
	return domain.RoundMoney(rate), applied
}

// IsAfterHours проверяет время до начала или после окончания рабочего дня
func (e *RateEngine) IsAfterHours(at time.Time) bool {
	local := at.In(e.settings.Location)
	secondOfDay := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return secondOfDay < e.settings.BusinessHoursStart*3600 || secondOfDay > e.settings.BusinessHoursEnd*3600
}

// caseContext проверяет принадлежность дела арендатору и строит итоговую конфигурацию
func (e *RateEngine) caseContext(ctx context.Context, tenantID, caseID string) (*domain.LegalCase, domain.EffectiveRateConfig, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, domain.EffectiveRateConfig{}, err
	}
	if caseID == "" {
		return nil, domain.EffectiveRateConfig{}, errors.NewValidation("invalid case", []string{"case_id is required"}).WithContext(ctx)
	}

	legalCase, err := e.cases.FindCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, domain.EffectiveRateConfig{}, storeFailure(ctx, err, "failed to find legal case")
	}

	cfg, err := e.rates.FindCaseConfiguration(ctx, tenantID, caseID)
	if err != nil {
		return nil, domain.EffectiveRateConfig{}, storeFailure(ctx, err, "failed to find case rate configuration")
	}
	return legalCase, domain.ResolveEffectiveConfig(cfg, e.settings.Multipliers), nil
}

// EffectiveConfig возвращает итоговую конфигурацию ставок дела.
// Дело чужого арендатора дает NOT_FOUND до обращения к хранилищу ставок.
func (e *RateEngine) EffectiveConfig(ctx context.Context, tenantID, caseID string) (domain.EffectiveRateConfig, error) {
	_, cfg, err := e.caseContext(ctx, tenantID, caseID)
	return cfg, err
}

// ResolveTimerRate рассчитывает ставку на момент запуска:
// явная ставка, затем ставка дела по умолчанию, затем каскад.
func (e *RateEngine) ResolveTimerRate(ctx context.Context, req TimerRateRequest) (*TimerRate, error) {
	legalCase, cfg, err := e.caseContext(ctx, req.TenantID, req.CaseID)
	if err != nil {
		return nil, err
	}

	result := &TimerRate{Config: cfg, Case: legalCase}
	switch {
	case req.ExplicitRate != nil:
		if !req.ExplicitRate.IsPositive() {
			return nil, errors.NewValidation("invalid rate", []string{"rate must be greater than zero"}).WithContext(ctx)
		}
		result.BaseRate = *req.ExplicitRate
		result.BaseSource = domain.RateSourceExplicit
		e.metrics.RateResolved(string(domain.RateSourceExplicit))
	case cfg.DefaultRate != nil:
		result.BaseRate = *cfg.DefaultRate
		result.BaseSource = domain.RateSourceCaseDefault
		e.metrics.RateResolved(string(domain.RateSourceCaseDefault))
	default:
		caseID := legalCase.ID
		res, err := e.ResolveBaseRate(ctx, domain.RateQuery{
			TenantID:     req.TenantID,
			UserID:       req.UserID,
			CaseID:       &caseID,
			ClientID:     legalCase.ClientID,
			MatterTypeID: legalCase.MatterTypeID,
			Date:         domain.DateIn(req.At, e.settings.Location),
		})
		if err != nil {
			return nil, err
		}
		result.BaseRate = res.Rate
		result.BaseSource = res.Source
		result.BaseRateID = res.RateID
	}

	if req.ApplyMultipliers {
		result.EffectiveRate, result.Multipliers = e.ApplyMultipliers(result.BaseRate, req.At, req.IsEmergency, cfg)
	} else {
		result.EffectiveRate, result.Multipliers = domain.RoundMoney(result.BaseRate), []string{}
	}
	return result, nil
}

// PreviewRate рассчитывает ставку без запуска таймера; нулевой At означает текущее время
func (e *RateEngine) PreviewRate(ctx context.Context, req TimerRateRequest) (*TimerRate, error) {
	if req.At.IsZero() {
		req.At = e.clock.Now()
	}
	rate, err := e.ResolveTimerRate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to preview rate: %w", err)
	}
	return rate, nil
}

// GetDefaultRateForCase возвращает ставку дела по умолчанию или nil
func (e *RateEngine) GetDefaultRateForCase(ctx context.Context, tenantID, caseID string) (*decimal.Decimal, error) {
	cfg, err := e.EffectiveConfig(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	return cfg.DefaultRate, nil
}

// AllowsMultipliers сообщает, разрешены ли множители для дела
func (e *RateEngine) AllowsMultipliers(ctx context.Context, tenantID, caseID string) (bool, error) {
	cfg, err := e.EffectiveConfig(ctx, tenantID, caseID)
	if err != nil {
		return false, err
	}
	return cfg.AllowMultipliers, nil
}

// GetWeekendMultiplier возвращает множитель выходного дня для дела
func (e *RateEngine) GetWeekendMultiplier(ctx context.Context, tenantID, caseID string) (decimal.Decimal, error) {
	cfg, err := e.EffectiveConfig(ctx, tenantID, caseID)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.WeekendMultiplier, nil
}

// GetAfterHoursMultiplier возвращает множитель нерабочего времени для дела
func (e *RateEngine) GetAfterHoursMultiplier(ctx context.Context, tenantID, caseID string) (decimal.Decimal, error) {
	cfg, err := e.EffectiveConfig(ctx, tenantID, caseID)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.AfterHoursMultiplier, nil
}

// GetEmergencyMultiplier возвращает экстренный множитель для дела
func (e *RateEngine) GetEmergencyMultiplier(ctx context.Context, tenantID, caseID string) (decimal.Decimal, error) {
	cfg, err := e.EffectiveConfig(ctx, tenantID, caseID)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.EmergencyMultiplier, nil
}
