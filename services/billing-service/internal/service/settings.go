package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/config"
	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// BillingSettings разобранные параметры тарификации
type BillingSettings struct {
	FirmDefaultRate      decimal.Decimal
	RoleRates            *domain.RoleRateTable
	Multipliers          domain.MultiplierDefaults
	Location             *time.Location
	BusinessHoursStart   int
	BusinessHoursEnd     int
	DailyHourCap         decimal.Decimal
	MinDescriptionLength int
}

// DefaultSettings возвращает параметры по умолчанию
func DefaultSettings() BillingSettings {
	return BillingSettings{
		FirmDefaultRate:      decimal.NewFromInt(250),
		RoleRates:            domain.DefaultRoleRateTable(),
		Multipliers:          domain.DefaultMultipliers(),
		Location:             time.UTC,
		BusinessHoursStart:   8,
		BusinessHoursEnd:     18,
		DailyHourCap:         decimal.NewFromInt(16),
		MinDescriptionLength: 10,
	}
}

// SettingsFromConfig разбирает секцию billing конфигурации
func SettingsFromConfig(cfg config.BillingConfig) (BillingSettings, error) {
	if err := config.ValidateBilling(cfg); err != nil {
		return BillingSettings{}, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return BillingSettings{}, fmt.Errorf("failed to load billing timezone: %w", err)
	}

	table, err := RoleRatesFromConfig(cfg)
	if err != nil {
		return BillingSettings{}, err
	}

	return BillingSettings{
		FirmDefaultRate: decimal.RequireFromString(cfg.FirmDefaultRate),
		RoleRates:       table,
		Multipliers: domain.MultiplierDefaults{
			Weekend:    decimal.RequireFromString(cfg.WeekendMultiplier),
			AfterHours: decimal.RequireFromString(cfg.AfterHoursMultiplier),
			Emergency:  decimal.RequireFromString(cfg.EmergencyMultiplier),
		},
		Location:             loc,
		BusinessHoursStart:   cfg.BusinessHoursStart,
		BusinessHoursEnd:     cfg.BusinessHoursEnd,
		DailyHourCap:         decimal.RequireFromString(cfg.DailyHourCap),
		MinDescriptionLength: cfg.MinDescriptionLength,
	}, nil
}

// RoleRatesFromConfig строит таблицу ставок по ролям.
// Используется и при старте, и при горячей перезагрузке конфигурации.
func RoleRatesFromConfig(cfg config.BillingConfig) (*domain.RoleRateTable, error) {
	fallback, err := decimal.NewFromString(cfg.UnknownRoleRate)
	if err != nil || !fallback.IsPositive() {
		return nil, fmt.Errorf("billing.unknown_role_rate must be a positive decimal: %q", cfg.UnknownRoleRate)
	}

	rates := make(map[domain.Role]decimal.Decimal, len(cfg.RoleRates))
	for name, value := range cfg.RoleRates {
		role, ok := domain.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("billing.role_rates: unknown role %q", name)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("billing.role_rates.%s must be a positive decimal: %q", name, value)
		}
		rates[role] = rate
	}
	return domain.NewRoleRateTable(rates, fallback), nil
}
