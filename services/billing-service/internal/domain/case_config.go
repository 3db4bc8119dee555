package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegalCase минимальное представление дела, принадлежащего арендатору
type LegalCase struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	ClientID     *string `json:"client_id,omitempty"`
	MatterTypeID *string `json:"matter_type_id,omitempty"`
}

// CaseRateConfiguration переопределение ставок для дела.
// Nil в поле множителя означает значение по умолчанию.
type CaseRateConfiguration struct {
	ID                   string           `json:"id"`
	TenantID             string           `json:"tenant_id"`
	LegalCaseID          string           `json:"legal_case_id"`
	DefaultRate          *decimal.Decimal `json:"default_rate,omitempty"`
	AllowMultipliers     bool             `json:"allow_multipliers"`
	WeekendMultiplier    *decimal.Decimal `json:"weekend_multiplier,omitempty"`
	AfterHoursMultiplier *decimal.Decimal `json:"after_hours_multiplier,omitempty"`
	EmergencyMultiplier  *decimal.Decimal `json:"emergency_multiplier,omitempty"`
	IsActive             bool             `json:"is_active"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Clone возвращает глубокую копию конфигурации
func (c *CaseRateConfiguration) Clone() *CaseRateConfiguration {
	if c == nil {
		return nil
	}
	cp := *c
	cp.DefaultRate = cloneDecimal(c.DefaultRate)
	cp.WeekendMultiplier = cloneDecimal(c.WeekendMultiplier)
	cp.AfterHoursMultiplier = cloneDecimal(c.AfterHoursMultiplier)
	cp.EmergencyMultiplier = cloneDecimal(c.EmergencyMultiplier)
	return &cp
}

// MultiplierDefaults множители, действующие без конфигурации дела
type MultiplierDefaults struct {
	Weekend    decimal.Decimal
	AfterHours decimal.Decimal
	Emergency  decimal.Decimal
}

// DefaultMultipliers возвращает стандартные множители 1.5 / 1.25 / 2.0
func DefaultMultipliers() MultiplierDefaults {
	return MultiplierDefaults{
		Weekend:    decimal.RequireFromString("1.5"),
		AfterHours: decimal.RequireFromString("1.25"),
		Emergency:  decimal.RequireFromString("2.0"),
	}
}

// EffectiveRateConfig итоговая конфигурация для одного расчета ставки
type EffectiveRateConfig struct {
	DefaultRate          *decimal.Decimal `json:"default_rate,omitempty"`
	AllowMultipliers     bool             `json:"allow_multipliers"`
	WeekendMultiplier    decimal.Decimal  `json:"weekend_multiplier"`
	AfterHoursMultiplier decimal.Decimal  `json:"after_hours_multiplier"`
	EmergencyMultiplier  decimal.Decimal  `json:"emergency_multiplier"`
	FromCase             bool             `json:"from_case"`
}

// ResolveEffectiveConfig строит конфигурацию из активной настройки дела либо из значений по умолчанию
func ResolveEffectiveConfig(cfg *CaseRateConfiguration, defaults MultiplierDefaults) EffectiveRateConfig {
	eff := EffectiveRateConfig{
		AllowMultipliers:     true,
		WeekendMultiplier:    defaults.Weekend,
		AfterHoursMultiplier: defaults.AfterHours,
		EmergencyMultiplier:  defaults.Emergency,
	}
	if cfg == nil || !cfg.IsActive {
		return eff
	}

	eff.FromCase = true
	eff.AllowMultipliers = cfg.AllowMultipliers
	eff.DefaultRate = cloneDecimal(cfg.DefaultRate)
	if cfg.WeekendMultiplier != nil {
		eff.WeekendMultiplier = *cfg.WeekendMultiplier
	}
	if cfg.AfterHoursMultiplier != nil {
		eff.AfterHoursMultiplier = *cfg.AfterHoursMultiplier
	}
	if cfg.EmergencyMultiplier != nil {
		eff.EmergencyMultiplier = *cfg.EmergencyMultiplier
	}
	return eff
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
