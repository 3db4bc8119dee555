package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/config"
	"LegalPracticePlatform/services/billing-service/internal/domain"
)

func TestSettingsFromConfig(t *testing.T) {
	settings, err := SettingsFromConfig(config.Default().Billing)
	require.NoError(t, err)

	assert.True(t, settings.FirmDefaultRate.Equal(dec("250")))
	assert.True(t, settings.DailyHourCap.Equal(dec("16")))
	assert.True(t, settings.Multipliers.Weekend.Equal(dec("1.5")))
	assert.True(t, settings.Multipliers.AfterHours.Equal(dec("1.25")))
	assert.True(t, settings.Multipliers.Emergency.Equal(dec("2")))
	assert.Equal(t, "UTC", settings.Location.String())
	assert.Equal(t, 8, settings.BusinessHoursStart)
	assert.Equal(t, 18, settings.BusinessHoursEnd)
	assert.Equal(t, 10, settings.MinDescriptionLength)

	partner, known := settings.RoleRates.RateFor(domain.RolePartner)
	assert.True(t, known)
	assert.True(t, partner.Equal(dec("500")))
	assert.Len(t, settings.RoleRates.Roles(), 6)
}

func TestSettingsFromConfig_Invalid(t *testing.T) {
	cfg := config.Default().Billing
	cfg.WeekendMultiplier = "0.5"
	_, err := SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestRoleRatesFromConfig(t *testing.T) {
	cfg := config.Default().Billing
	cfg.RoleRates = map[string]string{"Senior Attorney": "450", "PARALEGAL": "175.50"}
	cfg.UnknownRoleRate = "200"

	table, err := RoleRatesFromConfig(cfg)
	require.NoError(t, err)

	rate, known := table.RateFor(domain.RoleSeniorAttorney)
	assert.True(t, known)
	assert.True(t, rate.Equal(dec("450")))

	rate, known = table.RateFor(domain.RolePartner)
	assert.False(t, known)
	assert.True(t, rate.Equal(dec("200")))

	cfg.RoleRates = map[string]string{"janitor": "50"}
	_, err = RoleRatesFromConfig(cfg)
	assert.Error(t, err)

	cfg.RoleRates = map[string]string{"partner": "-1"}
	_, err = RoleRatesFromConfig(cfg)
	assert.Error(t, err)
}
