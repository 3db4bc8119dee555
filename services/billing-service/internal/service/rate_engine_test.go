package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/mocks"
)

func newRate(id string, amount string, effective time.Time) *domain.BillingRate {
	return &domain.BillingRate{
		ID:            id,
		TenantID:      testTenant,
		RateAmount:    dec(amount),
		RateType:      domain.RateTypeHourly,
		EffectiveDate: effective,
		IsActive:      true,
	}
}

func TestRateEngine_ResolveBaseRate_Waterfall(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	caseID := testCase
	query := domain.RateQuery{
		TenantID:     testTenant,
		UserID:       testUser,
		CaseID:       &caseID,
		ClientID:     strPtr("client-1"),
		MatterTypeID: strPtr("litigation"),
		Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}

	t.Run("case specific rate wins over user base rate", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		base := newRate("base", "300", jan)
		base.UserID = strPtr(testUser)
		specific := newRate("specific", "350", jan)
		specific.UserID = strPtr(testUser)
		specific.LegalCaseID = strPtr(testCase)
		require.NoError(t, env.rates.CreateRate(ctx, base))
		require.NoError(t, env.rates.CreateRate(ctx, specific))

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.True(t, res.Rate.Equal(dec("350")))
		assert.Equal(t, domain.RateSourceCaseSpecific, res.Source)
		assert.Equal(t, "specific", res.RateID)
	})

	t.Run("most specific scoped rate then most recent effective date", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		client := newRate("client", "320", jan)
		client.ClientID = strPtr("client-1")
		clientMatter := newRate("client-matter", "330", jan)
		clientMatter.ClientID = strPtr("client-1")
		clientMatter.MatterTypeID = strPtr("litigation")
		newerClientMatter := newRate("client-matter-newer", "340", jan.AddDate(0, 2, 0))
		newerClientMatter.ClientID = strPtr("client-1")
		newerClientMatter.MatterTypeID = strPtr("litigation")
		otherClient := newRate("other-client", "999", jan)
		otherClient.ClientID = strPtr("client-2")
		otherClient.MatterTypeID = strPtr("litigation")
		otherClient.UserID = strPtr(testUser)
		for _, r := range []*domain.BillingRate{client, clientMatter, newerClientMatter, otherClient} {
			require.NoError(t, env.rates.CreateRate(ctx, r))
		}

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceScoped, res.Source)
		assert.Equal(t, "client-matter-newer", res.RateID)
		assert.True(t, res.Rate.Equal(dec("340")))
	})

	t.Run("scoped rate outside its effective window is skipped", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		expired := newRate("expired", "320", jan)
		expired.ClientID = strPtr("client-1")
		end := jan.AddDate(0, 1, 0)
		expired.EndDate = &end
		require.NoError(t, env.rates.CreateRate(ctx, expired))

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceFirmDefault, res.Source)
	})

	t.Run("user base rate not yet effective is still the user base", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		future := newRate("future-base", "310", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		future.UserID = strPtr(testUser)
		require.NoError(t, env.rates.CreateRate(ctx, future))

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceUserBase, res.Source)
		assert.True(t, res.Rate.Equal(dec("310")))
	})

	t.Run("role default", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		env.roles.Assign(testTenant, testUser, domain.RolePartner)

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceRoleDefault, res.Source)
		assert.True(t, res.Rate.Equal(dec("500")))
	})

	t.Run("role missing from table falls back to unknown role rate", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		env.roles.Assign(testTenant, testUser, domain.RoleParalegal)
		env.engine.SetRoleRates(domain.NewRoleRateTable(map[domain.Role]decimal.Decimal{}, dec("275")))

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceRoleDefault, res.Source)
		assert.True(t, res.Rate.Equal(dec("275")))
	})

	t.Run("firm default when nothing resolves", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)

		res, err := env.engine.ResolveBaseRate(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceFirmDefault, res.Source)
		assert.True(t, res.Rate.Equal(dec("250.00")))
	})

	t.Run("tenant is required", func(t *testing.T) {
		env := setupTestEnv(t, tuesdayEvening)
		q := query
		q.TenantID = ""

		_, err := env.engine.ResolveBaseRate(ctx, q)
		assert.True(t, errors.IsCode(err, errors.ErrConfiguration))
	})
}

func TestRateEngine_ResolveBaseRate_StoreFailure(t *testing.T) {
	rates := new(mocks.MockRateRepository)
	rates.On("FindCaseSpecificRate", mock.Anything, testTenant, testCase, testUser).
		Return(nil, fmt.Errorf("connection refused"))

	engine := NewRateEngine(rates, new(mocks.MockCaseDirectory), nil, DefaultSettings(), nil, nil, logger.NewNop())
	caseID := testCase

	_, err := engine.ResolveBaseRate(context.Background(), domain.RateQuery{
		TenantID: testTenant,
		UserID:   testUser,
		CaseID:   &caseID,
		Date:     tuesdayEvening,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInternal))
	rates.AssertExpectations(t)
}

func TestRateEngine_ApplyMultipliers(t *testing.T) {
	engine := NewRateEngine(nil, nil, nil, DefaultSettings(), nil, nil, logger.NewNop())
	defaults := domain.ResolveEffectiveConfig(nil, domain.DefaultMultipliers())
	saturdayNight := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)
	base := dec("200")

	tests := []struct {
		name      string
		at        time.Time
		emergency bool
		cfg       domain.EffectiveRateConfig
		expected  string
		applied   []string
	}{
		{"weekday business hours", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), false, defaults, "200.00", []string{}},
		{"weekday after hours", tuesdayEvening, false, defaults, "250.00", []string{MultiplierAfterHours}},
		{"weekend business hours", time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), false, defaults, "300.00", []string{MultiplierWeekend}},
		{"weekend after hours stacks", saturdayNight, false, defaults, "375.00", []string{MultiplierWeekend, MultiplierAfterHours}},
		{"emergency is exclusive", saturdayNight, true, defaults, "400.00", []string{MultiplierEmergency}},
		{"exactly end of business day", time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), false, defaults, "200.00", []string{}},
		{"one second after end of day", time.Date(2024, 3, 5, 18, 0, 1, 0, time.UTC), false, defaults, "250.00", []string{MultiplierAfterHours}},
		{"one second before start of day", time.Date(2024, 3, 5, 7, 59, 59, 0, time.UTC), false, defaults, "250.00", []string{MultiplierAfterHours}},
		{"start of business day", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), false, defaults, "200.00", []string{}},
		{"multipliers disabled", saturdayNight, true, domain.EffectiveRateConfig{AllowMultipliers: false}, "200.00", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, applied := engine.ApplyMultipliers(base, tt.at, tt.emergency, tt.cfg)
			assert.True(t, rate.Equal(dec(tt.expected)), "got %s", rate.String())
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestRateEngine_ApplyMultipliers_CaseConfigAndTimezone(t *testing.T) {
	cfg := domain.ResolveEffectiveConfig(&domain.CaseRateConfiguration{
		AllowMultipliers:  true,
		WeekendMultiplier: decPtr("2.0"),
		IsActive:          true,
	}, domain.DefaultMultipliers())

	engine := NewRateEngine(nil, nil, nil, DefaultSettings(), nil, nil, logger.NewNop())
	rate, _ := engine.ApplyMultipliers(dec("200"), time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), false, cfg)
	assert.True(t, rate.Equal(dec("400")))

	settings := DefaultSettings()
	settings.Location = time.FixedZone("EST", -5*3600)
	eastern := NewRateEngine(nil, nil, nil, settings, nil, nil, logger.NewNop())
	defaults := domain.ResolveEffectiveConfig(nil, domain.DefaultMultipliers())

	// 23:30 UTC это 18:30 по восточному времени
	rate, applied := eastern.ApplyMultipliers(dec("200"), time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), false, defaults)
	assert.True(t, rate.Equal(dec("250")))
	assert.Equal(t, []string{MultiplierAfterHours}, applied)

	// 02:00 UTC в субботу это 21:00 пятницы по восточному времени
	rate, applied = eastern.ApplyMultipliers(dec("200"), time.Date(2024, 3, 9, 2, 0, 0, 0, time.UTC), false, defaults)
	assert.True(t, rate.Equal(dec("250")))
	assert.Equal(t, []string{MultiplierAfterHours}, applied)
}

func TestRateEngine_EffectiveConfig_TenantIsolation(t *testing.T) {
	rates := new(mocks.MockRateRepository)
	cases := new(mocks.MockCaseDirectory)
	cases.On("FindCase", mock.Anything, "tenant-2", testCase).
		Return(nil, errors.New(errors.ErrNotFound, "legal case not found"))

	engine := NewRateEngine(rates, cases, nil, DefaultSettings(), nil, nil, logger.NewNop())

	_, err := engine.EffectiveConfig(context.Background(), "tenant-2", testCase)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
	rates.AssertNotCalled(t, "FindCaseConfiguration", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateEngine_Getters(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, tuesdayEvening)

	t.Run("defaults without configuration", func(t *testing.T) {
		rate, err := env.engine.GetDefaultRateForCase(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.Nil(t, rate)

		allowed, err := env.engine.AllowsMultipliers(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, allowed)

		weekend, err := env.engine.GetWeekendMultiplier(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, weekend.Equal(dec("1.5")))

		afterHours, err := env.engine.GetAfterHoursMultiplier(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, afterHours.Equal(dec("1.25")))

		emergency, err := env.engine.GetEmergencyMultiplier(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, emergency.Equal(dec("2.0")))
	})

	t.Run("active configuration overrides defaults", func(t *testing.T) {
		require.NoError(t, env.rates.SaveCaseConfiguration(ctx, &domain.CaseRateConfiguration{
			ID:                  "cfg-1",
			TenantID:            testTenant,
			LegalCaseID:         testCase,
			DefaultRate:         decPtr("200"),
			AllowMultipliers:    false,
			EmergencyMultiplier: decPtr("3"),
			IsActive:            true,
		}))

		rate, err := env.engine.GetDefaultRateForCase(ctx, testTenant, testCase)
		require.NoError(t, err)
		require.NotNil(t, rate)
		assert.True(t, rate.Equal(dec("200")))

		allowed, err := env.engine.AllowsMultipliers(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.False(t, allowed)

		emergency, err := env.engine.GetEmergencyMultiplier(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, emergency.Equal(dec("3")))

		weekend, err := env.engine.GetWeekendMultiplier(ctx, testTenant, testCase)
		require.NoError(t, err)
		assert.True(t, weekend.Equal(dec("1.5")))
	})

	t.Run("foreign case is not found", func(t *testing.T) {
		_, err := env.engine.AllowsMultipliers(ctx, testTenant, "case-other")
		assert.True(t, errors.IsCode(err, errors.ErrNotFound))
	})
}

func TestRateEngine_PreviewRate_UsesClock(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, tuesdayEvening)
	req := TimerRateRequest{
		TenantID:         testTenant,
		UserID:           testUser,
		CaseID:           testCase,
		ApplyMultipliers: true,
	}

	rate, err := env.engine.PreviewRate(ctx, req)
	require.NoError(t, err)
	assert.True(t, rate.EffectiveRate.Equal(dec("312.50")), rate.EffectiveRate.String())
	assert.Equal(t, []string{MultiplierAfterHours}, rate.Multipliers)

	env.clock.Set(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	rate, err = env.engine.PreviewRate(ctx, req)
	require.NoError(t, err)
	assert.True(t, rate.EffectiveRate.Equal(dec("375.00")), rate.EffectiveRate.String())
	assert.Equal(t, []string{MultiplierWeekend}, rate.Multipliers)
}

func TestRateEngine_ResolveTimerRate(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, tuesdayEvening)

	t.Run("explicit rate with multipliers", func(t *testing.T) {
		rate, err := env.engine.ResolveTimerRate(ctx, TimerRateRequest{
			TenantID:         testTenant,
			UserID:           testUser,
			CaseID:           testCase,
			ExplicitRate:     decPtr("275"),
			ApplyMultipliers: true,
			At:               tuesdayEvening,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceExplicit, rate.BaseSource)
		assert.True(t, rate.EffectiveRate.Equal(dec("343.75")))
	})

	t.Run("non positive explicit rate", func(t *testing.T) {
		_, err := env.engine.ResolveTimerRate(ctx, TimerRateRequest{
			TenantID:     testTenant,
			UserID:       testUser,
			CaseID:       testCase,
			ExplicitRate: decPtr("0"),
			At:           tuesdayEvening,
		})
		assert.True(t, errors.IsCode(err, errors.ErrValidation))
	})

	t.Run("without multipliers keeps base", func(t *testing.T) {
		rate, err := env.engine.ResolveTimerRate(ctx, TimerRateRequest{
			TenantID: testTenant,
			UserID:   testUser,
			CaseID:   testCase,
			At:       tuesdayEvening,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceFirmDefault, rate.BaseSource)
		assert.True(t, rate.EffectiveRate.Equal(dec("250")))
		assert.Empty(t, rate.Multipliers)
	})

	t.Run("case default rate precedes waterfall", func(t *testing.T) {
		require.NoError(t, env.rates.SaveCaseConfiguration(ctx, &domain.CaseRateConfiguration{
			ID:               "cfg-42",
			TenantID:         testTenant,
			LegalCaseID:      testCase,
			DefaultRate:      decPtr("200"),
			AllowMultipliers: true,
			IsActive:         true,
		}))

		rate, err := env.engine.PreviewRate(ctx, TimerRateRequest{
			TenantID:         testTenant,
			UserID:           testUser,
			CaseID:           testCase,
			ApplyMultipliers: true,
			At:               tuesdayEvening,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceCaseDefault, rate.BaseSource)
		assert.True(t, rate.BaseRate.Equal(dec("200")))
		assert.True(t, rate.EffectiveRate.Equal(dec("250.00")))
	})
}
