package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestRateRepository_Finders(t *testing.T) {
	ctx := context.Background()
	repo := NewRateRepository()
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateRate(ctx, &domain.BillingRate{
		ID: "base", TenantID: "t1", UserID: strPtr("u1"),
		RateAmount: decimal.NewFromInt(300), IsActive: true, EffectiveDate: effective,
	}))
	require.NoError(t, repo.CreateRate(ctx, &domain.BillingRate{
		ID: "case", TenantID: "t1", UserID: strPtr("u1"), LegalCaseID: strPtr("c1"),
		RateAmount: decimal.NewFromInt(350), IsActive: true, EffectiveDate: effective,
	}))

	base, err := repo.FindActiveUserRate(ctx, "t1", "u1")
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, "base", base.ID)

	caseRate, err := repo.FindCaseSpecificRate(ctx, "t1", "c1", "u1")
	require.NoError(t, err)
	require.NotNil(t, caseRate)
	assert.Equal(t, "case", caseRate.ID)

	missing, err := repo.FindCaseSpecificRate(ctx, "t2", "c1", "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	best, err := repo.FindMostSpecificRate(ctx, domain.RateQuery{
		TenantID: "t1", UserID: "u1", CaseID: strPtr("c1"), Date: effective.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "case", best.ID)

	require.NoError(t, repo.DeactivateRate(ctx, "t1", "case", time.Now()))
	caseRate, err = repo.FindCaseSpecificRate(ctx, "t1", "c1", "u1")
	require.NoError(t, err)
	assert.Nil(t, caseRate)

	active, err := repo.ListRates(ctx, "t1", repository.RateFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.True(t, errors.IsCode(repo.DeleteRate(ctx, "t2", "base"), errors.ErrNotFound))
	require.NoError(t, repo.DeleteRate(ctx, "t1", "base"))
	_, err = repo.GetRate(ctx, "t1", "base")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestRateRepository_CaseConfiguration(t *testing.T) {
	ctx := context.Background()
	repo := NewRateRepository()
	rate := decimal.NewFromInt(200)

	cfg, err := repo.FindCaseConfiguration(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, repo.SaveCaseConfiguration(ctx, &domain.CaseRateConfiguration{
		ID: "cfg-1", TenantID: "t1", LegalCaseID: "c1", DefaultRate: &rate, AllowMultipliers: true, IsActive: true,
	}))

	cfg, err = repo.FindCaseConfiguration(ctx, "t1", "c1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.DefaultRate.Equal(rate))

	other, err := repo.FindCaseConfiguration(ctx, "t2", "c1")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, repo.DeactivateCaseConfiguration(ctx, "t1", "c1", time.Now()))
	cfg, err = repo.FindCaseConfiguration(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, repo.DeleteCaseConfiguration(ctx, "t1", "c1"))
	assert.True(t, errors.IsCode(repo.DeleteCaseConfiguration(ctx, "t1", "c1"), errors.ErrNotFound))
}
