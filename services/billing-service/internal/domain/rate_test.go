package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBillingRate_Specificity(t *testing.T) {
	assert.Equal(t, 0, (&BillingRate{}).Specificity())
	assert.Equal(t, 1, (&BillingRate{UserID: strPtr("u")}).Specificity())
	assert.Equal(t, 3, (&BillingRate{UserID: strPtr("u"), ClientID: strPtr("c"), MatterTypeID: strPtr("m")}).Specificity())
}

func TestBillingRate_IsEffectiveOn(t *testing.T) {
	end := date(2024, 6, 30)
	rate := &BillingRate{IsActive: true, EffectiveDate: date(2024, 1, 1), EndDate: &end}

	assert.False(t, rate.IsEffectiveOn(date(2023, 12, 31)))
	assert.True(t, rate.IsEffectiveOn(date(2024, 1, 1)))
	assert.True(t, rate.IsEffectiveOn(time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC)))
	assert.False(t, rate.IsEffectiveOn(date(2024, 7, 1)))

	rate.IsActive = false
	assert.False(t, rate.IsEffectiveOn(date(2024, 3, 1)))
}

func TestBillingRate_Matches(t *testing.T) {
	q := RateQuery{TenantID: "t1", UserID: "u1", CaseID: strPtr("case-1"), ClientID: strPtr("client-1")}

	tests := []struct {
		name string
		rate BillingRate
		want bool
	}{
		{"wildcard everything", BillingRate{TenantID: "t1"}, true},
		{"other tenant", BillingRate{TenantID: "t2"}, false},
		{"same user", BillingRate{TenantID: "t1", UserID: strPtr("u1")}, true},
		{"other user", BillingRate{TenantID: "t1", UserID: strPtr("u2")}, false},
		{"client match", BillingRate{TenantID: "t1", ClientID: strPtr("client-1")}, true},
		{"matter type required but absent", BillingRate{TenantID: "t1", MatterTypeID: strPtr("m1")}, false},
		{"other case", BillingRate{TenantID: "t1", LegalCaseID: strPtr("case-2")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rate.Matches(q))
		})
	}
}

func TestPickMostSpecificRate(t *testing.T) {
	q := RateQuery{
		TenantID: "t1",
		UserID:   "u1",
		CaseID:   strPtr("case-1"),
		ClientID: strPtr("client-1"),
		Date:     date(2024, 5, 1),
	}

	base := &BillingRate{ID: "base", TenantID: "t1", UserID: strPtr("u1"), RateAmount: decimal.NewFromInt(300), IsActive: true, EffectiveDate: date(2024, 1, 1)}
	client := &BillingRate{ID: "client", TenantID: "t1", UserID: strPtr("u1"), ClientID: strPtr("client-1"), RateAmount: decimal.NewFromInt(320), IsActive: true, EffectiveDate: date(2023, 1, 1)}
	clientNewer := &BillingRate{ID: "client-newer", TenantID: "t1", UserID: strPtr("u1"), ClientID: strPtr("client-1"), RateAmount: decimal.NewFromInt(330), IsActive: true, EffectiveDate: date(2024, 2, 1)}
	future := &BillingRate{ID: "future", TenantID: "t1", UserID: strPtr("u1"), ClientID: strPtr("client-1"), LegalCaseID: strPtr("case-1"), RateAmount: decimal.NewFromInt(999), IsActive: true, EffectiveDate: date(2025, 1, 1)}
	tenantWide := &BillingRate{ID: "tenant", TenantID: "t1", RateAmount: decimal.NewFromInt(100), IsActive: true, EffectiveDate: date(2024, 1, 1)}

	t.Run("greatest specificity wins", func(t *testing.T) {
		got := PickMostSpecificRate([]*BillingRate{base, client}, q)
		require.NotNil(t, got)
		assert.Equal(t, "client", got.ID)
	})

	t.Run("ties broken by latest effective date", func(t *testing.T) {
		got := PickMostSpecificRate([]*BillingRate{client, clientNewer, base}, q)
		require.NotNil(t, got)
		assert.Equal(t, "client-newer", got.ID)
	})

	t.Run("not yet effective is skipped", func(t *testing.T) {
		got := PickMostSpecificRate([]*BillingRate{future, base}, q)
		require.NotNil(t, got)
		assert.Equal(t, "base", got.ID)
	})

	t.Run("unscoped rates never match", func(t *testing.T) {
		assert.Nil(t, PickMostSpecificRate([]*BillingRate{tenantWide}, q))
	})
}

func TestPickCaseSpecificAndUserBaseRate(t *testing.T) {
	caseRate := &BillingRate{ID: "case", TenantID: "t1", UserID: strPtr("u1"), LegalCaseID: strPtr("case-1"), IsActive: true, EffectiveDate: date(2024, 1, 1)}
	inactive := &BillingRate{ID: "inactive", TenantID: "t1", UserID: strPtr("u1"), LegalCaseID: strPtr("case-1"), IsActive: false, EffectiveDate: date(2024, 3, 1)}
	caseOnly := &BillingRate{ID: "case-only", TenantID: "t1", LegalCaseID: strPtr("case-1"), IsActive: true}
	base := &BillingRate{ID: "base", TenantID: "t1", UserID: strPtr("u1"), IsActive: true}
	rates := []*BillingRate{caseRate, inactive, caseOnly, base}

	got := PickCaseSpecificRate(rates, "t1", "case-1", "u1")
	require.NotNil(t, got)
	assert.Equal(t, "case", got.ID)
	assert.Nil(t, PickCaseSpecificRate(rates, "t2", "case-1", "u1"))

	got = PickUserBaseRate(rates, "t1", "u1")
	require.NotNil(t, got)
	assert.Equal(t, "base", got.ID)
	assert.Nil(t, PickUserBaseRate(rates, "t1", "u2"))
}
