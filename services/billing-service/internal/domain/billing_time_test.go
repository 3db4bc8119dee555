package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundUpToTenthHour(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0.0"},
		{1, "0.1"},
		{359, "0.1"},
		{360, "0.1"},
		{361, "0.2"},
		{3600, "1.0"},
		{3601, "1.1"},
		{-10, "0.0"},
	}
	for _, tt := range tests {
		got := RoundUpToTenthHour(tt.seconds)
		assert.Equal(t, tt.want, got.StringFixed(1), "seconds=%d", tt.seconds)
	}
}

func TestIsTenthHourAligned(t *testing.T) {
	assert.True(t, IsTenthHourAligned(decimal.RequireFromString("0.3")))
	assert.True(t, IsTenthHourAligned(decimal.RequireFromString("16")))
	assert.False(t, IsTenthHourAligned(decimal.RequireFromString("0.25")))
	assert.False(t, IsTenthHourAligned(decimal.RequireFromString("1.01")))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "312.50", RoundMoney(decimal.RequireFromString("312.5")).StringFixed(2))
	assert.Equal(t, "0.13", RoundMoney(decimal.RequireFromString("0.125")).StringFixed(2))
	assert.Equal(t, "0.12", RoundMoney(decimal.RequireFromString("0.1249")).StringFixed(2))
}

func TestDateIn(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 02:00 UTC on the 6th is still the 5th in New York
	instant := time.Date(2024, 3, 6, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), DateIn(instant, ny))
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), DateIn(instant, nil))
}

func TestTimeEntryDraft_Amount(t *testing.T) {
	rate := decimal.RequireFromString("250.00")
	draft := &TimeEntryDraft{Hours: decimal.RequireFromString("0.1"), Rate: &rate}
	assert.Equal(t, "25.00", draft.Amount().StringFixed(2))

	draft.Rate = nil
	assert.True(t, draft.Amount().IsZero())
}

func TestValidationResult(t *testing.T) {
	r := NewValidationResult()
	assert.True(t, r.Valid)
	r.AddWarning("weekend")
	assert.True(t, r.Valid)
	r.AddError("bad")
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"bad"}, r.Errors)
}
