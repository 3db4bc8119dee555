package repository

import (
	"fmt"

	"github.com/shopspring/decimal"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// EntryInvariantViolations возвращает нарушения, которые приемник записей
// проверяет сам, независимо от предварительной валидации.
func EntryInvariantViolations(draft *domain.TimeEntryDraft, existingHours, dailyCap decimal.Decimal) []string {
	var violations []string
	if !draft.Hours.IsPositive() {
		violations = append(violations, "hours must be greater than zero")
	}
	if !domain.IsTenthHourAligned(draft.Hours) {
		violations = append(violations, fmt.Sprintf("hours %s must be a multiple of 0.1", draft.Hours.String()))
	}
	if draft.Rate != nil && !draft.Rate.IsPositive() {
		violations = append(violations, "rate must be greater than zero")
	}
	if total := existingHours.Add(draft.Hours); total.GreaterThan(dailyCap) {
		violations = append(violations, fmt.Sprintf("daily total %s hours exceeds the %s hour cap",
			total.StringFixed(1), dailyCap.StringFixed(1)))
	}
	return violations
}
