package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// OverlapChecker ищет пересечения с уже сохраненными записями
type OverlapChecker interface {
	HasOverlappingEntries(ctx context.Context, tenantID string, draft *domain.TimeEntryDraft) (bool, error)
}

// CaseAuthorizer проверяет право пользователя работать по делу
type CaseAuthorizer interface {
	CanUserWorkOnCase(ctx context.Context, tenantID, userID, caseID string) (bool, error)
}

// HolidayCalendar определяет праздничные дни арендатора
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, tenantID string, date time.Time) (bool, error)
}

// NoOverlap никогда не находит пересечений.
// Правило пересечения записей пока не определено.
type NoOverlap struct{}

func (NoOverlap) HasOverlappingEntries(context.Context, string, *domain.TimeEntryDraft) (bool, error) {
	return false, nil
}

// AllowAllCases разрешает работу по любому делу арендатора
type AllowAllCases struct{}

func (AllowAllCases) CanUserWorkOnCase(context.Context, string, string, string) (bool, error) {
	return true, nil
}

// NoHolidays календарь без праздников
type NoHolidays struct{}

func (NoHolidays) IsHoliday(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

// ValidatorOption настраивает TimeEntryValidator
type ValidatorOption func(*TimeEntryValidator)

// WithOverlapChecker задает проверку пересечений
func WithOverlapChecker(c OverlapChecker) ValidatorOption {
	return func(v *TimeEntryValidator) {
		v.overlap = c
	}
}

// WithCaseAuthorizer задает проверку доступа к делу
func WithCaseAuthorizer(a CaseAuthorizer) ValidatorOption {
	return func(v *TimeEntryValidator) {
		v.authorizer = a
	}
}

// WithHolidayCalendar задает календарь праздников
func WithHolidayCalendar(h HolidayCalendar) ValidatorOption {
	return func(v *TimeEntryValidator) {
		v.holidays = h
	}
}

// TimeEntryValidator проверяет черновик записи времени перед сохранением.
// Проверяются все правила, нарушения собираются без остановки на первом.
type TimeEntryValidator struct {
	entries     repository.TimeEntryRepository
	overlap     OverlapChecker
	authorizer  CaseAuthorizer
	holidays    HolidayCalendar
	clock       clock.Clock
	location    *time.Location
	dailyCap    decimal.Decimal
	minDescRune int
	logger      logger.Logger
}

// NewTimeEntryValidator создает валидатор; entries может быть nil (без учета существующих часов)
func NewTimeEntryValidator(
	entries repository.TimeEntryRepository,
	settings BillingSettings,
	clk clock.Clock,
	log logger.Logger,
	opts ...ValidatorOption,
) *TimeEntryValidator {
	loc := settings.Location
	if loc == nil {
		loc = time.UTC
	}
	v := &TimeEntryValidator{
		entries:     entries,
		overlap:     NoOverlap{},
		authorizer:  AllowAllCases{},
		holidays:    NoHolidays{},
		clock:       clk,
		location:    loc,
		dailyCap:    settings.DailyHourCap,
		minDescRune: settings.MinDescriptionLength,
		logger:      log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate проверяет черновик. Ошибка возвращается только при сбое хранилища.
func (v *TimeEntryValidator) Validate(ctx context.Context, tenantID string, draft *domain.TimeEntryDraft) (*domain.ValidationResult, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	result := domain.NewValidationResult()

	existing := decimal.Zero
	if v.entries != nil {
		sum, err := v.entries.SumHoursForUserOnDate(ctx, tenantID, draft.UserID, draft.Date)
		if err != nil {
			return nil, storeFailure(ctx, err, "failed to sum daily hours")
		}
		existing = sum
	}
	for _, violation := range repository.EntryInvariantViolations(draft, existing, v.dailyCap) {
		result.AddError(violation)
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(draft.Description)); n < v.minDescRune {
		result.AddError(fmt.Sprintf("description must be at least %d characters", v.minDescRune))
	}

	today := domain.DateIn(v.clock.Now(), v.location)
	entryDate := domain.DateIn(draft.Date, draft.Date.Location())
	if entryDate.After(today) {
		result.AddError(fmt.Sprintf("entry date %s is in the future", entryDate.Format("2006-01-02")))
	}

	overlaps, err := v.overlap.HasOverlappingEntries(ctx, tenantID, draft)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to check overlapping entries")
	}
	if overlaps {
		result.AddError("entry overlaps with existing time entries")
	}

	allowed, err := v.authorizer.CanUserWorkOnCase(ctx, tenantID, draft.UserID, draft.CaseID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to check case authorization")
	}
	if !allowed {
		result.AddError(fmt.Sprintf("user is not authorized to work on case %s", draft.CaseID))
	}

	if domain.IsWeekend(entryDate) {
		result.AddWarning("entry falls on a weekend; special approval may be required")
	}
	holiday, err := v.holidays.IsHoliday(ctx, tenantID, entryDate)
	if err != nil {
		// праздник дает только предупреждение, сбой календаря запись не блокирует
		v.logger.Warn("Holiday calendar unavailable",
			logger.CtxField(ctx),
			logger.String("tenant_id", tenantID),
			logger.Error(err),
		)
	} else if holiday {
		result.AddWarning("entry falls on a holiday; special approval may be required")
	}

	if !result.Valid {
		v.logger.Debug("Time entry draft rejected",
			logger.CtxField(ctx),
			logger.String("tenant_id", tenantID),
			logger.String("user_id", draft.UserID),
			logger.Strings("errors", result.Errors),
		)
	}
	return result, nil
}

// ValidationFailure превращает результат проверки в ошибку валидации
func ValidationFailure(ctx context.Context, message string, result *domain.ValidationResult) error {
	if result == nil || result.Valid {
		return nil
	}
	return errors.NewValidation(message, result.Errors).WithContext(ctx)
}
