package service

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// ConversionResult результат конвертации таймера.
// Session заполняется всегда, когда таймер был остановлен, даже если запись отклонена.
type ConversionResult struct {
	Session    *domain.TimerSession     `json:"session"`
	Draft      *domain.TimeEntryDraft   `json:"draft"`
	Validation *domain.ValidationResult `json:"validation"`
	Entry      *domain.TimeEntry        `json:"entry,omitempty"`
}

// ConversionOutcome результат конвертации одного таймера в пакете
type ConversionOutcome struct {
	TimerID string            `json:"timer_id"`
	Result  *ConversionResult `json:"result,omitempty"`
	Err     error             `json:"-"`
}

// Converter останавливает таймер и создает из него черновик записи времени
type Converter struct {
	timers    *TimerService
	sessions  repository.SessionRepository
	entries   repository.TimeEntryRepository
	validator *TimeEntryValidator
}

// NewConverter создает конвертер таймеров
func NewConverter(
	timers *TimerService,
	sessions repository.SessionRepository,
	entries repository.TimeEntryRepository,
	validator *TimeEntryValidator,
) *Converter {
	return &Converter{
		timers:    timers,
		sessions:  sessions,
		entries:   entries,
		validator: validator,
	}
}

// Convert останавливает таймер, округляет время вверх до 0.1 часа и передает
// черновик в приемник записей. Если таймер остановлен, а запись отклонена,
// возвращается и результат с сессией, и ошибка.
func (c *Converter) Convert(ctx context.Context, tenantID, userID, timerID string, description *string) (result *ConversionResult, err error) {
	s := c.timers
	ctx, done := s.metrics.StartOperation(ctx, "convert", operationAttrs(tenantID, userID, timerID)...)
	defer func() { done(err) }()

	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	timer, session, err := s.finish(ctx, tenantID, timerID, userID)
	if err != nil {
		return nil, err
	}

	desc := timer.Description
	if description != nil {
		desc = *description
	}
	rate := timer.HourlyRate
	draft := &domain.TimeEntryDraft{
		TenantID:    tenantID,
		UserID:      userID,
		CaseID:      timer.CaseID,
		TimerID:     timer.ID,
		SessionID:   session.ID,
		Date:        domain.DateIn(session.EndedAt, s.engine.Location()),
		Hours:       domain.RoundUpToTenthHour(session.TotalDurationSeconds),
		Rate:        &rate,
		Description: desc,
		Status:      domain.TimeEntryStatusDraft,
		Billable:    true,
		WorkType:    timer.WorkType,
		Tags:        timer.Tags,
	}
	result = &ConversionResult{Session: session, Draft: draft}

	validation, err := c.validator.Validate(ctx, tenantID, draft)
	if err != nil {
		s.metrics.EntryRejected("validation")
		return result, errors.Wrap(err, errors.ErrInternal, "timer stopped but time entry could not be validated").
			WithDetails(fmt.Sprintf("session_id: %s", session.ID)).
			WithContext(ctx)
	}
	result.Validation = validation
	if !validation.Valid {
		s.metrics.EntryRejected("validation")
		s.logger.Warn("Timer stopped but time entry rejected",
			logger.CtxField(ctx),
			logger.String("timer_id", timerID),
			logger.String("session_id", session.ID),
			logger.Strings("violations", validation.Errors),
		)
		return result, errors.NewValidation("timer stopped but time entry rejected", validation.Errors).
			WithDetails(fmt.Sprintf("session_id: %s", session.ID)).
			WithContext(ctx)
	}

	entry, err := c.entries.CreateTimeEntry(ctx, draft)
	if err != nil {
		s.metrics.EntryRejected("sink")
		s.logger.Error("Timer stopped but time entry was not saved",
			logger.CtxField(ctx),
			logger.String("timer_id", timerID),
			logger.String("session_id", session.ID),
			logger.Error(err),
		)
		if rejected, ok := errors.As(err); ok && rejected.Code == errors.ErrValidation {
			result.Validation = &domain.ValidationResult{Valid: false, Errors: rejected.Violations, Warnings: validation.Warnings}
			return result, errors.NewValidation("timer stopped but time entry rejected", rejected.Violations).
				WithDetails(fmt.Sprintf("session_id: %s", session.ID)).
				WithContext(ctx)
		}
		return result, errors.Wrap(err, errors.ErrInternal, "timer stopped but time entry could not be saved").
			WithDetails(fmt.Sprintf("session_id: %s", session.ID)).
			WithContext(ctx)
	}
	result.Entry = entry

	if err := c.sessions.MarkConverted(ctx, tenantID, session.ID); err != nil {
		// запись уже создана и ссылается на сессию, флаг можно восстановить позже
		s.logger.Error("Failed to mark session as converted",
			logger.CtxField(ctx),
			logger.String("session_id", session.ID),
			logger.String("entry_id", entry.ID),
			logger.Error(err),
		)
	} else {
		session.ConvertedToTimeEntry = true
	}

	s.metrics.HoursBilled(draft.Hours)
	hours := draft.Hours
	s.publish(ctx, timer, domain.TimerEventConverted, func(evt *domain.TimerEvent) {
		evt.SessionID = session.ID
		evt.AccumulatedSeconds = session.TotalDurationSeconds
		evt.Hours = &hours
	})

	s.logger.Info("Timer converted successfully",
		logger.CtxField(ctx),
		logger.String("timer_id", timerID),
		logger.String("entry_id", entry.ID),
		logger.String("tenant_id", tenantID),
		logger.String("user_id", userID),
		logger.String("hours", draft.Hours.String()),
		logger.String("rate", rate.StringFixed(2)),
	)
	return result, nil
}

// ConvertMany конвертирует таймеры независимо друг от друга.
// Ошибка одного таймера не прерывает пакет; итоговая ошибка объединяет все неудачи.
func (c *Converter) ConvertMany(ctx context.Context, tenantID, userID string, timerIDs []string, description *string) ([]*ConversionOutcome, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	outcomes := make([]*ConversionOutcome, 0, len(timerIDs))
	var errs error
	for _, id := range timerIDs {
		result, err := c.Convert(ctx, tenantID, userID, id, description)
		outcomes = append(outcomes, &ConversionOutcome{TimerID: id, Result: result, Err: err})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("timer %s: %w", id, err))
		}
	}

	c.timers.logger.Info("Bulk conversion finished",
		logger.CtxField(ctx),
		logger.String("tenant_id", tenantID),
		logger.Int("requested", len(timerIDs)),
		logger.Int("failed", len(multierr.Errors(errs))),
	)
	return outcomes, errs
}
