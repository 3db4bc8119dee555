package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/metrics"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// EventPublisher публикует события жизненного цикла таймеров
type EventPublisher interface {
	PublishTimerEvent(ctx context.Context, event *domain.TimerEvent) error
}

// StartTimerRequest параметры запуска таймера
type StartTimerRequest struct {
	CaseID           string           `json:"case_id"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	ApplyMultipliers bool             `json:"apply_multipliers"`
	IsEmergency      bool             `json:"is_emergency"`
	WorkType         string           `json:"work_type,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Description      string           `json:"description,omitempty"`
}

// StopResult результат остановки таймера.
// AlreadyStopped означает, что таймера уже нет и новая сессия не создана.
type StopResult struct {
	Timer          *domain.ActiveTimer  `json:"timer,omitempty"`
	Session        *domain.TimerSession `json:"session,omitempty"`
	AlreadyStopped bool                 `json:"already_stopped"`
}

// TimerStatus таймер вместе с вычисленным на текущий момент временем
type TimerStatus struct {
	*domain.ActiveTimer
	State        domain.TimerState `json:"state"`
	TotalSeconds int64             `json:"total_seconds"`
	CurrentHours decimal.Decimal   `json:"current_hours"`
}

// TimerService управляет жизненным циклом таймеров
type TimerService struct {
	timers    repository.TimerRepository
	sessions  repository.SessionRepository
	engine    *RateEngine
	publisher EventPublisher
	clock     clock.Clock
	metrics   *metrics.BillingMetrics
	logger    logger.Logger
}

// NewTimerService создает сервис таймеров. publisher может быть nil.
func NewTimerService(
	timers repository.TimerRepository,
	sessions repository.SessionRepository,
	engine *RateEngine,
	publisher EventPublisher,
	clk clock.Clock,
	m *metrics.BillingMetrics,
	log logger.Logger,
) *TimerService {
	return &TimerService{
		timers:    timers,
		sessions:  sessions,
		engine:    engine,
		publisher: publisher,
		clock:     clk,
		metrics:   m,
		logger:    log,
	}
}

func requireIdentity(ctx context.Context, tenantID, userID string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if userID == "" {
		return errors.New(errors.ErrUnauthorized, "user identity is required").WithContext(ctx)
	}
	return nil
}

func timerForbidden(ctx context.Context, timerID string) error {
	return errors.New(errors.ErrForbidden, "timer belongs to another user").
		WithDetails(fmt.Sprintf("timer_id: %s", timerID)).
		WithContext(ctx)
}

func operationAttrs(tenantID, userID, timerID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tenant_id", tenantID),
		attribute.String("user_id", userID),
		attribute.String("timer_id", timerID),
	}
}

// Start запускает таймер пользователя по делу.
// Второй таймер для той же тройки (tenant, user, case) дает CONFLICT.
func (s *TimerService) Start(ctx context.Context, tenantID, userID string, req StartTimerRequest) (timer *domain.ActiveTimer, err error) {
	ctx, done := s.metrics.StartOperation(ctx, "start", operationAttrs(tenantID, userID, "")...)
	defer func() { done(err) }()

	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	req.CaseID = strings.TrimSpace(req.CaseID)
	if req.CaseID == "" {
		return nil, errors.NewValidation("invalid timer request", []string{"case_id is required"}).WithContext(ctx)
	}

	exists, err := s.timers.ExistsForCase(ctx, tenantID, userID, req.CaseID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to check active timer")
	}
	if exists {
		return nil, errors.New(errors.ErrConflict, "active timer already exists for case").
			WithDetails(fmt.Sprintf("case_id: %s", req.CaseID)).
			WithContext(ctx)
	}

	now := s.clock.Now()
	rate, err := s.engine.ResolveTimerRate(ctx, TimerRateRequest{
		TenantID:         tenantID,
		UserID:           userID,
		CaseID:           req.CaseID,
		ExplicitRate:     req.Rate,
		ApplyMultipliers: req.ApplyMultipliers,
		IsEmergency:      req.IsEmergency,
		At:               now,
	})
	if err != nil {
		return nil, err
	}

	timer = &domain.ActiveTimer{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		UserID:           userID,
		CaseID:           req.CaseID,
		ClientID:         rate.Case.ClientID,
		MatterTypeID:     rate.Case.MatterTypeID,
		StartedAt:        now,
		Running:          true,
		BaseRate:         rate.BaseRate,
		HourlyRate:       rate.EffectiveRate,
		ApplyMultipliers: req.ApplyMultipliers,
		IsEmergency:      req.IsEmergency,
		WorkType:         req.WorkType,
		Tags:             req.Tags,
		Description:      req.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}

	// уникальный индекс хранилища закрывает гонку между проверкой и вставкой
	if err := s.timers.Create(ctx, timer); err != nil {
		return nil, storeFailure(ctx, err, "failed to create timer")
	}

	s.publish(ctx, timer, domain.TimerEventStarted, nil)

	s.logger.Info("Timer started successfully",
		logger.CtxField(ctx),
		logger.String("timer_id", timer.ID),
		logger.String("tenant_id", tenantID),
		logger.String("user_id", userID),
		logger.String("case_id", timer.CaseID),
		logger.String("rate_source", string(rate.BaseSource)),
		logger.String("hourly_rate", timer.HourlyRate.StringFixed(2)),
		logger.Strings("multipliers", rate.Multipliers),
	)
	return timer, nil
}

// Pause ставит таймер на паузу. Повторная пауза ничего не меняет.
func (s *TimerService) Pause(ctx context.Context, tenantID, timerID, userID string) (timer *domain.ActiveTimer, err error) {
	ctx, done := s.metrics.StartOperation(ctx, "pause", operationAttrs(tenantID, userID, timerID)...)
	defer func() { done(err) }()

	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	changed := false
	timer, err = s.timers.Modify(ctx, tenantID, timerID, func(t *domain.ActiveTimer) (bool, error) {
		if !t.IsOwnedBy(userID) {
			return false, timerForbidden(ctx, timerID)
		}
		changed = t.Pause(s.clock.Now())
		return changed, nil
	})
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to pause timer")
	}

	if changed {
		s.publish(ctx, timer, domain.TimerEventPaused, nil)
	}

	s.logger.Info("Timer paused successfully",
		logger.CtxField(ctx),
		logger.String("timer_id", timerID),
		logger.String("tenant_id", tenantID),
		logger.String("user_id", userID),
		logger.Int64("accumulated_seconds", timer.AccumulatedSeconds),
		logger.Bool("changed", changed),
	)
	return timer, nil
}

// Resume возобновляет таймер. При включенных множителях ставка
// пересчитывается от базовой на момент возобновления.
func (s *TimerService) Resume(ctx context.Context, tenantID, timerID, userID string) (timer *domain.ActiveTimer, err error) {
	ctx, done := s.metrics.StartOperation(ctx, "resume", operationAttrs(tenantID, userID, timerID)...)
	defer func() { done(err) }()

	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	current, err := s.timers.GetByID(ctx, tenantID, timerID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to get timer")
	}
	if !current.IsOwnedBy(userID) {
		return nil, timerForbidden(ctx, timerID)
	}

	// конфигурация читается до транзакции, чтобы не держать блокировку строки.
	// Состояние Running здесь не проверяется: пауза могла случиться после чтения.
	var cfg *domain.EffectiveRateConfig
	if current.ApplyMultipliers {
		effective, err := s.engine.EffectiveConfig(ctx, tenantID, current.CaseID)
		if err != nil {
			return nil, err
		}
		cfg = &effective
	}

	changed := false
	var previousRate decimal.Decimal
	timer, err = s.timers.Modify(ctx, tenantID, timerID, func(t *domain.ActiveTimer) (bool, error) {
		if !t.IsOwnedBy(userID) {
			return false, timerForbidden(ctx, timerID)
		}
		now := s.clock.Now()
		if changed = t.Resume(now); !changed {
			return false, nil
		}
		previousRate = t.HourlyRate
		if t.ApplyMultipliers && cfg != nil {
			rate, _ := s.engine.ApplyMultipliers(t.BaseRate, now, t.IsEmergency, *cfg)
			if !rate.Equal(t.HourlyRate) {
				t.HourlyRate = rate
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to resume timer")
	}

	if changed {
		s.publish(ctx, timer, domain.TimerEventResumed, nil)
		if !previousRate.Equal(timer.HourlyRate) {
			s.logger.Info("Timer rate recomputed on resume",
				logger.CtxField(ctx),
				logger.String("timer_id", timerID),
				logger.String("previous_rate", previousRate.StringFixed(2)),
				logger.String("hourly_rate", timer.HourlyRate.StringFixed(2)),
			)
		}
	}

	s.logger.Info("Timer resumed successfully",
		logger.CtxField(ctx),
		logger.String("timer_id", timerID),
		logger.String("tenant_id", tenantID),
		logger.String("user_id", userID),
		logger.Bool("changed", changed),
	)
	return timer, nil
}

// Stop останавливает таймер и записывает сессию.
// Отсутствующий таймер считается уже остановленным.
func (s *TimerService) Stop(ctx context.Context, tenantID, timerID, userID string) (result *StopResult, err error) {
	ctx, done := s.metrics.StartOperation(ctx, "stop", operationAttrs(tenantID, userID, timerID)...)
	defer func() { done(err) }()

	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	timer, session, err := s.finish(ctx, tenantID, timerID, userID)
	if errors.IsCode(err, errors.ErrNotFound) {
		s.logger.Info("Timer already stopped",
			logger.CtxField(ctx),
			logger.String("timer_id", timerID),
			logger.String("tenant_id", tenantID),
		)
		return &StopResult{AlreadyStopped: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StopResult{Timer: timer, Session: session}, nil
}

// finish атомарно строит сессию и удаляет таймер
func (s *TimerService) finish(ctx context.Context, tenantID, timerID, userID string) (*domain.ActiveTimer, *domain.TimerSession, error) {
	timer, session, err := s.timers.Finish(ctx, tenantID, timerID, func(t *domain.ActiveTimer) (*domain.TimerSession, error) {
		if !t.IsOwnedBy(userID) {
			return nil, timerForbidden(ctx, timerID)
		}
		return t.NewSession(uuid.New().String(), s.clock.Now()), nil
	})
	if err != nil {
		return nil, nil, storeFailure(ctx, err, "failed to stop timer")
	}

	s.publish(ctx, timer, domain.TimerEventStopped, func(evt *domain.TimerEvent) {
		evt.SessionID = session.ID
		evt.AccumulatedSeconds = session.TotalDurationSeconds
	})

	s.logger.Info("Timer stopped successfully",
		logger.CtxField(ctx),
		logger.String("timer_id", timerID),
		logger.String("session_id", session.ID),
		logger.String("tenant_id", tenantID),
		logger.String("user_id", userID),
		logger.Int64("total_duration_seconds", session.TotalDurationSeconds),
	)
	return timer, session, nil
}

// StopAll останавливает все таймеры пользователя независимо друг от друга.
// Возвращает записанные сессии и объединенную ошибку по неудачным таймерам.
func (s *TimerService) StopAll(ctx context.Context, tenantID, userID string) ([]*domain.TimerSession, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	timers, err := s.timers.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to list timers")
	}

	sessions := make([]*domain.TimerSession, 0, len(timers))
	var errs error
	for _, t := range timers {
		result, err := s.Stop(ctx, tenantID, t.ID, userID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("timer %s: %w", t.ID, err))
			continue
		}
		if result.Session != nil {
			sessions = append(sessions, result.Session)
		}
	}

	if errs != nil {
		s.logger.Warn("Some timers failed to stop",
			logger.CtxField(ctx),
			logger.String("tenant_id", tenantID),
			logger.String("user_id", userID),
			logger.Int("stopped", len(sessions)),
			logger.Int("failed", len(multierr.Errors(errs))),
			logger.Error(errs),
		)
	}
	return sessions, errs
}

// GetTimer возвращает таймер пользователя по ID
func (s *TimerService) GetTimer(ctx context.Context, tenantID, userID, timerID string) (*domain.ActiveTimer, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	timer, err := s.timers.GetByID(ctx, tenantID, timerID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to get timer")
	}
	if !timer.IsOwnedBy(userID) {
		return nil, timerForbidden(ctx, timerID)
	}
	return timer, nil
}

// ListUserTimers возвращает запущенные и приостановленные таймеры пользователя
func (s *TimerService) ListUserTimers(ctx context.Context, tenantID, userID string) ([]*domain.ActiveTimer, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	timers, err := s.timers.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to list timers")
	}
	return timers, nil
}

// ListTenantTimers возвращает все активные таймеры арендатора
func (s *TimerService) ListTenantTimers(ctx context.Context, tenantID string) ([]*domain.ActiveTimer, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	timers, err := s.timers.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to list tenant timers")
	}
	return timers, nil
}

// GetTimerForCase возвращает таймер пользователя по делу
func (s *TimerService) GetTimerForCase(ctx context.Context, tenantID, userID, caseID string) (*domain.ActiveTimer, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	timer, err := s.timers.FindByCase(ctx, tenantID, userID, caseID)
	if err != nil {
		return nil, storeFailure(ctx, err, "failed to find timer for case")
	}
	return timer, nil
}

// HasActiveTimer проверяет, есть ли у пользователя хотя бы один таймер
func (s *TimerService) HasActiveTimer(ctx context.Context, tenantID, userID string) (bool, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return false, err
	}
	exists, err := s.timers.ExistsForUser(ctx, tenantID, userID)
	if err != nil {
		return false, storeFailure(ctx, err, "failed to check active timers")
	}
	return exists, nil
}

// HasActiveTimerForCase проверяет наличие таймера пользователя по делу
func (s *TimerService) HasActiveTimerForCase(ctx context.Context, tenantID, userID, caseID string) (bool, error) {
	if err := requireIdentity(ctx, tenantID, userID); err != nil {
		return false, err
	}
	exists, err := s.timers.ExistsForCase(ctx, tenantID, userID, caseID)
	if err != nil {
		return false, storeFailure(ctx, err, "failed to check active timer")
	}
	return exists, nil
}

// Describe дополняет таймер временем, отработанным на текущий момент
func (s *TimerService) Describe(timer *domain.ActiveTimer) *TimerStatus {
	total := timer.TotalSeconds(s.clock.Now())
	return &TimerStatus{
		ActiveTimer:  timer,
		State:        timer.State(),
		TotalSeconds: total,
		CurrentHours: domain.RoundUpToTenthHour(total),
	}
}

// publish отправляет событие; ошибка брокера не отменяет уже сохраненное изменение
func (s *TimerService) publish(ctx context.Context, timer *domain.ActiveTimer, eventType domain.TimerEventType, mutate func(*domain.TimerEvent)) {
	if s.publisher == nil || timer == nil {
		return
	}
	evt := &domain.TimerEvent{
		ID:                 uuid.New().String(),
		Type:               eventType,
		TenantID:           timer.TenantID,
		UserID:             timer.UserID,
		TimerID:            timer.ID,
		CaseID:             timer.CaseID,
		AccumulatedSeconds: timer.AccumulatedSeconds,
		HourlyRate:         timer.HourlyRate,
		OccurredAt:         s.clock.Now(),
	}
	if mutate != nil {
		mutate(evt)
	}
	if err := s.publisher.PublishTimerEvent(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish timer event",
			logger.CtxField(ctx),
			logger.String("event_type", string(eventType)),
			logger.String("timer_id", timer.ID),
			logger.Error(err),
		)
	}
}
