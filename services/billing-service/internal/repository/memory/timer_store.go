package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// TimerStore хранит таймеры и сессии в памяти.
// Один мьютекс сериализует все изменения, поэтому Finish атомарен.
type TimerStore struct {
	mu       sync.Mutex
	timers   map[string]*domain.ActiveTimer
	sessions map[string]*domain.TimerSession
}

// NewTimerStore создает пустое хранилище таймеров
func NewTimerStore() *TimerStore {
	return &TimerStore{
		timers:   make(map[string]*domain.ActiveTimer),
		sessions: make(map[string]*domain.TimerSession),
	}
}

// Timers возвращает представление хранилища как TimerRepository
func (s *TimerStore) Timers() repository.TimerRepository {
	return &timerRepository{store: s}
}

// Sessions возвращает представление хранилища как SessionRepository
func (s *TimerStore) Sessions() repository.SessionRepository {
	return &sessionRepository{store: s}
}

type timerRepository struct {
	store *TimerStore
}

func timerNotFound(ctx context.Context, id string) error {
	return errors.New(errors.ErrNotFound, "timer not found").
		WithDetails(fmt.Sprintf("timer_id: %s", id)).
		WithContext(ctx)
}

// Create сохраняет таймер, проверяя уникальность (tenant, user, case)
func (r *timerRepository) Create(ctx context.Context, timer *domain.ActiveTimer) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[timer.ID]; ok {
		return errors.New(errors.ErrConflict, "timer already exists").
			WithDetails(fmt.Sprintf("timer_id: %s", timer.ID)).
			WithContext(ctx)
	}
	for _, t := range s.timers {
		if t.TenantID == timer.TenantID && t.UserID == timer.UserID && t.CaseID == timer.CaseID {
			return errors.New(errors.ErrConflict, "active timer already exists for case").
				WithDetails(fmt.Sprintf("case_id: %s, user_id: %s", timer.CaseID, timer.UserID)).
				WithContext(ctx)
		}
	}

	s.timers[timer.ID] = timer.Clone()
	return nil
}

func (r *timerRepository) lookup(tenantID, id string) (*domain.ActiveTimer, bool) {
	t, ok := r.store.timers[id]
	if !ok || t.TenantID != tenantID {
		return nil, false
	}
	return t, true
}

// GetByID возвращает копию таймера
func (r *timerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ActiveTimer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.lookup(tenantID, id)
	if !ok {
		return nil, timerNotFound(ctx, id)
	}
	return t.Clone(), nil
}

// Modify применяет fn к копии и сохраняет ее только при успехе
func (r *timerRepository) Modify(ctx context.Context, tenantID, id string, fn repository.TimerMutation) (*domain.ActiveTimer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.lookup(tenantID, id)
	if !ok {
		return nil, timerNotFound(ctx, id)
	}

	working := current.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}

	working.Version = current.Version + 1
	r.store.timers[id] = working
	return working.Clone(), nil
}

// Finish записывает сессию и удаляет таймер
func (r *timerRepository) Finish(ctx context.Context, tenantID, id string, fn repository.TimerFinisher) (*domain.ActiveTimer, *domain.TimerSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.lookup(tenantID, id)
	if !ok {
		return nil, nil, timerNotFound(ctx, id)
	}

	working := current.Clone()
	session, err := fn(working)
	if err != nil {
		return nil, nil, err
	}

	stored := *session
	r.store.sessions[session.ID] = &stored
	delete(r.store.timers, id)
	return working, session, nil
}

func (r *timerRepository) collect(match func(t *domain.ActiveTimer) bool) []*domain.ActiveTimer {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*domain.ActiveTimer, 0)
	for _, t := range r.store.timers {
		if match(t) {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ListByUser возвращает таймеры пользователя
func (r *timerRepository) ListByUser(_ context.Context, tenantID, userID string) ([]*domain.ActiveTimer, error) {
	return r.collect(func(t *domain.ActiveTimer) bool {
		return t.TenantID == tenantID && t.UserID == userID
	}), nil
}

// ListByTenant возвращает все таймеры арендатора
func (r *timerRepository) ListByTenant(_ context.Context, tenantID string) ([]*domain.ActiveTimer, error) {
	return r.collect(func(t *domain.ActiveTimer) bool {
		return t.TenantID == tenantID
	}), nil
}

// FindByCase возвращает таймер пользователя по делу
func (r *timerRepository) FindByCase(ctx context.Context, tenantID, userID, caseID string) (*domain.ActiveTimer, error) {
	found := r.collect(func(t *domain.ActiveTimer) bool {
		return t.TenantID == tenantID && t.UserID == userID && t.CaseID == caseID
	})
	if len(found) == 0 {
		return nil, errors.New(errors.ErrNotFound, "no active timer for case").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return found[0], nil
}

// ExistsForUser проверяет наличие таймеров у пользователя
func (r *timerRepository) ExistsForUser(ctx context.Context, tenantID, userID string) (bool, error) {
	timers, _ := r.ListByUser(ctx, tenantID, userID)
	return len(timers) > 0, nil
}

// ExistsForCase проверяет наличие таймера по делу
func (r *timerRepository) ExistsForCase(_ context.Context, tenantID, userID, caseID string) (bool, error) {
	found := r.collect(func(t *domain.ActiveTimer) bool {
		return t.TenantID == tenantID && t.UserID == userID && t.CaseID == caseID
	})
	return len(found) > 0, nil
}

// Ping всегда успешен
func (r *timerRepository) Ping(context.Context) error {
	return nil
}

type sessionRepository struct {
	store *TimerStore
}

// GetByID возвращает сессию по ID
func (r *sessionRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TimerSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, errors.New(errors.ErrNotFound, "timer session not found").
			WithDetails(fmt.Sprintf("session_id: %s", id)).
			WithContext(ctx)
	}
	c := *s
	return &c, nil
}

// ListByUser возвращает последние сессии пользователя
func (r *sessionRepository) ListByUser(_ context.Context, tenantID, userID string, limit int) ([]*domain.TimerSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*domain.TimerSession, 0)
	for _, s := range r.store.sessions {
		if s.TenantID == tenantID && s.UserID == userID {
			c := *s
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EndedAt.After(result[j].EndedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkConverted отмечает сессию как конвертированную
func (r *sessionRepository) MarkConverted(ctx context.Context, tenantID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[id]
	if !ok || s.TenantID != tenantID {
		return errors.New(errors.ErrNotFound, "timer session not found").
			WithDetails(fmt.Sprintf("session_id: %s", id)).
			WithContext(ctx)
	}
	s.ConvertedToTimeEntry = true
	return nil
}
