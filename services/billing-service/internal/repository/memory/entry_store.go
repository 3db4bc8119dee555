package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// TimeEntryRepository хранит записи времени в памяти
type TimeEntryRepository struct {
	mu       sync.Mutex
	entries  []*domain.TimeEntry
	dailyCap decimal.Decimal
	clock    clock.Clock
}

// NewTimeEntryRepository создает приемник записей с дневным лимитом часов
func NewTimeEntryRepository(dailyCap decimal.Decimal, clk clock.Clock) *TimeEntryRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &TimeEntryRepository{dailyCap: dailyCap, clock: clk}
}

var _ repository.TimeEntryRepository = (*TimeEntryRepository)(nil)

// CreateTimeEntry перепроверяет инварианты и сохраняет запись
func (r *TimeEntryRepository) CreateTimeEntry(ctx context.Context, draft *domain.TimeEntryDraft) (*domain.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.sumLocked(draft.TenantID, draft.UserID, draft.Date)
	if violations := repository.EntryInvariantViolations(draft, existing, r.dailyCap); len(violations) > 0 {
		return nil, errors.NewValidation("time entry rejected", violations).WithContext(ctx)
	}

	entry := &domain.TimeEntry{
		ID:             uuid.New().String(),
		TimeEntryDraft: *draft,
		CreatedAt:      r.clock.Now(),
	}
	if draft.Tags != nil {
		entry.Tags = append([]string(nil), draft.Tags...)
	}
	r.entries = append(r.entries, entry)

	c := *entry
	return &c, nil
}

// SumHoursForUserOnDate суммирует часы пользователя за дату
func (r *TimeEntryRepository) SumHoursForUserOnDate(_ context.Context, tenantID, userID string, date time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumLocked(tenantID, userID, date), nil
}

func (r *TimeEntryRepository) sumLocked(tenantID, userID string, date time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.UserID == userID && sameDate(e.Date, date) {
			total = total.Add(e.Hours)
		}
	}
	return total
}

// ListByUser возвращает записи пользователя в диапазоне дат включительно
func (r *TimeEntryRepository) ListByUser(_ context.Context, tenantID, userID string, from, to time.Time) ([]*domain.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*domain.TimeEntry, 0)
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.UserID != userID {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
