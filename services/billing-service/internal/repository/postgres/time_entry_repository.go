package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/database"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

const entryColumns = `id, tenant_id, user_id, case_id, timer_id, session_id, entry_date, hours, rate,
	description, status, billable, work_type, tags, created_at`

// TimeEntryRepository приемник записей времени в PostgreSQL
type TimeEntryRepository struct {
	pool     *pgxpool.Pool
	dailyCap decimal.Decimal
	clock    clock.Clock
}

// NewTimeEntryRepository создает новый экземпляр TimeEntryRepository
func NewTimeEntryRepository(pool *pgxpool.Pool, dailyCap decimal.Decimal, clk clock.Clock) repository.TimeEntryRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &TimeEntryRepository{pool: pool, dailyCap: dailyCap, clock: clk}
}

// CreateTimeEntry сериализует записи пользователя за дату advisory-блокировкой,
// перепроверяет дневной лимит и сохраняет запись
func (r *TimeEntryRepository) CreateTimeEntry(ctx context.Context, draft *domain.TimeEntryDraft) (*domain.TimeEntry, error) {
	entry := &domain.TimeEntry{
		ID:             uuid.New().String(),
		TimeEntryDraft: *draft,
		CreatedAt:      r.clock.Now(),
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	day := draft.Date.Format("2006-01-02")

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			draft.TenantID+"/"+draft.UserID+"/"+day,
		); err != nil {
			return err
		}

		var existing decimal.Decimal
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(hours), 0) FROM time_entries
			WHERE tenant_id = $1 AND user_id = $2 AND entry_date = $3::date`,
			draft.TenantID, draft.UserID, draft.Date,
		).Scan(&existing); err != nil {
			return err
		}

		if violations := repository.EntryInvariantViolations(draft, existing, r.dailyCap); len(violations) > 0 {
			return errors.NewValidation("time entry rejected", violations).WithContext(ctx)
		}

		var rate decimal.NullDecimal
		if draft.Rate != nil {
			rate = decimal.NullDecimal{Decimal: *draft.Rate, Valid: true}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO time_entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13, $14, $15)`,
			entry.ID,
			entry.TenantID,
			entry.UserID,
			entry.CaseID,
			entry.TimerID,
			entry.SessionID,
			entry.Date,
			entry.Hours,
			rate,
			entry.Description,
			entry.Status,
			entry.Billable,
			entry.WorkType,
			entry.Tags,
			entry.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, internal(ctx, err, "failed to create time entry",
			fmt.Sprintf("user_id: %s, date: %s", draft.UserID, day))
	}
	return entry, nil
}

// SumHoursForUserOnDate суммирует часы пользователя за дату
func (r *TimeEntryRepository) SumHoursForUserOnDate(ctx context.Context, tenantID, userID string, date time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(hours), 0) FROM time_entries
		WHERE tenant_id = $1 AND user_id = $2 AND entry_date = $3::date`,
		tenantID, userID, date,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, errors.ErrInternal, "failed to sum hours").
			WithDetails(fmt.Sprintf("user_id: %s, date: %s", userID, date.Format("2006-01-02"))).
			WithContext(ctx)
	}
	return total, nil
}

// ListByUser возвращает записи пользователя в диапазоне дат включительно
func (r *TimeEntryRepository) ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*domain.TimeEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE tenant_id = $1 AND user_id = $2 AND entry_date BETWEEN $3::date AND $4::date
		ORDER BY entry_date, created_at`,
		tenantID, userID, from, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to list time entries").
			WithDetails(fmt.Sprintf("user_id: %s", userID)).
			WithContext(ctx)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		var (
			e    domain.TimeEntry
			rate decimal.NullDecimal
		)
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.UserID,
			&e.CaseID,
			&e.TimerID,
			&e.SessionID,
			&e.Date,
			&e.Hours,
			&rate,
			&e.Description,
			&e.Status,
			&e.Billable,
			&e.WorkType,
			&e.Tags,
			&e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan time entry").WithContext(ctx)
		}
		e.Rate = nullDecimalPtr(rate)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to iterate time entries").WithContext(ctx)
	}
	return entries, nil
}
