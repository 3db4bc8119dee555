package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"LegalPracticePlatform/pkg/database"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

const timerColumns = `id, tenant_id, user_id, case_id, client_id, matter_type_id, started_at,
	accumulated_seconds, running, base_rate, hourly_rate, apply_multipliers, is_emergency,
	work_type, tags, description, created_at, updated_at, version`

// TimerRepository реализация репозитория таймеров в PostgreSQL
type TimerRepository struct {
	pool *pgxpool.Pool
}

// NewTimerRepository создает новый экземпляр TimerRepository
func NewTimerRepository(pool *pgxpool.Pool) repository.TimerRepository {
	return &TimerRepository{pool: pool}
}

func scanTimer(row rowScanner) (*domain.ActiveTimer, error) {
	var t domain.ActiveTimer
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.UserID,
		&t.CaseID,
		&t.ClientID,
		&t.MatterTypeID,
		&t.StartedAt,
		&t.AccumulatedSeconds,
		&t.Running,
		&t.BaseRate,
		&t.HourlyRate,
		&t.ApplyMultipliers,
		&t.IsEmergency,
		&t.WorkType,
		&t.Tags,
		&t.Description,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timerNotFound(ctx context.Context, id string) error {
	return errors.New(errors.ErrNotFound, "timer not found").
		WithDetails(fmt.Sprintf("timer_id: %s", id)).
		WithContext(ctx)
}

// Create создает таймер; уникальный индекс (tenant, user, case) гарантирует один активный таймер
func (r *TimerRepository) Create(ctx context.Context, t *domain.ActiveTimer) error {
	query := `
		INSERT INTO active_timers (` + timerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.TenantID,
		t.UserID,
		t.CaseID,
		t.ClientID,
		t.MatterTypeID,
		t.StartedAt,
		t.AccumulatedSeconds,
		t.Running,
		t.BaseRate,
		t.HourlyRate,
		t.ApplyMultipliers,
		t.IsEmergency,
		t.WorkType,
		tags,
		t.Description,
		t.CreatedAt,
		t.UpdatedAt,
		t.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.New(errors.ErrConflict, "active timer already exists for case").
				WithDetails(fmt.Sprintf("case_id: %s, user_id: %s", t.CaseID, t.UserID)).
				WithContext(ctx)
		}
		return errors.Wrap(err, errors.ErrInternal, "failed to create timer").
			WithDetails(fmt.Sprintf("tenant_id: %s, case_id: %s", t.TenantID, t.CaseID)).
			WithContext(ctx)
	}
	return nil
}

// GetByID возвращает таймер по ID в пределах арендатора
func (r *TimerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ActiveTimer, error) {
	if !validID(id) {
		return nil, timerNotFound(ctx, id)
	}

	query := `SELECT ` + timerColumns + ` FROM active_timers WHERE tenant_id = $1 AND id = $2`
	t, err := scanTimer(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, timerNotFound(ctx, id)
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to get timer").
			WithDetails(fmt.Sprintf("timer_id: %s", id)).
			WithContext(ctx)
	}
	return t, nil
}

func lockTimer(ctx context.Context, tx pgx.Tx, tenantID, id string) (*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	t, err := scanTimer(tx.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, timerNotFound(ctx, id)
		}
		return nil, err
	}
	return t, nil
}

// Modify блокирует строку таймера, применяет fn и сохраняет результат
func (r *TimerRepository) Modify(ctx context.Context, tenantID, id string, fn repository.TimerMutation) (*domain.ActiveTimer, error) {
	if !validID(id) {
		return nil, timerNotFound(ctx, id)
	}

	var result *domain.ActiveTimer
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := lockTimer(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}

		changed, err := fn(t)
		if err != nil {
			return err
		}
		if !changed {
			result = t
			return nil
		}

		t.Version++
		query := `
			UPDATE active_timers
			SET started_at = $3, accumulated_seconds = $4, running = $5, hourly_rate = $6,
				updated_at = $7, version = $8
			WHERE tenant_id = $1 AND id = $2
		`
		if _, err := tx.Exec(ctx, query,
			tenantID,
			id,
			t.StartedAt,
			t.AccumulatedSeconds,
			t.Running,
			t.HourlyRate,
			t.UpdatedAt,
			t.Version,
		); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, internal(ctx, err, "failed to modify timer", fmt.Sprintf("timer_id: %s", id))
	}
	return result, nil
}

// Finish записывает сессию и удаляет таймер в одной транзакции
func (r *TimerRepository) Finish(ctx context.Context, tenantID, id string, fn repository.TimerFinisher) (*domain.ActiveTimer, *domain.TimerSession, error) {
	if !validID(id) {
		return nil, nil, timerNotFound(ctx, id)
	}

	var (
		timer   *domain.ActiveTimer
		session *domain.TimerSession
	)
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := lockTimer(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}

		s, err := fn(t)
		if err != nil {
			return err
		}

		insert := `
			INSERT INTO timer_sessions (id, tenant_id, user_id, case_id, timer_id, description,
				started_at, ended_at, total_duration_seconds, converted_to_time_entry, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		if _, err := tx.Exec(ctx, insert,
			s.ID,
			s.TenantID,
			s.UserID,
			s.CaseID,
			s.TimerID,
			s.Description,
			s.StartedAt,
			s.EndedAt,
			s.TotalDurationSeconds,
			s.ConvertedToTimeEntry,
			s.CreatedAt,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM active_timers WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
			return err
		}

		timer, session = t, s
		return nil
	})
	if err != nil {
		return nil, nil, internal(ctx, err, "failed to finish timer", fmt.Sprintf("timer_id: %s", id))
	}
	return timer, session, nil
}

func (r *TimerRepository) list(ctx context.Context, query, details string, args ...any) ([]*domain.ActiveTimer, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to list timers").
			WithDetails(details).
			WithContext(ctx)
	}
	defer rows.Close()

	timers := make([]*domain.ActiveTimer, 0)
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan timer").
				WithDetails(details).
				WithContext(ctx)
		}
		timers = append(timers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to iterate timers").
			WithDetails(details).
			WithContext(ctx)
	}
	return timers, nil
}

// ListByUser возвращает таймеры пользователя
func (r *TimerRepository) ListByUser(ctx context.Context, tenantID, userID string) ([]*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers
		WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at, id`
	return r.list(ctx, query, fmt.Sprintf("tenant_id: %s, user_id: %s", tenantID, userID), tenantID, userID)
}

// ListByTenant возвращает все таймеры арендатора
func (r *TimerRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers WHERE tenant_id = $1 ORDER BY created_at, id`
	return r.list(ctx, query, fmt.Sprintf("tenant_id: %s", tenantID), tenantID)
}

// FindByCase возвращает таймер пользователя по делу
func (r *TimerRepository) FindByCase(ctx context.Context, tenantID, userID, caseID string) (*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers
		WHERE tenant_id = $1 AND user_id = $2 AND case_id = $3`
	t, err := scanTimer(r.pool.QueryRow(ctx, query, tenantID, userID, caseID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.New(errors.ErrNotFound, "no active timer for case").
				WithDetails(fmt.Sprintf("case_id: %s", caseID)).
				WithContext(ctx)
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to find timer by case").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return t, nil
}

// ExistsForUser проверяет наличие таймеров у пользователя
func (r *TimerRepository) ExistsForUser(ctx context.Context, tenantID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM active_timers WHERE tenant_id = $1 AND user_id = $2)`,
		tenantID, userID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrInternal, "failed to check active timers").
			WithDetails(fmt.Sprintf("user_id: %s", userID)).
			WithContext(ctx)
	}
	return exists, nil
}

// ExistsForCase проверяет наличие таймера пользователя по делу
func (r *TimerRepository) ExistsForCase(ctx context.Context, tenantID, userID, caseID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM active_timers WHERE tenant_id = $1 AND user_id = $2 AND case_id = $3)`,
		tenantID, userID, caseID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrInternal, "failed to check active timer for case").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return exists, nil
}

// Ping проверяет соединение с БД
func (r *TimerRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// SessionRepository реализация репозитория сессий в PostgreSQL
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository создает новый экземпляр SessionRepository
func NewSessionRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, tenant_id, user_id, case_id, timer_id, description, started_at, ended_at,
	total_duration_seconds, converted_to_time_entry, created_at`

func scanSession(row rowScanner) (*domain.TimerSession, error) {
	var s domain.TimerSession
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.UserID,
		&s.CaseID,
		&s.TimerID,
		&s.Description,
		&s.StartedAt,
		&s.EndedAt,
		&s.TotalDurationSeconds,
		&s.ConvertedToTimeEntry,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionNotFound(ctx context.Context, id string) error {
	return errors.New(errors.ErrNotFound, "timer session not found").
		WithDetails(fmt.Sprintf("session_id: %s", id)).
		WithContext(ctx)
}

// GetByID возвращает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TimerSession, error) {
	if !validID(id) {
		return nil, sessionNotFound(ctx, id)
	}
	query := `SELECT ` + sessionColumns + ` FROM timer_sessions WHERE tenant_id = $1 AND id = $2`
	s, err := scanSession(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sessionNotFound(ctx, id)
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to get timer session").
			WithDetails(fmt.Sprintf("session_id: %s", id)).
			WithContext(ctx)
	}
	return s, nil
}

// ListByUser возвращает последние сессии пользователя
func (r *SessionRepository) ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]*domain.TimerSession, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sessionColumns + ` FROM timer_sessions
		WHERE tenant_id = $1 AND user_id = $2 ORDER BY ended_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, tenantID, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to list timer sessions").
			WithDetails(fmt.Sprintf("user_id: %s", userID)).
			WithContext(ctx)
	}
	defer rows.Close()

	sessions := make([]*domain.TimerSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan timer session").
				WithContext(ctx)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to iterate timer sessions").
			WithContext(ctx)
	}
	return sessions, nil
}

// MarkConverted отмечает сессию как конвертированную
func (r *SessionRepository) MarkConverted(ctx context.Context, tenantID, id string) error {
	if !validID(id) {
		return sessionNotFound(ctx, id)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE timer_sessions SET converted_to_time_entry = TRUE WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to mark session converted").
			WithDetails(fmt.Sprintf("session_id: %s", id)).
			WithContext(ctx)
	}
	if tag.RowsAffected() == 0 {
		return sessionNotFound(ctx, id)
	}
	return nil
}
