package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"LegalPracticePlatform/pkg/database"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

const rateColumns = `id, tenant_id, user_id, legal_case_id, client_id, matter_type_id, rate_amount,
	rate_type, effective_date, end_date, is_active, created_at, updated_at`

const configColumns = `id, tenant_id, legal_case_id, default_rate, allow_multipliers, weekend_multiplier,
	after_hours_multiplier, emergency_multiplier, is_active, created_at, updated_at`

// specificityExpr число заданных областей ставки
const specificityExpr = `((user_id IS NOT NULL)::int + (legal_case_id IS NOT NULL)::int +
	(client_id IS NOT NULL)::int + (matter_type_id IS NOT NULL)::int)`

// RateRepository реализация хранилища ставок в PostgreSQL
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository создает новый экземпляр RateRepository
func NewRateRepository(pool *pgxpool.Pool) repository.RateRepository {
	return &RateRepository{pool: pool}
}

func scanRate(row rowScanner) (*domain.BillingRate, error) {
	var r domain.BillingRate
	err := row.Scan(
		&r.ID,
		&r.TenantID,
		&r.UserID,
		&r.LegalCaseID,
		&r.ClientID,
		&r.MatterTypeID,
		&r.RateAmount,
		&r.RateType,
		&r.EffectiveDate,
		&r.EndDate,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanConfig(row rowScanner) (*domain.CaseRateConfiguration, error) {
	var c domain.CaseRateConfiguration
	var defaultRate, weekend, afterHours, emergency decimal.NullDecimal
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.LegalCaseID,
		&defaultRate,
		&c.AllowMultipliers,
		&weekend,
		&afterHours,
		&emergency,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DefaultRate = nullDecimalPtr(defaultRate)
	c.WeekendMultiplier = nullDecimalPtr(weekend)
	c.AfterHoursMultiplier = nullDecimalPtr(afterHours)
	c.EmergencyMultiplier = nullDecimalPtr(emergency)
	return &c, nil
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func decimalArg(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// findOne выполняет запрос одной ставки; отсутствие строки дает (nil, nil)
func (r *RateRepository) findOne(ctx context.Context, op, query string, args ...any) (*domain.BillingRate, error) {
	rate, err := scanRate(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to "+op).WithContext(ctx)
	}
	return rate, nil
}

// FindActiveUserRate возвращает базовую ставку пользователя
func (r *RateRepository) FindActiveUserRate(ctx context.Context, tenantID, userID string) (*domain.BillingRate, error) {
	query := `SELECT ` + rateColumns + ` FROM billing_rates
		WHERE tenant_id = $1 AND user_id = $2 AND is_active
			AND legal_case_id IS NULL AND client_id IS NULL AND matter_type_id IS NULL
		ORDER BY effective_date DESC, id
		LIMIT 1`
	return r.findOne(ctx, "find user rate", query, tenantID, userID)
}

// FindCaseSpecificRate возвращает ставку пары (дело, пользователь)
func (r *RateRepository) FindCaseSpecificRate(ctx context.Context, tenantID, caseID, userID string) (*domain.BillingRate, error) {
	query := `SELECT ` + rateColumns + ` FROM billing_rates
		WHERE tenant_id = $1 AND legal_case_id = $2 AND user_id = $3 AND is_active
		ORDER BY effective_date DESC, id
		LIMIT 1`
	return r.findOne(ctx, "find case rate", query, tenantID, caseID, userID)
}

// FindMostSpecificRate возвращает самую специфичную ставку, действующую в дату запроса
func (r *RateRepository) FindMostSpecificRate(ctx context.Context, q domain.RateQuery) (*domain.BillingRate, error) {
	query := `SELECT ` + rateColumns + ` FROM billing_rates
		WHERE tenant_id = $1 AND is_active
			AND ` + specificityExpr + ` > 0
			AND (user_id IS NULL OR user_id = $2)
			AND (legal_case_id IS NULL OR legal_case_id = $3)
			AND (client_id IS NULL OR client_id = $4)
			AND (matter_type_id IS NULL OR matter_type_id = $5)
			AND effective_date <= $6::date
			AND (end_date IS NULL OR end_date >= $6::date)
		ORDER BY ` + specificityExpr + ` DESC, effective_date DESC, id
		LIMIT 1`
	return r.findOne(ctx, "find most specific rate", query,
		q.TenantID, q.UserID, q.CaseID, q.ClientID, q.MatterTypeID, domain.DateIn(q.Date, q.Date.Location()))
}

// FindCaseConfiguration возвращает активную настройку дела
func (r *RateRepository) FindCaseConfiguration(ctx context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error) {
	query := `SELECT ` + configColumns + ` FROM case_rate_configurations
		WHERE tenant_id = $1 AND legal_case_id = $2 AND is_active`
	cfg, err := scanConfig(r.pool.QueryRow(ctx, query, tenantID, caseID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to find case rate configuration").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return cfg, nil
}

// CreateRate сохраняет новую ставку
func (r *RateRepository) CreateRate(ctx context.Context, rate *domain.BillingRate) error {
	query := `
		INSERT INTO billing_rates (` + rateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		rate.ID,
		rate.TenantID,
		rate.UserID,
		rate.LegalCaseID,
		rate.ClientID,
		rate.MatterTypeID,
		rate.RateAmount,
		rate.RateType,
		rate.EffectiveDate,
		rate.EndDate,
		rate.IsActive,
		rate.CreatedAt,
		rate.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.New(errors.ErrConflict, "billing rate already exists").
				WithDetails(fmt.Sprintf("rate_id: %s", rate.ID)).
				WithContext(ctx)
		}
		return errors.Wrap(err, errors.ErrInternal, "failed to create billing rate").
			WithDetails(fmt.Sprintf("tenant_id: %s", rate.TenantID)).
			WithContext(ctx)
	}
	return nil
}

func (r *RateRepository) execAffecting(ctx context.Context, notFound *errors.Error, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to "+op).
			WithDetails(notFound.Details).
			WithContext(ctx)
	}
	if tag.RowsAffected() == 0 {
		return notFound.WithContext(ctx)
	}
	return nil
}

func rateNotFound(id string) *errors.Error {
	return errors.New(errors.ErrNotFound, "billing rate not found").WithDetails(fmt.Sprintf("rate_id: %s", id))
}

func configNotFound(caseID string) *errors.Error {
	return errors.New(errors.ErrNotFound, "case rate configuration not found").WithDetails(fmt.Sprintf("case_id: %s", caseID))
}

// UpdateRate обновляет ставку
func (r *RateRepository) UpdateRate(ctx context.Context, rate *domain.BillingRate) error {
	if !validID(rate.ID) {
		return rateNotFound(rate.ID).WithContext(ctx)
	}
	query := `
		UPDATE billing_rates
		SET user_id = $3, legal_case_id = $4, client_id = $5, matter_type_id = $6, rate_amount = $7,
			rate_type = $8, effective_date = $9, end_date = $10, is_active = $11, updated_at = $12
		WHERE tenant_id = $1 AND id = $2
	`
	return r.execAffecting(ctx, rateNotFound(rate.ID), "update billing rate", query,
		rate.TenantID,
		rate.ID,
		rate.UserID,
		rate.LegalCaseID,
		rate.ClientID,
		rate.MatterTypeID,
		rate.RateAmount,
		rate.RateType,
		rate.EffectiveDate,
		rate.EndDate,
		rate.IsActive,
		rate.UpdatedAt,
	)
}

// DeactivateRate выключает ставку
func (r *RateRepository) DeactivateRate(ctx context.Context, tenantID, id string, at time.Time) error {
	if !validID(id) {
		return rateNotFound(id).WithContext(ctx)
	}
	return r.execAffecting(ctx, rateNotFound(id), "deactivate billing rate",
		`UPDATE billing_rates SET is_active = FALSE, updated_at = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, at)
}

// DeleteRate удаляет ставку
func (r *RateRepository) DeleteRate(ctx context.Context, tenantID, id string) error {
	if !validID(id) {
		return rateNotFound(id).WithContext(ctx)
	}
	return r.execAffecting(ctx, rateNotFound(id), "delete billing rate",
		`DELETE FROM billing_rates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

// GetRate возвращает ставку по ID
func (r *RateRepository) GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error) {
	if !validID(id) {
		return nil, rateNotFound(id).WithContext(ctx)
	}
	query := `SELECT ` + rateColumns + ` FROM billing_rates WHERE tenant_id = $1 AND id = $2`
	rate, err := scanRate(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, rateNotFound(id).WithContext(ctx)
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to get billing rate").
			WithDetails(fmt.Sprintf("rate_id: %s", id)).
			WithContext(ctx)
	}
	return rate, nil
}

// ListRates возвращает ставки арендатора по фильтру
func (r *RateRepository) ListRates(ctx context.Context, tenantID string, filter repository.RateFilter) ([]*domain.BillingRate, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.CaseID != nil {
		args = append(args, *filter.CaseID)
		conditions = append(conditions, fmt.Sprintf("legal_case_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}

	query := `SELECT ` + rateColumns + ` FROM billing_rates WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY effective_date DESC, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to list billing rates").
			WithDetails(fmt.Sprintf("tenant_id: %s", tenantID)).
			WithContext(ctx)
	}
	defer rows.Close()

	rates := make([]*domain.BillingRate, 0)
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan billing rate").WithContext(ctx)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to iterate billing rates").WithContext(ctx)
	}
	return rates, nil
}

// SaveCaseConfiguration деактивирует текущую настройку дела и вставляет новую
func (r *RateRepository) SaveCaseConfiguration(ctx context.Context, cfg *domain.CaseRateConfiguration) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE case_rate_configurations SET is_active = FALSE, updated_at = $3
			WHERE tenant_id = $1 AND legal_case_id = $2 AND is_active AND id <> $4`,
			cfg.TenantID, cfg.LegalCaseID, cfg.UpdatedAt, cfg.ID,
		); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO case_rate_configurations (`+configColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				default_rate = EXCLUDED.default_rate,
				allow_multipliers = EXCLUDED.allow_multipliers,
				weekend_multiplier = EXCLUDED.weekend_multiplier,
				after_hours_multiplier = EXCLUDED.after_hours_multiplier,
				emergency_multiplier = EXCLUDED.emergency_multiplier,
				is_active = EXCLUDED.is_active,
				updated_at = EXCLUDED.updated_at`,
			cfg.ID,
			cfg.TenantID,
			cfg.LegalCaseID,
			decimalArg(cfg.DefaultRate),
			cfg.AllowMultipliers,
			decimalArg(cfg.WeekendMultiplier),
			decimalArg(cfg.AfterHoursMultiplier),
			decimalArg(cfg.EmergencyMultiplier),
			cfg.IsActive,
			cfg.CreatedAt,
			cfg.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return internal(ctx, err, "failed to save case rate configuration", fmt.Sprintf("case_id: %s", cfg.LegalCaseID))
	}
	return nil
}

// DeactivateCaseConfiguration выключает активную настройку дела
func (r *RateRepository) DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string, at time.Time) error {
	return r.execAffecting(ctx, configNotFound(caseID), "deactivate case rate configuration",
		`UPDATE case_rate_configurations SET is_active = FALSE, updated_at = $3
		WHERE tenant_id = $1 AND legal_case_id = $2 AND is_active`,
		tenantID, caseID, at)
}

// DeleteCaseConfiguration удаляет все настройки дела
func (r *RateRepository) DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	return r.execAffecting(ctx, configNotFound(caseID), "delete case rate configuration",
		`DELETE FROM case_rate_configurations WHERE tenant_id = $1 AND legal_case_id = $2`,
		tenantID, caseID)
}
