package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"LegalPracticePlatform/pkg/database"
	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// CaseDirectory читает дела из таблицы legal_cases, которую наполняет сервис дел
type CaseDirectory struct {
	pool *pgxpool.Pool
}

// NewCaseDirectory создает новый экземпляр CaseDirectory
func NewCaseDirectory(pool *pgxpool.Pool) repository.CaseDirectory {
	return &CaseDirectory{pool: pool}
}

// FindCase возвращает дело арендатора
func (d *CaseDirectory) FindCase(ctx context.Context, tenantID, caseID string) (*domain.LegalCase, error) {
	var c domain.LegalCase
	err := d.pool.QueryRow(ctx,
		`SELECT id, tenant_id, client_id, matter_type_id FROM legal_cases WHERE tenant_id = $1 AND id = $2`,
		tenantID, caseID,
	).Scan(&c.ID, &c.TenantID, &c.ClientID, &c.MatterTypeID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.New(errors.ErrNotFound, "legal case not found").
				WithDetails(fmt.Sprintf("case_id: %s", caseID)).
				WithContext(ctx)
		}
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to find legal case").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	return &c, nil
}

// RoleDirectory читает роли пользователей из таблицы user_roles
type RoleDirectory struct {
	pool *pgxpool.Pool
}

// NewRoleDirectory создает новый экземпляр RoleDirectory
func NewRoleDirectory(pool *pgxpool.Pool) repository.RoleDirectory {
	return &RoleDirectory{pool: pool}
}

// FindUserRole возвращает роль пользователя или пустую роль
func (d *RoleDirectory) FindUserRole(ctx context.Context, tenantID, userID string) (domain.Role, error) {
	var raw string
	err := d.pool.QueryRow(ctx,
		`SELECT role FROM user_roles WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(&raw)
	if err != nil {
		if database.IsNoRows(err) {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrInternal, "failed to find user role").
			WithDetails(fmt.Sprintf("user_id: %s", userID)).
			WithContext(ctx)
	}
	role, _ := domain.ParseRole(raw)
	return role, nil
}
