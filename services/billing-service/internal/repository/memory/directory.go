package memory

import (
	"context"
	"fmt"
	"sync"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// CaseDirectory справочник дел в памяти
type CaseDirectory struct {
	mu        sync.RWMutex
	cases     map[string]*domain.LegalCase
	autoClaim bool
}

// NewCaseDirectory создает справочник дел.
// При autoClaim неизвестное дело закрепляется за первым обратившимся арендатором (режим разработки).
func NewCaseDirectory(autoClaim bool) *CaseDirectory {
	return &CaseDirectory{cases: make(map[string]*domain.LegalCase), autoClaim: autoClaim}
}

var _ repository.CaseDirectory = (*CaseDirectory)(nil)

// Register добавляет дело в справочник
func (d *CaseDirectory) Register(c *domain.LegalCase) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	d.cases[c.ID] = &cp
}

// FindCase возвращает дело арендатора
func (d *CaseDirectory) FindCase(ctx context.Context, tenantID, caseID string) (*domain.LegalCase, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cases[caseID]
	if !ok && d.autoClaim {
		c = &domain.LegalCase{ID: caseID, TenantID: tenantID}
		d.cases[caseID] = c
		ok = true
	}
	if !ok || c.TenantID != tenantID {
		return nil, errors.New(errors.ErrNotFound, "legal case not found").
			WithDetails(fmt.Sprintf("case_id: %s", caseID)).
			WithContext(ctx)
	}
	cp := *c
	return &cp, nil
}

// RoleDirectory справочник ролей в памяти
type RoleDirectory struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

// NewRoleDirectory создает пустой справочник ролей
func NewRoleDirectory() *RoleDirectory {
	return &RoleDirectory{roles: make(map[string]domain.Role)}
}

var _ repository.RoleDirectory = (*RoleDirectory)(nil)

// Assign назначает роль пользователю
func (d *RoleDirectory) Assign(tenantID, userID string, role domain.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[tenantID+"/"+userID] = role
}

// FindUserRole возвращает роль пользователя или пустую строку
func (d *RoleDirectory) FindUserRole(_ context.Context, tenantID, userID string) (domain.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roles[tenantID+"/"+userID], nil
}
