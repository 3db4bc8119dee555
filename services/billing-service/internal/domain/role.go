package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Role роль сотрудника фирмы
type Role string

const (
	RolePartner        Role = "partner"
	RoleSeniorAttorney Role = "senior_attorney"
	RoleAttorney       Role = "attorney"
	RoleAssociate      Role = "associate"
	RoleParalegal      Role = "paralegal"
	RoleLegalAssistant Role = "legal_assistant"
)

// AllRoles возвращает все известные роли
func AllRoles() []Role {
	return []Role{RolePartner, RoleSeniorAttorney, RoleAttorney, RoleAssociate, RoleParalegal, RoleLegalAssistant}
}

// ParseRole разбирает роль без учета регистра и разделителей
func ParseRole(s string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	normalized = strings.TrimPrefix(normalized, "role_")
	for _, r := range AllRoles() {
		if string(r) == normalized {
			return r, true
		}
	}
	return "", false
}

// RoleRateTable таблица ставок по ролям. Неизменяема после создания.
type RoleRateTable struct {
	rates    map[Role]decimal.Decimal
	fallback decimal.Decimal
}

// NewRoleRateTable создает таблицу; fallback используется для неизвестных ролей
func NewRoleRateTable(rates map[Role]decimal.Decimal, fallback decimal.Decimal) *RoleRateTable {
	copied := make(map[Role]decimal.Decimal, len(rates))
	for role, rate := range rates {
		copied[role] = rate
	}
	return &RoleRateTable{rates: copied, fallback: fallback}
}

// DefaultRoleRateTable возвращает стандартную таблицу ставок
func DefaultRoleRateTable() *RoleRateTable {
	return NewRoleRateTable(map[Role]decimal.Decimal{
		RolePartner:        decimal.NewFromInt(500),
		RoleSeniorAttorney: decimal.NewFromInt(400),
		RoleAttorney:       decimal.NewFromInt(300),
		RoleAssociate:      decimal.NewFromInt(250),
		RoleParalegal:      decimal.NewFromInt(150),
		RoleLegalAssistant: decimal.NewFromInt(100),
	}, decimal.NewFromInt(250))
}

// RateFor возвращает ставку роли и признак того, что роль есть в таблице
func (t *RoleRateTable) RateFor(role Role) (decimal.Decimal, bool) {
	if rate, ok := t.rates[role]; ok {
		return rate, true
	}
	return t.fallback, false
}

// Fallback ставка для неизвестной роли
func (t *RoleRateTable) Fallback() decimal.Decimal {
	return t.fallback
}

// Roles возвращает роли таблицы в отсортированном порядке
func (t *RoleRateTable) Roles() []Role {
	roles := make([]Role, 0, len(t.rates))
	for role := range t.rates {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
