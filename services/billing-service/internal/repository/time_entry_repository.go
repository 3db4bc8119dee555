package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// TimeEntryRepository приемник записей времени.
// CreateTimeEntry самостоятельно перепроверяет свои инварианты.
type TimeEntryRepository interface {
	CreateTimeEntry(ctx context.Context, draft *domain.TimeEntryDraft) (*domain.TimeEntry, error)
	SumHoursForUserOnDate(ctx context.Context, tenantID, userID string, date time.Time) (decimal.Decimal, error)
	ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*domain.TimeEntry, error)
}

// CaseDirectory представление дел, принадлежащих внешнему сервису
type CaseDirectory interface {
	// FindCase возвращает NOT_FOUND для отсутствующего или чужого дела
	FindCase(ctx context.Context, tenantID, caseID string) (*domain.LegalCase, error)
}

// RoleDirectory представление ролей пользователей
type RoleDirectory interface {
	// FindUserRole возвращает пустую роль, если она неизвестна
	FindUserRole(ctx context.Context, tenantID, userID string) (domain.Role, error)
}
