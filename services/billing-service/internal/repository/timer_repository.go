package repository

import (
	"context"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// TimerMutation изменяет таймер внутри транзакции.
// Возвращает false, если изменений нет и запись не нужна.
type TimerMutation func(timer *domain.ActiveTimer) (bool, error)

// TimerFinisher строит сессию из таймера внутри транзакции завершения
type TimerFinisher func(timer *domain.ActiveTimer) (*domain.TimerSession, error)

// TimerRepository хранилище активных таймеров.
// Все методы фильтруют по tenant; чужой tenant неотличим от отсутствия записи.
type TimerRepository interface {
	// Create сохраняет новый таймер; дубликат (tenant, user, case) дает CONFLICT
	Create(ctx context.Context, timer *domain.ActiveTimer) error

	// GetByID возвращает таймер по ID
	GetByID(ctx context.Context, tenantID, id string) (*domain.ActiveTimer, error)

	// Modify выполняет атомарное чтение-изменение-запись таймера
	Modify(ctx context.Context, tenantID, id string, fn TimerMutation) (*domain.ActiveTimer, error)

	// Finish в одной транзакции записывает сессию и удаляет таймер
	Finish(ctx context.Context, tenantID, id string, fn TimerFinisher) (*domain.ActiveTimer, *domain.TimerSession, error)

	// ListByUser возвращает таймеры пользователя
	ListByUser(ctx context.Context, tenantID, userID string) ([]*domain.ActiveTimer, error)

	// ListByTenant возвращает все активные таймеры арендатора
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.ActiveTimer, error)

	// FindByCase возвращает таймер пользователя по делу
	FindByCase(ctx context.Context, tenantID, userID, caseID string) (*domain.ActiveTimer, error)

	// ExistsForUser проверяет наличие хотя бы одного таймера у пользователя
	ExistsForUser(ctx context.Context, tenantID, userID string) (bool, error)

	// ExistsForCase проверяет наличие таймера пользователя по делу
	ExistsForCase(ctx context.Context, tenantID, userID, caseID string) (bool, error)

	// Ping проверяет соединение с хранилищем
	Ping(ctx context.Context) error
}

// SessionRepository хранилище завершенных сессий (только добавление)
type SessionRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.TimerSession, error)
	ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]*domain.TimerSession, error)
	// MarkConverted переключает флаг конвертации false -> true
	MarkConverted(ctx context.Context, tenantID, id string) error
}
