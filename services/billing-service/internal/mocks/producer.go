package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// MockEventPublisher - мок публикации событий таймеров
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTimerEvent(ctx context.Context, event *domain.TimerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
