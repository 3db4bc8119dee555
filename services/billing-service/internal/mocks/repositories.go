package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
)

// MockTimerRepository - мок для TimerRepository
type MockTimerRepository struct {
	mock.Mock
}

func (m *MockTimerRepository) Create(ctx context.Context, timer *domain.ActiveTimer) error {
	args := m.Called(ctx, timer)
	return args.Error(0)
}

func (m *MockTimerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ActiveTimer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActiveTimer), args.Error(1)
}

func (m *MockTimerRepository) Modify(ctx context.Context, tenantID, id string, fn repository.TimerMutation) (*domain.ActiveTimer, error) {
	args := m.Called(ctx, tenantID, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActiveTimer), args.Error(1)
}

func (m *MockTimerRepository) Finish(ctx context.Context, tenantID, id string, fn repository.TimerFinisher) (*domain.ActiveTimer, *domain.TimerSession, error) {
	args := m.Called(ctx, tenantID, id, fn)
	var timer *domain.ActiveTimer
	if t := args.Get(0); t != nil {
		timer = t.(*domain.ActiveTimer)
	}
	var session *domain.TimerSession
	if s := args.Get(1); s != nil {
		session = s.(*domain.TimerSession)
	}
	return timer, session, args.Error(2)
}

func (m *MockTimerRepository) ListByUser(ctx context.Context, tenantID, userID string) ([]*domain.ActiveTimer, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ActiveTimer), args.Error(1)
}

func (m *MockTimerRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ActiveTimer, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ActiveTimer), args.Error(1)
}

func (m *MockTimerRepository) FindByCase(ctx context.Context, tenantID, userID, caseID string) (*domain.ActiveTimer, error) {
	args := m.Called(ctx, tenantID, userID, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActiveTimer), args.Error(1)
}

func (m *MockTimerRepository) ExistsForUser(ctx context.Context, tenantID, userID string) (bool, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTimerRepository) ExistsForCase(ctx context.Context, tenantID, userID, caseID string) (bool, error) {
	args := m.Called(ctx, tenantID, userID, caseID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTimerRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionRepository - мок для SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TimerSession, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TimerSession), args.Error(1)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]*domain.TimerSession, error) {
	args := m.Called(ctx, tenantID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TimerSession), args.Error(1)
}

func (m *MockSessionRepository) MarkConverted(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockRateRepository - мок для RateRepository
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) rate(args mock.Arguments) (*domain.BillingRate, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingRate), args.Error(1)
}

func (m *MockRateRepository) FindActiveUserRate(ctx context.Context, tenantID, userID string) (*domain.BillingRate, error) {
	return m.rate(m.Called(ctx, tenantID, userID))
}

func (m *MockRateRepository) FindCaseSpecificRate(ctx context.Context, tenantID, caseID, userID string) (*domain.BillingRate, error) {
	return m.rate(m.Called(ctx, tenantID, caseID, userID))
}

func (m *MockRateRepository) FindMostSpecificRate(ctx context.Context, q domain.RateQuery) (*domain.BillingRate, error) {
	return m.rate(m.Called(ctx, q))
}

func (m *MockRateRepository) FindCaseConfiguration(ctx context.Context, tenantID, caseID string) (*domain.CaseRateConfiguration, error) {
	args := m.Called(ctx, tenantID, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaseRateConfiguration), args.Error(1)
}

func (m *MockRateRepository) CreateRate(ctx context.Context, rate *domain.BillingRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRateRepository) UpdateRate(ctx context.Context, rate *domain.BillingRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRateRepository) DeactivateRate(ctx context.Context, tenantID, id string, at time.Time) error {
	args := m.Called(ctx, tenantID, id, at)
	return args.Error(0)
}

func (m *MockRateRepository) DeleteRate(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockRateRepository) GetRate(ctx context.Context, tenantID, id string) (*domain.BillingRate, error) {
	return m.rate(m.Called(ctx, tenantID, id))
}

func (m *MockRateRepository) ListRates(ctx context.Context, tenantID string, filter repository.RateFilter) ([]*domain.BillingRate, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BillingRate), args.Error(1)
}

func (m *MockRateRepository) SaveCaseConfiguration(ctx context.Context, cfg *domain.CaseRateConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockRateRepository) DeactivateCaseConfiguration(ctx context.Context, tenantID, caseID string, at time.Time) error {
	args := m.Called(ctx, tenantID, caseID, at)
	return args.Error(0)
}

func (m *MockRateRepository) DeleteCaseConfiguration(ctx context.Context, tenantID, caseID string) error {
	args := m.Called(ctx, tenantID, caseID)
	return args.Error(0)
}

// MockTimeEntryRepository - мок приемника записей времени
type MockTimeEntryRepository struct {
	mock.Mock
}

func (m *MockTimeEntryRepository) CreateTimeEntry(ctx context.Context, draft *domain.TimeEntryDraft) (*domain.TimeEntry, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) SumHoursForUserOnDate(ctx context.Context, tenantID, userID string, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, userID, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockTimeEntryRepository) ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*domain.TimeEntry, error) {
	args := m.Called(ctx, tenantID, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TimeEntry), args.Error(1)
}

// MockCaseDirectory - мок справочника дел
type MockCaseDirectory struct {
	mock.Mock
}

func (m *MockCaseDirectory) FindCase(ctx context.Context, tenantID, caseID string) (*domain.LegalCase, error) {
	args := m.Called(ctx, tenantID, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalCase), args.Error(1)
}

// MockRoleDirectory - мок справочника ролей
type MockRoleDirectory struct {
	mock.Mock
}

func (m *MockRoleDirectory) FindUserRole(ctx context.Context, tenantID, userID string) (domain.Role, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Get(0).(domain.Role), args.Error(1)
}

var (
	_ repository.TimerRepository     = (*MockTimerRepository)(nil)
	_ repository.SessionRepository   = (*MockSessionRepository)(nil)
	_ repository.RateRepository      = (*MockRateRepository)(nil)
	_ repository.TimeEntryRepository = (*MockTimeEntryRepository)(nil)
	_ repository.CaseDirectory       = (*MockCaseDirectory)(nil)
	_ repository.RoleDirectory       = (*MockRoleDirectory)(nil)
)
