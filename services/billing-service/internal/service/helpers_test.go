package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"LegalPracticePlatform/pkg/clock"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/mocks"
	"LegalPracticePlatform/services/billing-service/internal/repository/memory"
)

const (
	testTenant = "tenant-1"
	testUser   = "user-1"
	testCase   = "case-42"
)

// tuesdayEvening вторник 19:00 UTC, нерабочее время будного дня
var tuesdayEvening = time.Date(2024, 3, 5, 19, 0, 0, 0, time.UTC)

type testEnv struct {
	clock     *clock.FakeClock
	store     *memory.TimerStore
	rates     *memory.RateRepository
	cases     *memory.CaseDirectory
	roles     *memory.RoleDirectory
	entries   *memory.TimeEntryRepository
	publisher *mocks.MockEventPublisher
	engine    *RateEngine
	timers    *TimerService
	validator *TimeEntryValidator
	converter *Converter
}

func setupTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:     clock.Fake(now),
		store:     memory.NewTimerStore(),
		rates:     memory.NewRateRepository(),
		cases:     memory.NewCaseDirectory(false),
		roles:     memory.NewRoleDirectory(),
		publisher: new(mocks.MockEventPublisher),
	}
	settings := DefaultSettings()
	log := logger.NewNop()

	env.entries = memory.NewTimeEntryRepository(settings.DailyHourCap, env.clock)
	env.publisher.On("PublishTimerEvent", mock.Anything, mock.Anything).Return(nil)
	env.engine = NewRateEngine(env.rates, env.cases, env.roles, settings, env.clock, nil, log)
	env.timers = NewTimerService(env.store.Timers(), env.store.Sessions(), env.engine, env.publisher, env.clock, nil, log)
	env.validator = NewTimeEntryValidator(env.entries, settings, env.clock, log)
	env.converter = NewConverter(env.timers, env.store.Sessions(), env.entries, env.validator)

	env.cases.Register(&domain.LegalCase{ID: testCase, TenantID: testTenant})
	env.cases.Register(&domain.LegalCase{ID: "case-43", TenantID: testTenant})
	env.cases.Register(&domain.LegalCase{ID: "case-other", TenantID: "tenant-2"})
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

// publishedTypes возвращает типы опубликованных событий по порядку
func publishedTypes(p *mocks.MockEventPublisher) []domain.TimerEventType {
	var types []domain.TimerEventType
	for _, call := range p.Calls {
		if call.Method == "PublishTimerEvent" {
			types = append(types, call.Arguments.Get(1).(*domain.TimerEvent).Type)
		}
	}
	return types
}
