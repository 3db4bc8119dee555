package mocks

import (
	"github.com/stretchr/testify/mock"

	"LegalPracticePlatform/pkg/logger"
)

// MockLogger - универсальный мок для logger.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) With(fields ...logger.Field) logger.Logger {
	args := m.Called(fields)
	if len(args) > 0 {
		return args.Get(0).(logger.Logger)
	}
	return m
}

func (m *MockLogger) Sync() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}
