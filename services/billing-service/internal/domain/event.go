package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimerEventType тип события таймера
type TimerEventType string

const (
	TimerEventStarted   TimerEventType = "timer.started"
	TimerEventPaused    TimerEventType = "timer.paused"
	TimerEventResumed   TimerEventType = "timer.resumed"
	TimerEventStopped   TimerEventType = "timer.stopped"
	TimerEventConverted TimerEventType = "timer.converted"
)

// TimerEvent событие жизненного цикла таймера для внешних потребителей
type TimerEvent struct {
	ID                 string           `json:"id"`
	Type               TimerEventType   `json:"type"`
	TenantID           string           `json:"tenant_id"`
	UserID             string           `json:"user_id"`
	TimerID            string           `json:"timer_id"`
	CaseID             string           `json:"case_id"`
	SessionID          string           `json:"session_id,omitempty"`
	AccumulatedSeconds int64            `json:"accumulated_seconds"`
	HourlyRate         decimal.Decimal  `json:"hourly_rate"`
	Hours              *decimal.Decimal `json:"hours,omitempty"`
	OccurredAt         time.Time        `json:"occurred_at"`
}

// RoutingKey ключ маршрутизации в topic exchange
func (e *TimerEvent) RoutingKey() string {
	return string(e.Type)
}
