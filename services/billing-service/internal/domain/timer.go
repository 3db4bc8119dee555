package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimerState представляет состояние таймера
type TimerState string

const (
	TimerStateRunning TimerState = "running"
	TimerStatePaused  TimerState = "paused"
	TimerStateStopped TimerState = "stopped"
)

// ActiveTimer представляет живой таймер пользователя по делу
//
// StartedAt всегда указывает на начало текущего отрезка работы.
// AccumulatedSeconds содержит только завершенные отрезки и никогда не уменьшается.
type ActiveTimer struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	UserID             string          `json:"user_id"`
	CaseID             string          `json:"case_id"`
	ClientID           *string         `json:"client_id,omitempty"`
	MatterTypeID       *string         `json:"matter_type_id,omitempty"`
	StartedAt          time.Time       `json:"started_at"`
	AccumulatedSeconds int64           `json:"accumulated_seconds"`
	Running            bool            `json:"running"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	HourlyRate         decimal.Decimal `json:"hourly_rate"`
	ApplyMultipliers   bool            `json:"apply_multipliers"`
	IsEmergency        bool            `json:"is_emergency"`
	WorkType           string          `json:"work_type,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	Description        string          `json:"description,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int64           `json:"version"`
}

// State возвращает текущее состояние таймера
func (t *ActiveTimer) State() TimerState {
	if t.Running {
		return TimerStateRunning
	}
	return TimerStatePaused
}

// ElapsedSeconds возвращает длительность текущего отрезка в целых секундах.
// Для таймера на паузе всегда 0.
func (t *ActiveTimer) ElapsedSeconds(now time.Time) int64 {
	if !t.Running {
		return 0
	}
	seconds := int64(now.Sub(t.StartedAt) / time.Second)
	if seconds < 0 {
		// clock skew between writers
		return 0
	}
	return seconds
}

// TotalSeconds возвращает общее отработанное время с учетом текущего отрезка
func (t *ActiveTimer) TotalSeconds(now time.Time) int64 {
	return t.AccumulatedSeconds + t.ElapsedSeconds(now)
}

// Pause ставит таймер на паузу. Возвращает false, если таймер уже на паузе.
func (t *ActiveTimer) Pause(now time.Time) bool {
	if !t.Running {
		return false
	}
	t.AccumulatedSeconds += t.ElapsedSeconds(now)
	t.Running = false
	t.StartedAt = now
	t.UpdatedAt = now
	return true
}

// Resume возобновляет таймер. Возвращает false, если таймер уже запущен.
func (t *ActiveTimer) Resume(now time.Time) bool {
	if t.Running {
		return false
	}
	t.Running = true
	t.StartedAt = now
	t.UpdatedAt = now
	return true
}

// IsOwnedBy проверяет владельца таймера
func (t *ActiveTimer) IsOwnedBy(userID string) bool {
	return t.UserID == userID
}

// Clone возвращает глубокую копию таймера
func (t *ActiveTimer) Clone() *ActiveTimer {
	if t == nil {
		return nil
	}
	c := *t
	c.ClientID = cloneString(t.ClientID)
	c.MatterTypeID = cloneString(t.MatterTypeID)
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// NewSession строит запись о завершенной сессии таймера на момент now
func (t *ActiveTimer) NewSession(sessionID string, now time.Time) *TimerSession {
	return &TimerSession{
		ID:                   sessionID,
		TenantID:             t.TenantID,
		UserID:               t.UserID,
		CaseID:               t.CaseID,
		TimerID:              t.ID,
		Description:          t.Description,
		StartedAt:            t.CreatedAt,
		EndedAt:              now,
		TotalDurationSeconds: t.TotalSeconds(now),
		CreatedAt:            now,
	}
}

// TimerSession неизменяемая запись о завершенном таймере
type TimerSession struct {
	ID                   string    `json:"id"`
	TenantID             string    `json:"tenant_id"`
	UserID               string    `json:"user_id"`
	CaseID               string    `json:"case_id"`
	TimerID              string    `json:"timer_id"`
	Description          string    `json:"description,omitempty"`
	StartedAt            time.Time `json:"started_at"`
	EndedAt              time.Time `json:"ended_at"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	ConvertedToTimeEntry bool      `json:"converted_to_time_entry"`
	CreatedAt            time.Time `json:"created_at"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
