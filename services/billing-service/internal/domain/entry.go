package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeEntryStatus статус записи времени
type TimeEntryStatus string

const (
	TimeEntryStatusDraft     TimeEntryStatus = "draft"
	TimeEntryStatusSubmitted TimeEntryStatus = "submitted"
	TimeEntryStatusApproved  TimeEntryStatus = "approved"
	TimeEntryStatusBilled    TimeEntryStatus = "billed"
)

// TimeEntryDraft черновик записи времени, полученный из таймера
type TimeEntryDraft struct {
	TenantID    string           `json:"tenant_id"`
	UserID      string           `json:"user_id"`
	CaseID      string           `json:"case_id"`
	TimerID     string           `json:"timer_id,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
	Date        time.Time        `json:"date"`
	Hours       decimal.Decimal  `json:"hours"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Description string           `json:"description"`
	Status      TimeEntryStatus  `json:"status"`
	Billable    bool             `json:"billable"`
	WorkType    string           `json:"work_type,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// Amount возвращает сумму к оплате (часы × ставка), округленную до центов
func (d *TimeEntryDraft) Amount() decimal.Decimal {
	if d.Rate == nil {
		return decimal.Zero
	}
	return RoundMoney(d.Hours.Mul(*d.Rate))
}

// TimeEntry сохраненная запись времени
type TimeEntry struct {
	ID string `json:"id"`
	TimeEntryDraft
	CreatedAt time.Time `json:"created_at"`
}

// ValidationResult результат проверки записи времени
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult создает пустой успешный результат
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}
}

// AddError добавляет нарушение
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning добавляет предупреждение
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
