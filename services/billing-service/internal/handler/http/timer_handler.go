package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	pkgErrors "LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

// startTimerRequest тело запуска таймера; apply_multipliers по умолчанию включен
type startTimerRequest struct {
	CaseID           string           `json:"case_id"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	ApplyMultipliers *bool            `json:"apply_multipliers,omitempty"`
	IsEmergency      bool             `json:"is_emergency"`
	WorkType         string           `json:"work_type,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Description      string           `json:"description,omitempty"`
}

// convertRequest тело конвертации; description заменяет описание таймера
type convertRequest struct {
	Description *string `json:"description,omitempty"`
}

type convertManyRequest struct {
	TimerIDs    []string `json:"timer_ids"`
	Description *string  `json:"description,omitempty"`
}

// conversionRejected ответ 422: таймер остановлен, запись отклонена
type conversionRejected struct {
	Error  *errorView                `json:"error"`
	Result *service.ConversionResult `json:"result"`
}

type conversionOutcomeView struct {
	TimerID string                    `json:"timer_id"`
	Result  *service.ConversionResult `json:"result,omitempty"`
	Error   *errorView                `json:"error,omitempty"`
}

func (h *Handler) describeAll(timers []*domain.ActiveTimer) []*service.TimerStatus {
	statuses := make([]*service.TimerStatus, 0, len(timers))
	for _, t := range timers {
		statuses = append(statuses, h.svc.Timers.Describe(t))
	}
	return statuses
}

// handleStartTimer запускает таймер
func (h *Handler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "start_timer", err)
		return
	}

	var req startTimerRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "start_timer", err)
		return
	}

	applyMultipliers := true
	if req.ApplyMultipliers != nil {
		applyMultipliers = *req.ApplyMultipliers
	}

	timer, err := h.svc.Timers.Start(r.Context(), tenantID, userID, service.StartTimerRequest{
		CaseID:           req.CaseID,
		Rate:             req.Rate,
		ApplyMultipliers: applyMultipliers,
		IsEmergency:      req.IsEmergency,
		WorkType:         req.WorkType,
		Tags:             req.Tags,
		Description:      req.Description,
	})
	if err != nil {
		h.writeError(w, r, "start_timer", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, h.svc.Timers.Describe(timer))
}

// handleListTimers возвращает таймеры пользователя
func (h *Handler) handleListTimers(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "list_timers", err)
		return
	}

	timers, err := h.svc.Timers.ListUserTimers(r.Context(), tenantID, userID)
	if err != nil {
		h.writeError(w, r, "list_timers", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timers": h.describeAll(timers),
		"count":  len(timers),
	})
}

// handleListTenantTimers возвращает все активные таймеры арендатора
func (h *Handler) handleListTenantTimers(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "list_tenant_timers", err)
		return
	}

	timers, err := h.svc.Timers.ListTenantTimers(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, "list_tenant_timers", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timers": h.describeAll(timers),
		"count":  len(timers),
	})
}

// handleTimerStatus сообщает, есть ли у пользователя активный таймер (в том числе по делу)
func (h *Handler) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "timer_status", err)
		return
	}

	var active bool
	caseID := strings.TrimSpace(r.URL.Query().Get("case_id"))
	if caseID != "" {
		active, err = h.svc.Timers.HasActiveTimerForCase(r.Context(), tenantID, userID, caseID)
	} else {
		active, err = h.svc.Timers.HasActiveTimer(r.Context(), tenantID, userID)
	}
	if err != nil {
		h.writeError(w, r, "timer_status", err)
		return
	}

	body := map[string]interface{}{"has_active_timer": active}
	if caseID != "" {
		body["case_id"] = caseID
	}
	h.writeJSON(w, http.StatusOK, body)
}

// handleGetTimerForCase возвращает таймер пользователя по делу
func (h *Handler) handleGetTimerForCase(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "get_timer_for_case", err)
		return
	}

	timer, err := h.svc.Timers.GetTimerForCase(r.Context(), tenantID, userID, r.PathValue("caseID"))
	if err != nil {
		h.writeError(w, r, "get_timer_for_case", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.svc.Timers.Describe(timer))
}

// handleGetTimer возвращает таймер по ID
func (h *Handler) handleGetTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "get_timer", err)
		return
	}

	timer, err := h.svc.Timers.GetTimer(r.Context(), tenantID, userID, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, "get_timer", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.svc.Timers.Describe(timer))
}

// handlePauseTimer ставит таймер на паузу
func (h *Handler) handlePauseTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "pause_timer", err)
		return
	}

	timer, err := h.svc.Timers.Pause(r.Context(), tenantID, r.PathValue("id"), userID)
	if err != nil {
		h.writeError(w, r, "pause_timer", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.svc.Timers.Describe(timer))
}

// handleResumeTimer возобновляет таймер
func (h *Handler) handleResumeTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "resume_timer", err)
		return
	}

	timer, err := h.svc.Timers.Resume(r.Context(), tenantID, r.PathValue("id"), userID)
	if err != nil {
		h.writeError(w, r, "resume_timer", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.svc.Timers.Describe(timer))
}

// handleStopTimer останавливает таймер; повторная остановка не ошибка
func (h *Handler) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "stop_timer", err)
		return
	}

	result, err := h.svc.Timers.Stop(r.Context(), tenantID, r.PathValue("id"), userID)
	if err != nil {
		h.writeError(w, r, "stop_timer", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// handleStopAll останавливает все таймеры пользователя
func (h *Handler) handleStopAll(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "stop_all", err)
		return
	}

	sessions, err := h.svc.Timers.StopAll(r.Context(), tenantID, userID)
	if err != nil && len(sessions) == 0 {
		h.writeError(w, r, "stop_all", err)
		return
	}

	body := map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}
	if err != nil {
		// часть таймеров остановлена
		body["error"] = newErrorView(err)
	}
	h.writeJSON(w, http.StatusOK, body)
}

// handleConvertTimer останавливает таймер и создает запись времени
func (h *Handler) handleConvertTimer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "convert_timer", err)
		return
	}

	var req convertRequest
	if err := h.decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, "convert_timer", err)
		return
	}

	result, err := h.svc.Converter.Convert(r.Context(), tenantID, userID, r.PathValue("id"), req.Description)
	if err != nil {
		if result != nil && pkgErrors.IsCode(err, pkgErrors.ErrValidation) {
			h.writeJSON(w, http.StatusUnprocessableEntity, conversionRejected{
				Error:  newErrorView(err),
				Result: result,
			})
			return
		}
		h.writeError(w, r, "convert_timer", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// handleConvertMany конвертирует несколько таймеров
func (h *Handler) handleConvertMany(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "convert_many", err)
		return
	}

	var req convertManyRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "convert_many", err)
		return
	}
	if len(req.TimerIDs) == 0 {
		h.writeError(w, r, "convert_many", pkgErrors.New(pkgErrors.ErrValidation, "timer_ids must not be empty"))
		return
	}

	outcomes, err := h.svc.Converter.ConvertMany(r.Context(), tenantID, userID, req.TimerIDs, req.Description)
	if err != nil && len(outcomes) == 0 {
		h.writeError(w, r, "convert_many", err)
		return
	}

	views := make([]conversionOutcomeView, 0, len(outcomes))
	converted := 0
	for _, o := range outcomes {
		if o.Err == nil {
			converted++
		}
		views = append(views, conversionOutcomeView{
			TimerID: o.TimerID,
			Result:  o.Result,
			Error:   newErrorView(o.Err),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes":  views,
		"converted": converted,
		"failed":    len(outcomes) - converted,
	})
}
