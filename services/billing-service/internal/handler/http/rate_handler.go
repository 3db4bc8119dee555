package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgErrors "LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/repository"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

// rateRequest тело создания/изменения ставки; даты в формате YYYY-MM-DD
type rateRequest struct {
	UserID        *string         `json:"user_id,omitempty"`
	LegalCaseID   *string         `json:"legal_case_id,omitempty"`
	ClientID      *string         `json:"client_id,omitempty"`
	MatterTypeID  *string         `json:"matter_type_id,omitempty"`
	RateAmount    decimal.Decimal `json:"rate_amount"`
	RateType      domain.RateType `json:"rate_type,omitempty"`
	EffectiveDate string          `json:"effective_date"`
	EndDate       *string         `json:"end_date,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
}

// validateEntryRequest предварительная проверка записи времени
type validateEntryRequest struct {
	CaseID      string           `json:"case_id"`
	TimerID     string           `json:"timer_id,omitempty"`
	Date        string           `json:"date"`
	Hours       decimal.Decimal  `json:"hours"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Description string           `json:"description"`
	Billable    *bool            `json:"billable,omitempty"`
	WorkType    string           `json:"work_type,omitempty"`
}

func (h *Handler) toRateInput(req rateRequest) (service.RateInput, error) {
	loc := h.svc.Engine.Location()
	effective, err := h.validator.ParseDate(req.EffectiveDate, "effective_date", loc)
	if err != nil {
		return service.RateInput{}, err
	}
	in := service.RateInput{
		UserID:        req.UserID,
		LegalCaseID:   req.LegalCaseID,
		ClientID:      req.ClientID,
		MatterTypeID:  req.MatterTypeID,
		RateAmount:    req.RateAmount,
		RateType:      req.RateType,
		EffectiveDate: effective,
		IsActive:      req.IsActive,
	}
	if req.EndDate != nil {
		end, err := h.validator.ParseDate(*req.EndDate, "end_date", loc)
		if err != nil {
			return service.RateInput{}, err
		}
		in.EndDate = &end
	}
	return in, nil
}

func queryBool(r *http.Request, name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgErrors.New(pkgErrors.ErrValidation, fmt.Sprintf("invalid %s: expected boolean", name)).
			WithDetails(fmt.Sprintf("%s: %s", name, raw)).
			WithContext(r.Context())
	}
	return v, nil
}

// handlePreviewRate рассчитывает ставку без запуска таймера
func (h *Handler) handlePreviewRate(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "preview_rate", err)
		return
	}

	q := r.URL.Query()
	if override := strings.TrimSpace(q.Get("user_id")); override != "" {
		userID = override
	}
	req := service.TimerRateRequest{
		TenantID: tenantID,
		UserID:   userID,
		CaseID:   strings.TrimSpace(q.Get("case_id")),
	}

	if req.ApplyMultipliers, err = queryBool(r, "apply_multipliers", true); err != nil {
		h.writeError(w, r, "preview_rate", err)
		return
	}
	if req.IsEmergency, err = queryBool(r, "is_emergency", false); err != nil {
		h.writeError(w, r, "preview_rate", err)
		return
	}
	if raw := q.Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, "preview_rate", pkgErrors.New(pkgErrors.ErrValidation, "invalid at: expected RFC3339 timestamp").
				WithDetails(fmt.Sprintf("at: %s", raw)))
			return
		}
		req.At = at
	}
	if raw := q.Get("rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			h.writeError(w, r, "preview_rate", pkgErrors.New(pkgErrors.ErrValidation, "invalid rate: expected decimal").
				WithDetails(fmt.Sprintf("rate: %s", raw)))
			return
		}
		req.ExplicitRate = &rate
	}

	rate, err := h.svc.Engine.PreviewRate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "preview_rate", err)
		return
	}

	h.writeJSON(w, http.StatusOK, rate)
}

// handleListRates возвращает ставки арендатора
func (h *Handler) handleListRates(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "list_rates", err)
		return
	}

	var filter repository.RateFilter
	q := r.URL.Query()
	if v := q.Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := q.Get("case_id"); v != "" {
		filter.CaseID = &v
	}
	if filter.ActiveOnly, err = queryBool(r, "active_only", false); err != nil {
		h.writeError(w, r, "list_rates", err)
		return
	}

	rates, err := h.svc.Admin.ListRates(r.Context(), tenantID, filter)
	if err != nil {
		h.writeError(w, r, "list_rates", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rates": rates,
		"count": len(rates),
	})
}

// handleCreateRate создает ставку
func (h *Handler) handleCreateRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "create_rate", err)
		return
	}

	var req rateRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "create_rate", err)
		return
	}
	in, err := h.toRateInput(req)
	if err != nil {
		h.writeError(w, r, "create_rate", err)
		return
	}

	rate, err := h.svc.Admin.CreateRate(r.Context(), tenantID, in)
	if err != nil {
		h.writeError(w, r, "create_rate", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, rate)
}

// handleGetRate возвращает ставку
func (h *Handler) handleGetRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "get_rate", err)
		return
	}

	rate, err := h.svc.Admin.GetRate(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, "get_rate", err)
		return
	}

	h.writeJSON(w, http.StatusOK, rate)
}

// handleUpdateRate заменяет параметры ставки
func (h *Handler) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "update_rate", err)
		return
	}

	var req rateRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "update_rate", err)
		return
	}
	in, err := h.toRateInput(req)
	if err != nil {
		h.writeError(w, r, "update_rate", err)
		return
	}

	rate, err := h.svc.Admin.UpdateRate(r.Context(), tenantID, r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, r, "update_rate", err)
		return
	}

	h.writeJSON(w, http.StatusOK, rate)
}

// handleDeactivateRate снимает ставку с действия
func (h *Handler) handleDeactivateRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "deactivate_rate", err)
		return
	}

	if err := h.svc.Admin.DeactivateRate(r.Context(), tenantID, r.PathValue("id")); err != nil {
		h.writeError(w, r, "deactivate_rate", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteRate удаляет ставку
func (h *Handler) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "delete_rate", err)
		return
	}

	if err := h.svc.Admin.DeleteRate(r.Context(), tenantID, r.PathValue("id")); err != nil {
		h.writeError(w, r, "delete_rate", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetCaseConfig возвращает настройку ставок дела
func (h *Handler) handleGetCaseConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "get_case_config", err)
		return
	}

	cfg, err := h.svc.Admin.GetCaseConfiguration(r.Context(), tenantID, r.PathValue("caseID"))
	if err != nil {
		h.writeError(w, r, "get_case_config", err)
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// handleSaveCaseConfig заменяет настройку ставок дела
func (h *Handler) handleSaveCaseConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "save_case_config", err)
		return
	}

	var req service.CaseConfigInput
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "save_case_config", err)
		return
	}

	cfg, err := h.svc.Admin.SaveCaseConfiguration(r.Context(), tenantID, r.PathValue("caseID"), req)
	if err != nil {
		h.writeError(w, r, "save_case_config", err)
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// handleDeleteCaseConfig удаляет настройку ставок дела
func (h *Handler) handleDeleteCaseConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, "delete_case_config", err)
		return
	}

	if err := h.svc.Admin.DeleteCaseConfiguration(r.Context(), tenantID, r.PathValue("caseID")); err != nil {
		h.writeError(w, r, "delete_case_config", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleValidateEntry проверяет запись времени без сохранения
func (h *Handler) handleValidateEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, "validate_entry", err)
		return
	}

	var req validateEntryRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "validate_entry", err)
		return
	}
	if err := h.validator.ValidateRequiredFields(map[string]string{
		"case_id": req.CaseID,
		"date":    req.Date,
		"user":    userID,
	}); err != nil {
		h.writeError(w, r, "validate_entry", err)
		return
	}
	date, err := h.validator.ParseDate(req.Date, "date", h.svc.Engine.Location())
	if err != nil {
		h.writeError(w, r, "validate_entry", err)
		return
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}
	draft := &domain.TimeEntryDraft{
		TenantID:    tenantID,
		UserID:      userID,
		CaseID:      req.CaseID,
		TimerID:     req.TimerID,
		Date:        date,
		Hours:       req.Hours,
		Rate:        req.Rate,
		Description: req.Description,
		Status:      domain.TimeEntryStatusDraft,
		Billable:    billable,
		WorkType:    req.WorkType,
	}

	result, err := h.svc.Validator.Validate(r.Context(), tenantID, draft)
	if err != nil {
		h.writeError(w, r, "validate_entry", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"validation": result,
		"amount":     draft.Amount().StringFixed(2),
	})
}
