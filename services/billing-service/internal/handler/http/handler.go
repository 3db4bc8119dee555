package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgErrors "LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/health"
	"LegalPracticePlatform/pkg/logger"
	"LegalPracticePlatform/pkg/validation"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

// Заголовки идентификации; аутентификация выполняется на шлюзе
const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

const maxBodyBytes = 1 << 20

// Services сервисы, которые обслуживает HTTP слой
type Services struct {
	Timers    *service.TimerService
	Converter *service.Converter
	Engine    *service.RateEngine
	Admin     *service.RateAdminService
	Validator *service.TimeEntryValidator
}

// Handler структура для управления HTTP обработчиками
type Handler struct {
	mux       *http.ServeMux
	svc       Services
	checker   health.HealthChecker
	validator *validation.Validator
	logger    logger.Logger
}

// NewHandler создает новый экземпляр Handler.
// checker может быть nil, тогда /health и /ready не регистрируются.
func NewHandler(svc Services, checker health.HealthChecker, log logger.Logger) *Handler {
	h := &Handler{
		mux:       http.NewServeMux(),
		svc:       svc,
		checker:   checker,
		validator: validation.NewValidator(),
		logger:    log,
	}

	h.setupRoutes()

	return h
}

// ServeHTTP реализует интерфейс http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// setupRoutes настраивает маршруты для приложения
func (h *Handler) setupRoutes() {
	// Таймеры
	h.mux.HandleFunc("POST /api/v1/timers", h.handleStartTimer)
	h.mux.HandleFunc("GET /api/v1/timers", h.handleListTimers)
	h.mux.HandleFunc("GET /api/v1/timers/active", h.handleListTenantTimers)
	h.mux.HandleFunc("GET /api/v1/timers/status", h.handleTimerStatus)
	h.mux.HandleFunc("GET /api/v1/timers/case/{caseID}", h.handleGetTimerForCase)
	h.mux.HandleFunc("GET /api/v1/timers/{id}", h.handleGetTimer)
	h.mux.HandleFunc("POST /api/v1/timers/{id}/pause", h.handlePauseTimer)
	h.mux.HandleFunc("POST /api/v1/timers/{id}/resume", h.handleResumeTimer)
	h.mux.HandleFunc("POST /api/v1/timers/{id}/stop", h.handleStopTimer)
	h.mux.HandleFunc("POST /api/v1/timers/{id}/convert", h.handleConvertTimer)
	h.mux.HandleFunc("POST /api/v1/timers/stop-all", h.handleStopAll)
	h.mux.HandleFunc("POST /api/v1/timers/convert", h.handleConvertMany)

	// Ставки
	h.mux.HandleFunc("GET /api/v1/rates/preview", h.handlePreviewRate)
	h.mux.HandleFunc("GET /api/v1/rates", h.handleListRates)
	h.mux.HandleFunc("POST /api/v1/rates", h.handleCreateRate)
	h.mux.HandleFunc("GET /api/v1/rates/{id}", h.handleGetRate)
	h.mux.HandleFunc("PUT /api/v1/rates/{id}", h.handleUpdateRate)
	h.mux.HandleFunc("DELETE /api/v1/rates/{id}", h.handleDeleteRate)
	h.mux.HandleFunc("POST /api/v1/rates/{id}/deactivate", h.handleDeactivateRate)

	// Настройки ставок дела
	h.mux.HandleFunc("GET /api/v1/cases/{caseID}/rate-config", h.handleGetCaseConfig)
	h.mux.HandleFunc("PUT /api/v1/cases/{caseID}/rate-config", h.handleSaveCaseConfig)
	h.mux.HandleFunc("DELETE /api/v1/cases/{caseID}/rate-config", h.handleDeleteCaseConfig)

	// Записи времени
	h.mux.HandleFunc("POST /api/v1/time-entries/validate", h.handleValidateEntry)

	// Health check роуты
	if h.checker != nil {
		h.mux.HandleFunc("GET /health", health.Handler(h.checker))
		h.mux.HandleFunc("GET /ready", health.ReadyHandler(h.checker))
	}
	h.mux.HandleFunc("GET /live", health.LiveHandler())
}

// tenant возвращает арендатора запроса
func (h *Handler) tenant(r *http.Request) (string, error) {
	tenantID := strings.TrimSpace(r.Header.Get(TenantHeader))
	if tenantID == "" {
		return "", pkgErrors.New(pkgErrors.ErrConfiguration, "tenant context is required").
			WithDetails(fmt.Sprintf("missing header: %s", TenantHeader)).
			WithContext(r.Context())
	}
	return tenantID, nil
}

// identity возвращает арендатора и пользователя запроса.
// Пустой пользователь отклоняется на уровне сервисов.
func (h *Handler) identity(r *http.Request) (string, string, error) {
	tenantID, err := h.tenant(r)
	if err != nil {
		return "", "", err
	}
	return tenantID, strings.TrimSpace(r.Header.Get(UserHeader)), nil
}

// decodeJSON читает тело запроса; пустое тело допустимо, если allowEmpty
func (h *Handler) decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF && allowEmpty {
			return nil
		}
		return pkgErrors.New(pkgErrors.ErrValidation, "invalid request body").
			WithDetails(err.Error()).
			WithContext(r.Context())
	}
	return nil
}

// writeJSON отправляет JSON ответ
func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

// writeError отправляет ошибку; внутренние ошибки логируются
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	code := pkgErrors.CodeOf(err)
	fields := []logger.Field{
		logger.CtxField(r.Context()),
		logger.String("operation", operation),
		logger.String("code", string(code)),
		logger.Error(err),
	}
	if code == pkgErrors.ErrInternal {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Debug("Request rejected", fields...)
	}
	pkgErrors.WriteHTTP(w, err)
}

// errorView тело ошибки внутри составного ответа
type errorView struct {
	Code       pkgErrors.ErrorCode `json:"code"`
	Message    string              `json:"message"`
	Details    string              `json:"details,omitempty"`
	Violations []string            `json:"violations,omitempty"`
}

func newErrorView(err error) *errorView {
	if err == nil {
		return nil
	}
	e, ok := pkgErrors.As(err)
	if !ok {
		return &errorView{Code: pkgErrors.ErrInternal, Message: "internal error"}
	}
	return &errorView{Code: e.Code, Message: e.Message, Details: e.Details, Violations: e.Violations}
}
