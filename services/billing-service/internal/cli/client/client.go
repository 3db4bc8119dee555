package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgErrors "LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

const userAgent = "billing-cli/1.0"

// Config параметры подключения к billing-service
type Config struct {
	BaseURL  string
	TenantID string
	UserID   string
	Timeout  time.Duration
}

// Client HTTP клиент billing-service
type Client struct {
	baseURL  string
	tenantID string
	userID   string
	client   *http.Client
}

// New создает клиент
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tenantID: cfg.TenantID,
		userID:   cfg.UserID,
		client:   &http.Client{Timeout: timeout},
	}
}

// StartTimerOptions параметры запуска таймера
type StartTimerOptions struct {
	CaseID           string           `json:"case_id"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	ApplyMultipliers *bool            `json:"apply_multipliers,omitempty"`
	IsEmergency      bool             `json:"is_emergency"`
	WorkType         string           `json:"work_type,omitempty"`
	Description      string           `json:"description,omitempty"`
}

// PreviewOptions параметры предварительного расчета ставки
type PreviewOptions struct {
	CaseID           string
	UserID           string
	At               time.Time
	IsEmergency      bool
	ApplyMultipliers bool
	Rate             *decimal.Decimal
}

// TimerList ответ со списком таймеров
type TimerList struct {
	Timers []*service.TimerStatus `json:"timers"`
	Count  int                    `json:"count"`
}

// apiError тело ошибки API
type apiError struct {
	Code       pkgErrors.ErrorCode `json:"code"`
	Message    string              `json:"message"`
	Details    string              `json:"details"`
	Violations []string            `json:"violations"`
}

func (e *apiError) toError() *pkgErrors.Error {
	var err *pkgErrors.Error
	if len(e.Violations) > 0 {
		err = pkgErrors.NewValidation(e.Message, e.Violations)
		err.Code = e.Code
	} else {
		err = pkgErrors.New(e.Code, e.Message)
	}
	if e.Details != "" {
		err = err.WithDetails(e.Details)
	}
	return err
}

// decodeError переводит ответ с ошибкой в *errors.Error
func decodeError(resp *http.Response, body []byte) error {
	var payload struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil || payload.Error.Code == "" {
		return pkgErrors.New(pkgErrors.ErrInternal, fmt.Sprintf("unexpected response status: %d", resp.StatusCode)).
			WithDetails(strings.TrimSpace(string(body)))
	}
	return payload.Error.toError()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, pkgErrors.Wrap(err, pkgErrors.ErrInternal, "billing service is unavailable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, raw, decodeError(resp, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

func timerPath(id, action string) string {
	path := "/api/v1/timers/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}

// StartTimer запускает таймер
func (c *Client) StartTimer(ctx context.Context, opts StartTimerOptions) (*service.TimerStatus, error) {
	var timer service.TimerStatus
	if _, _, err := c.do(ctx, http.MethodPost, "/api/v1/timers", nil, opts, &timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

// PauseTimer ставит таймер на паузу
func (c *Client) PauseTimer(ctx context.Context, id string) (*service.TimerStatus, error) {
	var timer service.TimerStatus
	if _, _, err := c.do(ctx, http.MethodPost, timerPath(id, "pause"), nil, nil, &timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

// ResumeTimer возобновляет таймер
func (c *Client) ResumeTimer(ctx context.Context, id string) (*service.TimerStatus, error) {
	var timer service.TimerStatus
	if _, _, err := c.do(ctx, http.MethodPost, timerPath(id, "resume"), nil, nil, &timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

// StopTimer останавливает таймер
func (c *Client) StopTimer(ctx context.Context, id string) (*service.StopResult, error) {
	var result service.StopResult
	if _, _, err := c.do(ctx, http.MethodPost, timerPath(id, "stop"), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ConvertTimer останавливает таймер и создает запись времени.
// Для отклоненной записи возвращаются и результат с сессией, и ошибка.
func (c *Client) ConvertTimer(ctx context.Context, id string, description *string) (*service.ConversionResult, error) {
	var in interface{}
	if description != nil {
		in = map[string]string{"description": *description}
	}

	var result service.ConversionResult
	status, raw, err := c.do(ctx, http.MethodPost, timerPath(id, "convert"), nil, in, &result)
	if err == nil {
		return &result, nil
	}
	if status == http.StatusUnprocessableEntity {
		var rejected struct {
			Result *service.ConversionResult `json:"result"`
		}
		if jsonErr := json.Unmarshal(raw, &rejected); jsonErr == nil {
			return rejected.Result, err
		}
	}
	return nil, err
}

// ListTimers возвращает таймеры пользователя; all - все таймеры арендатора
func (c *Client) ListTimers(ctx context.Context, all bool) (*TimerList, error) {
	path := "/api/v1/timers"
	if all {
		path = "/api/v1/timers/active"
	}
	var list TimerList
	if _, _, err := c.do(ctx, http.MethodGet, path, nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// PreviewRate рассчитывает ставку без запуска таймера
func (c *Client) PreviewRate(ctx context.Context, opts PreviewOptions) (*service.TimerRate, error) {
	query := url.Values{}
	query.Set("case_id", opts.CaseID)
	query.Set("apply_multipliers", strconv.FormatBool(opts.ApplyMultipliers))
	query.Set("is_emergency", strconv.FormatBool(opts.IsEmergency))
	if opts.UserID != "" {
		query.Set("user_id", opts.UserID)
	}
	if !opts.At.IsZero() {
		query.Set("at", opts.At.Format(time.RFC3339))
	}
	if opts.Rate != nil {
		query.Set("rate", opts.Rate.String())
	}

	var rate service.TimerRate
	if _, _, err := c.do(ctx, http.MethodGet, "/api/v1/rates/preview", query, nil, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// ValidateEntry проверяет запись времени без сохранения
func (c *Client) ValidateEntry(ctx context.Context, caseID string, date time.Time, hours decimal.Decimal, description string) (*domain.ValidationResult, error) {
	in := map[string]interface{}{
		"case_id":     caseID,
		"date":        date.Format("2006-01-02"),
		"hours":       hours,
		"description": description,
	}
	var out struct {
		Validation *domain.ValidationResult `json:"validation"`
	}
	if _, _, err := c.do(ctx, http.MethodPost, "/api/v1/time-entries/validate", nil, in, &out); err != nil {
		return nil, err
	}
	return out.Validation, nil
}
