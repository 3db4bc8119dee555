package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// errorBody тело JSON ответа с ошибкой
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	UserMessage string    `json:"user_message,omitempty"`
	Details     string    `json:"details,omitempty"`
	Violations  []string  `json:"violations,omitempty"`
}

// WriteHTTP отправляет JSON ответ с ошибкой. Чужие ошибки отдаются как INTERNAL_ERROR.
func WriteHTTP(w http.ResponseWriter, err error) {
	e, ok := As(err)
	if !ok {
		e = Wrap(err, ErrInternal, "internal error")
	}
	WriteHTTPStatus(w, e.HTTPStatus(), e)
}

// WriteHTTPStatus отправляет ошибку с явно заданным HTTP статусом
func WriteHTTPStatus(w http.ResponseWriter, statusCode int, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := errorBody{Error: errorPayload{
		Code:        e.Code,
		Message:     e.Message,
		UserMessage: e.GetUserMessage(),
		Details:     e.Details,
		Violations:  e.Violations,
	}}
	if jsonErr := json.NewEncoder(w).Encode(body); jsonErr != nil {
		// Заголовок уже отправлен, остается только базовое тело
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
	}
}

// Middleware восстанавливает обработчик после паники и отвечает INTERNAL_ERROR
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err := New(ErrInternal, "Internal server error").
					WithDetails(fmt.Sprintf("panic: %v", recovered))
				WriteHTTP(w, err)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
