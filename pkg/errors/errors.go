package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"LegalPracticePlatform/pkg/logger"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error представляет кастомную ошибку с дополнительной информацией
type Error struct {
	Code       ErrorCode       `json:"code"`
	Message    string          `json:"message"`
	Details    string          `json:"details,omitempty"`
	Violations []string        `json:"violations,omitempty"`
	Cause      error           `json:"-"`
	Context    context.Context `json:"-"`
}

// ErrorCode представляет код ошибки
type ErrorCode string

// Определение кодов ошибок
const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"
)

// errorDomain домен для gRPC ErrorInfo
const errorDomain = "billing.legalpractice"

// Error возвращает сообщение об ошибке
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Violations) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Violations, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap возвращает причину ошибки
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is проверяет, является ли ошибка указанного типа
func (e *Error) Is(target error) bool {
	if targetError, ok := target.(*Error); ok {
		return e.Code == targetError.Code
	}
	return false
}

// New создает новую кастомную ошибку
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewValidation создает ошибку валидации со списком нарушений
func NewValidation(message string, violations []string) *Error {
	v := make([]string, len(violations))
	copy(v, violations)
	return &Error{
		Code:       ErrValidation,
		Message:    message,
		Violations: v,
	}
}

// Wrap оборачивает существующую ошибку в кастомную
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithDetails добавляет детали к ошибке
func (e *Error) WithDetails(details string) *Error {
	if e == nil {
		return nil
	}
	c := *e
	c.Details = details
	return &c
}

// WithContext добавляет контекст к ошибке
func (e *Error) WithContext(ctx context.Context) *Error {
	if e == nil {
		return nil
	}
	c := *e
	c.Context = ctx
	return &c
}

// As извлекает *Error из цепочки ошибок
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf возвращает код ошибки; для чужих ошибок - ErrInternal
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return ErrInternal
}

// IsCode проверяет код ошибки в цепочке
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// grpcCode отображает код ошибки в gRPC код
func (e *Error) grpcCode() codes.Code {
	switch e.Code {
	case ErrNotFound:
		return codes.NotFound
	case ErrValidation:
		return codes.InvalidArgument
	case ErrUnauthorized:
		return codes.Unauthenticated
	case ErrForbidden:
		return codes.PermissionDenied
	case ErrConflict:
		return codes.AlreadyExists
	case ErrConfiguration:
		return codes.FailedPrecondition
	case ErrInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// ToGRPCErr переводит кастомную ошибку в gRPC статус
func (e *Error) ToGRPCErr() error {
	if e == nil {
		return nil
	}

	st := status.New(e.grpcCode(), e.Message)

	info := &errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if e.Details != "" {
		info.Metadata["details"] = e.Details
	}
	if traceID, ok := logger.TraceID(e.Context); ok {
		info.Metadata["trace_id"] = traceID
	}

	if withDetails, err := st.WithDetails(info); err == nil {
		st = withDetails
	}
	if len(e.Violations) > 0 {
		br := &errdetails.BadRequest{}
		for _, v := range e.Violations {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       "time_entry",
				Description: v,
			})
		}
		if withDetails, err := st.WithDetails(br); err == nil {
			st = withDetails
		}
	}

	return st.Err()
}

// FromGRPCErr преобразует gRPC ошибку в кастомную ошибку
func FromGRPCErr(err error) *Error {
	if err == nil {
		return nil
	}

	grpcStatus, ok := status.FromError(err)
	if !ok {
		// Если это не gRPC ошибка, оборачиваем как внутреннюю ошибку
		return Wrap(err, ErrInternal, "internal error")
	}

	var code ErrorCode
	switch grpcStatus.Code() {
	case codes.NotFound:
		code = ErrNotFound
	case codes.InvalidArgument:
		code = ErrValidation
	case codes.Unauthenticated:
		code = ErrUnauthorized
	case codes.PermissionDenied:
		code = ErrForbidden
	case codes.AlreadyExists:
		code = ErrConflict
	case codes.FailedPrecondition:
		code = ErrConfiguration
	default:
		code = ErrInternal
	}

	result := &Error{
		Code:    code,
		Message: grpcStatus.Message(),
	}
	for _, detail := range grpcStatus.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			result.Details = d.GetMetadata()["details"]
		case *errdetails.BadRequest:
			for _, fv := range d.GetFieldViolations() {
				result.Violations = append(result.Violations, fv.GetDescription())
			}
		}
	}
	return result
}

// HTTPStatus возвращает соответствующий HTTP статус для ошибки
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}

	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation, ErrConfiguration:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GetUserMessage возвращает пользовательское сообщение об ошибке
func (e *Error) GetUserMessage() string {
	if e == nil {
		return ""
	}

	switch e.Code {
	case ErrNotFound:
		return "Ресурс не найден"
	case ErrValidation:
		return "Ошибка валидации данных"
	case ErrUnauthorized:
		return "Не авторизован"
	case ErrForbidden:
		return "Доступ запрещен"
	case ErrConflict:
		return "Конфликт данных (например, дубликат)"
	case ErrConfiguration:
		return "Не задан контекст арендатора"
	case ErrInternal:
		return "Внутренняя ошибка сервера"
	default:
		return "Произошла ошибка"
	}
}
