package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"LegalPracticePlatform/pkg/errors"
)

// DateLayout формат календарных дат в API
const DateLayout = "2006-01-02"

// Validator предоставляет общие функции валидации
type Validator struct{}

// NewValidator создает новый Validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRequiredFields проверяет, что все поля непустые.
// Возвращает ошибку валидации со списком всех незаполненных полей.
func (v *Validator) ValidateRequiredFields(fields map[string]string) error {
	var missing []string
	for field, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field+" is required")
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.NewValidation("required fields are missing", missing)
}

// ValidateUUID проверяет формат UUID
func (v *Validator) ValidateUUID(value string, fieldName string) error {
	if value == "" {
		return errors.New(errors.ErrValidation, fmt.Sprintf("%s is required", fieldName))
	}
	if _, err := uuid.Parse(value); err != nil {
		return errors.New(errors.ErrValidation, fmt.Sprintf("invalid %s format", fieldName)).
			WithDetails(fmt.Sprintf("%s: %s", fieldName, value))
	}
	return nil
}

// ValidateEnum проверяет значение на соответствие enum
func (v *Validator) ValidateEnum(value string, allowedValues []string, fieldName string) error {
	if value == "" {
		return errors.New(errors.ErrValidation, fmt.Sprintf("%s is required", fieldName))
	}

	for _, allowed := range allowedValues {
		if value == allowed {
			return nil
		}
	}

	return errors.New(errors.ErrValidation,
		fmt.Sprintf("invalid %s: %s, allowed values: %v", fieldName, value, allowedValues))
}

// ValidateStringLength проверяет длину строки в символах
func (v *Validator) ValidateStringLength(value, fieldName string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if length < min {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("%s must be at least %d characters, got: %d", fieldName, min, length))
	}
	if max > 0 && length > max {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("%s must not exceed %d characters, got: %d", fieldName, max, length))
	}
	return nil
}

// ParseDate разбирает дату в формате YYYY-MM-DD в заданной зоне
func (v *Validator) ParseDate(value, fieldName string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New(errors.ErrValidation, fmt.Sprintf("%s is required", fieldName))
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, errors.New(errors.ErrValidation,
			fmt.Sprintf("invalid %s: expected YYYY-MM-DD", fieldName)).
			WithDetails(fmt.Sprintf("%s: %s", fieldName, value))
	}
	return t, nil
}
