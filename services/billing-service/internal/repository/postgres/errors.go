package postgres

import (
	"context"

	"github.com/google/uuid"

	"LegalPracticePlatform/pkg/errors"
)

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// internal оборачивает инфраструктурную ошибку, не трогая уже типизированные
func internal(ctx context.Context, err error, message, details string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(err, errors.ErrInternal, message).
		WithDetails(details).
		WithContext(ctx)
}

// validID проверяет формат UUID; некорректный ID не может существовать в таблице
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
