package domainerr

import (
	"errors"
	"fmt"
)

// ErrNotFound возвращается репозиториями, когда запись не найдена
var ErrNotFound = errors.New("not found")

// ValidationError описывает некорректные входные параметры запроса.
// Вычисление прерывается целиком, частичный результат не возвращается.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// NewValidationError создает ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DataError описывает строку с неожиданной формой данных.
// Строка пропускается, агрегация продолжается.
type DataError struct {
	RecordID   string
	IncidentID string
	Reason     string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error: record=%s incident=%s: %s", e.RecordID, e.IncidentID, e.Reason)
}

// IsValidation проверяет, является ли ошибка (или обернутая ошибка) ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound проверяет, что ошибка означает отсутствие записи
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
