package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrInvalidSearchWeights = fmt.Errorf("search weights must be non-negative and not both zero")

	// Мягкие ошибки сигналов поиска: поглощаются ранжированием и не доходят до клиента
	ErrModelUnavailable = fmt.Errorf("model unavailable")
	ErrMalformedVector  = fmt.Errorf("malformed vector")
	ErrEmptyModelOutput = fmt.Errorf("empty model output")
	ErrQuotaExceeded    = fmt.Errorf("external search quota exceeded")
	ErrNoEvidence       = fmt.Errorf("no external evidence found")

	// Жёсткая ошибка хранилища: поднимается до клиента
	ErrStorage = fmt.Errorf("storage failure")

	// Ошибки разбора ответа языковой модели
	ErrNoJSONObject = fmt.Errorf("no json object in text")
	ErrNoFields     = fmt.Errorf("no structured fields in text")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrProductNameRequired  = fmt.Errorf("product name is required")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must be a whole number")
	ErrInvalidStock         = fmt.Errorf("stock quantity must be non-negative")
	ErrInvalidCategory      = fmt.Errorf("invalid category")
	ErrInvalidGender        = fmt.Errorf("invalid gender")
	ErrInvalidRegion        = fmt.Errorf("invalid region")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")
	ErrInvalidID            = fmt.Errorf("invalid id")
	ErrEmptySearchRequest   = fmt.Errorf("query or image is required")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")

	// 404 Not Found
	ErrProductNotFound = fmt.Errorf("product not found")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// IsSoft сообщает, относится ли ошибка к мягким ошибкам сигналов,
// при которых поиск переходит на следующий уровень вместо отказа.
func IsSoft(err error) bool {
	return errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrMalformedVector) ||
		errors.Is(err, ErrEmptyModelOutput) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrNoEvidence)
}
