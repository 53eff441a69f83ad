package e

import "fmt"

var (
	// Таксономия ошибок поискового ядра.
	// ErrInvalidQuery и ErrValidation детерминированы — повтор того же запроса бессмысленен.
	// ErrTimeout и ErrStore допускают повтор с backoff на стороне вызывающего.
	ErrInvalidQuery = fmt.Errorf("at least one of text or image is required")
	ErrEncoding     = fmt.Errorf("input could not be encoded")
	ErrValidation   = fmt.Errorf("vector dimensionality mismatch")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrStore        = fmt.Errorf("vector store unavailable")

	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrEmptyVector          = fmt.Errorf("empty vector")
	ErrItemWithoutEmbedding = fmt.Errorf("item has no embedding")

	// 400 Bad Request
	ErrTitleRequired        = fmt.Errorf("item title is required")
	ErrPriceMustBePositive  = fmt.Errorf("price must be positive")
	ErrUnknownPlatform      = fmt.Errorf("unknown source platform")
	ErrNoImage              = fmt.Errorf("no image provided")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")
	ErrInvalidItemID        = fmt.Errorf("invalid item id")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrStatusBadRequest     = fmt.Errorf("bad request")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
