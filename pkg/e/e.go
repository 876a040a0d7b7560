package e

import "fmt"

var (
	// Базовые виды ошибок конвейера извлечения признаков.
	// Все уточняющие ошибки ниже оборачивают один из них, проверка через errors.Is.
	ErrNoModelAvailable = fmt.Errorf("no model available")
	ErrPreprocess       = fmt.Errorf("preprocess failed")
	ErrInference        = fmt.Errorf("inference failed")
	ErrFetch            = fmt.Errorf("fetch failed")

	// Модель
	ErrModelNotFound    = fmt.Errorf("%w: model artifact not found", ErrNoModelAvailable)
	ErrEmptyModelOutput = fmt.Errorf("%w: empty model output", ErrInference)

	// Изображение
	ErrEmptyImage        = fmt.Errorf("%w: image has zero width or height", ErrPreprocess)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported image format", ErrPreprocess)
	ErrEmptyRegion       = fmt.Errorf("empty image region")

	// Загрузка по URL
	ErrPayloadTooLarge   = fmt.Errorf("%w: payload too large", ErrFetch)
	ErrUnexpectedStatus  = fmt.Errorf("%w: unexpected status", ErrFetch)
	ErrInvalidURL        = fmt.Errorf("%w: invalid url", ErrFetch)
	ErrNotAnImage        = fmt.Errorf("%w: response is not an image", ErrFetch)
	ErrExtractionTimeout = fmt.Errorf("extraction deadline exceeded")

	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки реестра отпечатков
	ErrFingerprintNotFound = fmt.Errorf("fingerprint not found")
	ErrCacheMiss           = fmt.Errorf("cache miss")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrInvalidProductID     = fmt.Errorf("invalid product id")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
