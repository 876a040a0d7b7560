package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/jimlawless/whereami"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку конвейера со статусом ответа.
// Уточняющие ошибки проверяются раньше базовых видов, которые они оборачивают.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrExtractionTimeout):
		return http.StatusGatewayTimeout, e.ErrExtractionTimeout.Error()
	case errors.Is(err, e.ErrNoModelAvailable):
		return http.StatusServiceUnavailable, e.ErrNoModelAvailable.Error()
	case errors.Is(err, e.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrPayloadTooLarge.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrInvalidURL):
		return http.StatusBadRequest, e.ErrInvalidURL.Error()
	case errors.Is(err, e.ErrFetch):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, e.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, e.ErrUnsupportedFormat.Error()
	case errors.Is(err, e.ErrEmptyImage):
		return http.StatusUnprocessableEntity, e.ErrEmptyImage.Error()
	case errors.Is(err, e.ErrPreprocess):
		return http.StatusUnprocessableEntity, e.ErrPreprocess.Error()
	case errors.Is(err, e.ErrInference):
		return http.StatusInternalServerError, e.ErrInference.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrInvalidProductID):
		return http.StatusBadRequest, e.ErrInvalidProductID.Error()
	case errors.Is(err, e.ErrInvalidLimit):
		return http.StatusBadRequest, e.ErrInvalidLimit.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), e.ErrStatusBadRequest)
	}
	return nil
}

// parseImage читает единственный файл из поля field.
func parseImage(r *http.Request, field string, maxFileSize int64) (*usecase.ImageFile, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, e.ErrNoImages
	}
	if len(r.MultipartForm.File[field]) > 1 {
		return nil, e.ErrTooManyImages
	}

	return readFile(r.MultipartForm.File[field][0], maxFileSize)
}

func parseImages(files []*multipart.FileHeader, maxImageCount int, maxFileSize int64) ([]usecase.ImageFile, error) {
	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.ImageFile, 0, len(files))
	for _, fh := range files {
		image, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *image)
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) (*usecase.ImageFile, error) {
	if fh.Size > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return usecase.NewImageFile(data, mimeType, int64(len(data)), fh.Filename), nil
}
