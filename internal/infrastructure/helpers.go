package infrastructure

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/image-fingerprint/pkg/e"
)

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Возвращает "bin" и e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	mime, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(mime)), ";")

	switch strings.TrimSpace(mime) {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	case "image/bmp", "image/x-ms-bmp":
		return "bmp", nil
	case "image/tiff":
		return "tiff", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// DetectMIME возвращает заявленный MIME-тип, если он поддерживается,
// иначе определяет тип по первым байтам содержимого.
func DetectMIME(data []byte, declared string) string {
	if _, err := GetExtensionFromMIME(declared); err == nil {
		return declared
	}
	return http.DetectContentType(data)
}
