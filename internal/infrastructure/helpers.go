package infrastructure

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/fashion-search/pkg/e"
)

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp, gif. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// DetectImageMIME определяет MIME-тип по содержимому. Пустая строка, если это не изображение.
func DetectImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return ""
	}
	return mime
}
