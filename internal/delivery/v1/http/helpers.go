package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

const (
	maxImageCount = 5
	maxFileSize   = 10 << 20
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	}
}

// badRequest — ошибки валидации, которые отдаются клиенту как есть.
var badRequest = []error{
	e.ErrStatusBadRequest,
	e.ErrExpectedMultipart,
	e.ErrMissingFields,
	e.ErrProductNameRequired,
	e.ErrInvalidPrice,
	e.ErrPricePrecision,
	e.ErrInvalidStock,
	e.ErrInvalidCategory,
	e.ErrInvalidGender,
	e.ErrInvalidRegion,
	e.ErrInvalidLimit,
	e.ErrInvalidID,
	e.ErrEmptySearchRequest,
	e.ErrTooManyImages,
	e.ErrNoImages,
}

func ToHTTPResponse(err error) (int, string) {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest, target.Error()
		}
	}

	switch {
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrProductNotFound):
		return http.StatusNotFound, e.ErrProductNotFound.Error()
	case errors.Is(err, e.ErrStorage):
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	case errors.Is(err, e.ErrModelUnavailable), errors.Is(err, e.ErrEmptyModelOutput),
		errors.Is(err, e.ErrMalformedVector), errors.Is(err, e.ErrNoFields), errors.Is(err, e.ErrNoJSONObject):
		return http.StatusServiceUnavailable, e.ErrModelUnavailable.Error()
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

// parsePrice переводит строку вида "129000" или "129,000" в целое число вон.
// Отклоняет отрицательные, дробные и заведомо нереальные значения.
func parsePrice(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, e.ErrInvalidPrice
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	if d.IsNegative() {
		return 0, e.ErrInvalidPrice
	}

	// 10 млрд вон
	maxPrice := decimal.NewFromInt(10_000_000_000)
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	if !d.IsInteger() {
		return 0, e.ErrPricePrecision
	}

	return d.IntPart(), nil
}

// parseOptionalPrice — parsePrice для необязательного поля; пустое значение даёт nil.
func parseOptionalPrice(s string) (*int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	price, err := parsePrice(s)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func parseOptionalInt(s string, invalid error) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", invalid, s)
	}
	return n, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", e.ErrInvalidID, s)
	}
	return id, nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrStatusBadRequest, err))
	}
	return nil
}

func parseImages(files []*multipart.FileHeader) ([]usecase.ProductImage, error) {
	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.ProductImage, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewProductImage(data, mimeType, int64(len(data)), fh.Filename))
	}
	return images, nil
}

// readFile читает файл из формы и определяет тип по содержимому, а не по заголовку клиента.
func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	if fh.Size > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := infrastructure.DetectImageMIME(data)
	if _, err := infrastructure.GetExtensionFromMIME(mimeType); err != nil {
		return nil, "", e.Wrap(fh.Filename, err)
	}
	return data, mimeType, nil
}
