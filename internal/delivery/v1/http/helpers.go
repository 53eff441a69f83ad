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

	"github.com/jimlawless/whereami"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ItemMetadata — провалидированные поля формы ингеста.
type ItemMetadata struct {
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	SourceURL   string
	Platform    domain.Platform
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrInvalidQuery):
		return http.StatusBadRequest, e.ErrInvalidQuery.Error()
	case errors.Is(err, e.ErrValidation):
		return http.StatusBadRequest, e.ErrValidation.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrMissingFields):
		return http.StatusBadRequest, e.ErrMissingFields.Error()
	case errors.Is(err, e.ErrInvalidPrice):
		return http.StatusBadRequest, e.ErrInvalidPrice.Error()
	case errors.Is(err, e.ErrPricePrecision):
		return http.StatusBadRequest, e.ErrPricePrecision.Error()
	case errors.Is(err, e.ErrInvalidLimit):
		return http.StatusBadRequest, e.ErrInvalidLimit.Error()
	case errors.Is(err, e.ErrInvalidItemID):
		return http.StatusBadRequest, e.ErrInvalidItemID.Error()
	case errors.Is(err, e.ErrUnknownPlatform):
		return http.StatusBadRequest, e.ErrUnknownPlatform.Error()
	case errors.Is(err, e.ErrTitleRequired):
		return http.StatusBadRequest, e.ErrTitleRequired.Error()
	case errors.Is(err, e.ErrPriceMustBePositive):
		return http.StatusBadRequest, e.ErrPriceMustBePositive.Error()
	case errors.Is(err, e.ErrNoImage):
		return http.StatusBadRequest, e.ErrNoImage.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusBadRequest, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrEncoding):
		return http.StatusUnprocessableEntity, e.ErrEncoding.Error()
	case errors.Is(err, e.ErrTimeout):
		return http.StatusGatewayTimeout, e.ErrTimeout.Error()
	case errors.Is(err, e.ErrStore):
		return http.StatusServiceUnavailable, e.ErrStore.Error()
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

// parsePriceToCents converts a string like "599.99" or "600" to int64 cents.
// Returns error if:
// - invalid format
// - more than 2 decimal places
// - negative value
// - exceeds reasonable limit
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New("price is empty")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	// Reject negative
	if d.LessThan(decimal.Zero) {
		return 0, e.ErrInvalidPrice
	}

	// Enforce max value (1B in major units)
	maxPrice := decimal.NewFromInt(1_000_000_000)
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	// Check decimal places
	if d.Exponent() < -2 {
		return 0, e.ErrPricePrecision
	}

	// Convert to cents: multiply by 100 and round
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)

	return cents.IntPart(), nil
}

// parseLimit разбирает опциональный form-параметр limit.
// Пустое значение — дефолт; отрицательное и нечисловое — e.ErrInvalidLimit.
func parseLimit(s string, def uint64) (uint64, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}

	limit, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, e.ErrInvalidLimit
	}

	return limit, nil
}

// parseSearchFilter собирает опциональные фильтры platform / price_min / price_max.
func parseSearchFilter(r *http.Request) (*domain.SearchFilter, error) {
	filter := &domain.SearchFilter{}
	empty := true

	if platformStr := r.FormValue("platform"); platformStr != "" {
		platform := domain.Platform(platformStr)
		if !platform.Known() {
			return nil, e.Wrap(platformStr, e.ErrUnknownPlatform)
		}
		filter.Platform = &platform
		empty = false
	}

	if minStr := r.FormValue("price_min"); minStr != "" {
		cents, err := parsePriceToCents(minStr)
		if err != nil {
			return nil, err
		}
		filter.PriceCentsMin = &cents
		empty = false
	}

	if maxStr := r.FormValue("price_max"); maxStr != "" {
		cents, err := parsePriceToCents(maxStr)
		if err != nil {
			return nil, err
		}
		filter.PriceCentsMax = &cents
		empty = false
	}

	if empty {
		return nil, nil
	}

	return filter, nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	return r.ParseMultipartForm(maxMemory)
}

func parseItemForm(r *http.Request) (*ItemMetadata, error) {
	title := r.FormValue("title")
	priceStr := r.FormValue("price")
	sourceURL := r.FormValue("source_url")
	platformStr := r.FormValue("platform")

	if title == "" || priceStr == "" || sourceURL == "" || platformStr == "" {
		return nil, e.Wrap(fmt.Sprintf("title: %s, price: %s, source_url: %s, platform: %s\n",
			title, priceStr, sourceURL, platformStr), e.ErrMissingFields)
	}

	platform := domain.Platform(platformStr)
	if !platform.Known() {
		return nil, e.Wrap(platformStr, e.ErrUnknownPlatform)
	}

	priceCents, err := parsePriceToCents(priceStr)
	if err != nil {
		return nil, err
	}

	currency := r.FormValue("currency")
	if currency == "" {
		currency = "USD"
	}

	return &ItemMetadata{
		Title:       title,
		Description: r.FormValue("description"),
		PriceCents:  priceCents,
		Currency:    currency,
		SourceURL:   sourceURL,
		Platform:    platform,
	}, nil
}

func parseImages(files []*multipart.FileHeader) ([]usecase.ItemImage, error) {
	const (
		maxImageCount = 10
		maxFileSize   = 15 << 20
	)

	if len(files) == 0 {
		return nil, e.ErrNoImage
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.ItemImage, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewItemImage(data, mimeType, int64(len(data)), fh.Filename))
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}
