package http

import (
	"errors"
	"net/http"

	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

type searchHit struct {
	ItemID      int64   `json:"item_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents"`
	Currency    string  `json:"currency"`
	SourceURL   string  `json:"source_url"`
	ImageURL    string  `json:"image_url"`
	Platform    string  `json:"platform"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

type searchResponse struct {
	Hits     []searchHit `json:"hits"`
	Degraded bool        `json:"degraded"`
}

// search принимает текст и/или фото и возвращает похожие вещи каталога.
// Запрос — multipart/form-data: text (опционально), image (опционально,
// файл), limit, platform, price_min, price_max. Без text и image — 400.
func (s *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 20 << 20
		maxMemory           = 16 << 20
		maxFileSize         = 15 << 20
		defaultLimit        = 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	limit, err := parseLimit(r.FormValue("limit"), defaultLimit)
	if err != nil {
		WriteError(w, err)
		return
	}

	filter, err := parseSearchFilter(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var imageBytes []byte
	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		imageBytes, _, err = readFile(files[0], maxFileSize)
		if err != nil {
			s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
			WriteError(w, err)
			return
		}
	}

	res, err := s.searchUsecase.Search(r.Context(), usecase.NewSearchReq(r.FormValue("text"), imageBytes, limit, filter))
	if err != nil {
		if errors.Is(err, e.ErrInvalidQuery) {
			s.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		} else {
			s.logger.Errorf(err, "search failed")
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newSearchResponse(res))
}

func newSearchResponse(res *usecase.SearchRes) searchResponse {
	hits := make([]searchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, newSearchHit(hit))
	}

	return searchResponse{
		Hits:     hits,
		Degraded: res.Degraded,
	}
}

func newSearchHit(hit domain.SearchHit) searchHit {
	return searchHit{
		ItemID:      hit.Item.ID,
		Title:       hit.Item.Title,
		Description: hit.Item.Description,
		PriceCents:  hit.Item.PriceCents,
		Currency:    hit.Item.Currency,
		SourceURL:   hit.Item.SourceURL,
		ImageURL:    hit.Item.ImageURL,
		Platform:    hit.Item.Platform.String(),
		Score:       hit.Score,
		Rank:        hit.Rank,
	}
}
