package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
)

type ItemHandler struct {
	catalogUsecase usecase.CatalogUC
	logger         logger.Logger
}

func NewItemHandler(catalogUsecase usecase.CatalogUC, logger logger.Logger) *ItemHandler {
	return &ItemHandler{catalogUsecase: catalogUsecase, logger: logger}
}

// ingestItem регистрирует вещь в каталоге с изображениями.
// multipart/form-data: title, price, source_url, platform (обязательные),
// description, currency, image_url (опциональные), images — файлы.
func (h *ItemHandler) ingestItem(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 150 << 20
		maxMemory           = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	meta, err := parseItemForm(r)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"])
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	req := usecase.NewIngestItemReq(
		meta.Title, meta.Description, meta.PriceCents, meta.Currency,
		meta.SourceURL, r.FormValue("image_url"), meta.Platform, images,
	)

	res, err := h.catalogUsecase.IngestItem(r.Context(), req)
	if err != nil {
		h.logger.Errorf(err, "ingest failed")
		WriteError(w, err)
		return
	}

	if res.NoChanges {
		WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"item_id":    res.ItemID,
			"no_changes": true,
		})
		return
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"item_id":  res.ItemID,
		"event_id": res.EventID,
	})
}

// deleteItem убирает вещь из каталога и поискового индекса. Идемпотентен.
func (h *ItemHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, e.ErrInvalidItemID)
		return
	}

	if err := h.catalogUsecase.DeleteItem(r.Context(), id); err != nil {
		h.logger.Errorf(err, "delete item %d failed", id)
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reindex запускает перестройку векторного индекса в фоне.
// 202 возвращается сразу: перестройка может занимать минуты, держать
// request-контекст всё это время нельзя.
func (h *ItemHandler) reindex(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.catalogUsecase.Reindex(context.Background()); err != nil {
			h.logger.Errorf(err, "reindex failed")
		}
	}()

	WriteSuccess(w, http.StatusAccepted, map[string]interface{}{
		"status": "reindex started",
	})
}
