package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/logger"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(searchUC usecase.SearchUC, catalogUC usecase.CatalogUC) {
	r.router.Route("/api/v1", func(v1 chi.Router) {
		searchHandler := NewSearchHandler(searchUC, r.logger)
		itemHandler := NewItemHandler(catalogUC, r.logger)

		registerSearchRoutes(v1, searchHandler)
		registerItemRoutes(v1, itemHandler)
	})
}

func registerSearchRoutes(router chi.Router, handler *SearchHandler) {
	router.Post("/search", handler.search)
}

func registerItemRoutes(router chi.Router, handler *ItemHandler) {
	router.Route("/items", func(items chi.Router) {
		items.Post("/", handler.ingestItem)
		items.Delete("/{id}", handler.deleteItem)
	})

	router.Post("/admin/reindex", handler.reindex)
}
