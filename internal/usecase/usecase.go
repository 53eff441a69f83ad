package usecase

import "context"

// SearchUC — пользовательский поиск по каталогу.
type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
}

// CatalogUC — ингест и обслуживание каталога.
type CatalogUC interface {
	IngestItem(ctx context.Context, req *IngestItemReq) (*IngestItemRes, error)
	DeleteItem(ctx context.Context, itemID int64) error
	Reindex(ctx context.Context) error
}
