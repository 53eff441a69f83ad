package usecase

import (
	"context"

	"github.com/modaics/fitsearch/internal/domain"
)

type ItemRepository interface {
	Upsert(ctx context.Context, item *domain.Item) (*UpsertItemRes, error)
	GetItemsInfo(ctx context.Context, ids []int64) ([]ItemInfo, error)
	Delete(ctx context.Context, id int64) error
}

// VectorStore — хранилище embedding-векторов каталога.
//
// Метрика сходства — косинусная (скалярное произведение L2-нормализованных
// векторов): магнитуда эмбеддингов модели семантически не значима, евклидово
// расстояние смещало бы выдачу к векторам с малой нормой.
//
// Upsert с вектором неверной размерности и Search с неверным query-вектором
// возвращают e.ErrValidation. Delete идемпотентен: отсутствующие ID — no-op.
// Поиск по пустому хранилищу возвращает пустой срез, а не ошибку.
//
// Мутации индекса выполняет только пайплайн ингеста (single-writer);
// конкурентные читатели не блокируются писателем дольше короткой
// критической секции — требование к реализации, не допущение.
type VectorStore interface {
	Upsert(ctx context.Context, vectors []domain.Embedding) error
	Delete(ctx context.Context, ids []int64) error
	Search(ctx context.Context, vector []float32, k uint64, filter *domain.SearchFilter) ([]domain.ScoredID, error)
	// Rebuild перестраивает индекс. Приближённые индексы (HNSW) деградируют
	// по мере удалений и вставок без периодической компактизации.
	Rebuild(ctx context.Context) error
}

type CacheRepository interface {
	GetItems(ctx context.Context, ids []int64) (map[int64]ItemInfo, error)
	SetItems(ctx context.Context, items []ItemInfo) error
	DeleteItems(ctx context.Context, ids []int64) error
}

type OutboxRepository interface {
	Insert(ctx context.Context, event *domain.ItemEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]*domain.ItemEvent, error)
	MarkPublished(ctx context.Context, eventIDs []string) error
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}
