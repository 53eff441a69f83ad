package qdrant

import (
	"context"
	"fmt"

	"github.com/jimlawless/whereami"
	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/qdrant/go-client/qdrant"
)

// VectorStore — хранилище embedding-векторов каталога поверх Qdrant.
//
// Коллекция создаётся с косинусной метрикой; Qdrant нормализует векторы
// при записи сам, поэтому ненормализованный выход энкодера отдаётся как есть.
//
// Индекс — HNSW: сублинейный поиск ценой малой, ограниченной потери recall.
// По мере удалений и вставок граф деградирует, Rebuild форсирует
// переоптимизацию сегментов.
type VectorStore struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewVectorStore(client *qdrant.Client, cfg *cfg.QdrantCfg) *VectorStore {
	return &VectorStore{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или заменяет векторы позиций. ID точки — ID позиции,
// повторный upsert идемпотентен.
func (q *VectorStore) Upsert(ctx context.Context, vectors []domain.Embedding) error {
	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, v := range vectors {
		if uint64(len(v.Vector)) != q.cfg.VectorSize {
			return e.Wrap(
				fmt.Sprintf("item %d: expected dim %d, got %d", v.ItemID, q.cfg.VectorSize, len(v.Vector)),
				e.ErrValidation,
			)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(v.ItemID)),
			Vectors: qdrant.NewVectors(v.Vector...),
			Payload: qdrant.NewValueMap(v.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.CollectionName,
		Points:         points,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrStore))
	}

	return nil
}

// Delete удаляет точки по ID позиций. Отсутствующие ID Qdrant игнорирует.
func (q *VectorStore) Delete(ctx context.Context, ids []int64) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.CollectionName,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrStore))
	}

	return nil
}

// Search возвращает не более k ближайших позиций, прошедших фильтр.
// Фильтрация выполняется на стороне Qdrant до усечения результата.
func (q *VectorStore) Search(ctx context.Context, vector []float32, k uint64, filter *domain.SearchFilter) ([]domain.ScoredID, error) {
	if uint64(len(vector)) != q.cfg.VectorSize {
		return nil, e.Wrap(
			fmt.Sprintf("expected dim %d, got %d", q.cfg.VectorSize, len(vector)),
			e.ErrValidation,
		)
	}

	if k == 0 {
		return []domain.ScoredID{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(k),
		Filter:         toQdrantFilter(filter),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrStore))
	}

	scored := make([]domain.ScoredID, 0, len(points))
	for _, p := range points {
		scored = append(scored, domain.ScoredID{
			ItemID: int64(p.GetId().GetNum()),
			Score:  p.GetScore(),
		})
	}

	return scored, nil
}

// Rebuild форсирует переоптимизацию сегментов коллекции: сброс порога
// индексации заставляет оптимизатор перестроить HNSW-граф с учётом
// накопившихся удалений.
func (q *VectorStore) Rebuild(ctx context.Context) error {
	err := q.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
		CollectionName: q.cfg.CollectionName,
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(uint64(0)),
		},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrStore))
	}

	return nil
}

func toQdrantFilter(filter *domain.SearchFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	if filter.Platform != nil {
		must = append(must, qdrant.NewMatch("platform", filter.Platform.String()))
	}

	if filter.PriceCentsMin != nil || filter.PriceCentsMax != nil {
		priceRange := &qdrant.Range{}
		if filter.PriceCentsMin != nil {
			priceRange.Gte = qdrant.PtrOf(float64(*filter.PriceCentsMin))
		}
		if filter.PriceCentsMax != nil {
			priceRange.Lte = qdrant.PtrOf(float64(*filter.PriceCentsMax))
		}
		must = append(must, qdrant.NewRange("price_cents", priceRange))
	}

	if len(must) == 0 {
		return nil
	}

	return &qdrant.Filter{Must: must}
}
