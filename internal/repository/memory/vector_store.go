package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/vecmath"
)

// VectorStore — brute-force хранилище векторов в памяти.
//
// Для каталогов до ~100K позиций полный проход и точен, и достаточно быстр:
// приближённый индекс не даёт ничего, кроме потери recall. Выше этого порога
// деплой переключается на Qdrant (HNSW) c сублинейным поиском ценой
// ограниченной потери recall.
//
// Векторы хранятся L2-нормализованными, сходство — косинусное.
// Удаление ставит tombstone, Rebuild компактизирует хранилище.
type VectorStore struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
	index   map[int64]int // item id → позиция в entries
}

type entry struct {
	id         int64
	vector     []float32
	platform   domain.Platform
	priceCents int64
	deleted    bool
}

func NewVectorStore(dim int) *VectorStore {
	return &VectorStore{
		dim:   dim,
		index: make(map[int64]int),
	}
}

// Upsert сохраняет или заменяет векторы по ID позиции.
// Вектор неверной размерности отклоняет весь батч до каких-либо изменений.
func (s *VectorStore) Upsert(ctx context.Context, vectors []domain.Embedding) error {
	const op = "memory.VectorStore.Upsert"

	if err := ctx.Err(); err != nil {
		return e.Wrap(op, err)
	}

	for _, v := range vectors {
		if len(v.Vector) != s.dim {
			return e.Wrap(fmt.Sprintf("%s: expected dim %d, got %d", op, s.dim, len(v.Vector)), e.ErrValidation)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		ent := entry{
			id:         v.ItemID,
			vector:     vecmath.Normalized(v.Vector),
			platform:   payloadPlatform(v.Payload),
			priceCents: payloadPriceCents(v.Payload),
		}

		if pos, ok := s.index[v.ItemID]; ok {
			s.entries[pos] = ent
			continue
		}

		s.index[v.ItemID] = len(s.entries)
		s.entries = append(s.entries, ent)
	}

	return nil
}

// Delete удаляет векторы по ID. Отсутствующие ID игнорируются.
func (s *VectorStore) Delete(ctx context.Context, ids []int64) error {
	const op = "memory.VectorStore.Delete"

	if err := ctx.Err(); err != nil {
		return e.Wrap(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if pos, ok := s.index[id]; ok {
			s.entries[pos].deleted = true
			delete(s.index, id)
		}
	}

	return nil
}

// Search возвращает не более k ближайших позиций по косинусному сходству.
// Порядок детерминирован: скор по убыванию, при равенстве — ID по возрастанию.
func (s *VectorStore) Search(ctx context.Context, vector []float32, k uint64, filter *domain.SearchFilter) ([]domain.ScoredID, error) {
	const op = "memory.VectorStore.Search"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(vector) != s.dim {
		return nil, e.Wrap(fmt.Sprintf("%s: expected dim %d, got %d", op, s.dim, len(vector)), e.ErrValidation)
	}

	if k == 0 {
		return []domain.ScoredID{}, nil
	}

	s.mu.RLock()
	scored := make([]domain.ScoredID, 0, len(s.entries))
	for _, ent := range s.entries {
		if ent.deleted || !matchesFilter(&ent, filter) {
			continue
		}
		scored = append(scored, domain.ScoredID{
			ItemID: ent.id,
			Score:  vecmath.Cosine(vector, ent.vector),
		})
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ItemID < scored[j].ItemID
	})

	if uint64(len(scored)) > k {
		scored = scored[:k]
	}

	return scored, nil
}

// Rebuild компактизирует хранилище, вычищая tombstone-записи.
func (s *VectorStore) Rebuild(ctx context.Context) error {
	const op = "memory.VectorStore.Rebuild"

	if err := ctx.Err(); err != nil {
		return e.Wrap(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	compacted := make([]entry, 0, len(s.index))
	index := make(map[int64]int, len(s.index))
	for _, ent := range s.entries {
		if ent.deleted {
			continue
		}
		index[ent.id] = len(compacted)
		compacted = append(compacted, ent)
	}

	s.entries = compacted
	s.index = index

	return nil
}

// Len возвращает число живых векторов.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func matchesFilter(ent *entry, filter *domain.SearchFilter) bool {
	if filter == nil {
		return true
	}

	if filter.Platform != nil && ent.platform != *filter.Platform {
		return false
	}
	if filter.PriceCentsMin != nil && ent.priceCents < *filter.PriceCentsMin {
		return false
	}
	if filter.PriceCentsMax != nil && ent.priceCents > *filter.PriceCentsMax {
		return false
	}

	return true
}

func payloadPlatform(payload domain.Payload) domain.Platform {
	if v, ok := payload["platform"].(string); ok {
		return domain.Platform(v)
	}
	return ""
}

func payloadPriceCents(payload domain.Payload) int64 {
	switch v := payload["price_cents"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
