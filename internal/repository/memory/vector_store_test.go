package memory

import (
	"context"
	"testing"

	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emb(id int64, vector []float32, platform domain.Platform, priceCents int64) domain.Embedding {
	return *domain.NewEmbedding(id, vector, domain.NewPayload(platform, priceCents, "test-v1"))
}

func seed(t *testing.T, s *VectorStore) {
	t.Helper()
	err := s.Upsert(context.Background(), []domain.Embedding{
		emb(1, []float32{1, 0, 0}, domain.PlatformDepop, 1500),
		emb(2, []float32{0, 1, 0}, domain.PlatformGrailed, 4500),
		emb(3, []float32{0.9, 0.1, 0}, domain.PlatformDepop, 9900),
	})
	require.NoError(t, err)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := NewVectorStore(3)

	err := s.Upsert(context.Background(), []domain.Embedding{
		emb(1, []float32{1, 0}, domain.PlatformDepop, 100),
	})

	assert.ErrorIs(t, err, e.ErrValidation)
	assert.Equal(t, 0, s.Len())
}

func TestUpsert_Idempotent(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	// Повторный upsert тех же данных не раздувает хранилище.
	seed(t, s)
	assert.Equal(t, 3, s.Len())

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestUpsert_ReplacesVector(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	err := s.Upsert(context.Background(), []domain.Embedding{
		emb(2, []float32{1, 0, 0}, domain.PlatformGrailed, 4500),
	})
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	// После замены вектор позиции 2 совпадает с запросом, tie-break отдаёт ID 1.
	assert.Equal(t, int64(1), hits[0].ItemID)
}

func TestSearch_EmptyStore(t *testing.T) {
	s := NewVectorStore(3)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_WrongDimension(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	_, err := s.Search(context.Background(), []float32{1, 0}, 5, nil)

	assert.ErrorIs(t, err, e.ErrValidation)
}

func TestSearch_OrderedAndBounded(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, nil)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ItemID)
	assert.Equal(t, int64(3), hits[1].ItemID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestSearch_FewerThanK(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, nil)

	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearch_ZeroK(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 0, nil)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_Deterministic(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	first, err := s.Search(context.Background(), []float32{0.5, 0.5, 0}, 3, nil)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), []float32{0.5, 0.5, 0}, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSearch_TieBreakByID(t *testing.T) {
	s := NewVectorStore(2)
	err := s.Upsert(context.Background(), []domain.Embedding{
		emb(7, []float32{1, 0}, domain.PlatformDepop, 100),
		emb(2, []float32{2, 0}, domain.PlatformDepop, 100), // после нормализации тот же вектор
	})
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1, 0}, 2, nil)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ItemID)
	assert.Equal(t, int64(7), hits[1].ItemID)
}

func TestSearch_PlatformFilter(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	platform := domain.PlatformGrailed
	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, &domain.SearchFilter{Platform: &platform})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ItemID)
}

func TestSearch_PriceFilter(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	min, max := int64(1000), int64(5000)
	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, &domain.SearchFilter{
		PriceCentsMin: &min,
		PriceCentsMax: &max,
	})

	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotEqual(t, int64(3), h.ItemID)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	require.NoError(t, s.Delete(context.Background(), []int64{2}))
	// Повторное удаление отсутствующего ID — no-op, не ошибка.
	require.NoError(t, s.Delete(context.Background(), []int64{2}))
	require.NoError(t, s.Delete(context.Background(), []int64{999}))

	hits, err := s.Search(context.Background(), []float32{0, 1, 0}, 10, nil)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, int64(2), h.ItemID)
	}
}

func TestRebuild_CompactsTombstones(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	require.NoError(t, s.Delete(context.Background(), []int64{1, 3}))
	require.NoError(t, s.Rebuild(context.Background()))

	assert.Equal(t, 1, s.Len())

	hits, err := s.Search(context.Background(), []float32{0, 1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ItemID)
}

func TestSearch_CancelledContext(t *testing.T) {
	s := NewVectorStore(3)
	seed(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
