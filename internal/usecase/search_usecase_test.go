package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/internal/repository/memory"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

var (
	textQueryVec  = []float32{1, 0, 0, 0}
	imageQueryVec = []float32{0, 1, 0, 0}
)

// fakeEncoder возвращает фиксированные векторы модальностей.
// imageVecs, если задан, выдаёт векторы изображений по порядку вызовов.
type fakeEncoder struct {
	mu         sync.Mutex
	textVec    []float32
	imageVec   []float32
	imageVecs  [][]float32
	imageCalls int
	textErr    error
	imageErr   error
}

func (f *fakeEncoder) EncodeText(ctx context.Context, text string) (*usecase.EncodeRes, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	return usecase.NewEncodeRes(f.textVec, "clip-test"), nil
}

func (f *fakeEncoder) EncodeImage(ctx context.Context, data []byte) (*usecase.EncodeRes, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if len(f.imageVecs) > 0 {
		return usecase.NewEncodeRes(f.imageVecs[(f.imageCalls-1)%len(f.imageVecs)], "clip-test"), nil
	}
	return usecase.NewEncodeRes(f.imageVec, "clip-test"), nil
}

func (f *fakeEncoder) Encode(ctx context.Context, req *usecase.EncodeReq) (*usecase.EncodeRes, error) {
	if len(req.Image) > 0 {
		return f.EncodeImage(ctx, req.Image)
	}
	return f.EncodeText(ctx, req.Text)
}

func (f *fakeEncoder) EncodeBatch(ctx context.Context, reqs []*usecase.EncodeReq) ([]*usecase.EncodeRes, error) {
	out := make([]*usecase.EncodeRes, 0, len(reqs))
	for _, req := range reqs {
		res, err := f.Encode(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// fakeItemRepo держит метаданные позиций в памяти.
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[int64]usecase.ItemInfo
}

func newFakeItemRepo(ids ...int64) *fakeItemRepo {
	items := make(map[int64]usecase.ItemInfo, len(ids))
	for _, id := range ids {
		items[id] = usecase.ItemInfo{
			ID:         id,
			Title:      fmt.Sprintf("item-%d", id),
			PriceCents: id * 100,
			Currency:   "USD",
			SourceURL:  fmt.Sprintf("https://depop.example/%d", id),
			Platform:   "depop",
		}
	}
	return &fakeItemRepo{items: items}
}

func (f *fakeItemRepo) Upsert(ctx context.Context, item *domain.Item) (*usecase.UpsertItemRes, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeItemRepo) GetItemsInfo(ctx context.Context, ids []int64) ([]usecase.ItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]usecase.ItemInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.items[id]; ok {
			result = append(result, info)
		}
	}
	return result, nil
}

func (f *fakeItemRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

// fakeCache — потокобезопасный map-кэш без TTL.
type fakeCache struct {
	mu    sync.Mutex
	items map[int64]usecase.ItemInfo
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[int64]usecase.ItemInfo)}
}

func (f *fakeCache) GetItems(ctx context.Context, ids []int64) (map[int64]usecase.ItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]usecase.ItemInfo)
	for _, id := range ids {
		if info, ok := f.items[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

func (f *fakeCache) SetItems(ctx context.Context, items []usecase.ItemInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, info := range items {
		f.items[info.ID] = info
	}
	return nil
}

func (f *fakeCache) DeleteItems(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.items, id)
	}
	return nil
}

// failingStore отказывает для заданного query-вектора, остальные запросы
// делегирует внутреннему хранилищу. Позволяет валить одну модальность.
type failingStore struct {
	usecase.VectorStore
	failVec []float32
	failErr error
}

func (f *failingStore) Search(ctx context.Context, vector []float32, k uint64, filter *domain.SearchFilter) ([]domain.ScoredID, error) {
	if equalVec(vector, f.failVec) {
		return nil, f.failErr
	}
	return f.VectorStore.Search(ctx, vector, k, filter)
}

func equalVec(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testSearchCfg() *cfg.SearchCfg {
	return &cfg.SearchCfg{
		MaxLimit:        50,
		OverfetchFactor: 3,
		TextWeight:      0.5,
		ImageWeight:     0.5,
		MinScore:        0,
		StoreTimeout:    time.Second,
	}
}

// seedStore заливает тестовый каталог: 1 — текстовое совпадение,
// 2 — визуальное, 3 — между модальностями, 4 — нерелевантная вещь.
func seedStore(t *testing.T) *memory.VectorStore {
	t.Helper()
	store := memory.NewVectorStore(testDim)

	payload := func(id int64) domain.Payload {
		return domain.NewPayload(domain.PlatformDepop, id*100, "clip-test")
	}

	err := store.Upsert(context.Background(), []domain.Embedding{
		{ItemID: 1, Vector: []float32{1, 0, 0, 0}, Payload: payload(1)},
		{ItemID: 2, Vector: []float32{0, 1, 0, 0}, Payload: payload(2)},
		{ItemID: 3, Vector: []float32{0.7, 0.7, 0, 0}, Payload: payload(3)},
		{ItemID: 4, Vector: []float32{0, 0, 1, 0}, Payload: payload(4)},
	})
	require.NoError(t, err)

	return store
}

func newSearchUC(store usecase.VectorStore, enc usecase.EncoderInfra, searchCfg *cfg.SearchCfg) (*usecase.SearchUseCase, *fakeItemRepo) {
	repo := newFakeItemRepo(1, 2, 3, 4)
	return usecase.NewSearchUC(enc, store, repo, newFakeCache(), searchCfg, logger.NewDiscardLogger()), repo
}

func defaultEncoder() *fakeEncoder {
	return &fakeEncoder{textVec: textQueryVec, imageVec: imageQueryVec}
}

func TestSearch_TextOnly(t *testing.T) {
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), testSearchCfg())

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("vintage denim", nil, 10, nil))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.NotEmpty(t, res.Hits)

	// Вещь 1 коллинеарна текстовому запросу и возглавляет выдачу
	assert.Equal(t, int64(1), res.Hits[0].Item.ID)
	assert.Equal(t, "item-1", res.Hits[0].Item.Title)

	for i, hit := range res.Hits {
		assert.Equal(t, i+1, hit.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Hits[i-1].Score, hit.Score)
		}
	}
}

func TestSearch_NoInput(t *testing.T) {
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), testSearchCfg())

	_, err := uc.Search(context.Background(), usecase.NewSearchReq("   ", nil, 10, nil))
	assert.ErrorIs(t, err, e.ErrInvalidQuery)
}

func TestSearch_CorruptImage(t *testing.T) {
	enc := defaultEncoder()
	enc.imageErr = e.ErrEncoding
	uc, _ := newSearchUC(seedStore(t), enc, testSearchCfg())

	_, err := uc.Search(context.Background(), usecase.NewSearchReq("", []byte("garbage"), 10, nil))
	assert.ErrorIs(t, err, e.ErrEncoding)
}

func TestSearch_LimitClamped(t *testing.T) {
	searchCfg := testSearchCfg()
	searchCfg.MaxLimit = 2
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), searchCfg)

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("jacket", nil, 1000, nil))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Hits), 2)
}

func TestSearch_ZeroLimit(t *testing.T) {
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), testSearchCfg())

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("jacket", nil, 0, nil))
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.False(t, res.Degraded)
}

func TestSearch_Multimodal(t *testing.T) {
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), testSearchCfg())

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", []byte{0x89, 0x50}, 10, nil))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.NotEmpty(t, res.Hits)

	// Вещь 3 близка к обеим модальностям и после слияния стоит выше
	// однонодальных совпадений 1 и 2.
	assert.Equal(t, int64(3), res.Hits[0].Item.ID)
}

func TestSearch_DegradedOnPartialFailure(t *testing.T) {
	store := &failingStore{
		VectorStore: seedStore(t),
		failVec:     imageQueryVec,
		failErr:     e.Wrap("qdrant down", e.ErrStore),
	}
	uc, _ := newSearchUC(store, defaultEncoder(), testSearchCfg())

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", []byte{0x89, 0x50}, 10, nil))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.NotEmpty(t, res.Hits)
	// Выжила текстовая модальность
	assert.Equal(t, int64(1), res.Hits[0].Item.ID)
}

func TestSearch_AllModalitiesFail(t *testing.T) {
	store := &failingStore{
		VectorStore: seedStore(t),
		failVec:     textQueryVec,
		failErr:     e.Wrap("qdrant down", e.ErrStore),
	}
	uc, _ := newSearchUC(store, defaultEncoder(), testSearchCfg())

	_, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", nil, 10, nil))
	assert.ErrorIs(t, err, e.ErrStore)
}

func TestSearch_ValidationNotDegraded(t *testing.T) {
	store := &failingStore{
		VectorStore: seedStore(t),
		failVec:     imageQueryVec,
		failErr:     e.ErrValidation,
	}
	uc, _ := newSearchUC(store, defaultEncoder(), testSearchCfg())

	_, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", []byte{0x89, 0x50}, 10, nil))
	assert.ErrorIs(t, err, e.ErrValidation)
}

func TestSearch_Deterministic(t *testing.T) {
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), testSearchCfg())
	req := usecase.NewSearchReq("denim", []byte{0x89, 0x50}, 10, nil)

	first, err := uc.Search(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res, err := uc.Search(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Hits, len(first.Hits))
		for j := range res.Hits {
			assert.Equal(t, first.Hits[j].Item.ID, res.Hits[j].Item.ID)
			assert.Equal(t, first.Hits[j].Rank, res.Hits[j].Rank)
			assert.InDelta(t, first.Hits[j].Score, res.Hits[j].Score, 1e-6)
		}
	}
}

func TestSearch_MinScoreFiltersTail(t *testing.T) {
	searchCfg := testSearchCfg()
	searchCfg.MinScore = 0.9
	uc, _ := newSearchUC(seedStore(t), defaultEncoder(), searchCfg)

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", nil, 10, nil))
	require.NoError(t, err)
	for _, hit := range res.Hits {
		assert.GreaterOrEqual(t, hit.Score, 0.9)
	}
	// Ортогональные вещи 2 и 4 порог не проходят
	for _, hit := range res.Hits {
		assert.NotContains(t, []int64{2, 4}, hit.Item.ID)
	}
}

func TestSearch_PlatformFilter(t *testing.T) {
	store := seedStore(t)
	// Вещь 5 с другой платформой, коллинеарная запросу
	require.NoError(t, store.Upsert(context.Background(), []domain.Embedding{
		{ItemID: 5, Vector: []float32{1, 0, 0, 0}, Payload: domain.NewPayload(domain.PlatformGrailed, 500, "clip-test")},
	}))

	uc, _ := newSearchUC(store, defaultEncoder(), testSearchCfg())

	platform := domain.PlatformGrailed
	res, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", nil, 10, &domain.SearchFilter{Platform: &platform}))
	require.NoError(t, err)
	for _, hit := range res.Hits {
		assert.Equal(t, int64(5), hit.Item.ID)
	}
}

func TestSearch_VanishedItemCompactsRanks(t *testing.T) {
	store := seedStore(t)
	uc, repo := newSearchUC(store, defaultEncoder(), testSearchCfg())

	// Вещь 1 удалена из каталога после индексации — гонка с удалением
	require.NoError(t, repo.Delete(context.Background(), 1))

	res, err := uc.Search(context.Background(), usecase.NewSearchReq("denim", nil, 10, nil))
	require.NoError(t, err)
	for i, hit := range res.Hits {
		assert.NotEqual(t, int64(1), hit.Item.ID)
		assert.Equal(t, i+1, hit.Rank)
	}
}
