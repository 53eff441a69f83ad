package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
)

// SearchUseCase оркестрирует пользовательский поиск: векторизация запроса,
// выборка кандидатов по модальностям, слияние и гидрация метаданными.
// Состояние между запросами не удерживается — сервис request-parallel.
type SearchUseCase struct {
	encoder   EncoderInfra
	store     VectorStore
	itemRepo  ItemRepository
	cacheRepo CacheRepository
	cfg       *cfg.SearchCfg
	logger    logger.Logger
}

func NewSearchUC(
	encoder EncoderInfra,
	store VectorStore,
	itemRepo ItemRepository,
	cacheRepo CacheRepository,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		encoder:   encoder,
		store:     store,
		itemRepo:  itemRepo,
		cacheRepo: cacheRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// queryVectors — векторы запроса по модальностям. Отсутствующая модальность — nil.
type queryVectors struct {
	text  []float32
	image []float32
}

// retrievalRes — результат выборки кандидатов одной модальности.
type retrievalRes struct {
	modality string
	hits     []domain.ScoredID
	err      error
}

// Search выполняет один поисковый запрос.
//
// Ошибки валидации и векторизации фатальны для запроса. Сбой выборки одной
// модальности при живой второй даёт деградированную выдачу (Degraded=true),
// а не пустой ответ: однонодальный результат лучше отказа.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	hasText := strings.TrimSpace(req.Text) != ""
	hasImage := len(req.ImageBytes) > 0
	if !hasText && !hasImage {
		return nil, e.Wrap(op, e.ErrInvalidQuery)
	}

	limit := req.Limit
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if limit == 0 {
		return NewSearchRes([]domain.SearchHit{}, false), nil
	}

	vectors, err := s.encodeQuery(ctx, req, hasText, hasImage)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	textHits, imageHits, degraded, err := s.retrieve(ctx, vectors, limit, req.Filter)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var ranked []fusedCandidate
	switch {
	case vectors.text != nil && vectors.image != nil && !degraded:
		ranked = fuseModalities(textHits, imageHits, s.cfg.TextWeight, s.cfg.ImageWeight)
	case textHits != nil:
		ranked = singleModality(textHits)
	default:
		ranked = singleModality(imageHits)
	}

	ranked = s.applyMinScore(ranked)
	if uint64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}

	hits, err := s.hydrate(ctx, ranked)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return NewSearchRes(hits, degraded), nil
}

// encodeQuery векторизует обе присутствующие модальности параллельно.
// Любая ошибка энкодера фатальна: пользователь, приславший изображение,
// ждёт визуальных результатов — тихая деградация до текста удивляла бы.
func (s *SearchUseCase) encodeQuery(ctx context.Context, req *SearchReq, hasText, hasImage bool) (*queryVectors, error) {
	const op = "SearchUseCase.encodeQuery"

	var (
		vectors queryVectors
		textErr error
		imgErr  error
		wg      sync.WaitGroup
	)

	if hasText {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.encoder.EncodeText(ctx, req.Text)
			if err != nil {
				textErr = err
				return
			}
			vectors.text = res.Vector
		}()
	}

	if hasImage {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.encoder.EncodeImage(ctx, req.ImageBytes)
			if err != nil {
				imgErr = err
				return
			}
			vectors.image = res.Vector
		}()
	}

	wg.Wait()

	if imgErr != nil {
		return nil, e.Wrap(op, imgErr)
	}
	if textErr != nil {
		return nil, e.Wrap(op, textErr)
	}

	return &vectors, nil
}

// retrieve выбирает кандидатов по каждой модальности параллельно.
// Кандидатов запрашивается больше лимита, чтобы слиянию было из чего
// пересобирать порядок, когда модальности расходятся.
func (s *SearchUseCase) retrieve(
	ctx context.Context,
	vectors *queryVectors,
	limit uint64,
	filter *domain.SearchFilter,
) (textHits, imageHits []domain.ScoredID, degraded bool, err error) {
	const op = "SearchUseCase.retrieve"

	k := limit * s.cfg.OverfetchFactor
	maxK := s.cfg.MaxLimit * s.cfg.OverfetchFactor
	if k > maxK {
		k = maxK
	}

	modalities := 0
	resCh := make(chan retrievalRes, 2)

	if vectors.text != nil {
		modalities++
		go func() {
			hits, err := s.searchStore(ctx, vectors.text, k, filter)
			resCh <- retrievalRes{modality: "text", hits: hits, err: err}
		}()
	}

	if vectors.image != nil {
		modalities++
		go func() {
			hits, err := s.searchStore(ctx, vectors.image, k, filter)
			resCh <- retrievalRes{modality: "image", hits: hits, err: err}
		}()
	}

	var failures []retrievalRes
	for i := 0; i < modalities; i++ {
		res := <-resCh
		if res.err != nil {
			failures = append(failures, res)
			continue
		}
		if res.modality == "text" {
			textHits = res.hits
		} else {
			imageHits = res.hits
		}
	}

	if len(failures) == modalities {
		return nil, nil, false, e.Wrap(op, failures[0].err)
	}

	for _, f := range failures {
		// Неверная размерность не транзиентна — деградация её не спасёт.
		if errors.Is(f.err, e.ErrValidation) {
			return nil, nil, false, e.Wrap(op, f.err)
		}
		s.logger.Warnf("retrieval degraded, %s modality failed: %v", f.modality, f.err)
		degraded = true
	}

	return textHits, imageHits, degraded, nil
}

// searchStore выполняет поиск в хранилище с таймаутом и единственным
// повтором на транзиентный сбой I/O. ErrValidation не повторяется.
func (s *SearchUseCase) searchStore(ctx context.Context, vector []float32, k uint64, filter *domain.SearchFilter) ([]domain.ScoredID, error) {
	const op = "SearchUseCase.searchStore"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	hits, err := s.store.Search(ctx, vector, k, filter)
	if err == nil {
		return hits, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return nil, e.Wrap(op, e.ErrTimeout)
	}
	if errors.Is(err, e.ErrValidation) || ctx.Err() != nil {
		return nil, e.Wrap(op, err)
	}

	hits, retryErr := s.store.Search(ctx, vector, k, filter)
	if retryErr != nil {
		if errors.Is(retryErr, context.DeadlineExceeded) {
			return nil, e.Wrap(op, e.ErrTimeout)
		}
		return nil, e.Wrap(op, retryErr)
	}

	return hits, nil
}

// applyMinScore отсекает кандидатов ниже настроенного порога.
// Нулевой порог выключен: отсутствие совпадений — валидная пустая выдача.
func (s *SearchUseCase) applyMinScore(ranked []fusedCandidate) []fusedCandidate {
	if s.cfg.MinScore <= 0 {
		return ranked
	}

	filtered := ranked[:0]
	for _, c := range ranked {
		if c.Score >= s.cfg.MinScore {
			filtered = append(filtered, c)
		}
	}

	return filtered
}

// hydrate наполняет ранжированные ID метаданными: сперва кэш, промахи — из БД
// с фоновым прогревом кэша. Позиции, исчезнувшие из каталога между поиском и
// гидрацией (гонка с удалением), выпадают из выдачи с уплотнением рангов.
func (s *SearchUseCase) hydrate(ctx context.Context, ranked []fusedCandidate) ([]domain.SearchHit, error) {
	const op = "SearchUseCase.hydrate"

	if len(ranked) == 0 {
		return []domain.SearchHit{}, nil
	}

	ids := make([]int64, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ItemID
	}

	cached, err := s.cacheRepo.GetItems(ctx, ids)
	if err != nil {
		cached = map[int64]ItemInfo{}
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	fromDB := make(map[int64]ItemInfo, len(missing))
	if len(missing) > 0 {
		infos, err := s.itemRepo.GetItemsInfo(ctx, missing)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		for _, info := range infos {
			fromDB[info.ID] = info
		}

		// Фоновый прогрев кэша, запрос не ждет
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := s.cacheRepo.SetItems(bgCtx, infos); err != nil {
				s.logger.Warnf("Failed to cache items in background: %v", e.Wrap(op, err))
			}
		}()
	}

	hits := make([]domain.SearchHit, 0, len(ranked))
	for _, c := range ranked {
		info, ok := cached[c.ItemID]
		if !ok {
			if info, ok = fromDB[c.ItemID]; !ok {
				continue
			}
		}

		item := &domain.Item{
			ID:          info.ID,
			Title:       info.Title,
			Description: info.Description,
			PriceCents:  info.PriceCents,
			Currency:    info.Currency,
			SourceURL:   info.SourceURL,
			ImageURL:    info.ImageURL,
			Platform:    domain.Platform(info.Platform),
		}
		hits = append(hits, domain.NewSearchHit(item, c.Score, len(hits)+1))
	}

	return hits, nil
}
