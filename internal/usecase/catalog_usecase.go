package usecase

import (
	"context"
	"strings"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
	"github.com/modaics/fitsearch/pkg/vecmath"
)

// CatalogUseCase реализует пайплайн ингеста каталога.
// Единственный писатель векторного индекса — конкурентные читатели (поиск)
// не согласуются с ним, допустимая eventual consistency задокументирована
// в контракте VectorStore.
type CatalogUseCase struct {
	itemRepo    ItemRepository
	outboxRepo  OutboxRepository
	dbPool      transaction.Transactional
	encoder     EncoderInfra
	imagesInfra ImagesInfra
	store       VectorStore
	cacheRepo   CacheRepository
	logger      logger.Logger
}

func NewCatalogUC(
	itemRepo ItemRepository,
	outboxRepo OutboxRepository,
	dbPool transaction.Transactional,
	encoder EncoderInfra,
	imagesInfra ImagesInfra,
	store VectorStore,
	cacheRepo CacheRepository,
	logger logger.Logger,
) *CatalogUseCase {
	return &CatalogUseCase{
		itemRepo:    itemRepo,
		outboxRepo:  outboxRepo,
		dbPool:      dbPool,
		encoder:     encoder,
		imagesInfra: imagesInfra,
		store:       store,
		cacheRepo:   cacheRepo,
		logger:      logger,
	}
}

// IngestItem добавляет или обновляет позицию каталога: векторизация, загрузка
// изображений, запись метаданных и outbox-события в одной транзакции, upsert
// вектора в хранилище.
//
// Позиция, которую не удалось векторизовать, в каталог не попадает вовсе —
// нулевой вектор-заглушка исказил бы геометрию сходства.
func (c *CatalogUseCase) IngestItem(ctx context.Context, req *IngestItemReq) (*IngestItemRes, error) {
	const op = "CatalogUseCase.IngestItem"

	var err error
	if err = c.validateItem(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Векторизация до транзакции: отказ энкодера отклоняет позицию
	// раньше любых побочных эффектов.
	encodeRes, err := c.resolveVector(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		imagesRes *UploadImagesRes
		uploaded  bool
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженных изображений
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploaded && imagesRes != nil {
				c.logger.Warnf(
					"Cleaning up orphaned images after ingest failure. item_title: %s, error: %v",
					req.Title,
					e.Wrap(op, err),
				)

				c.imagesInfra.CleanupImages(imagesRes.ImagesKeys)
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	imageURL := req.ImageURL
	if len(req.Images) > 0 {
		imagesRes, err = c.imagesInfra.UploadImages(ctx, NewUploadImagesReq(req.Title, req.Images))
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		uploaded = true
		if imageURL == "" {
			imageURL = imagesRes.ImagesKeys[0]
		}
	}

	item := domain.NewItem(req.Title, req.Description, req.PriceCents, req.Currency, req.SourceURL, imageURL, req.Platform)
	upsertRes, err := c.itemRepo.Upsert(ctx, item)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Идентичный повторный ингест не трогает ни векторный индекс, ни outbox:
	// downstream не получает событий без фактических изменений.
	if upsertRes.NoChanges {
		if err = tx.Commit(ctx); err != nil {
			return nil, e.Wrap(op, err)
		}

		return NewIngestItemRes(upsertRes.Item.ID, "", true), nil
	}

	event := domain.NewItemEvent(uuid.NewString(), upsertRes.Item.ID, domain.ItemEventUpsert, req.Platform)
	if err = c.outboxRepo.Insert(ctx, event); err != nil {
		return nil, e.Wrap(op, err)
	}

	payload := domain.NewPayload(req.Platform, req.PriceCents, encodeRes.ModelVersion)
	embedding := domain.NewEmbedding(upsertRes.Item.ID, encodeRes.Vector, payload)
	if err = c.store.Upsert(ctx, []domain.Embedding{*embedding}); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Write-through: свежие метаданные сразу доступны гидрации поиска
	if err := c.cacheRepo.SetItems(ctx, []ItemInfo{NewItemInfo(upsertRes.Item)}); err != nil {
		c.logger.Warnf("Failed to refresh item cache: %v", e.Wrap(op, err))
	}

	return NewIngestItemRes(upsertRes.Item.ID, event.EventID, upsertRes.NoChanges), nil
}

// DeleteItem удаляет позицию из каталога. Идемпотентен: удаление
// отсутствующего ID — no-op во всех трех хранилищах.
func (c *CatalogUseCase) DeleteItem(ctx context.Context, itemID int64) error {
	const op = "CatalogUseCase.DeleteItem"

	if itemID <= 0 {
		return e.Wrap(op, e.ErrInvalidItemID)
	}

	var err error
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	if err = c.itemRepo.Delete(ctx, itemID); err != nil {
		return e.Wrap(op, err)
	}

	event := domain.NewItemEvent(uuid.NewString(), itemID, domain.ItemEventDelete, "")
	if err = c.outboxRepo.Insert(ctx, event); err != nil {
		return e.Wrap(op, err)
	}

	if err = c.store.Delete(ctx, []int64{itemID}); err != nil {
		return e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	if err := c.cacheRepo.DeleteItems(ctx, []int64{itemID}); err != nil {
		c.logger.Warnf("Failed to invalidate item cache: %v", e.Wrap(op, err))
	}

	return nil
}

// Reindex запускает перестройку векторного индекса.
// Для приближённых индексов это компактизация после серии удалений/вставок.
func (c *CatalogUseCase) Reindex(ctx context.Context) error {
	const op = "CatalogUseCase.Reindex"

	if err := c.store.Rebuild(ctx); err != nil {
		return e.Wrap(op, err)
	}

	c.logger.Infof("vector index rebuild completed")
	return nil
}

// resolveVector возвращает вектор позиции: готовый из batch-пайплайна или
// построенный энкодером по всем изображениям вместе с названием.
// Векторы изображений усредняются (mean pooling): вещь снята с нескольких
// ракурсов, и ни один из них не является каноничным.
func (c *CatalogUseCase) resolveVector(ctx context.Context, req *IngestItemReq) (*EncodeRes, error) {
	if len(req.Precomputed) > 0 {
		modelVersion := req.ModelVersion
		if modelVersion == "" {
			modelVersion = "precomputed"
		}
		return NewEncodeRes(req.Precomputed, modelVersion), nil
	}

	reqs := make([]*EncodeReq, 0, len(req.Images))
	for _, img := range req.Images {
		reqs = append(reqs, NewEncodeReq(img.Data, req.Title))
	}

	results, err := c.encoder.EncodeBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(results))
	for _, res := range results {
		if len(res.Vector) == 0 {
			return nil, e.ErrEmptyVector
		}
		vectors = append(vectors, res.Vector)
	}

	return NewEncodeRes(vecmath.Mean(vectors...), results[0].ModelVersion), nil
}

// validateItem проверяет корректность входных данных запроса на ингест.
func (c *CatalogUseCase) validateItem(req *IngestItemReq) error {
	if strings.TrimSpace(req.Title) == "" {
		return e.ErrTitleRequired
	}

	if req.PriceCents <= 0 {
		return e.ErrPriceMustBePositive
	}

	if !req.Platform.Known() {
		return e.ErrUnknownPlatform
	}

	if len(req.Images) == 0 && len(req.Precomputed) == 0 {
		return e.ErrNoImage
	}

	return nil
}
