package pgdb

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/internal/repository/pgdb/converter"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/tr"
)

// ItemRepo реализует репозиторий позиций каталога поверх PostgreSQL.
type ItemRepo struct {
	pool *pgxpool.Pool
	conv converter.ItemConverter
}

func NewItemRepo(pool *pgxpool.Pool, conv converter.ItemConverter) *ItemRepo {
	return &ItemRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert идемпотентно создаёт или обновляет позицию по уникальному source_url.
// Запись обновляется только при фактическом изменении полей; повторный ингест
// той же позиции возвращает no_changes = true, и пайплайн не трогает ни
// векторный индекс, ни outbox.
func (i *ItemRepo) Upsert(ctx context.Context, item *domain.Item) (*usecase.UpsertItemRes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES title, description, price_cents, currency, source_url, image_url, platform
	query := `
		WITH upsert AS (
		INSERT INTO items (title, description, price_cents, currency, source_url, image_url, platform)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url)
		DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			image_url = EXCLUDED.image_url,
			platform = EXCLUDED.platform,
			is_archived = false,
			updated_at = NOW()
		WHERE
			items.title IS DISTINCT FROM EXCLUDED.title OR
			items.description IS DISTINCT FROM EXCLUDED.description OR
			items.price_cents IS DISTINCT FROM EXCLUDED.price_cents OR
			items.currency IS DISTINCT FROM EXCLUDED.currency OR
			items.image_url IS DISTINCT FROM EXCLUDED.image_url OR
			items.platform IS DISTINCT FROM EXCLUDED.platform OR
			items.is_archived IS DISTINCT FROM false
		RETURNING
			id, title, description, price_cents, currency, source_url, image_url,
			platform, created_at, updated_at, is_archived
		)
		SELECT
			id, title, description, price_cents, currency, source_url, image_url,
			platform, created_at, updated_at, is_archived,
			false AS no_changes
		FROM upsert

		UNION ALL

		SELECT
			id, title, description, price_cents, currency, source_url, image_url,
			platform, created_at, updated_at, is_archived,
			true AS no_changes
		FROM items
		WHERE source_url = $5
		  AND NOT EXISTS (SELECT 1 FROM upsert);
	`

	var model converter.ItemModel
	var noChanges bool
	err = tx.QueryRow(ctx, query,
		item.Title, item.Description, item.PriceCents, item.Currency,
		item.SourceURL, item.ImageURL, item.Platform.String(),
	).Scan(
		&model.ID, &model.Title, &model.Description, &model.PriceCents,
		&model.Currency, &model.SourceURL, &model.ImageURL, &model.Platform,
		&model.CreatedAt, &model.UpdatedAt, &model.IsArchived, &noChanges,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return usecase.NewUpsertItemRes(i.conv.ToEntity(&model), noChanges), nil
}

// GetItemsInfo возвращает информацию о позициях по их идентификаторам.
// Архивные позиции в выдачу не попадают.
func (i *ItemRepo) GetItemsInfo(ctx context.Context, ids []int64) ([]usecase.ItemInfo, error) {
	query := `
		SELECT id, title, description, price_cents, currency, source_url, image_url, platform
		FROM items
		WHERE id = ANY($1) AND NOT is_archived
	`

	rows, err := i.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ItemInfo, 0)
	for rows.Next() {
		var info usecase.ItemInfo
		if err := rows.Scan(
			&info.ID, &info.Title, &info.Description, &info.PriceCents,
			&info.Currency, &info.SourceURL, &info.ImageURL, &info.Platform,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Delete архивирует позицию. Строка остаётся в таблице ради истории ингеста,
// но перестаёт попадать в выдачу. Повторное удаление — no-op.
func (i *ItemRepo) Delete(ctx context.Context, id int64) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		UPDATE items
		SET is_archived = true, updated_at = NOW()
		WHERE id = $1 AND NOT is_archived
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
