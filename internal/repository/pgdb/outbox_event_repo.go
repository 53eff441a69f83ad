package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/modaics/fitsearch/internal/domain"
	"github.com/modaics/fitsearch/internal/repository/pgdb/converter"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/tr"
)

const pgUniqueViolation = "23505"

// OutboxEventRepo хранит события каталога в outbox-таблице item_events.
// Событие пишется в той же транзакции, что и позиция; релей публикует его
// в Kafka асинхронно и проставляет published_at. Доставка at-least-once.
type OutboxEventRepo struct {
	pool *pgxpool.Pool
	conv converter.ItemEventConverter
}

func NewOutboxEventRepo(pool *pgxpool.Pool, conv converter.ItemEventConverter) *OutboxEventRepo {
	return &OutboxEventRepo{
		pool: pool,
		conv: conv,
	}
}

func (o *OutboxEventRepo) Insert(ctx context.Context, event *domain.ItemEvent) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := o.conv.ToModel(event)
	query := `
		INSERT INTO item_events (event_id, item_id, event_type, platform)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := tx.Exec(ctx, query,
		model.EventID,
		model.ItemID,
		model.EventType,
		model.Platform,
	); err != nil {
		if postgresDuplicate(err) {
			return fmt.Errorf("%s: event with id %s already exists", whereami.WhereAmI(), event.EventID)
		}

		return fmt.Errorf("%s: failed to insert event: %w", whereami.WhereAmI(), err)
	}

	// Будим релей, чтобы не ждать следующего тика.
	if _, err := tx.Exec(ctx, "NOTIFY outbox_pending;"); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// FetchUnpublished возвращает неопубликованные события в порядке создания.
func (o *OutboxEventRepo) FetchUnpublished(ctx context.Context, limit int) ([]*domain.ItemEvent, error) {
	query := `
		SELECT event_id, item_id, event_type, platform, published_at, created_at
		FROM item_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := o.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query pending events: %w", whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var models []*converter.ItemEventModel
	for rows.Next() {
		var model converter.ItemEventModel
		if err := rows.Scan(
			&model.EventID,
			&model.ItemID,
			&model.EventType,
			&model.Platform,
			&model.PublishedAt,
			&model.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan event: %w", whereami.WhereAmI(), err)
		}

		models = append(models, &model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iterator error: %w", whereami.WhereAmI(), err)
	}

	return o.conv.ToArrEntity(models), nil
}

// MarkPublished проставляет published_at. Уже опубликованные события
// не трогаем, повторный вызов — no-op.
func (o *OutboxEventRepo) MarkPublished(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := `
		UPDATE item_events
		SET published_at = NOW()
		WHERE event_id = ANY($1) AND published_at IS NULL
	`

	if _, err := o.pool.Exec(ctx, query, eventIDs); err != nil {
		return fmt.Errorf("%s: failed to mark events as published: %w", whereami.WhereAmI(), err)
	}

	return nil
}

func postgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
