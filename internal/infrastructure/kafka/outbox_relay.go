package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
)

// OutboxRelay публикует накопленные outbox-события в Kafka.
// Работает по двум триггерам: периодический тик (подбирает события,
// пропущенные из-за потери NOTIFY) и LISTEN outbox_pending (не ждать тика
// после каждого ингеста). Доставка at-least-once: событие помечается
// опубликованным только после подтверждённой записи в Kafka.
type OutboxRelay struct {
	repo      usecase.OutboxRepository
	producer  usecase.MessageProducer
	logger    logger.Logger
	cfg       *cfg.KafkaCfg
	stop      chan struct{}
	wg        sync.WaitGroup
	dbConnStr string
}

func NewOutboxRelay(
	repo usecase.OutboxRepository,
	producer usecase.MessageProducer,
	logger logger.Logger,
	cfg *cfg.KafkaCfg,
	dbConnStr string,
) *OutboxRelay {
	return &OutboxRelay{
		repo:      repo,
		producer:  producer,
		logger:    logger,
		cfg:       cfg,
		stop:      make(chan struct{}),
		dbConnStr: dbConnStr,
	}
}

func (w *OutboxRelay) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	// Запускаем слушатель уведомлений
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

func (w *OutboxRelay) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *OutboxRelay) run(ctx context.Context) {
	// Обрабатываем "остатки" при старте
	w.logger.Infof("Draining pending outbox events on startup...")
	w.drain(ctx)

	ticker := time.NewTicker(w.cfg.RelayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Outbox relay stopped by context cancellation")
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain выгребает outbox до пустой выборки.
func (w *OutboxRelay) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxRelay) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn
	var err error

	connect := func() error {
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		_, err = conn.Exec(ctx, "LISTEN outbox_pending")
		if err != nil {
			conn.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to 'outbox_pending' channel")
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed: %v", err)
		return
	}
	defer conn.Close(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
			ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
			notif, err := conn.WaitForNotification(ctxWithTimeout)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
				conn.Close(ctx)

				time.Sleep(2 * time.Second)
				if err := connect(); err != nil {
					w.logger.Warnf("Reconnect failed: %v", err)
					time.Sleep(5 * time.Second)
				}
				continue
			}

			if notif != nil && notif.Channel == "outbox_pending" {
				w.drain(ctx)
			}
		}
	}
}

// processBatch публикует одну пачку неопубликованных событий.
// Возвращает true, если выборка была полной и в outbox, вероятно, есть ещё.
func (w *OutboxRelay) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.FetchUnpublished(ctx, w.cfg.RelayBatchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	published := make([]string, 0, len(events))
	for _, event := range events {
		if err := w.producer.WriteItemEvent(ctx, event); err != nil {
			if isRetryableError(err) {
				w.logger.Warnf("temporary Kafka failure, event %s will be retried: %v", event.EventID, err)
			} else {
				w.logger.Warnf("permanent Kafka failure for event %s: %v", event.EventID, err)
			}
			continue
		}

		published = append(published, event.EventID)
	}

	if err := w.repo.MarkPublished(ctx, published); err != nil {
		w.logger.Warnf("mark published failed: %v", err)
	}

	return len(events) == w.cfg.RelayBatchSize, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
