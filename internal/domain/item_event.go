package domain

import "time"

// ItemEventType — тип события изменения каталога.
type ItemEventType string

const (
	ItemEventUpsert ItemEventType = "upsert"
	ItemEventDelete ItemEventType = "delete"
)

// ItemEvent — событие изменения каталога для внешних потребителей (Kafka).
// Записывается в outbox-таблицу в той же транзакции, что и сама позиция,
// и публикуется релеем асинхронно.
type ItemEvent struct {
	EventID     string // uuid
	ItemID      int64
	Type        ItemEventType
	Platform    Platform
	PublishedAt *time.Time
	CreatedAt   time.Time
}

func NewItemEvent(eventID string, itemID int64, eventType ItemEventType, platform Platform) *ItemEvent {
	return &ItemEvent{
		EventID:  eventID,
		ItemID:   itemID,
		Type:     eventType,
		Platform: platform,
	}
}
