package converter

import "time"

// ItemModel представляет запись таблицы items в PostgreSQL.
type ItemModel struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	PriceCents  int64      `db:"price_cents"`
	Currency    string     `db:"currency"`
	SourceURL   string     `db:"source_url"`
	ImageURL    string     `db:"image_url"`
	Platform    string     `db:"platform"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
	IsArchived  bool       `db:"is_archived"`
}

// ItemEventModel представляет запись таблицы item_events (outbox) в PostgreSQL.
type ItemEventModel struct {
	EventID     string     `db:"event_id"`
	ItemID      int64      `db:"item_id"`
	EventType   string     `db:"event_type"`
	Platform    string     `db:"platform"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
}
