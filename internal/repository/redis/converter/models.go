package converter

// ItemInfoRedisModel — представление позиции каталога в Redis-кэше.
type ItemInfoRedisModel struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	SourceURL   string `json:"source_url"`
	ImageURL    string `json:"image_url"`
	Platform    string `json:"platform"`
}
