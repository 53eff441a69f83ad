package domain

import "time"

// Item описывает позицию каталога — вещь с одного из маркетплейсов.
type Item struct {
	ID          int64
	Title       string
	Description string
	PriceCents  int64 // Цена хранится в центах
	Currency    string
	SourceURL   string // внешняя ссылка на оригинальное объявление
	ImageURL    string // внешняя ссылка на изображение, медиа не проксируем
	Platform    Platform
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	IsArchived  bool
}

func NewItem(title, description string, priceCents int64, currency, sourceURL, imageURL string, platform Platform) *Item {
	return &Item{
		Title:       title,
		Description: description,
		PriceCents:  priceCents,
		Currency:    currency,
		SourceURL:   sourceURL,
		ImageURL:    imageURL,
		Platform:    platform,
	}
}
