package domain

import "time"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет embedding-вектор одной позиции каталога.
// ItemID служит идентификатором точки в хранилище: повторный upsert
// той же позиции заменяет вектор, а не добавляет дубликат.
type Embedding struct {
	ItemID  int64
	Vector  []float32
	Payload Payload
}

func NewEmbedding(itemID int64, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ItemID:  itemID,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(platform Platform, priceCents int64, modelVersion string) Payload {
	return Payload{
		"platform":      platform.String(),
		"price_cents":   priceCents,
		"created_at":    time.Now().UTC().UnixNano(),
		"model_version": modelVersion,
	}
}
