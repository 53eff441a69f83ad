package usecase

import (
	"context"

	"github.com/modaics/fitsearch/internal/domain"
)

// EncoderInfra — клиент сервиса векторизации (CLIP).
//
// Все методы детерминированы с точностью до float-допуска 1e-6 и не держат
// изменяемого состояния между вызовами. Векторы возвращаются
// ненормализованными — нормализация лежит на хранилище.
// Нечитаемое изображение — e.ErrEncoding, таймаут — e.ErrTimeout.
type EncoderInfra interface {
	EncodeText(ctx context.Context, text string) (*EncodeRes, error)
	EncodeImage(ctx context.Context, data []byte) (*EncodeRes, error)
	// Encode строит мультимодальный вектор по изображению и/или тексту.
	// Используется ингестом: вещи каталога кодируются по фото вместе с названием.
	Encode(ctx context.Context, req *EncodeReq) (*EncodeRes, error)
	// EncodeBatch векторизует несколько запросов параллельно, результаты
	// в порядке запросов. Отказ любого запроса валит весь батч.
	EncodeBatch(ctx context.Context, reqs []*EncodeReq) ([]*EncodeRes, error)
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
	WaitForCleanup(ctx context.Context) error
}

type MessageProducer interface {
	WriteItemEvent(ctx context.Context, event *domain.ItemEvent) error
}
