package usecase

import "github.com/modaics/fitsearch/internal/domain"

// SEARCH USECASE

// SearchReq — запрос пользовательского поиска.
// Хотя бы одно из полей Text/ImageBytes должно быть заполнено.
type SearchReq struct {
	Text       string
	ImageBytes []byte
	Limit      uint64
	Filter     *domain.SearchFilter
}

// SearchRes — итоговая выдача.
// Degraded выставляется, когда одна из двух модальностей не отработала,
// но выдача собрана по выжившей.
type SearchRes struct {
	Hits     []domain.SearchHit
	Degraded bool
}

// CATALOG USECASE

// IngestItemReq — запрос на добавление/обновление позиции каталога.
type IngestItemReq struct {
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	SourceURL   string
	ImageURL    string
	Platform    domain.Platform
	Images      []ItemImage
	// Precomputed — готовый вектор из внешнего batch-пайплайна.
	// Если пуст, вектор строится энкодером по первому изображению и названию.
	Precomputed  []float32
	ModelVersion string
}

// ItemImage представляет изображение, загруженное через multipart/form-data.
type ItemImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// IngestItemRes — результат ингеста.
type IngestItemRes struct {
	ItemID    int64
	EventID   string
	NoChanges bool
}

// ItemInfo — DTO с информацией о позиции каталога для выдачи и кэша.
type ItemInfo struct {
	ID          int64
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	SourceURL   string
	ImageURL    string
	Platform    string
}

// INFRASTRUCTURE

// EncodeReq — запрос на векторизацию. Оба поля опциональны, но не одновременно.
type EncodeReq struct {
	Image []byte
	Text  string
}

// EncodeRes — результат векторизации.
type EncodeRes struct {
	Vector       []float32
	ModelVersion string
}

// UploadImagesReq — запрос на загрузку изображений вещи.
type UploadImagesReq struct {
	Title  string
	Images []ItemImage
}

// UploadImagesRes — результат загрузки изображений (ключи в MinIO).
type UploadImagesRes struct {
	ImagesKeys []string
}

// REPOSITORIES

type UpsertItemRes struct {
	Item      *domain.Item
	NoChanges bool
}

// MAPPERS

func NewSearchReq(text string, imageBytes []byte, limit uint64, filter *domain.SearchFilter) *SearchReq {
	return &SearchReq{
		Text:       text,
		ImageBytes: imageBytes,
		Limit:      limit,
		Filter:     filter,
	}
}

func NewSearchRes(hits []domain.SearchHit, degraded bool) *SearchRes {
	return &SearchRes{
		Hits:     hits,
		Degraded: degraded,
	}
}

func NewUpsertItemRes(item *domain.Item, noChanges bool) *UpsertItemRes {
	return &UpsertItemRes{
		Item:      item,
		NoChanges: noChanges,
	}
}

func NewItemInfo(item *domain.Item) ItemInfo {
	return ItemInfo{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		PriceCents:  item.PriceCents,
		Currency:    item.Currency,
		SourceURL:   item.SourceURL,
		ImageURL:    item.ImageURL,
		Platform:    item.Platform.String(),
	}
}

func NewEncodeRes(vector []float32, modelVersion string) *EncodeRes {
	return &EncodeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewEncodeReq(image []byte, text string) *EncodeReq {
	return &EncodeReq{
		Image: image,
		Text:  text,
	}
}

func NewItemImage(data []byte, mimeType string, size int64, name string) *ItemImage {
	return &ItemImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewUploadImagesReq(title string, images []ItemImage) *UploadImagesReq {
	return &UploadImagesReq{
		Title:  title,
		Images: images,
	}
}

func NewUploadImagesRes(imagesKeys []string) *UploadImagesRes {
	return &UploadImagesRes{
		ImagesKeys: imagesKeys,
	}
}

func NewIngestItemReq(title, description string, priceCents int64, currency, sourceURL, imageURL string,
	platform domain.Platform, images []ItemImage) *IngestItemReq {
	return &IngestItemReq{
		Title:       title,
		Description: description,
		PriceCents:  priceCents,
		Currency:    currency,
		SourceURL:   sourceURL,
		ImageURL:    imageURL,
		Platform:    platform,
		Images:      images,
	}
}

func NewIngestItemRes(itemID int64, eventID string, noChanges bool) *IngestItemRes {
	return &IngestItemRes{
		ItemID:    itemID,
		EventID:   eventID,
		NoChanges: noChanges,
	}
}
