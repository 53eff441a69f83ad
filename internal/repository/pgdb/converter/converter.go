package converter

import (
	"github.com/modaics/fitsearch/internal/domain"
)

// ItemConverter преобразует сущности Item между domain и моделью PostgreSQL.
type ItemConverter interface {
	ToModel(entity *domain.Item) *ItemModel
	ToEntity(model *ItemModel) *domain.Item
}

// ItemEventConverter преобразует сущности ItemEvent между domain и моделью PostgreSQL.
type ItemEventConverter interface {
	ToModel(entity *domain.ItemEvent) *ItemEventModel
	ToEntity(model *ItemEventModel) *domain.ItemEvent
	ToArrEntity(models []*ItemEventModel) []*domain.ItemEvent
}

type ItemConverterImpl struct{}

func NewItemConverterImpl() *ItemConverterImpl {
	return &ItemConverterImpl{}
}

func (c *ItemConverterImpl) ToModel(entity *domain.Item) *ItemModel {
	if entity == nil {
		return nil
	}
	return &ItemModel{
		ID:          entity.ID,
		Title:       entity.Title,
		Description: entity.Description,
		PriceCents:  entity.PriceCents,
		Currency:    entity.Currency,
		SourceURL:   entity.SourceURL,
		ImageURL:    entity.ImageURL,
		Platform:    entity.Platform.String(),
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
		IsArchived:  entity.IsArchived,
	}
}

func (c *ItemConverterImpl) ToEntity(model *ItemModel) *domain.Item {
	if model == nil {
		return nil
	}
	return &domain.Item{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		PriceCents:  model.PriceCents,
		Currency:    model.Currency,
		SourceURL:   model.SourceURL,
		ImageURL:    model.ImageURL,
		Platform:    domain.Platform(model.Platform),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		IsArchived:  model.IsArchived,
	}
}

type ItemEventConverterImpl struct{}

func NewItemEventConverterImpl() *ItemEventConverterImpl {
	return &ItemEventConverterImpl{}
}

func (c *ItemEventConverterImpl) ToModel(entity *domain.ItemEvent) *ItemEventModel {
	if entity == nil {
		return nil
	}
	return &ItemEventModel{
		EventID:     entity.EventID,
		ItemID:      entity.ItemID,
		EventType:   string(entity.Type),
		Platform:    entity.Platform.String(),
		PublishedAt: entity.PublishedAt,
		CreatedAt:   entity.CreatedAt,
	}
}

func (c *ItemEventConverterImpl) ToEntity(model *ItemEventModel) *domain.ItemEvent {
	if model == nil {
		return nil
	}
	return &domain.ItemEvent{
		EventID:     model.EventID,
		ItemID:      model.ItemID,
		Type:        domain.ItemEventType(model.EventType),
		Platform:    domain.Platform(model.Platform),
		PublishedAt: model.PublishedAt,
		CreatedAt:   model.CreatedAt,
	}
}

func (c *ItemEventConverterImpl) ToArrEntity(models []*ItemEventModel) []*domain.ItemEvent {
	if models == nil {
		return nil
	}
	entities := make([]*domain.ItemEvent, 0, len(models))
	for _, m := range models {
		entities = append(entities, c.ToEntity(m))
	}
	return entities
}
