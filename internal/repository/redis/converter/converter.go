package converter

import (
	"github.com/modaics/fitsearch/internal/usecase"
)

type ItemInfoConverter interface {
	ToRedisModel(entity *usecase.ItemInfo) *ItemInfoRedisModel
	ToUseCase(model *ItemInfoRedisModel) *usecase.ItemInfo
	ToArrRedisModel(entities []usecase.ItemInfo) []ItemInfoRedisModel
}

type ItemInfoConverterImpl struct{}

func NewItemInfoConverterImpl() *ItemInfoConverterImpl {
	return &ItemInfoConverterImpl{}
}

func (c *ItemInfoConverterImpl) ToRedisModel(entity *usecase.ItemInfo) *ItemInfoRedisModel {
	if entity == nil {
		return nil
	}
	return &ItemInfoRedisModel{
		ID:          entity.ID,
		Title:       entity.Title,
		Description: entity.Description,
		PriceCents:  entity.PriceCents,
		Currency:    entity.Currency,
		SourceURL:   entity.SourceURL,
		ImageURL:    entity.ImageURL,
		Platform:    entity.Platform,
	}
}

func (c *ItemInfoConverterImpl) ToUseCase(model *ItemInfoRedisModel) *usecase.ItemInfo {
	if model == nil {
		return nil
	}
	return &usecase.ItemInfo{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		PriceCents:  model.PriceCents,
		Currency:    model.Currency,
		SourceURL:   model.SourceURL,
		ImageURL:    model.ImageURL,
		Platform:    model.Platform,
	}
}

func (c *ItemInfoConverterImpl) ToArrRedisModel(entities []usecase.ItemInfo) []ItemInfoRedisModel {
	models := make([]ItemInfoRedisModel, 0, len(entities))
	for idx := range entities {
		models = append(models, *c.ToRedisModel(&entities[idx]))
	}
	return models
}
