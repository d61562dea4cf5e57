package converter

import (
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter struct{}

func (ProductConverter) ToEntity(model *ProductModel) *domain.Product {
	return &domain.Product{
		ID:            model.ID,
		Name:          model.Name,
		Description:   model.Description,
		Price:         model.Price,
		StockQuantity: model.StockQuantity,
		Category:      domain.Category(model.Category),
		Gender:        domain.Gender(model.Gender),
		ImageURL:      model.ImageURL,
		ImageKey:      model.ImageKey,
		IsActive:      model.IsActive,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
		DeletedAt:     model.DeletedAt,
		Health: domain.ProductHealth{
			MissingText:    model.MissingText,
			MissingFull:    model.MissingFull,
			MissingUpper:   model.MissingUpper,
			MissingLower:   model.MissingLower,
			BadDescription: domain.IsBadDescription(model.Description),
		},
	}
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter struct{}

func (OutboxEventConverter) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		ProductID:   entity.ProductID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (OutboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   usecase.OutboxEventType(model.EventType),
		ProductID:   model.ProductID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverter) ToArrEntity(models []*OutboxEventModel) []usecase.OutboxEvent {
	out := make([]usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, *c.ToEntity(m))
	}
	return out
}
