package dto

import (
	"time"

	"github.com/dreschagin/item-tracker/internal/domain/entity"
)

// ItemDTO — представление item для API ответов и кеша
type ItemDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToItemDTO конвертирует entity в DTO
func ToItemDTO(item *entity.Item) *ItemDTO {
	return &ItemDTO{
		ID:        item.ID(),
		Name:      item.Name(),
		CreatedAt: item.CreatedAt(),
	}
}

// ToItemDTOs конвертирует slice entities в DTOs
func ToItemDTOs(items []*entity.Item) []*ItemDTO {
	dtos := make([]*ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, ToItemDTO(item))
	}
	return dtos
}
