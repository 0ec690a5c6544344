package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/item-tracker/internal/application/dto"
	"github.com/dreschagin/item-tracker/internal/application/port"
	"github.com/dreschagin/item-tracker/internal/domain/entity"
	"github.com/dreschagin/item-tracker/internal/domain/repository"
	rediscache "github.com/dreschagin/item-tracker/internal/infrastructure/cache/redis"
	natsinfra "github.com/dreschagin/item-tracker/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/item-tracker/pkg/logging"
)

// CreateItemUseCase создает новый item
type CreateItemUseCase struct {
	repository repository.ItemRepository
	cache      port.Cache
	events     port.EventPublisher
	emitter    *logging.Emitter
}

// NewCreateItemUseCase создает новый use case; cache и events могут быть nil
func NewCreateItemUseCase(
	repository repository.ItemRepository,
	cache port.Cache,
	events port.EventPublisher,
	emitter *logging.Emitter,
) *CreateItemUseCase {
	return &CreateItemUseCase{
		repository: repository,
		cache:      cache,
		events:     events,
		emitter:    emitter,
	}
}

// Execute валидирует имя и сохраняет item. Ошибка валидации возвращается
// как entity.ErrNameRequired для классификации в handler.
func (uc *CreateItemUseCase) Execute(ctx context.Context, name string) (*dto.ItemDTO, error) {
	item, err := entity.NewItem(name)
	if err != nil {
		uc.emitter.Emit("item_create_validation_error", map[string]any{
			"level":      logging.LevelError,
			"error":      err.Error(),
			"error_type": "validation",
		})
		return nil, err
	}

	stored, err := uc.repository.Insert(ctx, item)
	if err != nil {
		uc.emitter.Emit("item_create_error", map[string]any{
			"level": logging.LevelError,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	itemDTO := dto.ToItemDTO(stored)
	uc.emitter.Emit("item_created", map[string]any{
		"id":   itemDTO.ID,
		"name": itemDTO.Name,
	})

	// Инвалидация списка синхронно: следующий GET не должен увидеть
	// устаревший кеш
	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, rediscache.ItemsListKey); err != nil {
			uc.emitter.Emit("items_cache_invalidate_error", map[string]any{
				"level": logging.LevelWarn,
				"error": err.Error(),
			})
		}
	}

	// Событие в брокер fire-and-forget: сбой публикации не ломает создание
	if uc.events != nil {
		if err := uc.events.PublishEvent(ctx, natsinfra.SubjectItemCreated, itemDTO); err != nil {
			uc.emitter.Emit("item_event_publish_error", map[string]any{
				"level": logging.LevelWarn,
				"error": err.Error(),
			})
		}
	}

	return itemDTO, nil
}
