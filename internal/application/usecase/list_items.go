package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/item-tracker/internal/application/dto"
	"github.com/dreschagin/item-tracker/internal/application/port"
	"github.com/dreschagin/item-tracker/internal/domain/repository"
	rediscache "github.com/dreschagin/item-tracker/internal/infrastructure/cache/redis"
	"github.com/dreschagin/item-tracker/pkg/logging"
)

// ListItemsUseCase возвращает все items, новые первыми
type ListItemsUseCase struct {
	repository repository.ItemRepository
	cache      port.Cache
	emitter    *logging.Emitter
}

// NewListItemsUseCase создает новый use case; cache может быть nil
func NewListItemsUseCase(
	repository repository.ItemRepository,
	cache port.Cache,
	emitter *logging.Emitter,
) *ListItemsUseCase {
	return &ListItemsUseCase{
		repository: repository,
		cache:      cache,
		emitter:    emitter,
	}
}

// Execute выполняет выборку items. Детали ошибки хранилища остаются в логе
// и никогда не доходят до HTTP клиента.
func (uc *ListItemsUseCase) Execute(ctx context.Context) ([]*dto.ItemDTO, error) {
	if uc.cache != nil {
		var cached []*dto.ItemDTO
		if err := uc.cache.Get(ctx, rediscache.ItemsListKey, &cached); err == nil {
			uc.emitter.Emit("items_fetched", map[string]any{
				"count":  len(cached),
				"source": "cache",
			})
			return cached, nil
		}
	}

	items, err := uc.repository.FindAllSorted(ctx)
	if err != nil {
		uc.emitter.Emit("items_fetch_error", map[string]any{
			"level": logging.LevelError,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}

	dtos := dto.ToItemDTOs(items)
	uc.emitter.Emit("items_fetched", map[string]any{"count": len(dtos)})

	// Сохраняем в кеш асинхронно, не блокируем ответ
	if uc.cache != nil {
		go func() {
			if err := uc.cache.Set(context.Background(), rediscache.ItemsListKey, dtos); err != nil {
				uc.emitter.Emit("items_cache_set_error", map[string]any{
					"level": logging.LevelWarn,
					"error": err.Error(),
				})
			}
		}()
	}

	return dtos, nil
}
