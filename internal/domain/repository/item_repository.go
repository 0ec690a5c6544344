package repository

import (
	"context"

	"github.com/dreschagin/item-tracker/internal/domain/entity"
)

// ItemRepository — интерфейс хранилища items
type ItemRepository interface {
	// FindAllSorted возвращает все items, новые первыми
	FindAllSorted(ctx context.Context) ([]*entity.Item, error)

	// Insert сохраняет item и возвращает его с назначенным идентификатором
	Insert(ctx context.Context, item *entity.Item) (*entity.Item, error)
}
