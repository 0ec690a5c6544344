package entity

import (
	"errors"
	"strings"
	"time"
)

// ErrNameRequired возвращается, когда имя item пустое после trim
var ErrNameRequired = errors.New("item name is required")

// Item представляет элемент, создаваемый через API
// Идентификатор назначается репозиторием при вставке
type Item struct {
	id        string
	name      string
	createdAt time.Time
}

// NewItem создает новый item (Factory Method)
func NewItem(name string) (*Item, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameRequired
	}

	return &Item{
		name:      trimmed,
		createdAt: time.Now(),
	}, nil
}

// Reconstruct восстанавливает item из хранилища (для Repository)
func Reconstruct(id, name string, createdAt time.Time) *Item {
	return &Item{
		id:        id,
		name:      name,
		createdAt: createdAt,
	}
}

// ID возвращает идентификатор item
func (i *Item) ID() string {
	return i.id
}

// Name возвращает имя item
func (i *Item) Name() string {
	return i.name
}

// CreatedAt возвращает время создания
func (i *Item) CreatedAt() time.Time {
	return i.createdAt
}
