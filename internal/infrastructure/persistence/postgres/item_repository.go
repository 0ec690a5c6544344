package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/dreschagin/item-tracker/internal/domain/entity"
)

// PostgresItemRepository реализует repository.ItemRepository для PostgreSQL
type PostgresItemRepository struct {
	db *sql.DB
}

// NewPostgresItemRepository создает новый PostgreSQL repository
func NewPostgresItemRepository(db *sql.DB) *PostgresItemRepository {
	return &PostgresItemRepository{
		db: db,
	}
}

// FindAllSorted возвращает все items, новые первыми
func (r *PostgresItemRepository) FindAllSorted(ctx context.Context) ([]*entity.Item, error) {
	query := `
		SELECT id, name, created_at
		FROM items
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.Item, 0)
	for rows.Next() {
		var (
			id        string
			name      string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, entity.Reconstruct(id, name, createdAt))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// Insert сохраняет item; идентификатор назначается репозиторием
func (r *PostgresItemRepository) Insert(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO items (id, name, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.ExecContext(ctx, query, id, item.Name(), item.CreatedAt()); err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	return entity.Reconstruct(id, item.Name(), item.CreatedAt()), nil
}
