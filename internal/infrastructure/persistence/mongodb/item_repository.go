package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dreschagin/item-tracker/internal/domain/entity"
)

// itemDocument — форма item в MongoDB
type itemDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoItemRepository реализует repository.ItemRepository для MongoDB
type MongoItemRepository struct {
	coll *mongo.Collection
}

// NewMongoItemRepository создает новый MongoDB repository
func NewMongoItemRepository(db *mongo.Database, collection string) *MongoItemRepository {
	return &MongoItemRepository{
		coll: db.Collection(collection),
	}
}

// Connect открывает соединение с MongoDB и проверяет его ping-ом
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// FindAllSorted возвращает все items, новые первыми
func (r *MongoItemRepository) FindAllSorted(ctx context.Context) ([]*entity.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*entity.Item, 0)
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, entity.Reconstruct(doc.ID.Hex(), doc.Name, doc.CreatedAt))
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// Insert сохраняет item; идентификатор назначает MongoDB
func (r *MongoItemRepository) Insert(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	doc := itemDocument{
		Name:      item.Name(),
		CreatedAt: item.CreatedAt(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	return entity.Reconstruct(oid.Hex(), doc.Name, doc.CreatedAt), nil
}
