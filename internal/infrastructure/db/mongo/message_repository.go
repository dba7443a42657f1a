package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/somnialabs/dreamchat/internal/core/domain"
)

const collectionMessages = "dream_messages"

// MessageRepository stores dream messages. Insert-only: no update or delete
// operation exists on purpose.
type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(collectionMessages)}
}

func (r *MessageRepository) Insert(ctx context.Context, msg *domain.DreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// CountUserMessages counts role=user messages for a dream attributed to a
// user. The role filter is what keeps assistant replies out of the quota.
func (r *MessageRepository) CountUserMessages(ctx context.Context, dreamID, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{
		"dream_id": dreamID,
		"user_id":  userID,
		"role":     string(domain.RoleUser),
	})
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return int(n), nil
}

func (r *MessageRepository) ListByDream(ctx context.Context, dreamID string) ([]*domain.DreamMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"dream_id": dreamID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []*domain.DreamMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) FirstAssistantMessage(ctx context.Context, dreamID string) (*domain.DreamMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	var m domain.DreamMessage
	err := r.col.FindOne(ctx, bson.M{
		"dream_id": dreamID,
		"role":     string(domain.RoleAssistant),
	}, opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find first assistant message: %w", err)
	}
	return &m, nil
}

// EnsureIndexes creates the dream/role/recency indexes backing the quota
// count and history queries.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "dream_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "dream_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "role", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
