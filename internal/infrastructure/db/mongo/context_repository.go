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

const collectionUserContext = "user_context"

// UserContextRepository stores one personal-context document per user.
type UserContextRepository struct {
	col *mongo.Collection
}

func NewUserContextRepository(db *mongo.Database) *UserContextRepository {
	return &UserContextRepository{col: db.Collection(collectionUserContext)}
}

// Get returns the user's context, or nil when none has been saved.
func (r *UserContextRepository) Get(ctx context.Context, userID string) (*domain.UserContext, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var uc domain.UserContext
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&uc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user context: %w", err)
	}
	return &uc, nil
}

// Upsert replaces the user's context in a single atomic document write.
func (r *UserContextRepository) Upsert(ctx context.Context, userID, contextData string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"context_data": contextData,
			"updated_at":   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert user context: %w", err)
	}
	return nil
}
