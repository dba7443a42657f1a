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

const collectionDreams = "dreams"

type DreamRepository struct {
	col *mongo.Collection
}

func NewDreamRepository(db *mongo.Database) *DreamRepository {
	return &DreamRepository{col: db.Collection(collectionDreams)}
}

func (r *DreamRepository) Insert(ctx context.Context, dream *domain.Dream) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, dream); err != nil {
		return fmt.Errorf("insert dream: %w", err)
	}
	return nil
}

func (r *DreamRepository) FindByID(ctx context.Context, id string) (*domain.Dream, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.Dream
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDreamNotFound
		}
		return nil, fmt.Errorf("find dream: %w", err)
	}
	return &d, nil
}

func (r *DreamRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Dream, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list dreams: %w", err)
	}
	defer cur.Close(ctx)

	var dreams []*domain.Dream
	if err := cur.All(ctx, &dreams); err != nil {
		return nil, fmt.Errorf("decode dreams: %w", err)
	}
	return dreams, nil
}

func (r *DreamRepository) ListRecentExcluding(ctx context.Context, userID, excludeID string, limit int) ([]*domain.Dream, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"user_id": userID,
		"_id":     bson.M{"$ne": excludeID},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "dream_date", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list recent dreams: %w", err)
	}
	defer cur.Close(ctx)

	var dreams []*domain.Dream
	if err := cur.All(ctx, &dreams); err != nil {
		return nil, fmt.Errorf("decode dreams: %w", err)
	}
	return dreams, nil
}

func (r *DreamRepository) SetThreadID(ctx context.Context, dreamID, threadID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": dreamID},
		bson.M{"$set": bson.M{"thread_id": threadID}},
	)
	if err != nil {
		return fmt.Errorf("set thread id: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrDreamNotFound
	}
	return nil
}

// EnsureIndexes creates the owner and recency indexes.
func (r *DreamRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "dream_date", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
