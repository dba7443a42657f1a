package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/somnialabs/dreamchat/internal/infrastructure/engine"
)

const collectionThreads = "engine_threads"

// ThreadRepository persists engine-thread transcripts. Each thread is one
// document; appends are atomic $push operations on it.
type ThreadRepository struct {
	col *mongo.Collection
}

func NewThreadRepository(db *mongo.Database) *ThreadRepository {
	return &ThreadRepository{col: db.Collection(collectionThreads)}
}

type threadDoc struct {
	ID        string        `bson:"_id"`
	Messages  []threadEntry `bson:"messages"`
	CreatedAt time.Time     `bson:"created_at"`
}

type threadEntry struct {
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *ThreadRepository) Create(ctx context.Context, threadID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := threadDoc{ID: threadID, Messages: []threadEntry{}, CreatedAt: time.Now().UTC()}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (r *ThreadRepository) Append(ctx context.Context, threadID, role, content string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	entry := threadEntry{Role: role, Content: content, CreatedAt: time.Now().UTC()}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": threadID},
		bson.M{"$push": bson.M{"messages": entry}},
	)
	if err != nil {
		return fmt.Errorf("append to thread: %w", err)
	}
	if res.MatchedCount == 0 {
		return engine.ErrThreadNotFound
	}
	return nil
}

func (r *ThreadRepository) Transcript(ctx context.Context, threadID string) ([]engine.ThreadMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc threadDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": threadID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, engine.ErrThreadNotFound
		}
		return nil, fmt.Errorf("find thread: %w", err)
	}

	out := make([]engine.ThreadMessage, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		out = append(out, engine.ThreadMessage{Role: m.Role, Content: m.Content})
	}
	return out, nil
}
