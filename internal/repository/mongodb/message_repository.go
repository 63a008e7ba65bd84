// Package mongodb implements the message store on MongoDB. Messages are the
// only durable records kept in the document store; identity lives in Postgres.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"direct-chat/internal/domain"
	"direct-chat/internal/observability"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository implements domain.MessageRepository for MongoDB
type MessageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection("messages")}
}

// EnsureIndexes creates the conversation lookup indexes. Safe to call on
// every startup; index creation is idempotent.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

// Create inserts a new message, assigning its ID and creation time
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	start := time.Now()
	defer func() {
		observability.MessageStoreOpDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	}()

	message.ID = uuid.New().String()
	message.CreatedAt = time.Now().UTC()

	if _, err := r.coll.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindConversation returns every message exchanged between the two users, in
// either direction, ordered by creation time ascending.
func (r *MessageRepository) FindConversation(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	start := time.Now()
	defer func() {
		observability.MessageStoreOpDuration.WithLabelValues("find_conversation").Observe(time.Since(start).Seconds())
	}()

	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userA, "receiver_id": userB},
			{"sender_id": userB, "receiver_id": userA},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	messages := make([]*domain.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

// UpdateText replaces the message text and marks the message edited. The
// edited flag is set unconditionally, so repeated edits with identical text
// never toggle it back.
func (r *MessageRepository) UpdateText(ctx context.Context, id, text string) (*domain.Message, error) {
	start := time.Now()
	defer func() {
		observability.MessageStoreOpDuration.WithLabelValues("update_text").Observe(time.Since(start).Seconds())
	}()

	update := bson.M{"$set": bson.M{"text": text, "is_edited": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Message
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return &updated, nil
}

// DeleteByID removes the message and returns the deleted record
func (r *MessageRepository) DeleteByID(ctx context.Context, id string) (*domain.Message, error) {
	start := time.Now()
	defer func() {
		observability.MessageStoreOpDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	var deleted domain.Message
	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete message: %w", err)
	}
	return &deleted, nil
}
