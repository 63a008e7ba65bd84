package domain

import (
	"context"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("message not found")

// Message represents a direct message between two users. A conversation is the
// set of messages whose sender/receiver pair matches in either direction.
type Message struct {
	ID         string    `json:"id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"sender_id"`
	ReceiverID string    `json:"receiverId" bson:"receiver_id"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	IsEdited   bool      `json:"isEdited" bson:"is_edited"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	// Create persists a new message, assigning ID and CreatedAt.
	Create(ctx context.Context, message *Message) error
	// FindConversation returns all messages exchanged between the two users,
	// in either direction, ordered by CreatedAt ascending.
	FindConversation(ctx context.Context, userA, userB string) ([]*Message, error)
	// UpdateText replaces the text of the message and marks it edited.
	// Returns ErrMessageNotFound if the id does not resolve.
	UpdateText(ctx context.Context, id, text string) (*Message, error)
	// DeleteByID removes the message and returns the deleted record.
	// Returns ErrMessageNotFound if the id does not resolve.
	DeleteByID(ctx context.Context, id string) (*Message, error)
}
