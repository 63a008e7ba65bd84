package service

import (
	"context"
	"log/slog"

	"direct-chat/internal/domain"
	"direct-chat/internal/websocket"
)

const maxMessageLength = 2000

// Notifier pushes a single event at a user's live connection. Delivery is
// best-effort; an offline recipient simply misses the push and catches up
// from the store on their next conversation load.
type Notifier interface {
	SendToUser(userID, event string, payload any) bool
}

// MessageService persists messages and fans the result out to the other
// party. Persistence always happens first: a message is never announced
// before it is durable.
type MessageService struct {
	messageRepo domain.MessageRepository
	notifier    Notifier
}

func NewMessageService(messageRepo domain.MessageRepository, notifier Notifier) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		notifier:    notifier,
	}
}

// Send stores a new message and notifies the receiver. Either text or an
// image URL must be present.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, text, imageURL string) (*domain.Message, error) {
	if text == "" && imageURL == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(text) > maxMessageLength {
		return nil, domain.ErrInvalidInput
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageURL:   imageURL,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.notify(receiverID, websocket.EventNewMessage, msg)
	return msg, nil
}

// ListConversation returns the full history between two users, oldest first
func (s *MessageService) ListConversation(ctx context.Context, userID, otherID string) ([]*domain.Message, error) {
	return s.messageRepo.FindConversation(ctx, userID, otherID)
}

// Edit replaces the message text and notifies the message's receiver.
// Notifications always target the receiver recorded on the message,
// whichever participant performed the mutation.
func (s *MessageService) Edit(ctx context.Context, messageID, text string) (*domain.Message, error) {
	if text == "" || len(text) > maxMessageLength {
		return nil, domain.ErrInvalidInput
	}

	updated, err := s.messageRepo.UpdateText(ctx, messageID, text)
	if err != nil {
		return nil, err
	}

	s.notify(updated.ReceiverID, websocket.EventMessageUpdated, updated)
	return updated, nil
}

// Delete removes the message and notifies the message's receiver
func (s *MessageService) Delete(ctx context.Context, messageID string) (*domain.Message, error) {
	deleted, err := s.messageRepo.DeleteByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.notify(deleted.ReceiverID, websocket.EventMessageDeleted, deleted)
	return deleted, nil
}

func (s *MessageService) notify(userID string, event string, msg *domain.Message) {
	if !s.notifier.SendToUser(userID, event, msg) {
		slog.Debug("recipient offline, event skipped",
			slog.String("event", event),
			slog.String("user_id", userID),
			slog.String("message_id", msg.ID))
	}
}
