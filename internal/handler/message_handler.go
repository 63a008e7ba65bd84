package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"direct-chat/internal/domain"
	"direct-chat/internal/media"
	"direct-chat/internal/middleware"
	"direct-chat/internal/service"

	"github.com/go-chi/chi/v5"
)

// Inline message images are capped before hitting the object store
const maxImageBytes = 10 << 20

// MessageHandler handles the conversation endpoints
type MessageHandler struct {
	messageService *service.MessageService
	authService    *service.AuthService
	mediaStore     media.Store
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *service.MessageService, authService *service.AuthService, mediaStore media.Store) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		authService:    authService,
		mediaStore:     mediaStore,
	}
}

// SendMessageRequest carries new message content. Image is an optional
// inline data URL which gets re-homed in the object store.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// UpdateMessageRequest carries replacement text for an edit
type UpdateMessageRequest struct {
	Text string `json:"text"`
}

// GetSidebarUsers lists every other account for the conversation sidebar
func (h *MessageHandler) GetSidebarUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	users, err := h.authService.ListOtherUsers(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve users"}`, http.StatusInternalServerError)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, userResponse(user))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users": resp,
	})
}

// List returns the full conversation with the user in the URL
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	otherID := chi.URLParam(r, "id")
	if otherID == "" {
		http.Error(w, `{"error":"User ID required"}`, http.StatusBadRequest)
		return
	}

	messages, err := h.messageService.ListConversation(r.Context(), userID, otherID)
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve messages"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"messages": messages,
	})
}

// Send stores a new message addressed to the user in the URL
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	receiverID := chi.URLParam(r, "id")
	if receiverID == "" {
		http.Error(w, `{"error":"User ID required"}`, http.StatusBadRequest)
		return
	}

	if _, err := h.authService.GetUserByID(r.Context(), receiverID); err != nil {
		http.Error(w, `{"error":"Receiver not found"}`, http.StatusNotFound)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	imageURL := ""
	if req.Image != "" {
		data, contentType, err := media.DecodeDataURL(req.Image)
		if err != nil || len(data) == 0 || len(data) > maxImageBytes {
			http.Error(w, `{"error":"Invalid image"}`, http.StatusBadRequest)
			return
		}
		imageURL, err = h.mediaStore.Upload(r.Context(), data, contentType)
		if err != nil {
			http.Error(w, `{"error":"Failed to store image"}`, http.StatusInternalServerError)
			return
		}
	}

	msg, err := h.messageService.Send(r.Context(), userID, receiverID, req.Text, imageURL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"Failed to send message"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// Update edits a message's text
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	messageID := chi.URLParam(r, "messageId")
	if messageID == "" {
		http.Error(w, `{"error":"Message ID required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.Edit(r.Context(), messageID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			http.Error(w, `{"error":"Message not found"}`, http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		default:
			http.Error(w, `{"error":"Failed to update message"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msg)
}

// Delete removes a message
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	messageID := chi.URLParam(r, "messageId")
	if messageID == "" {
		http.Error(w, `{"error":"Message ID required"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.Delete(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			http.Error(w, `{"error":"Message not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"Failed to delete message"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msg)
}
