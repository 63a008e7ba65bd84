package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"direct-chat/internal/domain"
	ws "direct-chat/internal/websocket"

	"github.com/gorilla/websocket"
)

// State is the conversation lifecycle of a Session
type State int

const (
	// StateIdle means no conversation is open
	StateIdle State = iota
	// StateLoading means history is being fetched for a counterpart
	StateLoading
	// StateLive means history is loaded and realtime events apply to it
	StateLive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// ErrNoConversation is returned by mutations when no conversation is live
var ErrNoConversation = fmt.Errorf("no open conversation")

// Session holds one realtime connection and mirrors at most one open
// conversation. History comes over REST; newMessage, messageUpdated,
// messageDeleted and getOnlineUsers events keep the mirror current.
type Session struct {
	api   *API
	wsURL string
	conn  *websocket.Conn

	mu           sync.RWMutex
	state        State
	counterpart  string
	messages     []*domain.Message
	online       []string

	handlers  map[string]func(json.RawMessage)
	done      chan struct{}
	closeOnce sync.Once

	onChange func()
}

// NewSession creates a Session over an authenticated API client. wsURL is the
// websocket endpoint, e.g. "ws://localhost:8080/ws".
func NewSession(api *API, wsURL string) *Session {
	s := &Session{
		api:      api,
		wsURL:    wsURL,
		state:    StateIdle,
		messages: make([]*domain.Message, 0),
		done:     make(chan struct{}),
	}
	s.handlers = map[string]func(json.RawMessage){
		ws.EventOnlineUsers:    s.onOnlineUsers,
		ws.EventNewMessage:     s.onNewMessage,
		ws.EventMessageUpdated: s.onMessageUpdated,
		ws.EventMessageDeleted: s.onMessageDeleted,
	}
	return s
}

// Connect dials the websocket endpoint using the API session token and starts
// consuming events. Must be called after API.Login.
func (s *Session) Connect(ctx context.Context) error {
	token := s.api.Token()
	if token == "" {
		return fmt.Errorf("not logged in")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.conn = conn

	go s.readLoop()
	return nil
}

// Done is closed when the realtime connection ends
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears down the realtime connection
func (s *Session) Close() error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	return err
}

func (s *Session) readLoop() {
	defer s.closeOnce.Do(func() { close(s.done) })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("realtime connection closed", slog.String("error", err.Error()))
			}
			return
		}
		s.dispatch(data)
	}
}

// dispatch routes one server event to its handler. Unknown events are
// ignored so newer servers stay compatible with older clients.
func (s *Session) dispatch(data []byte) {
	var event struct {
		Name string          `json:"event"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Debug("discarding malformed event", slog.String("error", err.Error()))
		return
	}

	if handler, ok := s.handlers[event.Name]; ok {
		handler(event.Data)
		if s.onChange != nil {
			s.onChange()
		}
	}
}

// SetOnChange registers a callback invoked after each applied server event.
// Must be set before Connect.
func (s *Session) SetOnChange(fn func()) {
	s.onChange = fn
}

func (s *Session) onOnlineUsers(data json.RawMessage) {
	var online []string
	if err := json.Unmarshal(data, &online); err != nil {
		return
	}

	// Snapshot semantics: the new roster replaces the old one wholesale
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}

func (s *Session) onNewMessage(data json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLive || !s.belongsToConversation(&msg) {
		return
	}
	s.messages = append(s.messages, &msg)
}

func (s *Session) onMessageUpdated(data json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Unknown id is a no-op: the edit targeted a conversation we don't have open
	for i, existing := range s.messages {
		if existing.ID == msg.ID {
			s.messages[i] = &msg
			return
		}
	}
}

func (s *Session) onMessageDeleted(data json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.messages {
		if existing.ID == msg.ID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// belongsToConversation reports whether msg is part of the open conversation.
// Callers hold s.mu.
func (s *Session) belongsToConversation(msg *domain.Message) bool {
	return msg.SenderID == s.counterpart || msg.ReceiverID == s.counterpart
}

// OpenConversation loads the history with otherID and goes live. An already
// open conversation is detached first, so a switch never leaves events from
// the old counterpart applying to the new one.
func (s *Session) OpenConversation(ctx context.Context, otherID string) ([]*domain.Message, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.detachLocked()
	}
	s.state = StateLoading
	s.counterpart = otherID
	s.mu.Unlock()

	history, err := s.api.Messages(ctx, otherID)
	if err != nil {
		s.mu.Lock()
		if s.counterpart == otherID {
			s.detachLocked()
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent switch to another counterpart wins over this load
	if s.counterpart != otherID || s.state != StateLoading {
		return nil, fmt.Errorf("conversation switched during load")
	}

	s.messages = append(s.messages[:0], history...)
	s.state = StateLive
	return s.snapshotLocked(), nil
}

// CloseConversation returns to the idle state and drops the local mirror
func (s *Session) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Session) detachLocked() {
	s.state = StateIdle
	s.counterpart = ""
	s.messages = s.messages[:0]
}

// Send posts a message to the open conversation. The server notifies the
// counterpart over the websocket; our own copy comes from the REST response.
func (s *Session) Send(ctx context.Context, text, imageDataURL string) (*domain.Message, error) {
	s.mu.RLock()
	state, counterpart := s.state, s.counterpart
	s.mu.RUnlock()

	if state != StateLive {
		return nil, ErrNoConversation
	}

	msg, err := s.api.Send(ctx, counterpart, text, imageDataURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateLive && s.counterpart == counterpart {
		s.messages = append(s.messages, msg)
	}
	s.mu.Unlock()
	return msg, nil
}

// Edit updates a message's text and applies the result locally
func (s *Session) Edit(ctx context.Context, messageID, text string) (*domain.Message, error) {
	msg, err := s.api.Edit(ctx, messageID, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i, existing := range s.messages {
		if existing.ID == msg.ID {
			s.messages[i] = msg
			break
		}
	}
	s.mu.Unlock()
	return msg, nil
}

// Delete removes a message and drops it from the local mirror
func (s *Session) Delete(ctx context.Context, messageID string) (*domain.Message, error) {
	msg, err := s.api.Delete(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i, existing := range s.messages {
		if existing.ID == msg.ID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return msg, nil
}

// State returns the conversation state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Counterpart returns the user ID of the open conversation, empty when idle
func (s *Session) Counterpart() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counterpart
}

// Messages returns a snapshot of the open conversation
func (s *Session) Messages() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []*domain.Message {
	out := make([]*domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// OnlineUsers returns the latest roster snapshot
func (s *Session) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.online...)
}
