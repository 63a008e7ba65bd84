// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the direct-chat application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"direct-chat/internal/domain"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc        func(ctx context.Context, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*domain.User, error)
	ListOthersFunc    func(ctx context.Context, excludeID string) ([]*domain.User, error)
	UpdateAvatarFunc  func(ctx context.Context, id, avatarURL string) error

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}

	// Check for duplicates
	for _, u := range m.Users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	if m.ListOthersFunc != nil {
		return m.ListOthersFunc(ctx, excludeID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.User, 0, len(m.Users))
	for id, user := range m.Users {
		if id != excludeID {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func (m *MockUserRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	if m.UpdateAvatarFunc != nil {
		return m.UpdateAvatarFunc(ctx, id, avatarURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.Users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.AvatarURL = avatarURL
	return nil
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc        func(ctx context.Context, session *domain.Session) error
	GetByTokenFunc    func(ctx context.Context, token string) (*domain.Session, error)
	DeleteFunc        func(ctx context.Context, token string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	// In-memory storage
	Sessions map[string]*domain.Session
}

// NewMockSessionRepository creates a new MockSessionRepository with initialized maps
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Sessions == nil {
		m.Sessions = make(map[string]*domain.Session)
	}
	m.Sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.Sessions[token]; ok {
		if session.ExpiresAt.Before(time.Now()) {
			return nil, domain.ErrSessionExpired
		}
		return session, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for token, session := range m.Sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.Sessions, token)
			count++
		}
	}
	return count, nil
}

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc           func(ctx context.Context, message *domain.Message) error
	FindConversationFunc func(ctx context.Context, userA, userB string) ([]*domain.Message, error)
	UpdateTextFunc       func(ctx context.Context, id, text string) (*domain.Message, error)
	DeleteByIDFunc       func(ctx context.Context, id string) (*domain.Message, error)

	// In-memory storage
	Messages []*domain.Message
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized slices
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make([]*domain.Message, 0),
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockMessageRepository) FindConversation(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	if m.FindConversationFunc != nil {
		return m.FindConversationFunc(ctx, userA, userB)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockMessageRepository) UpdateText(ctx context.Context, id, text string) (*domain.Message, error) {
	if m.UpdateTextFunc != nil {
		return m.UpdateTextFunc(ctx, id, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.Messages {
		if msg.ID == id {
			msg.Text = text
			msg.IsEdited = true
			return msg, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *MockMessageRepository) DeleteByID(ctx context.Context, id string) (*domain.Message, error) {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.Messages {
		if msg.ID == id {
			m.Messages = append(m.Messages[:i], m.Messages[i+1:]...)
			return msg, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

// SentEvent records one call to MockNotifier.SendToUser
type SentEvent struct {
	UserID  string
	Event   string
	Payload any
}

// MockNotifier implements service.Notifier for testing
type MockNotifier struct {
	mu sync.RWMutex

	// Offline lists users the notifier should report as undeliverable
	Offline map[string]bool

	// Call tracking
	Sent []SentEvent
}

// NewMockNotifier creates a new MockNotifier where every user is online
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Offline: make(map[string]bool),
		Sent:    make([]SentEvent, 0),
	}
}

func (m *MockNotifier) SendToUser(userID, event string, payload any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Offline[userID] {
		return false
	}
	m.Sent = append(m.Sent, SentEvent{UserID: userID, Event: event, Payload: payload})
	return true
}

// SentEvents returns a copy of all recorded deliveries
func (m *MockNotifier) SentEvents() []SentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SentEvent{}, m.Sent...)
}

// MockMediaStore implements media.Store for testing
type MockMediaStore struct {
	mu sync.RWMutex

	// Function override
	UploadFunc func(ctx context.Context, data []byte, contentType string) (string, error)

	// Call tracking
	Uploads [][]byte
}

// NewMockMediaStore creates a new MockMediaStore
func NewMockMediaStore() *MockMediaStore {
	return &MockMediaStore{
		Uploads: make([][]byte, 0),
	}
}

func (m *MockMediaStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uploads = append(m.Uploads, data)
	return "http://media.test/chat-media/" + uuid.New().String(), nil
}
