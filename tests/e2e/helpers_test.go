//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"testing"
	"time"

	"direct-chat/internal/domain"

	"github.com/gorilla/websocket"
)

var userCounter int64

// uniqueUsername generates a unique username for test isolation
func uniqueUsername(prefix string) string {
	n := atomic.AddInt64(&userCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%1000000, n)
}

// uniqueEmail generates a unique email for test isolation
func uniqueEmail(prefix string) string {
	n := atomic.AddInt64(&userCounter, 1)
	return fmt.Sprintf("%s_%d_%d@test.local", prefix, time.Now().UnixNano()%1000000, n)
}

// TestClient wraps HTTP operations against the chat API with a cookie jar,
// so the session cookie set at login flows to subsequent requests.
type TestClient struct {
	t            *testing.T
	client       *http.Client
	sessionToken string
	userID       string
	username     string
}

// NewTestClient creates a new API test client
func NewTestClient(t *testing.T) *TestClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &TestClient{
		t: t,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

// RegisterUser registers a new user account
func (c *TestClient) RegisterUser(username, email, password string) (*http.Response, map[string]any) {
	return c.PostJSON("/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// LoginUser logs in and captures the session token and user ID
func (c *TestClient) LoginUser(username, password string) (*http.Response, map[string]any) {
	resp, body := c.PostJSON("/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	})

	if resp.StatusCode == http.StatusOK {
		if token, ok := body["token"].(string); ok {
			c.sessionToken = token
		}
		if user, ok := body["user"].(map[string]any); ok {
			if id, ok := user["id"].(string); ok {
				c.userID = id
			}
			if name, ok := user["username"].(string); ok {
				c.username = name
			}
		}
	}

	return resp, body
}

// Logout ends the current session
func (c *TestClient) Logout() (*http.Response, map[string]any) {
	resp, body := c.PostJSON("/api/v1/auth/logout", nil)
	if resp.StatusCode == http.StatusOK {
		c.sessionToken = ""
	}
	return resp, body
}

// GetMe fetches the authenticated account
func (c *TestClient) GetMe() (*http.Response, map[string]any) {
	return c.GetJSON("/api/v1/auth/me")
}

// UpdateProfile replaces the account avatar with an inline data URL
func (c *TestClient) UpdateProfile(profilePic string) (*http.Response, map[string]any) {
	return c.doJSON(http.MethodPut, "/api/v1/auth/update-profile", map[string]string{
		"profilePic": profilePic,
	})
}

// GetSidebarUsers lists every other account
func (c *TestClient) GetSidebarUsers() (*http.Response, map[string]any) {
	return c.GetJSON("/api/v1/messages/users")
}

// GetConversation fetches the message history with another user
func (c *TestClient) GetConversation(otherID string) (*http.Response, []*domain.Message) {
	resp, err := c.request(http.MethodGet, "/api/v1/messages/"+otherID, nil)
	if err != nil {
		c.t.Fatalf("failed to fetch conversation: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Messages []*domain.Message `json:"messages"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			c.t.Fatalf("failed to decode conversation: %v", err)
		}
	}
	return resp, body.Messages
}

// SendMessage posts a message to another user. image may be empty or an
// inline data URL.
func (c *TestClient) SendMessage(receiverID, text, image string) (*http.Response, *domain.Message) {
	payload := map[string]string{"text": text}
	if image != "" {
		payload["image"] = image
	}
	return c.messageRequest(http.MethodPost, "/api/v1/messages/send/"+receiverID, payload)
}

// UpdateMessage edits a message's text
func (c *TestClient) UpdateMessage(messageID, text string) (*http.Response, *domain.Message) {
	return c.messageRequest(http.MethodPut, "/api/v1/messages/update/"+messageID, map[string]string{
		"text": text,
	})
}

// DeleteMessage removes a message
func (c *TestClient) DeleteMessage(messageID string) (*http.Response, *domain.Message) {
	return c.messageRequest(http.MethodDelete, "/api/v1/messages/delete/"+messageID, nil)
}

func (c *TestClient) messageRequest(method, path string, payload any) (*http.Response, *domain.Message) {
	resp, err := c.request(method, path, payload)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var msg *domain.Message
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		msg = &domain.Message{}
		if err := json.NewDecoder(resp.Body).Decode(msg); err != nil {
			c.t.Fatalf("failed to decode message: %v", err)
		}
	}
	return resp, msg
}

// PostJSON issues a POST with a JSON payload and decodes the JSON response
func (c *TestClient) PostJSON(path string, payload any) (*http.Response, map[string]any) {
	return c.doJSON(http.MethodPost, path, payload)
}

// GetJSON issues a GET and decodes the JSON response
func (c *TestClient) GetJSON(path string) (*http.Response, map[string]any) {
	return c.doJSON(http.MethodGet, path, nil)
}

func (c *TestClient) doJSON(method, path string, payload any) (*http.Response, map[string]any) {
	resp, err := c.request(method, path, payload)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func (c *TestClient) request(method, path string, payload any) (*http.Response, error) {
	var reqBody *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

// WSEvent is the envelope pushed by the server
type WSEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSClient wraps a WebSocket connection and buffers incoming events
type WSClient struct {
	t      *testing.T
	conn   *websocket.Conn
	events chan WSEvent
	done   chan struct{}
}

// ConnectWebSocket opens the realtime connection using the client's session
// token as the ?token= query parameter.
func (c *TestClient) ConnectWebSocket() *WSClient {
	if c.sessionToken == "" {
		c.t.Fatal("cannot connect websocket without a session")
	}

	url := fmt.Sprintf("%s/ws?token=%s", wsURL, c.sessionToken)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.t.Fatalf("failed to connect websocket: %v", err)
	}

	ws := &WSClient{
		t:      c.t,
		conn:   conn,
		events: make(chan WSEvent, 64),
		done:   make(chan struct{}),
	}
	go ws.readLoop()
	return ws
}

func (w *WSClient) readLoop() {
	defer close(w.done)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		var event WSEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		select {
		case w.events <- event:
		default:
			// Buffer full, drop the event
		}
	}
}

// WaitForEvent blocks until an event with the given name arrives, or the
// timeout elapses. Other events received in the meantime are discarded.
func (w *WSClient) WaitForEvent(name string, timeout time.Duration) (WSEvent, bool) {
	return w.WaitForMatch(timeout, func(e WSEvent) bool {
		return e.Event == name
	})
}

// WaitForMatch blocks until an event satisfying the predicate arrives
func (w *WSClient) WaitForMatch(timeout time.Duration, predicate func(WSEvent) bool) (WSEvent, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case event := <-w.events:
			if predicate(event) {
				return event, true
			}
		case <-deadline:
			return WSEvent{}, false
		case <-w.done:
			return WSEvent{}, false
		}
	}
}

// WaitForMessage blocks until a message-bearing event of the given name
// arrives whose decoded payload satisfies the predicate.
func (w *WSClient) WaitForMessage(name string, timeout time.Duration, predicate func(*domain.Message) bool) (*domain.Message, bool) {
	event, ok := w.WaitForMatch(timeout, func(e WSEvent) bool {
		if e.Event != name {
			return false
		}
		var msg domain.Message
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return false
		}
		return predicate(&msg)
	})
	if !ok {
		return nil, false
	}
	var msg domain.Message
	if err := json.Unmarshal(event.Data, &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// WaitForRoster blocks until a getOnlineUsers event arrives whose user ID
// list satisfies the predicate.
func (w *WSClient) WaitForRoster(timeout time.Duration, predicate func([]string) bool) ([]string, bool) {
	event, ok := w.WaitForMatch(timeout, func(e WSEvent) bool {
		if e.Event != "getOnlineUsers" {
			return false
		}
		var ids []string
		if err := json.Unmarshal(e.Data, &ids); err != nil {
			return false
		}
		return predicate(ids)
	})
	if !ok {
		return nil, false
	}
	var ids []string
	json.Unmarshal(event.Data, &ids)
	return ids, true
}

// DrainEvents discards any buffered events
func (w *WSClient) DrainEvents() {
	for {
		select {
		case <-w.events:
		default:
			return
		}
	}
}

// Close closes the WebSocket connection
func (w *WSClient) Close() {
	w.conn.Close()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
	}
}

// setupTestUser registers and logs in a fresh user, returning the client
func setupTestUser(t *testing.T, prefix string) *TestClient {
	client := NewTestClient(t)
	username := uniqueUsername(prefix)
	email := uniqueEmail(prefix)

	resp, _ := client.RegisterUser(username, email, "password123")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("failed to register test user: status %d", resp.StatusCode)
	}

	resp, _ = client.LoginUser(username, "password123")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("failed to login test user: status %d", resp.StatusCode)
	}

	return client
}

// containsID reports whether ids contains id
func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// assertNoError fails the test if err is non-nil
func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// assertEqual fails the test if got != want
func assertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}
