// Package client is a Go client for the direct chat service: a thin REST
// wrapper for account and message management plus a realtime Session that
// holds the websocket connection and mirrors one open conversation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"direct-chat/internal/domain"
)

// APIError is a non-2xx response from the server, carrying the decoded
// error body when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// API is the REST client. Login stores the session token; every subsequent
// call sends it as the session cookie. Safe for concurrent use.
type API struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI creates a REST client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Token returns the active session token, empty before login
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) setToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type updateMessageRequest struct {
	Text string `json:"text"`
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

type usersResponse struct {
	Users []*domain.User `json:"users"`
}

type messagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// Register creates a new account
func (a *API) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	var user domain.User
	err := a.do(ctx, http.MethodPost, "/api/v1/auth/register",
		registerRequest{Username: username, Email: email, Password: password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login starts a session and stores the token for subsequent calls
func (a *API) Login(ctx context.Context, username, password string) (*domain.User, error) {
	var resp loginResponse
	err := a.do(ctx, http.MethodPost, "/api/v1/auth/login",
		loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	a.setToken(resp.Token)
	return resp.User, nil
}

// Logout ends the session and clears the stored token
func (a *API) Logout(ctx context.Context) error {
	if err := a.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err != nil {
		return err
	}
	a.setToken("")
	return nil
}

// Me returns the authenticated account
func (a *API) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := a.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile uploads a new avatar as an inline data URL
func (a *API) UpdateProfile(ctx context.Context, profilePicDataURL string) (*domain.User, error) {
	var user domain.User
	err := a.do(ctx, http.MethodPut, "/api/v1/auth/update-profile",
		updateProfileRequest{ProfilePic: profilePicDataURL}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Users lists every other account
func (a *API) Users(ctx context.Context) ([]*domain.User, error) {
	var resp usersResponse
	if err := a.do(ctx, http.MethodGet, "/api/v1/messages/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Messages returns the full conversation with the given user
func (a *API) Messages(ctx context.Context, otherID string) ([]*domain.Message, error) {
	var resp messagesResponse
	if err := a.do(ctx, http.MethodGet, "/api/v1/messages/"+otherID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Send posts a new message. Either text or an image data URL must be set.
func (a *API) Send(ctx context.Context, receiverID, text, imageDataURL string) (*domain.Message, error) {
	var msg domain.Message
	err := a.do(ctx, http.MethodPost, "/api/v1/messages/send/"+receiverID,
		sendMessageRequest{Text: text, Image: imageDataURL}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces a message's text and returns the updated message
func (a *API) Edit(ctx context.Context, messageID, text string) (*domain.Message, error) {
	var msg domain.Message
	err := a.do(ctx, http.MethodPut, "/api/v1/messages/update/"+messageID,
		updateMessageRequest{Text: text}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete removes a message and returns the deleted record
func (a *API) Delete(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := a.do(ctx, http.MethodDelete, "/api/v1/messages/delete/"+messageID, nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// do executes one JSON round trip. A nil out discards the response body.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: token})
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
