package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"direct-chat/internal/domain"
	"direct-chat/internal/middleware"
	"direct-chat/internal/service"
	"direct-chat/internal/testutil"

	"github.com/go-chi/chi/v5"
)

type messageHandlerFixture struct {
	handler     *MessageHandler
	userRepo    *testutil.MockUserRepository
	messageRepo *testutil.MockMessageRepository
	notifier    *testutil.MockNotifier
}

func newMessageHandlerFixture() *messageHandlerFixture {
	userRepo := testutil.NewMockUserRepository()
	sessionRepo := testutil.NewMockSessionRepository()
	messageRepo := testutil.NewMockMessageRepository()
	notifier := testutil.NewMockNotifier()
	mediaStore := testutil.NewMockMediaStore()

	authService := service.NewAuthService(userRepo, sessionRepo, mediaStore)
	messageService := service.NewMessageService(messageRepo, notifier)

	return &messageHandlerFixture{
		handler:     NewMessageHandler(messageService, authService, mediaStore),
		userRepo:    userRepo,
		messageRepo: messageRepo,
		notifier:    notifier,
	}
}

// withURLParam injects a chi URL parameter into the request context
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func authenticated(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestMessageHandler_GetSidebarUsers(t *testing.T) {
	f := newMessageHandlerFixture()
	f.userRepo.Users["user-1"] = testutil.NewTestUser(testutil.WithUserID("user-1"), testutil.WithUsername("alice"))
	f.userRepo.Users["user-2"] = testutil.NewTestUser(testutil.WithUserID("user-2"), testutil.WithUsername("bob"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/users", nil)
	req = authenticated(req, "user-1")
	w := httptest.NewRecorder()

	f.handler.GetSidebarUsers(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)

	resp := testutil.DecodeJSON[map[string][]UserResponse](t, w)
	users := resp["users"]
	testutil.AssertLen(t, users, 1)
	testutil.AssertEqual(t, users[0].Username, "bob")
}

func TestMessageHandler_GetSidebarUsers_Unauthenticated(t *testing.T) {
	f := newMessageHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/users", nil)
	w := httptest.NewRecorder()

	f.handler.GetSidebarUsers(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
}

func TestMessageHandler_List(t *testing.T) {
	f := newMessageHandlerFixture()
	for _, msg := range testutil.NewTestConversation("user-1", "user-2", 3) {
		f.messageRepo.Messages = append(f.messageRepo.Messages, msg)
	}
	f.messageRepo.Messages = append(f.messageRepo.Messages, testutil.NewTestMessage(
		testutil.WithSenderID("user-1"),
		testutil.WithReceiverID("user-3"),
	))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/user-2", nil)
	req = authenticated(withURLParam(req, "id", "user-2"), "user-1")
	w := httptest.NewRecorder()

	f.handler.List(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)

	resp := testutil.DecodeJSON[map[string][]*domain.Message](t, w)
	testutil.AssertLen(t, resp["messages"], 3)
}

func TestMessageHandler_Send(t *testing.T) {
	f := newMessageHandlerFixture()
	f.userRepo.Users["user-2"] = testutil.NewTestUser(testutil.WithUserID("user-2"))

	t.Run("text_message", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/messages/send/user-2",
			SendMessageRequest{Text: "hello"})
		req = authenticated(withURLParam(req, "id", "user-2"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Send(w, req)

		testutil.AssertStatusCode(t, w, http.StatusCreated)

		msg := testutil.DecodeJSON[domain.Message](t, w)
		testutil.AssertEqual(t, msg.SenderID, "user-1")
		testutil.AssertEqual(t, msg.ReceiverID, "user-2")
		testutil.AssertEqual(t, msg.Text, "hello")

		sent := f.notifier.SentEvents()
		testutil.AssertLen(t, sent, 1)
		testutil.AssertEqual(t, sent[0].UserID, "user-2")
		testutil.AssertEqual(t, sent[0].Event, "newMessage")
	})

	t.Run("image_message", func(t *testing.T) {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 0x50})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/messages/send/user-2",
			SendMessageRequest{Image: dataURL})
		req = authenticated(withURLParam(req, "id", "user-2"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Send(w, req)

		testutil.AssertStatusCode(t, w, http.StatusCreated)

		msg := testutil.DecodeJSON[domain.Message](t, w)
		if msg.ImageURL == "" {
			t.Error("expected image URL to be set")
		}
	})

	t.Run("invalid_image", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/messages/send/user-2",
			SendMessageRequest{Image: "not a data url"})
		req = authenticated(withURLParam(req, "id", "user-2"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Send(w, req)

		testutil.AssertStatusCode(t, w, http.StatusBadRequest)
	})

	t.Run("empty_message", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/messages/send/user-2",
			SendMessageRequest{})
		req = authenticated(withURLParam(req, "id", "user-2"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Send(w, req)

		testutil.AssertStatusCode(t, w, http.StatusBadRequest)
	})

	t.Run("unknown_receiver", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/messages/send/ghost",
			SendMessageRequest{Text: "hello"})
		req = authenticated(withURLParam(req, "id", "ghost"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Send(w, req)

		testutil.AssertStatusCode(t, w, http.StatusNotFound)
	})
}

func TestMessageHandler_Update(t *testing.T) {
	f := newMessageHandlerFixture()
	msg := testutil.NewTestMessage(
		testutil.WithMessageID("msg-1"),
		testutil.WithSenderID("user-1"),
		testutil.WithReceiverID("user-2"),
		testutil.WithText("tpyo"),
	)
	f.messageRepo.Messages = append(f.messageRepo.Messages, msg)

	t.Run("success", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/v1/messages/update/msg-1",
			UpdateMessageRequest{Text: "typo"})
		req = authenticated(withURLParam(req, "messageId", "msg-1"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Update(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)

		updated := testutil.DecodeJSON[domain.Message](t, w)
		testutil.AssertEqual(t, updated.Text, "typo")
		testutil.AssertTrue(t, updated.IsEdited, "message should be marked edited")

		sent := f.notifier.SentEvents()
		testutil.AssertLen(t, sent, 1)
		testutil.AssertEqual(t, sent[0].UserID, "user-2")
		testutil.AssertEqual(t, sent[0].Event, "messageUpdated")
	})

	t.Run("not_found", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/v1/messages/update/ghost",
			UpdateMessageRequest{Text: "typo"})
		req = authenticated(withURLParam(req, "messageId", "ghost"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Update(w, req)

		testutil.AssertStatusCode(t, w, http.StatusNotFound)
	})

	t.Run("empty_text", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/api/v1/messages/update/msg-1",
			UpdateMessageRequest{})
		req = authenticated(withURLParam(req, "messageId", "msg-1"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Update(w, req)

		testutil.AssertStatusCode(t, w, http.StatusBadRequest)
	})
}

func TestMessageHandler_Delete(t *testing.T) {
	f := newMessageHandlerFixture()
	msg := testutil.NewTestMessage(
		testutil.WithMessageID("msg-1"),
		testutil.WithSenderID("user-1"),
		testutil.WithReceiverID("user-2"),
	)
	f.messageRepo.Messages = append(f.messageRepo.Messages, msg)

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/messages/delete/msg-1", nil)
		req = authenticated(withURLParam(req, "messageId", "msg-1"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Delete(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)
		testutil.AssertEmpty(t, f.messageRepo.Messages)

		sent := f.notifier.SentEvents()
		testutil.AssertLen(t, sent, 1)
		testutil.AssertEqual(t, sent[0].Event, "messageDeleted")
	})

	t.Run("not_found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/messages/delete/msg-1", nil)
		req = authenticated(withURLParam(req, "messageId", "msg-1"), "user-1")
		w := httptest.NewRecorder()

		f.handler.Delete(w, req)

		testutil.AssertStatusCode(t, w, http.StatusNotFound)
	})
}
