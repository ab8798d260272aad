package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/handler"
	"github.com/sakif/shamebot/internal/logging"
	"github.com/sakif/shamebot/internal/model"
)

// MockLinker records what the handlers pass to the link service.
type MockLinker struct {
	URL    string
	URLErr error

	CapturedCode  string
	CapturedState string
	LinkErr       error

	CompletedUser string
	CompletedTask string
	CompleteErr   error
	Completions   int
}

func (m *MockLinker) ConnectURL() (string, error) {
	return m.URL, m.URLErr
}

func (m *MockLinker) LinkAccount(ctx context.Context, code, state string) (*model.User, error) {
	m.CapturedCode = code
	m.CapturedState = state
	if m.LinkErr != nil {
		return nil, m.LinkErr
	}
	return &model.User{ID: "user-001", Email: "a@example.com"}, nil
}

func (m *MockLinker) HandleTaskCompleted(ctx context.Context, todoistUserID, taskID string) error {
	m.Completions++
	m.CompletedUser = todoistUserID
	m.CompletedTask = taskID
	return m.CompleteErr
}

func postWebhook(h *handler.LinkHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	return rr
}

func TestLinkHandler_HandleConnect(t *testing.T) {
	m := &MockLinker{URL: "https://todoist.com/oauth/authorize?client_id=abc&state=s"}
	h := handler.NewLinkHandler(m, logging.Discard())

	rr := httptest.NewRecorder()
	h.HandleConnect(rr, httptest.NewRequest(http.MethodPost, "/connect", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var card handler.ConnectCard
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&card))
	assert.Equal(t, "AdaptiveCard", card.Card.Type)
	require.Len(t, card.Card.Body, 1)
	assert.Equal(t, "TextBlock", card.Card.Body[0].Type)
	assert.Equal(t, m.URL, card.Card.Body[0].Text)
}

func TestLinkHandler_HandleConnect_Error(t *testing.T) {
	h := handler.NewLinkHandler(&MockLinker{URLErr: errors.New("signing failed")}, logging.Discard())

	rr := httptest.NewRecorder()
	h.HandleConnect(rr, httptest.NewRequest(http.MethodPost, "/connect", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLinkHandler_HandleAuth(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := httptest.NewRecorder()
		h.HandleAuth(rr, httptest.NewRequest(http.MethodGet, "/auth?code=abc&state=xyz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Success", rr.Body.String())
		assert.Equal(t, "abc", m.CapturedCode)
		assert.Equal(t, "xyz", m.CapturedState)
	})

	t.Run("no code", func(t *testing.T) {
		m := &MockLinker{LinkErr: apperror.ValidationFailed("code", "No code provided")}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := httptest.NewRecorder()
		h.HandleAuth(rr, httptest.NewRequest(http.MethodGet, "/auth", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "No code provided", rr.Body.String())
	})

	t.Run("declined", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := httptest.NewRecorder()
		h.HandleAuth(rr, httptest.NewRequest(http.MethodGet, "/auth?error=access_denied", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, m.CapturedCode, "service must not be called")
	})

	t.Run("store failure hides details", func(t *testing.T) {
		m := &MockLinker{LinkErr: errors.New("sqlite: disk I/O error at /var/lib/shamebot")}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := httptest.NewRecorder()
		h.HandleAuth(rr, httptest.NewRequest(http.MethodGet, "/auth?code=abc", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "sqlite")
	})
}

func TestLinkHandler_HandleWebhook(t *testing.T) {
	t.Run("item completed", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := postWebhook(h, `{"event_name":"item:completed","event_data":{"id":"t1","user_id":"555"}}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "555", m.CompletedUser)
		assert.Equal(t, "t1", m.CompletedTask)
	})

	t.Run("numeric user id", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := postWebhook(h, `{"event_name":"item:completed","event_data":{"id":"t1","user_id":555}}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "555", m.CompletedUser)
	})

	t.Run("other known event is acknowledged", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := postWebhook(h, `{"event_name":"item:added","event_data":{"id":"t1","user_id":"555"}}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Zero(t, m.Completions)
	})

	t.Run("missing event name", func(t *testing.T) {
		m := &MockLinker{}
		h := handler.NewLinkHandler(m, logging.Discard())

		rr := postWebhook(h, `{"event_data":{"id":"t1"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, m.Completions)
	})

	t.Run("unknown event name", func(t *testing.T) {
		rr := postWebhook(handler.NewLinkHandler(&MockLinker{}, logging.Discard()), `{"event_name":"item:exploded"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rr := postWebhook(handler.NewLinkHandler(&MockLinker{}, logging.Discard()), `{"event_name":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		m := &MockLinker{CompleteErr: apperror.ValidationFailed("user_id", "Unknown Todoist user")}
		rr := postWebhook(handler.NewLinkHandler(m, logging.Discard()),
			`{"event_name":"item:completed","event_data":{"id":"t1","user_id":"999"}}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "Unknown Todoist user", body.Message)
	})

	t.Run("internal failure", func(t *testing.T) {
		m := &MockLinker{CompleteErr: errors.New("database is locked")}
		rr := postWebhook(handler.NewLinkHandler(m, logging.Discard()),
			`{"event_name":"item:completed","event_data":{"id":"t1","user_id":"555"}}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
