package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/shamebot/internal/model"
	"github.com/sakif/shamebot/internal/todoist"
)

// maxWebhookBytes caps the webhook body; Todoist events are a few KB.
const maxWebhookBytes = 1 << 20

// Linker is what LinkHandler needs from service.LinkService.
type Linker interface {
	ConnectURL() (string, error)
	LinkAccount(ctx context.Context, code, state string) (*model.User, error)
	HandleTaskCompleted(ctx context.Context, todoistUserID, taskID string) error
}

// LinkHandler serves the endpoints Todoist talks to.
//
// HANDLER RESPONSIBILITIES:
//   - HandleConnect → hand out an authorize URL (no side effects)
//   - HandleAuth    → OAuth redirect target; stores the user's token
//   - HandleWebhook → Todoist event delivery; clears shame on completion
type LinkHandler struct {
	link   Linker
	logger *slog.Logger
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(link Linker, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{link: link, logger: logger}
}

// ConnectCard is the Adaptive Card returned by /connect.
type ConnectCard struct {
	Card struct {
		Type string      `json:"type"`
		Body []TextBlock `json:"body"`
	} `json:"card"`
}

// TextBlock is an Adaptive Card text element.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleConnect returns an authorize URL wrapped in an Adaptive Card.
//
// HTTP: POST /connect
func (h *LinkHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	url, err := h.link.ConnectURL()
	if err != nil {
		h.logger.Error("building connect URL failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	var card ConnectCard
	card.Card.Type = "AdaptiveCard"
	card.Card.Body = []TextBlock{{Type: "TextBlock", Text: url}}
	writeJSON(w, http.StatusOK, card)
}

// HandleAuth completes the OAuth flow.
//
// HTTP: GET /auth?code=xxx&state=yyy
//
// A person's browser lands here, so the answer is plain text: "Success", or
// the reason the link was refused.
func (h *LinkHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Todoist appends error=access_denied when the member declines.
	if e := q.Get("error"); e != "" {
		h.logger.Info("authorization declined", slog.String("error", e))
		writeText(w, http.StatusBadRequest, "Authorization was declined")
		return
	}

	user, err := h.link.LinkAccount(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("linking account failed", slog.String("error", err.Error()))
			writeText(w, status, "An internal error occurred")
			return
		}
		writeText(w, status, err.Error())
		return
	}

	h.logger.Info("account linked via callback", slog.String("user_id", user.ID))
	writeText(w, http.StatusOK, "Success")
}

// WebhookEvent is the envelope Todoist posts to /webhook.
type WebhookEvent struct {
	EventName string `json:"event_name"`
	EventData struct {
		ID     todoist.FlexibleID `json:"id"`
		UserID todoist.FlexibleID `json:"user_id"`
	} `json:"event_data"`
}

// EventItemCompleted is the only event that triggers work.
const EventItemCompleted = "item:completed"

// knownEvents are the webhook events Todoist can deliver. Anything else is
// rejected as malformed.
var knownEvents = map[string]bool{
	"item:added":         true,
	"item:updated":       true,
	"item:deleted":       true,
	EventItemCompleted:   true,
	"item:uncompleted":   true,
	"note:added":         true,
	"note:updated":       true,
	"note:deleted":       true,
	"project:added":      true,
	"project:updated":    true,
	"project:deleted":    true,
	"project:archived":   true,
	"project:unarchived": true,
	"section:added":      true,
	"section:updated":    true,
	"section:deleted":    true,
	"section:archived":   true,
	"section:unarchived": true,
	"label:added":        true,
	"label:deleted":      true,
	"label:updated":      true,
	"filter:added":       true,
	"filter:deleted":     true,
	"filter:updated":     true,
	"reminder:fired":     true,
}

// HandleWebhook receives Todoist events.
//
// HTTP: POST /webhook
//
// STATUS CODES:
//   - 400: the body is not an event we understand, or names an unknown user
//   - 500: something on our side failed before the event could be handled
//   - 200: everything else, including a failed label update (Todoist would
//     otherwise redeliver an event that only failed locally)
func (h *LinkHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)

	var event WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}
	if !knownEvents[event.EventName] {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Unknown or missing event_name",
		})
		return
	}

	if event.EventName != EventItemCompleted {
		h.logger.Debug("webhook event ignored", slog.String("event", event.EventName))
		w.WriteHeader(http.StatusOK)
		return
	}

	err := h.link.HandleTaskCompleted(r.Context(), string(event.EventData.UserID), string(event.EventData.ID))
	if err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			h.logger.Error("webhook failed", slog.String("event", event.EventName), slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
