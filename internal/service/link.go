// Package service holds the business logic behind the HTTP endpoints and the
// slash commands:
//
//	LinkHandler  (HTTP)  → LinkService  → auth.Provider, todoist.Client, UserRepository
//	Bot /shame   (chat)  → ShameService → todoist.Client, UserRepository
//
// Services never see HTTP requests or Discord interactions; they return
// domain errors (apperror) and the boundary decides how to present them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/model"
	"github.com/sakif/shamebot/internal/repository"
	"github.com/sakif/shamebot/internal/todoist"
)

// OAuthProvider is the part of auth.Provider the link flow uses.
type OAuthProvider interface {
	ConnectURL() (string, error)
	VerifyState(state string) error
	Exchange(ctx context.Context, code string) (string, error)
}

// AccountClient is the part of todoist.Client the link flow uses.
type AccountClient interface {
	Identity(ctx context.Context, token string) (*todoist.Identity, error)
	RemoveLabel(ctx context.Context, token, id, name string) (bool, error)
}

// LinkService connects Todoist accounts and reacts to Todoist webhooks.
type LinkService struct {
	users    repository.UserRepository
	provider OAuthProvider
	todoist  AccountClient
	logger   *slog.Logger
}

// NewLinkService creates a LinkService.
func NewLinkService(users repository.UserRepository, provider OAuthProvider, client AccountClient, logger *slog.Logger) *LinkService {
	return &LinkService{
		users:    users,
		provider: provider,
		todoist:  client,
		logger:   logger,
	}
}

// ConnectURL returns a Todoist authorize URL. Pure: nothing is stored.
func (s *LinkService) ConnectURL() (string, error) {
	u, err := s.provider.ConnectURL()
	if err != nil {
		return "", fmt.Errorf("service/link: building connect URL: %w", err)
	}
	return u, nil
}

// LinkAccount completes the OAuth callback.
//
// Steps:
//  1. Verify the state we handed out (if any came back)
//  2. Exchange the code for an access token
//  3. Ask the Sync API which account the token belongs to
//  4. Upsert the user row keyed by that account's email
//
// Step 4 is what a waiting sign-up conversation is polling for.
//
// Anything the caller got wrong (missing or rejected code, bad state, an
// account Todoist will not describe) is a validation error, which the HTTP
// layer turns into 400. Only a store failure is a 500.
func (s *LinkService) LinkAccount(ctx context.Context, code, state string) (*model.User, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "No code provided")
	}
	if err := s.provider.VerifyState(state); err != nil {
		s.logger.Warn("rejected OAuth state", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("state", "Invalid state")
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("code exchange failed", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("code", "Authorization code was rejected")
	}

	identity, err := s.todoist.Identity(ctx, token)
	if err != nil {
		s.logger.Error("fetching todoist identity failed", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("code", "Could not read Todoist account")
	}
	if identity.ID == "" || identity.Email == "" {
		return nil, apperror.ValidationFailed("code", "Todoist account has no id or email")
	}

	user := &model.User{
		Email:        identity.Email,
		TodoistID:    string(identity.ID),
		TodoistToken: token,
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/link: upserting user %s: %w", identity.Email, err)
	}

	s.logger.Info("todoist account linked",
		slog.String("user_id", user.ID),
		slog.String("todoist_id", user.TodoistID),
		slog.Bool("discord_bound", user.HasDiscord()),
	)
	return user, nil
}

// HandleTaskCompleted clears the shame label from a task the user just completed.
//
// An unknown Todoist user is a validation error (the webhook answers 400).
// Everything after the lookup is best effort: failures are logged and nil is
// returned so Todoist does not keep redelivering an event that only failed
// on our side.
func (s *LinkService) HandleTaskCompleted(ctx context.Context, todoistUserID, taskID string) error {
	if todoistUserID == "" || taskID == "" {
		return apperror.ValidationFailed("event_data", "event_data.id and event_data.user_id are required")
	}

	user, err := s.users.GetUserByTodoistID(ctx, todoistUserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("user_id", "Unknown Todoist user")
		}
		return fmt.Errorf("service/link: looking up todoist user %s: %w", todoistUserID, err)
	}

	removed, err := s.todoist.RemoveLabel(ctx, user.TodoistToken, taskID, todoist.ShameLabel)
	if err != nil {
		s.logger.Error("clearing shame label failed",
			slog.String("user_id", user.ID),
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if removed {
		s.logger.Info("shame label cleared", slog.String("user_id", user.ID), slog.String("task_id", taskID))
	}
	return nil
}
