// Package repository declares the storage contracts the services depend on.
//
// Services and the readout job receive these interfaces, never the concrete
// SQLite type, so tests can pass in-memory fakes and the store can be swapped
// without touching business logic.
package repository

import (
	"context"

	"github.com/sakif/shamebot/internal/model"
)

// UserRepository persists linked users.
//
// The Get* lookups return an error wrapping apperror.ErrNotFound when no row matches.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (*model.User, error)
	GetUserByTodoistID(ctx context.Context, todoistID string) (*model.User, error)

	// UpsertUser inserts or updates the row keyed by email. An existing
	// Discord binding is preserved.
	UpsertUser(ctx context.Context, user *model.User) error

	// BindDiscordID attaches a Discord account to the user registered under email.
	// It returns false if no such user exists, and an error wrapping
	// apperror.ErrIdentityClaimed if the user is bound to a different account
	// or discordID is already bound to another user. Rebinding the same pair
	// is a successful no-op.
	BindDiscordID(ctx context.Context, email, discordID string) (bool, error)
}

// ScoreRepository persists completion streaks.
type ScoreRepository interface {
	// GetOrCreateScore returns the user's score, creating a zero streak if none exists.
	GetOrCreateScore(ctx context.Context, user *model.User) (*model.Score, error)

	// CommitScores writes every score in one transaction: all or nothing.
	CommitScores(ctx context.Context, scores []*model.Score) error
}

// Store is everything the bot persists.
type Store interface {
	UserRepository
	ScoreRepository
}
