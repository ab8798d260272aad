package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/model"
)

const userColumns = `id, email, todoist_id, todoist_token, discord_id, created_at, updated_at`

// errUnsealable marks a row whose stored token cannot be decrypted, usually
// after security.token_key was rotated.
var errUnsealable = errors.New("token cannot be opened")

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanUser(row scanner) (*model.User, error) {
	var (
		u       model.User
		sealed  string
		discord sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.TodoistID, &sealed, &discord, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if discord.Valid {
		u.DiscordID = &discord.String
	}

	token, err := db.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening token for user %s: %w: %w", u.ID, errUnsealable, err)
	}
	u.TodoistToken = token
	return &u, nil
}

// ListUsers returns every user, oldest first.
//
// A row whose token cannot be opened is logged and left out: one member with
// an unreadable token must not stop the readout for everyone else. That
// member needs to authorize again, which overwrites the token.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	// Non-nil so callers can range or JSON-encode without a nil check.
	users := make([]model.User, 0)
	for rows.Next() {
		u, err := db.scanUser(rows)
		if errors.Is(err, errUnsealable) {
			db.logger.Error("skipping user with unreadable token", slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// GetUserByEmail looks a user up by (case-insensitive) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return db.getUser(ctx, "email", email, "user")
}

// GetUserByDiscordID looks a user up by bound Discord account.
func (db *DB) GetUserByDiscordID(ctx context.Context, discordID string) (*model.User, error) {
	return db.getUser(ctx, "discord_id", discordID, "user with discord account")
}

// GetUserByTodoistID looks a user up by Todoist account id.
func (db *DB) GetUserByTodoistID(ctx context.Context, todoistID string) (*model.User, error) {
	if todoistID == "" {
		return nil, apperror.NotFound("user with todoist account", todoistID)
	}
	return db.getUser(ctx, "todoist_id", todoistID, "user with todoist account")
}

// getUser fetches the single row where column = value. column is always a
// constant from this file, never caller input.
func (db *DB) getUser(ctx context.Context, column, value, resource string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ? LIMIT 1`, value)

	u, err := db.scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(resource, value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return u, nil
}

// UpsertUser inserts or updates the user keyed by email.
//
// On update only the Todoist credentials change. The internal ID, CreatedAt
// and any Discord binding are kept and copied back into user, so after the
// call user mirrors the stored row.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	user.Email = model.NormalizeEmail(user.Email)
	if user.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	sealed, err := db.sealer.Seal(user.TodoistToken)
	if err != nil {
		return fmt.Errorf("sqlite: sealing token: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	defer tx.Rollback()

	now := db.now().UTC()

	var (
		existingID string
		createdAt  = now
		discord    sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at, discord_id FROM users WHERE email = ?`, user.Email,
	).Scan(&existingID, &createdAt, &discord)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user %s: %w", user.Email, err)
	}

	if existingID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET todoist_id = ?, todoist_token = ?, updated_at = ? WHERE id = ?`,
			user.TodoistID, sealed, now, existingID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
		}
		user.ID = existingID
		user.DiscordID = nil
		if discord.Valid {
			user.DiscordID = &discord.String
		}
	} else {
		user.ID = xid.New().String()
		var bind any
		if user.HasDiscord() {
			bind = *user.DiscordID
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Email, user.TodoistID, sealed, bind, now, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upsert: %w", err)
	}
	user.CreatedAt = createdAt
	user.UpdatedAt = now
	return nil
}

// BindDiscordID attaches discordID to the user registered under email.
//
// The check and the write happen in one transaction, and discord_id carries a
// UNIQUE constraint, so two concurrent sign-ups can never both claim the same
// row or the same Discord account.
func (db *DB) BindDiscordID(ctx context.Context, email, discordID string) (bool, error) {
	email = model.NormalizeEmail(email)
	if discordID == "" {
		return false, apperror.ValidationFailed("discord_id", "discord id is required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning bind: %w", err)
	}
	defer tx.Rollback()

	var (
		id      string
		current sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, discord_id FROM users WHERE email = ?`, email,
	).Scan(&id, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: looking up user %s: %w", email, err)
	}

	if current.Valid && current.String != "" {
		if current.String == discordID {
			return true, nil
		}
		return false, apperror.IdentityClaimed(email)
	}

	var other string
	err = tx.QueryRowContext(ctx,
		`SELECT email FROM users WHERE discord_id = ?`, discordID,
	).Scan(&other)
	if err == nil {
		return false, apperror.IdentityClaimed(email)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("sqlite: checking discord id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET discord_id = ?, updated_at = ? WHERE id = ?`,
		discordID, db.now().UTC(), id,
	); err != nil {
		return false, fmt.Errorf("sqlite: binding discord id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing bind: %w", err)
	}
	return true, nil
}
