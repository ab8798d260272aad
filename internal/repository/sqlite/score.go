package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/model"
)

// GetOrCreateScore returns the user's score row, inserting a zero streak on first use.
func (db *DB) GetOrCreateScore(ctx context.Context, user *model.User) (*model.Score, error) {
	if user == nil || user.ID == "" {
		return nil, apperror.ValidationFailed("user", "user id is required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning score lookup: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT DO NOTHING: an existing streak is never reset here.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scores (user_id, streak, updated_at) VALUES (?, 0, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		user.ID, db.now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("sqlite: creating score for %s: %w", user.ID, err)
	}

	s := &model.Score{}
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id, streak, updated_at FROM scores WHERE user_id = ?`, user.ID,
	).Scan(&s.UserID, &s.Streak, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: reading score for %s: %w", user.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing score lookup: %w", err)
	}
	return s, nil
}

// CommitScores writes all scores in a single transaction. Either every streak
// from the run lands or none does.
func (db *DB) CommitScores(ctx context.Context, scores []*model.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning score commit: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scores (user_id, streak, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET streak = excluded.streak, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing score commit: %w", err)
	}
	defer stmt.Close()

	now := db.now().UTC()
	for _, s := range scores {
		if _, err := stmt.ExecContext(ctx, s.UserID, s.Streak, now); err != nil {
			return fmt.Errorf("sqlite: writing score for %s: %w", s.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing scores: %w", err)
	}
	for _, s := range scores {
		s.UpdatedAt = now
	}
	return nil
}
