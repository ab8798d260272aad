package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/model"
)

func TestGetOrCreateScore(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com", "100")

	s, err := db.GetOrCreateScore(context.Background(), user)
	if err != nil {
		t.Fatalf("GetOrCreateScore() error = %v", err)
	}
	if s.UserID != user.ID || s.Streak != 0 {
		t.Errorf("new score = %+v, want zero streak for %s", s, user.ID)
	}

	s.RecordCompletion()
	s.RecordCompletion()
	if err := db.CommitScores(context.Background(), []*model.Score{s}); err != nil {
		t.Fatalf("CommitScores() error = %v", err)
	}

	again, err := db.GetOrCreateScore(context.Background(), user)
	if err != nil {
		t.Fatalf("GetOrCreateScore() second error = %v", err)
	}
	if again.Streak != 2 {
		t.Errorf("Streak = %d, want 2 (existing score must not be reset)", again.Streak)
	}
}

func TestGetOrCreateScore_RequiresUser(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetOrCreateScore(context.Background(), &model.User{})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestCommitScores_AllOrNothing(t *testing.T) {
	db := newTestDB(t)
	a := createTestUser(t, db, "a@example.com", "100")

	sa, err := db.GetOrCreateScore(context.Background(), a)
	if err != nil {
		t.Fatalf("GetOrCreateScore() error = %v", err)
	}
	sa.Streak = 5

	// The second score points at a user that does not exist, so the foreign
	// key rejects it and the whole batch must roll back.
	orphan := &model.Score{UserID: "missing", Streak: 1}
	if err := db.CommitScores(context.Background(), []*model.Score{sa, orphan}); err == nil {
		t.Fatal("CommitScores() should fail for an orphan score")
	}

	reread, err := db.GetOrCreateScore(context.Background(), a)
	if err != nil {
		t.Fatalf("GetOrCreateScore() error = %v", err)
	}
	if reread.Streak != 0 {
		t.Errorf("Streak = %d, want 0 after rolled back batch", reread.Streak)
	}
}

func TestCommitScores_Empty(t *testing.T) {
	db := newTestDB(t)
	if err := db.CommitScores(context.Background(), nil); err != nil {
		t.Errorf("CommitScores(nil) error = %v", err)
	}
}
