// Package repotest provides an in-memory repository.Store for tests.
//
// It mirrors the SQLite store's semantics (email normalisation, bind rules,
// NotFound errors) without a database, and lets a test inject failures.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/model"
	"github.com/sakif/shamebot/internal/repository"
)

// Store is an in-memory repository.Store.
type Store struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by email
	scores map[string]model.Score // keyed by user id
	nextID int

	// Set to a non-nil error to simulate a database failure.
	UpsertErr error
	ListErr   error
	CommitErr error

	// Counters for assertions.
	Upserts int
	Binds   int
	Commits int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  map[string]*model.User{},
		scores: map[string]model.Score{},
	}
}

// AddUser inserts a user directly, optionally already bound to discordID.
func (s *Store) AddUser(email, todoistID, token, discordID string) *model.User {
	u := &model.User{Email: email, TodoistID: todoistID, TodoistToken: token}
	if err := s.UpsertUser(context.Background(), u); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Upserts-- // seeding is not an upsert under test
	if discordID != "" {
		id := discordID
		s.users[u.Email].DiscordID = &id
		u.DiscordID = &id
	}
	return u
}

// SetStreak seeds a user's score.
func (s *Store) SetStreak(userID string, streak int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[userID] = model.Score{UserID: userID, Streak: streak}
}

// Streak returns the committed streak for a user (0 if none).
func (s *Store) Streak(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[userID].Streak
}

// HasScore reports whether a score row exists for the user.
func (s *Store) HasScore(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scores[userID]
	return ok
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[model.NormalizeEmail(email)]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NotFound("user", email)
}

func (s *Store) GetUserByDiscordID(_ context.Context, discordID string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.HasDiscord() && *u.DiscordID == discordID }, discordID)
}

func (s *Store) GetUserByTodoistID(_ context.Context, todoistID string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return todoistID != "" && u.TodoistID == todoistID }, todoistID)
}

func (s *Store) find(match func(*model.User) bool, key string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (s *Store) UpsertUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.Upserts++

	user.Email = model.NormalizeEmail(user.Email)
	now := time.Now()
	if existing, ok := s.users[user.Email]; ok {
		existing.TodoistID = user.TodoistID
		existing.TodoistToken = user.TodoistToken
		existing.UpdatedAt = now
		*user = *existing
		return nil
	}

	s.nextID++
	user.ID = fmt.Sprintf("user-%03d", s.nextID)
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.users[user.Email] = &cp
	return nil
}

func (s *Store) BindDiscordID(_ context.Context, email, discordID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = model.NormalizeEmail(email)

	u, ok := s.users[email]
	if !ok {
		return false, nil
	}
	if u.HasDiscord() {
		if *u.DiscordID == discordID {
			return true, nil
		}
		return false, apperror.IdentityClaimed(email)
	}
	for _, other := range s.users {
		if other.HasDiscord() && *other.DiscordID == discordID {
			return false, apperror.IdentityClaimed(email)
		}
	}

	id := discordID
	u.DiscordID = &id
	s.Binds++
	return true, nil
}

func (s *Store) GetOrCreateScore(_ context.Context, user *model.User) (*model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scores[user.ID]
	if !ok {
		sc = model.Score{UserID: user.ID}
		s.scores[user.ID] = sc
	}
	return &sc, nil
}

func (s *Store) CommitScores(_ context.Context, scores []*model.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CommitErr != nil {
		return s.CommitErr
	}
	s.Commits++
	for _, sc := range scores {
		s.scores[sc.UserID] = *sc
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
