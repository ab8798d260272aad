package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/shamebot/internal/apperror"
	"github.com/sakif/shamebot/internal/repository"
	"github.com/sakif/shamebot/internal/todoist"
)

// TaskFetcher is the part of todoist.Client ShameService uses.
type TaskFetcher interface {
	FetchTasks(ctx context.Context, token string, filter todoist.Filter) ([]todoist.Task, error)
}

// ShameService answers /shame: which of a member's tasks currently carry the shame label.
type ShameService struct {
	users   repository.UserRepository
	todoist TaskFetcher
	logger  *slog.Logger
}

// NewShameService creates a ShameService.
func NewShameService(users repository.UserRepository, client TaskFetcher, logger *slog.Logger) *ShameService {
	return &ShameService{users: users, todoist: client, logger: logger}
}

// Report returns the lines to post for the member with the given Discord id.
// mention is how the member is addressed in the reply.
func (s *ShameService) Report(ctx context.Context, discordID, mention string) ([]string, error) {
	user, err := s.users.GetUserByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return []string{mention + " is not signed up!"}, nil
		}
		return nil, fmt.Errorf("service/shame: looking up %s: %w", discordID, err)
	}

	tasks, err := s.todoist.FetchTasks(ctx, user.TodoistToken, todoist.LabelFilter(todoist.ShameLabel))
	if err != nil {
		return nil, fmt.Errorf("service/shame: fetching shamed tasks for %s: %w", user.ID, err)
	}

	s.logger.Debug("shame report", slog.String("user_id", user.ID), slog.Int("tasks", len(tasks)))

	if len(tasks) == 0 {
		return []string{mention + " has nothing to be ashamed of!"}, nil
	}

	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, "For shame "+mention+"!")
	for _, t := range tasks {
		lines = append(lines, t.Content)
	}
	return lines, nil
}
