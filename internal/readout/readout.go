// Package readout is the daily aggregation job: for every linked member it
// fetches the tasks that are due, shames the ones still open, updates the
// completion streak and posts the result to the configured channel.
//
// ONE RUN:
//
//	ResolveChannel ──missing──▶ abort (nothing sent, nothing stored)
//	      │
//	ListUsers ─▶ per member: FetchTasks ─▶ streak + label + report lines
//	      │
//	CommitScores (one transaction)
//	      │
//	Paginate + Send ─▶ discussion prompt ─▶ CreateThread
//
// A member whose tasks cannot be fetched gets a short notice in the report
// and keeps yesterday's streak. Label failures never affect the streak.
package readout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/shamebot/internal/chat"
	"github.com/sakif/shamebot/internal/model"
	"github.com/sakif/shamebot/internal/repository"
	"github.com/sakif/shamebot/internal/todoist"
)

// Fixed report text.
const (
	Header       = "**Daily Task Readout**"
	ThreadPrompt = "Discuss Task Completion in following Thread:"
	threadPrefix = "Daily Task Thread "
)

// Tasks is the part of todoist.Client the job uses.
type Tasks interface {
	FetchTasks(ctx context.Context, token string, filter todoist.Filter) ([]todoist.Task, error)
	LabelTasks(ctx context.Context, token string, tasks []todoist.Task, name string) int
}

// Report summarises one run.
type Report struct {
	Lines     []string
	Messages  int
	Completed int
	Shamed    int
	Failed    int
	Skipped   int
}

// Job runs the daily readout.
type Job struct {
	chat      chat.Surface
	store     repository.Store
	tasks     Tasks
	channelID string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithClock overrides the clock used to name the discussion thread.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// NewJob creates a Job posting to channelID.
func NewJob(surface chat.Surface, store repository.Store, tasks Tasks, channelID string, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		chat:      surface,
		store:     store,
		tasks:     tasks,
		channelID: channelID,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs one readout.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	if j.channelID == "" {
		return nil, errors.New("readout: no channel configured")
	}
	if err := j.chat.ResolveChannel(ctx, j.channelID); err != nil {
		j.logger.Error("readout channel unavailable", slog.String("channel_id", j.channelID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("readout: resolving channel: %w", err)
	}

	users, err := j.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("readout: listing users: %w", err)
	}

	j.logger.Info("readout started", slog.String("channel_id", j.channelID), slog.Int("users", len(users)))

	report := &Report{Lines: []string{Header}}
	var scores []*model.Score

	for i := range users {
		user := &users[i]
		if !user.HasDiscord() {
			report.Skipped++
			continue
		}
		if score := j.process(ctx, user, report); score != nil {
			scores = append(scores, score)
		}
	}

	// WHY COMMIT BEFORE POSTING?
	// The streaks printed in the report must be the ones stored. If the commit
	// fails the report would be lying, so nothing is posted.
	if len(scores) > 0 {
		if err := j.store.CommitScores(ctx, scores); err != nil {
			return nil, fmt.Errorf("readout: committing scores: %w", err)
		}
	}

	if err := j.publish(ctx, report); err != nil {
		return report, err
	}

	j.logger.Info("readout finished",
		slog.Int("completed", report.Completed),
		slog.Int("shamed", report.Shamed),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Int("messages", report.Messages),
	)
	return report, nil
}

// process handles one member and returns the score to commit, or nil when
// the member's completion status could not be determined.
func (j *Job) process(ctx context.Context, user *model.User, report *Report) *model.Score {
	logger := j.logger.With(slog.String("user_id", user.ID))
	mention := user.Mention()

	tasks, err := j.tasks.FetchTasks(ctx, user.TodoistToken, todoist.DailyFilter())
	if err != nil {
		logger.Error("fetching tasks failed", slog.String("error", err.Error()))
		report.Failed++
		report.Lines = append(report.Lines, mention+" could not fetch tasks")
		return nil
	}

	score, err := j.store.GetOrCreateScore(ctx, user)
	if err != nil {
		logger.Error("loading score failed", slog.String("error", err.Error()))
		report.Failed++
		report.Lines = append(report.Lines, mention+" could not fetch tasks")
		return nil
	}

	if len(tasks) == 0 {
		score.RecordCompletion()
		report.Completed++
		report.Lines = append(report.Lines, fmt.Sprintf("%s Completed all tasks | Streak: %d", mention, score.Streak))
		logger.Debug("all tasks completed", slog.Int("streak", score.Streak))
		return score
	}

	score.RecordShame()
	report.Shamed++

	labelled := j.tasks.LabelTasks(ctx, user.TodoistToken, tasks, todoist.ShameLabel)
	logger.Info("tasks shamed", slog.Int("tasks", len(tasks)), slog.Int("labelled", labelled))

	report.Lines = append(report.Lines, fmt.Sprintf("*Tasks for %s* | Streak: %d\n```\n%s\n```",
		mention, score.Streak, RenderTable(tasks)))
	return score
}

// publish posts the report and opens the discussion thread.
func (j *Job) publish(ctx context.Context, report *Report) error {
	for _, page := range chat.Paginate(report.Lines, chat.MessageLimit) {
		if _, err := j.chat.Send(ctx, j.channelID, page); err != nil {
			return fmt.Errorf("readout: posting report: %w", err)
		}
		report.Messages++
	}

	anchor, err := j.chat.Send(ctx, j.channelID, ThreadPrompt)
	if err != nil {
		return fmt.Errorf("readout: posting thread prompt: %w", err)
	}
	if err := j.chat.CreateThread(ctx, anchor, ThreadName(j.now())); err != nil {
		return fmt.Errorf("readout: creating thread: %w", err)
	}
	return nil
}

// ThreadName names the discussion thread for the UTC day containing t.
func ThreadName(t time.Time) string {
	return threadPrefix + t.UTC().Format("2006-01-02")
}
