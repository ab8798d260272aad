package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/shamebot/internal/auth"
	"github.com/sakif/shamebot/internal/config"
	"github.com/sakif/shamebot/internal/logging"
	sqliteRepo "github.com/sakif/shamebot/internal/repository/sqlite"
	"github.com/sakif/shamebot/internal/todoist"
)

// app carries what every subcommand starts from: configuration and a logger.
// The heavier pieces are built on demand so connect-url needs neither a
// database nor a Discord token.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	closers []io.Closer
}

// loadApp reads configuration and sets up logging.
func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, logFile, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, os.Stdout)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, closers: []io.Closer{logFile}}, nil
}

// Close releases everything opened through the app, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openStore opens the SQLite store, sealing Todoist tokens when a key is set.
func (a *app) openStore() (*sqliteRepo.DB, error) {
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if dir := filepath.Dir(a.cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	opts := []sqliteRepo.Option{sqliteRepo.WithLogger(a.logger.With(slog.String("component", "store")))}
	if a.cfg.Security.TokenKey != "" {
		sealer, err := auth.NewSealer(a.cfg.Security.TokenKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sqliteRepo.WithTokenSealer(sealer))
	} else {
		a.logger.Warn("security.token_key not set, Todoist tokens are stored unencrypted")
	}

	db, err := sqliteRepo.New(a.cfg.DB.Path, opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	a.logger.Info("database opened", slog.String("path", a.cfg.DB.Path))
	return db, nil
}

// newProvider builds the Todoist OAuth provider, signing state when a secret is set.
func (a *app) newProvider() (*auth.Provider, error) {
	var opts []auth.ProviderOption
	if a.cfg.Security.StateSecret != "" {
		states, err := auth.NewStateService(a.cfg.Security.StateSecret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, auth.WithStates(states))
	} else {
		a.logger.Warn("security.state_secret not set, OAuth state is not verified")
	}

	t := a.cfg.Todoist
	return auth.NewProvider(auth.ProviderConfig{
		ClientID:     t.ClientID,
		ClientSecret: t.ClientSecret,
		RedirectURI:  t.RedirectURI,
		AuthURL:      t.AuthURL,
		TokenURL:     t.TokenURL,
		Scope:        t.Scope,
	}, opts...), nil
}

// newTodoist builds the shared Todoist API client.
func (a *app) newTodoist() (*todoist.Client, error) {
	t := a.cfg.Todoist
	return todoist.New(todoist.Config{
		APIURL:            t.APIURL,
		SyncURL:           t.SyncURL,
		Timeout:           t.RequestTimeout,
		RequestsPerSecond: t.RequestsPerSecond,
		Burst:             t.Burst,
	}, a.logger.With(slog.String("component", "todoist")))
}
