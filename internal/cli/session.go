package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/config"
	"github.com/roach88/feedstore/internal/engine"
	"github.com/roach88/feedstore/internal/feeddb"
)

// session is an open database plus the settings it was opened with.
type session struct {
	cfg config.Config
	db  *feeddb.DB
	out *OutputFormatter
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.ForceRecover {
		cfg.ForceRecover = true
	}
	return cfg, nil
}

// openSession loads config and opens the database. Callers must close it.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	slog.Debug("opening database", "path", cfg.Database)
	db, err := feeddb.Open(ctx, feeddb.Config{
		Path:            cfg.Database,
		CheckpointEvery: cfg.CheckpointEvery,
		ForceRecover:    cfg.ForceRecover,
	})
	if err != nil {
		if engine.IsCorruptLog(err) {
			_ = out.Error(CodeCorruptLog, err.Error(), map[string]string{"hint": "rerun with --force-recover to discard the damaged data"})
			return nil, WrapExitError(ExitCommandError, "database log is corrupt", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	rep := db.Recovery()
	slog.Debug("database ready",
		"from_checkpoint", rep.FromCheckpoint,
		"replayed", rep.Replayed,
		"discarded", rep.Discarded)
	return &session{cfg: cfg, db: db, out: out}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// withSession runs fn against an open session.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
