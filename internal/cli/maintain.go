package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/feeddb"
)

// CheckpointResult is the payload of `feedstore checkpoint`.
type CheckpointResult struct {
	Seq         int64 `json:"seq"`
	LogEntries  int64 `json:"log_entries"`
	Checkpoints int64 `json:"checkpoints"`
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot the store and compact the command log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, runCheckpoint)
		},
	}
}

func runCheckpoint(ctx context.Context, s *session) error {
	if err := s.db.Checkpoint(ctx); err != nil {
		return WrapExitError(ExitCommandError, "checkpoint failed", err)
	}
	counts, err := s.db.LogCounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count log entries", err)
	}
	res := CheckpointResult{Seq: s.db.LastSeq(), LogEntries: counts.Entries, Checkpoints: counts.Checkpoints}
	return s.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "checkpoint written at seq %d (%d log entries remain)\n", res.Seq, res.LogEntries)
	})
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the log and compare it with the opened state",
		Long: `Replay the durable log into a fresh snapshot, without modifying it, and
compare the result with the state the database opened with.

Exit codes:
  0 - Log and state agree
  1 - Log and state differ, or the log has a damaged tail
  2 - Command error (database not found, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, runVerify)
		},
	}
}

func runVerify(ctx context.Context, s *session) error {
	v, err := s.db.Verify(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "verify failed", err)
	}
	text := func(w io.Writer) {
		fmt.Fprintf(w, "seq\t%d\n", v.LiveSeq)
		fmt.Fprintf(w, "from checkpoint\t%v\n", v.Replay.FromCheckpoint)
		fmt.Fprintf(w, "replayed\t%d\n", v.Replay.Replayed)
		fmt.Fprintf(w, "discarded\t%d\n", v.Replay.Discarded)
		fmt.Fprintf(w, "records\t%d categories, %d feeds, %d items\n", v.Stats.Categories, v.Stats.Feeds, v.Stats.Items)
		if v.Consistent {
			fmt.Fprintln(w, "✓ log and state agree")
		}
	}
	if !v.Consistent {
		if err := s.out.Failure(CodeInconsistent, "log replay does not match the live state", v, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "verification failed")
	}
	return s.out.Success(v, text)
}

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every record and the whole command log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to wipe without --yes")
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.db.Wipe(ctx); err != nil {
					return WrapExitError(ExitCommandError, "wipe failed", err)
				}
				return s.out.Success(feeddb.Stats{}, func(w io.Writer) {
					fmt.Fprintln(w, "store wiped")
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	return cmd
}
