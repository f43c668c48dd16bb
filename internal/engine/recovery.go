package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/feedstore/internal/state"
	"github.com/roach88/feedstore/internal/store"
)

// Report describes what recovery found in the log.
type Report struct {
	// FromCheckpoint is true when replay started from a checkpoint.
	FromCheckpoint bool `json:"from_checkpoint"`

	// CheckpointSeq is the seq the checkpoint covers (0 without one).
	CheckpointSeq int64 `json:"checkpoint_seq"`

	// Replayed counts log entries applied after the checkpoint.
	Replayed int `json:"replayed"`

	// Discarded counts torn or unreadable entries dropped from the tail.
	Discarded int `json:"discarded"`

	// LastSeq is the seq of the last committed update that survived.
	LastSeq int64 `json:"last_seq"`

	// CheckpointDiscarded is true when a damaged checkpoint was ignored
	// under forced recovery.
	CheckpointDiscarded bool `json:"checkpoint_discarded,omitempty"`
}

// replayMode selects what recovery may do to the log.
type replayMode int

const (
	// readOnly reports damage but never modifies the log.
	readOnly replayMode = iota
	// repair truncates the damaged tail.
	repair
)

// Replay rebuilds the committed snapshot from s without modifying it.
// Damage is reported through Report.Discarded; a log that would lose
// everything returns a CorruptLogError.
func Replay(ctx context.Context, s *store.Store) (*state.Snapshot, Report, error) {
	return replay(ctx, s, readOnly, false)
}

// replay loads the latest checkpoint (or starts empty) and applies every
// later entry in seq order. The first entry that is out of sequence, fails
// its checksum, cannot be decoded, or does not apply ends the replay; in
// repair mode it and everything after it are deleted.
func replay(ctx context.Context, s *store.Store, mode replayMode, force bool) (*state.Snapshot, Report, error) {
	var rep Report
	snap := state.Empty()

	cp, found, err := s.LatestCheckpoint(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("recover: %w", err)
	}
	if found {
		loaded, err := loadCheckpoint(cp)
		switch {
		case err == nil:
			snap = loaded
			rep.FromCheckpoint = true
			rep.CheckpointSeq = cp.Seq
			rep.LastSeq = cp.Seq
		case !force:
			return nil, Report{}, &CorruptLogError{Seq: cp.Seq, Err: err}
		default:
			slog.Warn("discarding damaged checkpoint", "seq", cp.Seq, "error", err)
			rep.CheckpointDiscarded = true
		}
	}

	entries, err := s.Entries(ctx, rep.CheckpointSeq)
	if err != nil {
		return nil, Report{}, fmt.Errorf("recover: %w", err)
	}

	for i, e := range entries {
		next, err := replayEntry(snap, e, rep.LastSeq+1)
		if err == nil {
			snap = next
			rep.Replayed++
			rep.LastSeq = e.Seq
			continue
		}

		if i == 0 && !rep.FromCheckpoint && !force {
			return nil, Report{}, &CorruptLogError{Seq: e.Seq, Err: err}
		}

		rep.Discarded = len(entries) - i
		slog.Warn("discarding torn log tail",
			"seq", e.Seq,
			"discarded", rep.Discarded,
			"error", err,
		)
		if mode == repair {
			if _, err := s.TruncateFrom(ctx, e.Seq); err != nil {
				return nil, Report{}, fmt.Errorf("recover: %w", err)
			}
		}
		break
	}

	return snap, rep, nil
}

func loadCheckpoint(cp store.Checkpoint) (*state.Snapshot, error) {
	if err := cp.Verify(); err != nil {
		return nil, err
	}
	return state.Load(cp.Payload)
}

// replayEntry verifies one entry and applies it. wantSeq is the seq the
// entry must carry for the log to be gap-free.
func replayEntry(snap *state.Snapshot, e store.Entry, wantSeq int64) (*state.Snapshot, error) {
	if e.Seq != wantSeq {
		return nil, fmt.Errorf("entry %d: expected seq %d", e.Seq, wantSeq)
	}
	if err := e.Verify(); err != nil {
		return nil, err
	}
	cmd, err := state.Decode(state.Kind(e.Kind), e.Payload)
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
	}
	next, _, err := apply(snap, cmd)
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
	}
	return next, nil
}
