package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/feedstore/internal/state"
	"github.com/roach88/feedstore/internal/store"
)

// Engine is the single-writer transaction engine of the feed store.
//
// Queries run against the committed snapshot, loaded with one atomic read;
// they never take a lock and never observe a half-applied update. Updates
// are serialised by a writer mutex: each computes the next snapshot from
// the current one, appends the command to the durable log, and only then
// publishes the new snapshot.
//
// Thread-safety model:
//   - Query(), View(): safe from any goroutine, never block
//   - Update(), Checkpoint(), Wipe(): safe from any goroutine, serialised
//   - Close(): safe to call more than once
//
// INVARIANTS:
//   - the published snapshot equals the replay of every logged entry
//   - an entry is logged iff its snapshot was (or is about to be) published
//   - log seqs are gap-free and strictly increasing
type Engine struct {
	store *store.Store
	clock *Clock
	txids TxIDGenerator
	now   func() time.Time

	checkpointEvery int
	forceRecover    bool

	mu              sync.Mutex // writer lock
	sinceCheckpoint int

	current atomic.Pointer[state.Snapshot]
	closed  atomic.Bool
	report  Report
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithCheckpointEvery writes a checkpoint automatically after every n
// commits. Zero (the default) disables automatic checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(e *Engine) {
		e.checkpointEvery = n
	}
}

// WithForceRecover lets Open start from whatever survives a damaged log,
// even when that is nothing.
func WithForceRecover() Option {
	return func(e *Engine) {
		e.forceRecover = true
	}
}

// WithTxIDs replaces the UUIDv7 transaction id generator.
func WithTxIDs(g TxIDGenerator) Option {
	return func(e *Engine) {
		e.txids = g
	}
}

// WithNow replaces the wall clock used for commit timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Open recovers the committed state from s and returns an engine ready for
// queries and updates. The engine owns s from here on; Close closes it.
//
// Recovery starts from the latest checkpoint (or an empty snapshot) and
// replays later entries in seq order. A torn tail is truncated with a
// warning. When truncation would discard everything, Open fails with a
// *CorruptLogError unless WithForceRecover was given.
func Open(ctx context.Context, s *store.Store, opts ...Option) (*Engine, Report, error) {
	e := &Engine{
		store: s,
		txids: UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	snap, rep, err := replay(ctx, s, repair, e.forceRecover)
	if err != nil {
		return nil, Report{}, err
	}

	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open engine: %w", err)
	}
	e.clock = NewClockAt(last)
	e.current.Store(snap)
	e.report = rep

	if rep.CheckpointDiscarded {
		// Overwrite the damaged checkpoint so the next open starts clean.
		if err := e.writeCheckpoint(ctx, snap, last); err != nil {
			return nil, Report{}, fmt.Errorf("open engine: %w", err)
		}
	}

	slog.Info("engine recovered",
		"from_checkpoint", rep.FromCheckpoint,
		"checkpoint_seq", rep.CheckpointSeq,
		"replayed", rep.Replayed,
		"discarded", rep.Discarded,
		"last_seq", last,
	)
	return e, rep, nil
}

// Report returns what recovery found when the engine was opened.
func (e *Engine) Report() Report {
	return e.report
}

// View returns the current committed snapshot. The snapshot is immutable;
// it stays valid, and unchanged, for as long as the caller holds it.
func (e *Engine) View() *state.Snapshot {
	return e.current.Load()
}

// Query runs fn against the current committed snapshot.
func (e *Engine) Query(ctx context.Context, fn func(*state.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.closed.Load() {
		return errClosed
	}
	return fn(e.current.Load())
}

// LastSeq returns the seq of the last committed update.
func (e *Engine) LastSeq() int64 {
	return e.clock.Current()
}

// Update applies cmd as one transaction.
//
// On success the command is durable and its effects are visible to every
// query that starts afterwards. On failure nothing changes:
//   - a rejected or panicking computation returns a TxError with ErrCodeAborted
//   - a failed log append returns a TxError with ErrCodeLogWrite
//   - a context cancelled before the writer lock is taken returns ctx.Err()
func (e *Engine) Update(ctx context.Context, cmd state.Command) (state.Result, error) {
	if err := ctx.Err(); err != nil {
		return state.Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return state.Result{}, errClosed
	}
	if err := ctx.Err(); err != nil {
		return state.Result{}, err
	}

	cur := e.current.Load()
	next, res, err := apply(cur, cmd)
	if err != nil {
		return state.Result{}, &TxError{Code: ErrCodeAborted, Kind: cmd.Kind(), Err: err}
	}

	kind, payload, err := state.Encode(cmd)
	if err != nil {
		return state.Result{}, &TxError{Code: ErrCodeAborted, Kind: cmd.Kind(), Err: err}
	}

	entry := store.Entry{
		Seq:         e.clock.Peek(),
		TxID:        e.txids.Generate(),
		Kind:        string(kind),
		Payload:     payload,
		CommittedAt: e.now(),
	}
	if _, err := e.store.Append(ctx, entry); err != nil {
		return state.Result{}, &TxError{Code: ErrCodeLogWrite, Kind: kind, Err: err}
	}
	seq := e.clock.Next()
	e.current.Store(next)

	slog.Debug("update committed", "seq", seq, "kind", kind, "id", res.ID, "created", res.Created)

	e.sinceCheckpoint++
	if e.checkpointEvery > 0 && e.sinceCheckpoint >= e.checkpointEvery {
		if err := e.writeCheckpoint(ctx, next, seq); err != nil {
			// The update is already durable in the log.
			slog.Warn("automatic checkpoint failed", "seq", seq, "error", err)
		}
	}
	return res, nil
}

// apply runs the command's computation, turning a panic into an error.
func apply(s *state.Snapshot, cmd state.Command) (next *state.Snapshot, res state.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, res, err = nil, state.Result{}, fmt.Errorf("panic in %s: %v", cmd.Kind(), r)
		}
	}()
	return cmd.Apply(s)
}

// Checkpoint serialises the committed snapshot and compacts the log
// behind it.
func (e *Engine) Checkpoint(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return errClosed
	}
	return e.writeCheckpoint(ctx, e.current.Load(), e.clock.Current())
}

// writeCheckpoint must be called with the writer lock held (or before the
// engine is shared).
func (e *Engine) writeCheckpoint(ctx context.Context, snap *state.Snapshot, seq int64) error {
	payload, err := state.EncodeDump(snap.Dump())
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	_, err = e.store.WriteCheckpoint(ctx, store.Checkpoint{
		Seq:       seq,
		TxID:      e.txids.Generate(),
		Payload:   payload,
		CreatedAt: e.now(),
	})
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	e.sinceCheckpoint = 0
	slog.Info("checkpoint written", "seq", seq, "bytes", len(payload))
	return nil
}

// Wipe deletes every record and the whole durable log. Irreversible.
func (e *Engine) Wipe(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return errClosed
	}
	if err := e.store.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe: %w", err)
	}
	// The log is empty from here on; the next commit must be seq 1.
	e.clock.Reset(0)
	e.sinceCheckpoint = 0
	e.current.Store(state.Empty())
	slog.Warn("store wiped")

	if err := e.store.Vacuum(ctx); err != nil {
		slog.Warn("vacuum after wipe failed", "error", err)
	}
	return nil
}

// Close stops accepting work and closes the store. Waits for an in-flight
// update to finish.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Swap(true) {
		return nil
	}
	return e.store.Close()
}
