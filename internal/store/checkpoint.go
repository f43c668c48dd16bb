package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Checkpoint is a serialised snapshot covering every entry up to Seq.
type Checkpoint struct {
	Seq       int64
	TxID      string
	Payload   []byte
	Checksum  string
	CreatedAt time.Time
}

// Sum computes the checksum the checkpoint should carry.
func (c Checkpoint) Sum() string {
	return hashWithDomain(DomainCheckpoint, c.TxID, string(c.Payload))
}

// Verify reports ErrChecksum when the stored checksum does not match.
func (c Checkpoint) Verify() error {
	if c.Checksum != c.Sum() {
		return fmt.Errorf("checkpoint %d: %w", c.Seq, ErrChecksum)
	}
	return nil
}

// WriteCheckpoint stores cp and compacts the log behind it in a single
// transaction: entries with seq <= cp.Seq and older checkpoints are
// deleted. Either all of it happens or none of it does.
func (s *Store) WriteCheckpoint(ctx context.Context, cp Checkpoint) (Checkpoint, error) {
	if cp.Seq < 0 {
		return Checkpoint{}, fmt.Errorf("write checkpoint: invalid seq %d", cp.Seq)
	}
	if cp.Payload == nil {
		cp.Payload = []byte{}
	}
	if cp.Checksum == "" {
		cp.Checksum = cp.Sum()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.CreatedAt = cp.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (seq, txid, payload, checksum, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO UPDATE SET
			txid = excluded.txid,
			payload = excluded.payload,
			checksum = excluded.checksum,
			created_at = excluded.created_at
	`,
		cp.Seq,
		cp.TxID,
		cp.Payload,
		cp.Checksum,
		cp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %d: %w", cp.Seq, err)
	}

	if err := compact(ctx, tx, cp.Seq); err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %d: %w", cp.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %d: commit: %w", cp.Seq, err)
	}
	return cp, nil
}

// compact drops log entries and checkpoints made redundant by the
// checkpoint at uptoSeq.
func compact(ctx context.Context, tx *sql.Tx, uptoSeq int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM commands WHERE seq <= ?`, uptoSeq); err != nil {
		return fmt.Errorf("drop entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE seq < ?`, uptoSeq); err != nil {
		return fmt.Errorf("drop checkpoints: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the checkpoint with the highest seq.
// found is false when the store has none.
func (s *Store) LatestCheckpoint(ctx context.Context) (cp Checkpoint, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, txid, payload, checksum, created_at
		FROM checkpoints
		ORDER BY seq DESC
		LIMIT 1
	`)

	var createdAt int64
	err = row.Scan(&cp.Seq, &cp.TxID, &cp.Payload, &cp.Checksum, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("latest checkpoint: %w", err)
	}
	cp.CreatedAt = time.Unix(0, createdAt).UTC()
	return cp, true, nil
}
