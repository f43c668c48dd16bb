package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Hash domains. Bump the version suffix when the hashed layout changes.
const (
	DomainEntry      = "feedstore/entry/v1"
	DomainCheckpoint = "feedstore/checkpoint/v1"
)

// ErrChecksum reports a row whose checksum does not match its content.
var ErrChecksum = errors.New("checksum mismatch")

// Entry is one committed command in the log.
type Entry struct {
	Seq         int64
	TxID        string
	Kind        string
	Payload     []byte
	Checksum    string
	CommittedAt time.Time
}

// Sum computes the checksum the entry should carry.
func (e Entry) Sum() string {
	return hashWithDomain(DomainEntry, e.TxID, e.Kind, string(e.Payload))
}

// Verify reports ErrChecksum when the stored checksum does not match.
func (e Entry) Verify() error {
	if e.Checksum != e.Sum() {
		return fmt.Errorf("entry %d: %w", e.Seq, ErrChecksum)
	}
	return nil
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain 0x00 part1 0x00 part2 ...)
func hashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Append writes one entry in its own transaction and returns it as stored.
// The checksum is computed here when the caller leaves it empty.
//
// Uses ON CONFLICT(txid) DO NOTHING so a retried append of the same
// transaction is a no-op. A different transaction reusing a seq fails.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.Seq <= 0 {
		return Entry{}, fmt.Errorf("append: invalid seq %d", e.Seq)
	}
	if e.TxID == "" || e.Kind == "" {
		return Entry{}, fmt.Errorf("append %d: txid and kind are required", e.Seq)
	}
	if e.Payload == nil {
		e.Payload = []byte{}
	}
	if e.Checksum == "" {
		e.Checksum = e.Sum()
	}
	if e.CommittedAt.IsZero() {
		e.CommittedAt = time.Now()
	}
	e.CommittedAt = e.CommittedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (seq, txid, kind, payload, checksum, committed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid) DO NOTHING
	`,
		e.Seq,
		e.TxID,
		e.Kind,
		e.Payload,
		e.Checksum,
		e.CommittedAt.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append %d: %w", e.Seq, err)
	}
	return e, nil
}

// Entries returns every entry with seq > afterSeq in seq order.
// Returns an empty slice (not nil) when there are none.
func (s *Store) Entries(ctx context.Context, afterSeq int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, txid, kind, payload, checksum, committed_at
		FROM commands
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// TruncateFrom discards entry seq and every entry after it. Returns the
// number of entries removed.
func (s *Store) TruncateFrom(ctx context.Context, seq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE seq >= ?`, seq)
	if err != nil {
		return 0, fmt.Errorf("truncate from %d: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("truncate from %d: rows affected: %w", seq, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var committedAt int64
	if err := row.Scan(&e.Seq, &e.TxID, &e.Kind, &e.Payload, &e.Checksum, &committedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.CommittedAt = time.Unix(0, committedAt).UTC()
	return e, nil
}
