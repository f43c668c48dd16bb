package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry builds an entry with a deterministic txid and payload.
func createTestEntry(seq int64) Entry {
	return Entry{
		Seq:         seq,
		TxID:        fmt.Sprintf("tx-%d", seq),
		Kind:        "insert_category",
		Payload:     []byte(fmt.Sprintf(`{"category":{"id":0,"name":"c%d"}}`, seq)),
		CommittedAt: time.Date(2024, 1, 1, 0, 0, int(seq), 0, time.UTC),
	}
}

// appendEntries appends one test entry per seq.
func appendEntries(t *testing.T, s *Store, seqs ...int64) {
	t.Helper()
	for _, seq := range seqs {
		if _, err := s.Append(context.Background(), createTestEntry(seq)); err != nil {
			t.Fatalf("Append(%d) failed: %v", seq, err)
		}
	}
}
