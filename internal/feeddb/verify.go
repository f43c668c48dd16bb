package feeddb

import (
	"context"
	"fmt"

	"github.com/roach88/feedstore/internal/engine"
)

// Verification is the outcome of replaying the log next to the live state.
type Verification struct {
	// Consistent is true when the replayed snapshot equals the live one.
	Consistent bool `json:"consistent"`

	// LiveSeq is the last committed seq of the running engine.
	LiveSeq int64 `json:"live_seq"`

	// Replay describes the read-only replay.
	Replay engine.Report `json:"replay"`

	Stats Stats `json:"stats"`
}

// Verify replays the durable log into a fresh snapshot, without modifying
// the log, and compares it with the live state. Run it while no updates
// are in flight; a commit landing mid-replay shows up as inconsistent.
func (db *DB) Verify(ctx context.Context) (Verification, error) {
	live := db.eng.View()
	liveSeq := db.eng.LastSeq()

	replayed, rep, err := engine.Replay(ctx, db.store)
	if err != nil {
		return Verification{}, fmt.Errorf("verify: %w", err)
	}

	return Verification{
		Consistent: rep.Discarded == 0 && live.Equal(replayed),
		LiveSeq:    liveSeq,
		Replay:     rep,
		Stats: Stats{
			Categories: live.CategoryCount(),
			Feeds:      live.FeedCount(),
			Items:      live.ItemCount(),
		},
	}, nil
}
