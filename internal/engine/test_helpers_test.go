package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
	"github.com/roach88/feedstore/internal/state"
	"github.com/roach88/feedstore/internal/store"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// setupTestStore opens a store in a temp directory.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// openEngine opens the store at path and recovers an engine from it.
func openEngine(t *testing.T, path string, opts ...Option) (*Engine, Report) {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	e, rep, err := Open(context.Background(), s, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, rep
}

// seedCommands returns the commands for one category, one feed in it and
// n items of that feed.
func seedCommands(n int) []state.Command {
	catID := ident.CategoryID("Tech")
	feedID := ident.FeedID("http://a.example/feed")
	cmds := []state.Command{
		state.InsertCategory{Category: model.Category{Name: "Tech"}},
		state.InsertFeed{Feed: model.Feed{URL: "http://a.example/feed", Title: "A", CategoryID: model.IDPtr(catID)}},
	}
	for i := 0; i < n; i++ {
		cmds = append(cmds, state.InsertItem{Item: model.Item{
			FeedID:    feedID,
			URL:       fmt.Sprintf("http://a.example/%d", i),
			Title:     fmt.Sprintf("post %d", i),
			Content:   model.Text("body"),
			UpdatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}})
	}
	return cmds
}

// mustUpdate applies every command and fails the test on the first error.
func mustUpdate(t *testing.T, e *Engine, cmds ...state.Command) {
	t.Helper()
	for _, cmd := range cmds {
		_, err := e.Update(context.Background(), cmd)
		require.NoError(t, err)
	}
}

// panicCommand blows up during computation.
type panicCommand struct{}

func (panicCommand) Kind() state.Kind { return "panic" }

func (panicCommand) Apply(*state.Snapshot) (*state.Snapshot, state.Result, error) {
	panic("boom")
}

// fixedGenerator hands out predetermined txids and panics once they run
// out, so a test that commits more than it planned fails loudly.
type fixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

func newFixedGenerator(tokens ...string) *fixedGenerator {
	return &fixedGenerator{tokens: tokens}
}

func (g *fixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("fixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
