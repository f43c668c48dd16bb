package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database: /var/lib/feedstore/feeds.db
checkpoint_every: 10
fetch:
  timeout: 5s
  concurrency: 8
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/feedstore/feeds.db", cfg.Database)
	assert.Equal(t, 10, cfg.CheckpointEvery)
	assert.False(t, cfg.ForceRecover)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout.Std())
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, Default().Fetch.UserAgent, cfg.Fetch.UserAgent, "unset fields keep defaults")
	assert.Equal(t, Default().Fetch.PerHostRate, cfg.Fetch.PerHostRate)
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "databse: x.db\n"},
		{"unknown nested field", "fetch:\n  retries: 3\n"},
		{"negative checkpoint interval", "checkpoint_every: -1\n"},
		{"zero concurrency", "fetch:\n  concurrency: 0\n"},
		{"bad duration", "fetch:\n  timeout: soon\n"},
		{"empty database", "database: \"\"\n"},
		{"wrong type", "force_recover: maybe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unterminated\n"))
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestValidationError_ListsEveryProblem(t *testing.T) {
	err := Validate([]byte("checkpoint_every: -1\nfetch:\n  concurrency: 100\n"))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Problems), 2)
	assert.Contains(t, err.Error(), "checkpoint_every")
	assert.Contains(t, err.Error(), "concurrency")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("force_recover: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.ForceRecover)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFetchOptions(t *testing.T) {
	opts := Default().FetchOptions()
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.InDelta(t, 2.0, opts.PerHostRate, 1e-9)
	assert.NotEmpty(t, opts.UserAgent)
}
