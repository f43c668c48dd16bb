// Package config loads the feedstore configuration file.
//
// The file is YAML. Before it is decoded it is checked against an embedded
// CUE schema, so typos and out-of-range values are reported together with
// their paths instead of being silently ignored.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/feedstore/internal/fetch"
)

//go:embed schema.cue
var schemaSource string

// DefaultDatabase is the database path used when none is configured.
const DefaultDatabase = "feedstore.db"

// DefaultCheckpointEvery is how many commits pass between automatic
// checkpoints.
const DefaultCheckpointEvery = 256

// Config is the full set of settings.
type Config struct {
	Database        string `yaml:"database"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	ForceRecover    bool   `yaml:"force_recover"`
	Fetch           Fetch  `yaml:"fetch"`
}

// Fetch configures the refresher.
type Fetch struct {
	Timeout     Duration `yaml:"timeout"`
	PerHostRate float64  `yaml:"per_host_rate"`
	Concurrency int      `yaml:"concurrency"`
	UserAgent   string   `yaml:"user_agent"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:        DefaultDatabase,
		CheckpointEvery: DefaultCheckpointEvery,
		Fetch: Fetch{
			Timeout:     Duration(fetch.DefaultTimeout),
			PerHostRate: fetch.DefaultPerHostRate,
			Concurrency: fetch.DefaultConcurrency,
			UserAgent:   fetch.DefaultUserAgent,
		},
	}
}

// FetchOptions converts the fetch settings for fetch.NewFetcher.
func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:     c.Fetch.Timeout.Std(),
		PerHostRate: c.Fetch.PerHostRate,
		UserAgent:   c.Fetch.UserAgent,
	}
}

// ValidationError lists every schema violation in a configuration file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	if err := Validate(data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks a YAML document against the embedded schema.
func Validate(data []byte) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Problems: problems(err)}
	}
	return nil
}

func problems(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if path := strings.Join(e.Path(), "."); path != "" && !strings.HasPrefix(msg, path) {
			msg = path + ": " + msg
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

// IsValidation reports whether err came from schema validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
