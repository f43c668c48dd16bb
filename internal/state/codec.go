package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/feedstore/internal/model"
)

// DumpVersion is the current checkpoint payload version.
const DumpVersion = 1

// Encode serialises a command for the durable log.
func Encode(cmd Command) (Kind, []byte, error) {
	data, err := marshal(cmd)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", cmd.Kind(), err)
	}
	return cmd.Kind(), data, nil
}

// Decode parses a log payload back into the command that wrote it.
// Unknown kinds and unknown fields are errors, so a damaged entry is never
// replayed as a different command.
func Decode(kind Kind, payload []byte) (Command, error) {
	var cmd Command
	switch kind {
	case KindInsertCategory:
		var c InsertCategory
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	case KindInsertFeed:
		var c InsertFeed
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	case KindInsertItem:
		var c InsertItem
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	case KindRecordFetch:
		var c RecordFetch
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	case KindSetUnsubscribed:
		var c SetUnsubscribed
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	case KindRefreshFeed:
		var c RefreshFeed
		if err := unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		cmd = c
	default:
		return nil, fmt.Errorf("decode: %w %q", ErrUnknownCommand, kind)
	}
	return cmd, nil
}

// Dump is the checkpoint form of a snapshot. Indexes are not stored; they
// are rebuilt from the tables on load.
type Dump struct {
	Version    int              `json:"version"`
	Categories []model.Category `json:"categories"`
	Feeds      []model.Feed     `json:"feeds"`
	Items      []model.Item     `json:"items"`
}

// Dump captures the snapshot's tables in insertion order.
func (s *Snapshot) Dump() Dump {
	return Dump{
		Version:    DumpVersion,
		Categories: s.Categories(),
		Feeds:      s.Feeds(),
		Items:      s.Items(),
	}
}

// EncodeDump serialises a checkpoint payload.
func EncodeDump(d Dump) ([]byte, error) {
	data, err := marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode dump: %w", err)
	}
	return data, nil
}

// Load rebuilds a snapshot from a checkpoint payload.
func Load(payload []byte) (*Snapshot, error) {
	var d Dump
	if err := unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("load dump: %w", err)
	}
	if d.Version != DumpVersion {
		return nil, fmt.Errorf("load dump: unsupported version %d", d.Version)
	}

	s := Empty()
	for _, c := range d.Categories {
		s = s.PutCategory(c.Normalized())
	}
	for _, f := range d.Feeds {
		s = s.PutFeed(f.Normalized())
	}
	for _, it := range d.Items {
		s = s.PutItem(it.Normalized())
	}
	return s.Rebuild(), nil
}

// marshal writes JSON without HTML escaping and without the encoder's
// trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
