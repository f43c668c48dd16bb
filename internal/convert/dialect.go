package convert

import (
	"errors"
	"fmt"
	"io"

	"github.com/mmcdole/gofeed"
)

// Dialect is the closed set of syndication formats the store ingests.
type Dialect int

const (
	// Atom is RFC 4287.
	Atom Dialect = iota
	// RSS is RSS 0.9x and 2.0.
	RSS
	// RSS1 is RDF Site Summary 1.0.
	RSS1
)

func (d Dialect) String() string {
	switch d {
	case Atom:
		return "atom"
	case RSS:
		return "rss"
	case RSS1:
		return "rss1"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// ErrUnsupportedDialect reports a parsed feed in a format outside Dialect.
var ErrUnsupportedDialect = errors.New("unsupported feed dialect")

// DetectDialect classifies a feed gofeed has parsed.
func DetectDialect(f *gofeed.Feed) (Dialect, error) {
	switch f.FeedType {
	case "atom":
		return Atom, nil
	case "rss":
		if f.FeedVersion == "1.0" {
			return RSS1, nil
		}
		return RSS, nil
	default:
		return 0, fmt.Errorf("%w: %s %s", ErrUnsupportedDialect, f.FeedType, f.FeedVersion)
	}
}

// Parse reads a feed document and classifies it.
func Parse(r io.Reader) (*gofeed.Feed, Dialect, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse feed: %w", err)
	}
	d, err := DetectDialect(parsed)
	if err != nil {
		return nil, 0, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, d, nil
}
