package model

import (
	"encoding/json"
	"fmt"
)

// ContentKind is the closed set of payload shapes an item body can take.
type ContentKind int

const (
	// ContentText is plain text.
	ContentText ContentKind = iota
	// ContentHTML is escaped or raw HTML markup.
	ContentHTML
	// ContentXHTML is an inline XHTML fragment.
	ContentXHTML
)

// String returns the wire name of the kind.
func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentHTML:
		return "html"
	case ContentXHTML:
		return "xhtml"
	default:
		return "unknown"
	}
}

// ParseContentKind maps a wire name back to its kind.
func ParseContentKind(s string) (ContentKind, error) {
	switch s {
	case "text", "":
		return ContentText, nil
	case "html":
		return ContentHTML, nil
	case "xhtml":
		return ContentXHTML, nil
	default:
		return 0, fmt.Errorf("unknown content kind %q", s)
	}
}

// Content is a tagged body. The store carries it opaquely.
type Content struct {
	Kind ContentKind
	Body string
}

// Text builds a plain text body.
func Text(body string) Content { return Content{Kind: ContentText, Body: body} }

// HTML builds an HTML body.
func HTML(body string) Content { return Content{Kind: ContentHTML, Body: body} }

// XHTML builds an XHTML body.
func XHTML(body string) Content { return Content{Kind: ContentXHTML, Body: body} }

type contentJSON struct {
	Kind string `json:"kind"`
	Body string `json:"body"`
}

// MarshalJSON encodes content as {"kind":"html","body":"..."}.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Kind < ContentText || c.Kind > ContentXHTML {
		return nil, fmt.Errorf("marshal content: invalid kind %d", c.Kind)
	}
	return json.Marshal(contentJSON{Kind: c.Kind.String(), Body: c.Body})
}

// UnmarshalJSON decodes the form written by MarshalJSON. Unknown kinds are
// rejected.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw contentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal content: %w", err)
	}
	kind, err := ParseContentKind(raw.Kind)
	if err != nil {
		return fmt.Errorf("unmarshal content: %w", err)
	}
	c.Kind = kind
	c.Body = raw.Body
	return nil
}
