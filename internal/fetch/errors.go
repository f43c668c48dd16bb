package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	// KindOther is any failure not covered below.
	KindOther Kind = iota
	// KindInvalidURL means the feed URL cannot be requested at all.
	KindInvalidURL
	// KindHTTPStatus means the server answered with a non-2xx status.
	KindHTTPStatus
	// KindConnection means the request never got a response.
	KindConnection
	// KindTimeout means the request or the context deadline expired.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid url"
	case KindHTTPStatus:
		return "http status"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error is a classified fetch failure. Its message is what the refresher
// records on the feed.
type Error struct {
	Kind   Kind
	URL    string
	Status int // set for KindHTTPStatus
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("HTTP %s", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindOther when err is not
// a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}

// classify maps a transport error from http.Client.Do.
func classify(rawURL string, err error) *Error {
	kind := KindOther
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		kind = KindConnection
	}

	// Strip the *url.Error wrapper; the URL is already on the Error.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return &Error{Kind: kind, URL: rawURL, Err: err}
}
