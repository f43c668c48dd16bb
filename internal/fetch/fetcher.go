// Package fetch retrieves feed documents over HTTP and refreshes the store
// from them.
//
// The Fetcher only moves bytes: it rate-limits per host, classifies
// failures, and hands back the body. The Refresher drives it over every
// subscribed feed, parses and converts what comes back, and records the
// outcome on each feed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Second
	// DefaultPerHostRate is the steady request rate allowed per host.
	DefaultPerHostRate = 2.0
	// DefaultUserAgent identifies the fetcher to servers.
	DefaultUserAgent = "feedstore/1.0 (+https://github.com/roach88/feedstore)"
	// maxBodySize caps how much of a response is read.
	maxBodySize = 16 << 20
)

// Options configures a Fetcher. Zero fields take the defaults above.
type Options struct {
	Timeout     time.Duration
	PerHostRate float64 // requests per second per host
	UserAgent   string
	Client      *http.Client
}

// Fetcher retrieves raw feed documents.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limit     rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PerHostRate <= 0 {
		opts.PerHostRate = DefaultPerHostRate
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		limit:     rate.Limit(opts.PerHostRate),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiter returns the shared limiter for host, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, 1)
		f.limiters[host] = l
	}
	return l
}

// Fetch GETs rawURL and returns the response body. Every failure is an
// *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: fmt.Errorf("unsupported url %q", rawURL)}
	}

	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return nil, &Error{Kind: KindOther, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/rdf+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:   KindHTTPStatus,
			URL:    rawURL,
			Status: resp.StatusCode,
			Err:    errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classify(rawURL, err)
	}
	return body, nil
}
