// Package feed proxies an RSS feed from an allow-listed host so the site can
// read it without cross-origin requests.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"leadrelay/internal/validation"
)

const (
	// MaxBodyBytes caps upstream feed bodies.
	MaxBodyBytes = 2 << 20
	// UserAgent is sent on every upstream request.
	UserAgent = "leadrelay-rss-proxy/1.0"
	// DefaultContentType is used when upstream sends none.
	DefaultContentType = "application/rss+xml; charset=utf-8"

	cacheKeyPrefix = "feed:"
	maxRedirects   = 5
)

var errTooManyRedirects = errors.New("too many redirects")

// Cache is the subset of fiber.Storage the proxy caches bodies in.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
}

// Feed is one proxied response.
type Feed struct {
	Body        []byte
	ContentType string
	Cached      bool
}

// Config configures a Proxy.
type Config struct {
	DefaultURL   string
	AllowedHosts []string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// Proxy fetches feeds from allow-listed hosts.
type Proxy struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   Cache
}

// NewProxy creates a proxy. cache may be nil to disable caching.
func NewProxy(cfg Config, cache Cache) *Proxy {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	st := gobreaker.Settings{
		Name:     "rss",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		// Redirects must stay on the allow-list too.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			if ok, _ := validation.ValidateURL(req.URL.String()); !ok || !validation.HostAllowed(req.URL, cfg.AllowedHosts) {
				return ErrHostNotAllowed
			}
			return nil
		},
	}
	return &Proxy{
		cfg:     cfg,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
		cache:   cache,
	}
}

// Resolve validates rawURL, falling back to the default feed URL, and
// checks its host against the allow-list.
func (p *Proxy) Resolve(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		rawURL = p.cfg.DefaultURL
	}
	if ok, msg := validation.ValidateURL(rawURL); !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadURL, msg)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrBadURL
	}
	if !validation.HostAllowed(u, p.cfg.AllowedHosts) {
		return nil, ErrHostNotAllowed
	}
	return u, nil
}

// Fetch returns the feed at rawURL from cache or upstream.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*Feed, error) {
	u, err := p.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	key := cacheKeyPrefix + u.String()

	if f := p.fromCache(key); f != nil {
		return f, nil
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.get(ctx, u.String())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	f := result.(*Feed)
	p.toCache(key, f)
	return f, nil
}

func (p *Proxy) get(ctx context.Context, target string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, fmt.Errorf("%w: redirected outside the allowed hosts", ErrUpstream)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrTooLarge
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultContentType
	}
	return &Feed{Body: body, ContentType: ct}, nil
}

// Cached entries are stored as "<content-type>\n<body>".
func (p *Proxy) fromCache(key string) *Feed {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return nil
	}
	raw, err := p.cache.Get(key)
	if err != nil {
		slog.Warn("feed cache lookup failed", "error", err)
		return nil
	}
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return nil
	}
	return &Feed{ContentType: string(raw[:i]), Body: raw[i+1:], Cached: true}
}

func (p *Proxy) toCache(key string, f *Feed) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return
	}
	entry := make([]byte, 0, len(f.ContentType)+1+len(f.Body))
	entry = append(entry, f.ContentType...)
	entry = append(entry, '\n')
	entry = append(entry, f.Body...)
	if err := p.cache.Set(key, entry, p.cfg.CacheTTL); err != nil {
		slog.Warn("feed cache store failed", "error", err)
	}
}
