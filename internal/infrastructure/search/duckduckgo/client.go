package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	DefaultInstantURL = "https://api.duckduckgo.com/"
	DefaultHTMLURL    = "https://html.duckduckgo.com/html/"

	userAgent = "Mozilla/5.0 (compatible; knowledge-assistant/1.0)"
)

type Config struct {
	InstantURL     string
	HTMLURL        string
	RequestsPerSec float64
	Timeout        time.Duration
}

// Client holds what both DuckDuckGo providers share: the HTTP client,
// a request limiter and the HTML sanitizer.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     *bluemonday.Policy
}

func New(cfg Config) *Client {
	if cfg.InstantURL == "" {
		cfg.InstantURL = DefaultInstantURL
	}
	if cfg.HTMLURL == "" {
		cfg.HTMLURL = DefaultHTMLURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		policy:     bluemonday.StrictPolicy(),
	}
}

// Providers returns the instant-answer provider followed by the HTML scraper.
func (c *Client) Providers() (*InstantAnswer, *HTMLScraper) {
	return &InstantAnswer{client: c}, &HTMLScraper{client: c}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrCapabilityTimeout, "duckduckgo rate limiter", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create duckduckgo request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrCapabilityTimeout, "duckduckgo request", err)
		}
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.WrapError(domain.ErrRateLimited, "duckduckgo request", fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusForbidden:
		return nil, domain.WrapError(domain.ErrAccessDenied, "duckduckgo request", fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("duckduckgo status: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 2<<20))
}

// sanitize strips markup and decodes the entities the policy escapes.
func (c *Client) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}
