package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/ratelimit"
	"github.com/chri75252/simpler-fba/internal/retry"
)

// ErrBlocked means the target served a throttling or robot-check page.
var ErrBlocked = errors.New("request blocked by target site")

// Fetcher retrieves a page body. The HTTP implementation below is the only
// one shipped; the interface is the seam where a browser-backed fetcher used
// to sit.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Client fetches pages over plain HTTP with user-agent rotation, per-client
// rate limiting, and retry-with-backoff for transient failures.
type Client struct {
	http       *resty.Client
	limiter    *ratelimit.AdaptiveLimiter
	policy     retry.Policy
	userAgents []string
	logger     *slog.Logger
}

func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-GB,en;q=0.9").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	if cfg.ProxyURL != "" {
		httpClient.SetProxy(cfg.ProxyURL)
	}

	return &Client{
		http:    httpClient,
		limiter: ratelimit.NewAdaptiveLimiter(cfg.RateLimitMin, cfg.RateLimitMax),
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryDelay,
			MaxDelay:    cfg.RetryDelay * 8,
			Jitter:      true,
		},
		userAgents: cfg.UserAgents,
		logger:     logger.With("component", "fetcher"),
	}
}

// Fetch retrieves url, honoring the rate limiter and retrying transient
// failures. 4xx responses (other than 429) are permanent; 429/5xx and
// robot-check pages are retryable.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	var body string

	res := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("User-Agent", c.userAgent()).
			Get(url)
		if err != nil {
			c.limiter.RecordError()
			return fmt.Errorf("request failed: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusTooManyRequests:
			c.limiter.RecordError()
			return fmt.Errorf("%w: HTTP 429", ErrBlocked)
		case resp.StatusCode() >= 500:
			c.limiter.RecordError()
			return fmt.Errorf("server error: HTTP %d", resp.StatusCode())
		case resp.StatusCode() >= 400:
			return retry.Permanent(fmt.Errorf("HTTP %d for %s", resp.StatusCode(), url))
		}

		if looksBlocked(resp.String()) {
			c.limiter.RecordError()
			return fmt.Errorf("%w: robot check page", ErrBlocked)
		}

		c.limiter.RecordSuccess()
		body = resp.String()
		return nil
	})

	if res.Outcome != retry.Succeeded {
		c.logger.Warn("fetch failed",
			"url", url,
			"outcome", res.Outcome.String(),
			"attempts", res.Attempts,
			"error", res.Err,
		)
		return "", res.Err
	}

	return body, nil
}

func (c *Client) userAgent() string {
	if len(c.userAgents) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return c.userAgents[rand.Intn(len(c.userAgents))]
}

// looksBlocked detects Amazon's robot-check interstitials, which come back
// with HTTP 200.
func looksBlocked(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var blockMarkers = []string{
	"api-services-support@amazon.com",
	"enter the characters you see below",
	"to discuss automated access to amazon data",
}
