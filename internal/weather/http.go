package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/neexbeast/weather-report/internal/cache"
)

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultBreakerTimeout = 30 * time.Second
	breakerTripAfter      = 5
	maxBodyBytes          = 8 << 20
)

// ClientConfig configures an upstream client. Zero values fall back to defaults.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	CacheTTL       time.Duration
	BreakerTimeout time.Duration
}

func (c ClientConfig) withDefaults(baseURL string, ttl time.Duration) ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = ttl
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = defaultBreakerTimeout
	}
	return c
}

// upstream is the shared plumbing behind both Open-Meteo clients: a bounded
// http.Client, a circuit breaker, and a TTL cache of raw response bodies.
type upstream struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	store   cache.Store
	ttl     time.Duration
	group   singleflight.Group
	log     *slog.Logger
}

func newUpstream(name string, cfg ClientConfig, store cache.Store, log *slog.Logger) *upstream {
	if store == nil {
		store = cache.NewMemory()
	}
	if log == nil {
		log = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("upstream circuit breaker state changed",
				"upstream", name, "from", from.String(), "to", to.String())
		},
	})

	return &upstream{
		name:    name,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		store:   store,
		ttl:     cfg.CacheTTL,
		log:     log,
	}
}

// fetch returns the raw body for rawURL, serving it from the cache under key
// when present. fromCache reports whether the network was skipped.
// Concurrent misses for the same key share one request.
func (u *upstream) fetch(ctx context.Context, key, rawURL string) (body []byte, fromCache bool, err error) {
	cached, err := u.store.Get(ctx, key)
	if err != nil {
		u.log.Warn("cache get failed", "upstream", u.name, "key", key, "err", err)
	}
	if cached != nil {
		u.log.Debug("cache hit", "upstream", u.name, "key", key)
		return cached, true, nil
	}

	v, err, _ := u.group.Do(key, func() (any, error) {
		return u.call(ctx, rawURL)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// remember stores a validated body under key.
func (u *upstream) remember(ctx context.Context, key string, body []byte) {
	if err := u.store.Set(ctx, key, body, u.ttl); err != nil {
		u.log.Warn("cache set failed", "upstream", u.name, "key", key, "err", err)
	}
}

// call performs one GET through the breaker. Client errors (4xx) and
// requests cancelled by the caller are returned without counting against
// the breaker.
func (u *upstream) call(ctx context.Context, rawURL string) ([]byte, error) {
	var clientErr error

	start := time.Now()
	v, err := u.breaker.Execute(func() (any, error) {
		b, err := doGet(ctx, u.client, rawURL)
		if notUpstreamFault(err) {
			clientErr = err
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		u.log.Warn("upstream request failed", "upstream", u.name, "err", err)
		return nil, err
	}
	if clientErr != nil {
		u.log.Warn("upstream request rejected or cancelled", "upstream", u.name, "err", clientErr)
		return nil, clientErr
	}

	body := v.([]byte)
	u.log.Debug("upstream request done",
		"upstream", u.name, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func notUpstreamFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// doGet performs a GET request and returns the response body.
func doGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Reason: upstreamReason(body)}
	}

	return body, nil
}

// upstreamReason extracts Open-Meteo's {"error":true,"reason":"..."} message.
func upstreamReason(body []byte) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Reason
}
