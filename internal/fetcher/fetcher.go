// Package fetcher performs provider HTTP calls with per-credential pacing,
// bounded retry and round-robin credential rotation on throttling.
package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/pkg/logger"
)

type Config struct {
	Name      string
	UserAgent string
	// Keys is the credential pool. An empty pool sends unauthenticated requests.
	Keys []string
	// KeyHeader or KeyParam says where the credential goes; header wins.
	KeyHeader string
	KeyParam  string
	// Envelope overrides DefaultEnvelope for FetchList.
	Envelope []string

	MinInterval  time.Duration
	Timeout      time.Duration
	MaxRetries   int
	MaxRotations int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	Cooldown     time.Duration
}

type Fetcher struct {
	cfg       Config
	collector *colly.Collector
	limiters  []*rate.Limiter

	mu  sync.Mutex
	idx int

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a fetcher for one provider.
func New(cfg Config) *Fetcher {
	if cfg.MaxRotations <= 0 {
		cfg.MaxRotations = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if len(cfg.Envelope) == 0 {
		cfg.Envelope = DefaultEnvelope
	}

	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(0),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	every := rate.Inf
	if cfg.MinInterval > 0 {
		every = rate.Every(cfg.MinInterval)
	}
	n := max(len(cfg.Keys), 1)
	limiters := make([]*rate.Limiter, n)
	for i := range limiters {
		limiters[i] = rate.NewLimiter(every, 1)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: c,
		limiters:  limiters,
		sleep:     sleepCtx,
	}
}

// Reset points the rotation back at the first credential. Called at the
// start of every run; rotation state is never persisted.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.idx = 0
	f.mu.Unlock()
}

func (f *Fetcher) current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idx
}

func (f *Fetcher) rotate() {
	f.mu.Lock()
	f.idx = (f.idx + 1) % len(f.limiters)
	f.mu.Unlock()
}

// Fetch GETs rawURL and returns the body of a successful response.
//
// Transport failures and 5xx responses back off exponentially on the same
// credential up to MaxRetries. 429/401/403 responses and 200 bodies with a
// throttling notice rotate to the next credential, cooling down after each
// full pass, until MaxRotations full passes have been spent. A 200 body
// reporting any other provider error fails with ErrMalformedPayload. Other
// 4xx responses fail at once with ErrUnexpectedStatus.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	pool := len(f.limiters)
	budget := pool * f.cfg.MaxRotations
	retries, throttled := 0, 0

	for {
		idx := f.current()
		if err := f.limiters[idx].Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "wait for rate limiter")
		}

		status, body, err := f.do(ctx, rawURL, idx)
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "fetch %s", rawURL)
		}

		note := noticeNone
		if err == nil && status == http.StatusOK {
			note = bodyNotice(body)
		}

		switch {
		case err != nil || status >= 500 || status == 0:
			if err == nil {
				err = errors.Newf("status %d", status)
			}
			retries++
			if retries > f.cfg.MaxRetries {
				return nil, errors.Mark(errors.Wrapf(err, "fetch %s: gave up after %d attempts", rawURL, retries), ErrTransport)
			}
			wait := f.backoff(retries)
			logger.Warn("Request failed, backing off",
				zap.String("provider", f.cfg.Name),
				zap.String("url", rawURL),
				zap.Int("attempt", retries),
				zap.Duration("wait", wait),
				zap.Error(err))
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case status == http.StatusTooManyRequests || status == http.StatusUnauthorized ||
			status == http.StatusForbidden || note == noticeThrottle:
			throttled++
			if throttled > budget {
				return nil, errors.Mark(errors.Newf("fetch %s: throttled %d times across %d credentials (last status %d)", rawURL, throttled, pool, status), ErrRateLimited)
			}
			f.rotate()
			logger.Warn("Rate limited, rotating credential",
				zap.String("provider", f.cfg.Name),
				zap.String("url", rawURL),
				zap.Int("status", status),
				zap.Int("key_index", f.current()))
			if throttled%pool == 0 && f.cfg.Cooldown > 0 {
				if err := f.sleep(ctx, f.cfg.Cooldown); err != nil {
					return nil, err
				}
			}

		case note == noticeError:
			return nil, errors.Mark(errors.Newf("fetch %s: provider reported errors", rawURL), ErrMalformedPayload)

		case status < 200 || status >= 300:
			return nil, errors.Mark(errors.Newf("fetch %s: status %d", rawURL, status), ErrUnexpectedStatus)

		default:
			return body, nil
		}
	}
}

// FetchInto fetches rawURL and decodes the body into v.
func (f *Fetcher) FetchInto(ctx context.Context, rawURL string, v any) error {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(body, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s", rawURL), ErrMalformedPayload)
	}
	return nil
}

// FetchList fetches rawURL and returns the records inside the provider envelope.
func (f *Fetcher) FetchList(ctx context.Context, rawURL string) ([]json.RawMessage, error) {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	list, err := Unwrap(body, f.cfg.Envelope)
	if err != nil {
		return nil, errors.Wrapf(err, "unwrap %s", rawURL)
	}
	return list, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string, idx int) (int, []byte, error) {
	target, hdr, err := f.authorize(rawURL, idx)
	if err != nil {
		return 0, nil, err
	}

	c := f.collector.Clone()
	c.Context = ctx

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	if err := c.Request(http.MethodGet, target, nil, nil, hdr); err != nil {
		// keep query-string keys out of error messages
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = rawURL
		}
		return 0, nil, err
	}
	return status, body, nil
}

func (f *Fetcher) authorize(rawURL string, idx int) (string, http.Header, error) {
	hdr := http.Header{}
	hdr.Set("Accept", "application/json")
	if f.cfg.UserAgent != "" {
		hdr.Set("User-Agent", f.cfg.UserAgent)
	}
	if len(f.cfg.Keys) == 0 {
		return rawURL, hdr, nil
	}

	key := f.cfg.Keys[idx]
	if f.cfg.KeyHeader != "" {
		hdr.Set(f.cfg.KeyHeader, key)
		return rawURL, hdr, nil
	}
	if f.cfg.KeyParam == "" {
		return rawURL, hdr, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, errors.Wrapf(err, "parse %s", rawURL)
	}
	q := u.Query()
	q.Set(f.cfg.KeyParam, key)
	u.RawQuery = q.Encode()
	return u.String(), hdr, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	limit := f.cfg.BackoffMax
	d := f.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
