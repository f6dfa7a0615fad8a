package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func newTestFetcher(cfg Config) (*Fetcher, *sleepRecorder) {
	f := New(cfg)
	rec := &sleepRecorder{}
	f.sleep = rec.sleep
	return f, rec
}

func TestFetch_RotatesOnThrottleStatus(t *testing.T) {
	t.Parallel()

	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Key")
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		if key == "a" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{Keys: []string{"a", "b"}, KeyHeader: "X-Key", MaxRotations: 2})

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(body))

	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b"}, seen, "rotation sticks to the working key")

	f.Reset()
	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b", "a", "b"}, seen)
}

func TestFetch_RotatesOnBodySignal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "a" {
			_, _ = w.Write([]byte(`{"errors":{"rateLimit":"Too many requests"},"response":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"errors":[],"response":[{"id":7}]}`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{Keys: []string{"a", "b"}, KeyParam: "key", MaxRotations: 1})

	list, err := f.FetchList(context.Background(), srv.URL+"/fixtures?date=2024-03-02")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"id":7}`, string(list[0]))
}

func TestFetch_RateLimitBudgetExhausted(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, rec := newTestFetcher(Config{
		Keys:         []string{"a", "b"},
		KeyHeader:    "X-Key",
		MaxRotations: 2,
		Cooldown:     time.Minute,
	})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, IsFatal(err))
	assert.EqualValues(t, 5, hits.Load())
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, rec.waits)
}

func TestFetch_BacksOffOnServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(Config{
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffMax:  time.Minute,
	})

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, f.FetchInto(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestFetch_TransportBudgetExhausted(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{MaxRetries: 2, BackoffBase: time.Millisecond})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, IsFatal(err))
	assert.EqualValues(t, 3, hits.Load())
}

func TestFetch_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{MaxRetries: 3})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.False(t, IsFatal(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetchInto_MalformedPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{})

	var out []map[string]any
	err := f.FetchInto(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	assert.False(t, IsFatal(err))
}

func TestFetch_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := newTestFetcher(Config{})
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBackoff_Capped(t *testing.T) {
	t.Parallel()

	f := New(Config{BackoffBase: 2 * time.Second, BackoffMax: 5 * time.Second})
	assert.Equal(t, 2*time.Second, f.backoff(1))
	assert.Equal(t, 4*time.Second, f.backoff(2))
	assert.Equal(t, 5*time.Second, f.backoff(3))
	assert.Equal(t, 5*time.Second, f.backoff(10))
}

type arrivals struct {
	mu    sync.Mutex
	times []time.Time
	keys  []string
}

func (a *arrivals) record(r *http.Request) {
	a.mu.Lock()
	a.times = append(a.times, time.Now())
	a.keys = append(a.keys, r.Header.Get("X-Key"))
	a.mu.Unlock()
}

func (a *arrivals) gaps() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(a.times); i++ {
		out = append(out, a.times[i].Sub(a.times[i-1]))
	}
	return out
}

func TestFetch_MinIntervalPacesOneKey(t *testing.T) {
	t.Parallel()

	var got arrivals
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	const interval = 100 * time.Millisecond
	f, _ := newTestFetcher(Config{Keys: []string{"a"}, KeyHeader: "X-Key", MinInterval: interval})

	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}

	gaps := got.gaps()
	require.Len(t, gaps, 2)
	for _, g := range gaps {
		assert.GreaterOrEqual(t, g, interval-10*time.Millisecond)
	}
}

func TestFetch_RotatedKeyHasItsOwnLimiter(t *testing.T) {
	t.Parallel()

	var got arrivals
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		if r.Header.Get("X-Key") == "a" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	const interval = 500 * time.Millisecond
	f, rec := newTestFetcher(Config{Keys: []string{"a", "b"}, KeyHeader: "X-Key", MinInterval: interval})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "b"}, got.keys)
	assert.Empty(t, rec.waits, "one throttle on a two-key pool needs no cooldown")

	gaps := got.gaps()
	require.Len(t, gaps, 2)
	assert.Less(t, gaps[0], interval-100*time.Millisecond, "b is not held back by a's limiter")
	assert.GreaterOrEqual(t, gaps[1], interval-50*time.Millisecond, "b paces its own requests")
}

func TestFetch_ProviderErrorIsMalformedNotThrottled(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"errors":{"season":"The Season field is required."},"response":[]}`))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(Config{Keys: []string{"a", "b"}, KeyHeader: "X-Key", MaxRotations: 3, Cooldown: time.Second})

	_, err := f.FetchList(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	assert.False(t, IsFatal(err), "the source is skipped, the run goes on")
	assert.Equal(t, int32(1), hits.Load(), "no rotation on a non-throttling error")
	assert.Empty(t, rec.waits)
	assert.Equal(t, 0, f.current())
}
