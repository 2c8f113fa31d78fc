package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"strollgo/pkg/cache"
	"strollgo/pkg/config"
	"strollgo/pkg/tracker"
)

func testConfig(retries int) *config.RequestConfig {
	return &config.RequestConfig{
		Retries: retries,
		Timeout: config.Duration(5 * time.Second),
		Backoff: config.BackoffConfig{BaseDelay: config.Duration(time.Millisecond)},
	}
}

// memCache is a map-backed Cacher for tests.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]byte)} }

func (c *memCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *memCache) SetCache(ctx context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = val
	return nil
}

func TestGetRetriesOn500(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(testConfig(3), cache.NullCache{}, tracker.New())
	body, err := c.Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("unexpected body: %s", body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := tracker.New()
	c := New(testConfig(2), cache.NullCache{}, tr)
	if _, err := c.Get(context.Background(), srv.URL, ""); err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	host := srv.Listener.Addr().String()
	if got := tr.Snapshot()[host].APIFailures; got != 1 {
		t.Errorf("expected one tracked failure, got %d", got)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(testConfig(3), cache.NullCache{}, tracker.New())
	if _, err := c.Get(context.Background(), srv.URL, ""); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestGetCacheHit(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	mc := newMemCache()
	tr := tracker.New()
	c := New(testConfig(1), mc, tr)

	if _, err := c.Get(context.Background(), srv.URL, "k1"); err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	body, err := c.Get(context.Background(), srv.URL, "k1")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if string(body) != "fresh" {
		t.Errorf("unexpected cached body: %s", body)
	}
	if calls.Load() != 1 {
		t.Errorf("second Get must be served from cache, got %d calls", calls.Load())
	}

	host := srv.Listener.Addr().String()
	stats := tr.Snapshot()[host]
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("unexpected cache stats: %+v", stats)
	}
}

func TestCanceledRequestNotTrackedAsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	tr := tracker.New()
	c := New(testConfig(1), cache.NullCache{}, tr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := c.Get(ctx, srv.URL, ""); err == nil {
		t.Fatal("expected cancellation error")
	}

	// Supersession is not a provider failure.
	time.Sleep(50 * time.Millisecond)
	host := srv.Listener.Addr().String()
	if got := tr.Snapshot()[host].APIFailures; got != 0 {
		t.Errorf("canceled request must not count as failure, got %d", got)
	}
}

func TestPostSendsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected default user agent")
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	c := New(testConfig(1), cache.NullCache{}, tracker.New())
	body, err := c.Post(context.Background(), srv.URL, []byte(`{"x":1}`), "application/json")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(body) != "done" {
		t.Errorf("unexpected body: %s", body)
	}
}
