package infrastructure

import (
	"context"
	"strings"
	"testing"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var capturedAt = time.Date(2025, 8, 3, 9, 0, 0, 0, time.UTC)

func sampleAttribution(source string) domain.PersistedAttribution {
	params := domain.NewTrackingParameterSet(domain.DefaultCatalog, map[domain.ParameterName]string{
		domain.UTMSource:     source,
		domain.UTMMedium:     "cpc",
		domain.GoogleClickID: "abc123",
	})
	return domain.NewPersistedAttribution(params, capturedAt)
}

func assertAttribution(t *testing.T, got domain.PersistedAttribution, source string) {
	t.Helper()
	if got.Params.Value(domain.UTMSource) != source {
		t.Errorf("utm_source = %q, want %q", got.Params.Value(domain.UTMSource), source)
	}
	if got.Params.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Params.Len())
	}
	if !got.CapturedAt[domain.GoogleClickID].Equal(capturedAt) {
		t.Errorf("gclid captured at %v, want %v", got.CapturedAt[domain.GoogleClickID], capturedAt)
	}
}

func newTestMemoryStore(ttl time.Duration) (*MemorySessionStore, *time.Time) {
	now := capturedAt
	store := NewMemorySessionStore(ttl, logger.Discard(), metrics.NewWithRegisterer(prometheus.NewRegistry()))
	store.now = func() time.Time { return now }
	return store, &now
}

func TestMemorySessionStore_SaveLoad(t *testing.T) {
	store, _ := newTestMemoryStore(time.Minute)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "sess"); ok || err != nil {
		t.Fatalf("Load() on empty store = %v, %v", ok, err)
	}

	if err := store.Save(ctx, "sess", sampleAttribution("google")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "sess", sampleAttribution("facebook")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := store.Load(ctx, "sess")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	assertAttribution(t, got, "facebook")

	if _, ok, _ := store.Load(ctx, "other"); ok {
		t.Errorf("Load(other) found another session's data")
	}
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store, now := newTestMemoryStore(time.Minute)
	ctx := context.Background()

	_ = store.Save(ctx, "a", sampleAttribution("google"))
	*now = now.Add(30 * time.Second)
	_ = store.Save(ctx, "b", sampleAttribution("google"))

	*now = now.Add(45 * time.Second)
	if _, ok, _ := store.Load(ctx, "a"); ok {
		t.Errorf("Load(a) returned an expired session")
	}
	if _, ok, _ := store.Load(ctx, "b"); !ok {
		t.Errorf("Load(b) lost a live session")
	}

	*now = now.Add(time.Minute)
	if removed := store.Sweep(ctx); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
}

func TestMemorySessionStore_LoadRefreshesTTL(t *testing.T) {
	store, now := newTestMemoryStore(time.Minute)
	ctx := context.Background()

	_ = store.Save(ctx, "sess", sampleAttribution("google"))

	for i := 0; i < 3; i++ {
		*now = now.Add(50 * time.Second)
		if _, ok, _ := store.Load(ctx, "sess"); !ok {
			t.Fatalf("Load() after %v of activity = miss, want hit", time.Duration(i+1)*50*time.Second)
		}
	}

	*now = now.Add(61 * time.Second)
	if _, ok, _ := store.Load(ctx, "sess"); ok {
		t.Errorf("Load() after an idle TTL = hit, want miss")
	}
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("ConnectRedis() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl, metrics.NewWithRegisterer(prometheus.NewRegistry())), mr
}

func TestRedisSessionStore_SaveLoad(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "sess"); ok || err != nil {
		t.Fatalf("Load() on empty store = %v, %v", ok, err)
	}

	if err := store.Save(ctx, "sess", sampleAttribution("google")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := mr.Get("utm:session:sess:utm_params")
	if err != nil {
		t.Fatalf("blob not stored under the session key: %v", err)
	}
	if want := `"utm_source_timestamp":"2025-08-03T09:00:00.000Z"`; !strings.Contains(raw, want) {
		t.Errorf("blob = %s, want it to contain %s", raw, want)
	}
	if ttl := mr.TTL("utm:session:sess:utm_params"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	got, ok, err := store.Load(ctx, "sess")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	assertAttribution(t, got, "google")
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_ = store.Save(ctx, "sess", sampleAttribution("google"))
	mr.FastForward(2 * time.Minute)

	if _, ok, err := store.Load(ctx, "sess"); ok || err != nil {
		t.Errorf("Load() after TTL = %v, %v, want miss", ok, err)
	}
}

func TestRedisSessionStore_LoadRefreshesTTL(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_ = store.Save(ctx, "sess", sampleAttribution("google"))

	for i := 0; i < 3; i++ {
		mr.FastForward(50 * time.Second)
		if _, ok, err := store.Load(ctx, "sess"); !ok || err != nil {
			t.Fatalf("Load() = %v, %v, want hit while the session is active", ok, err)
		}
		if ttl := mr.TTL("utm:session:sess:utm_params"); ttl != time.Minute {
			t.Errorf("TTL after Load = %v, want 1m", ttl)
		}
	}
}

func TestRedisSessionStore_CorruptBlob(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)

	_ = mr.Set("utm:session:sess:utm_params", `{"utm_source":"google","utm_source_timestamp":"yesterday"}`)

	if _, ok, err := store.Load(context.Background(), "sess"); ok || err == nil {
		t.Errorf("Load() = %v, %v, want a decode error", ok, err)
	}
}

func TestRedisSessionStore_Unreachable(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	mr.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "sess", sampleAttribution("google")); err == nil {
		t.Errorf("Save() against a closed server succeeded")
	}
	if _, _, err := store.Load(ctx, "sess"); err == nil {
		t.Errorf("Load() against a closed server succeeded")
	}
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("ConnectRedis(url) error = %v", err)
	}
	_ = client.Close()

	if _, err := ConnectRedis(context.Background(), "redis://localhost:6379/notadb"); err == nil {
		t.Errorf("ConnectRedis() accepted a malformed url")
	}
}
