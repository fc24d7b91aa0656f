package telemetry_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofolio/internal/notify"
	"gofolio/internal/telemetry"
)

func TestNewProvider(t *testing.T) {
	p := telemetry.NewProvider()
	require.NotNil(t, p)
	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Metrics)

	// A second provider must not collide with the first one's registrations.
	assert.NotPanics(t, func() { telemetry.NewProvider() })
}

func TestRecordWrite(t *testing.T) {
	p := telemetry.NewProvider()

	p.RecordWrite("projects", "create", telemetry.ResultOK, 2*time.Millisecond)
	p.RecordWrite("projects", "create", telemetry.ResultOK, 3*time.Millisecond)
	p.RecordWrite("projects", "delete", telemetry.ResultNotFound, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(p.Metrics.Writes.WithLabelValues("projects", "create", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.Writes.WithLabelValues("projects", "delete", "not_found")), 0)
}

func TestRecordReadAndCache(t *testing.T) {
	p := telemetry.NewProvider()

	p.RecordRead("blogPosts", telemetry.ResultUnavailable)
	p.RecordCacheHit("blog")
	p.RecordCacheHit("blog")
	p.RecordCacheMiss("blog")

	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.Reads.WithLabelValues("blogPosts", "unavailable")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.Metrics.CacheHits.WithLabelValues("blog")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.CacheMisses.WithLabelValues("blog")), 0)
}

func TestWatchSignals(t *testing.T) {
	p := telemetry.NewProvider()
	n := notify.New(nil)

	subs := p.WatchSignals(n, "project", "blog")
	require.Len(t, subs, 2)

	n.Publish("project")
	n.Publish("project")
	n.Publish("blog")
	n.Publish("video")

	assert.InDelta(t, 2, testutil.ToFloat64(p.Metrics.Signals.WithLabelValues("project")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.Signals.WithLabelValues("blog")), 0)

	subs[0].Unsubscribe()
	n.Publish("project")
	assert.InDelta(t, 2, testutil.ToFloat64(p.Metrics.Signals.WithLabelValues("project")), 0)
}

func TestNilProvider(t *testing.T) {
	var p *telemetry.Provider

	assert.NotPanics(t, func() {
		p.RecordWrite("projects", "create", telemetry.ResultOK, time.Millisecond)
		p.RecordRead("projects", telemetry.ResultOK)
		p.RecordCacheHit("project")
		p.RecordCacheMiss("project")
		assert.Nil(t, p.WatchSignals(notify.New(nil), "project"))

		_, span := p.StartSpan(context.Background(), "test")
		telemetry.EndSpan(span, errors.New("boom"))
	})
}

func TestHandler(t *testing.T) {
	p := telemetry.NewProvider()
	p.RecordWrite("messages", "create", telemetry.ResultOK, time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gofolio_writes_total{collection="messages",op="create",result="ok"} 1`)
}
