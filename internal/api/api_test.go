package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofolio/internal/api"
	"gofolio/internal/content"
	"gofolio/internal/model"
	"gofolio/internal/notify"
	"gofolio/internal/store"
	"gofolio/internal/telemetry"
)

const (
	testAPIKey   = "test-key"
	testSecret   = "test-secret"
	testPassword = "hunter2"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	store    *store.MemoryStore
	notifier *notify.Notifier
	catalog  *content.Catalog
	handler  http.Handler
}

func newTestEnv(t *testing.T, cfg api.Config) *testEnv {
	t.Helper()

	e := &testEnv{
		store:    store.NewMemoryStore(),
		notifier: notify.New(nil),
	}
	tp := telemetry.NewProvider()
	e.catalog = content.NewCatalog(content.Deps{Store: e.store, Notifier: e.notifier, Telemetry: tp})

	router := api.NewRouter(cfg, api.Deps{
		Catalog:   e.catalog,
		Notifier:  e.notifier,
		Store:     e.store,
		Telemetry: tp,
	})
	t.Cleanup(router.Close)
	e.handler = router.Handler()
	return e
}

func defaultConfig() api.Config {
	return api.Config{
		APIKeys:       []string{testAPIKey},
		JWTSecret:     testSecret,
		AdminPassword: testPassword,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	e.store.SetOffline(true)
	rec = e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}

func TestAdminAuth(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown key", "Bearer nope", http.StatusUnauthorized},
		{"api key", "Bearer " + testAPIKey, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/projects", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `realm="gofolio"`)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[map[string]string](t, rec)
	require.NotEmpty(t, out["token"])
	assert.NotEmpty(t, out["expires_at"])

	rec = e.do(t, http.MethodGet, "/api/v1/admin/stats", out["token"], nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Disabled(t *testing.T) {
	e := newTestEnv(t, api.Config{APIKeys: []string{testAPIKey}})

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"password": "anything"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestContentLifecycle(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/admin/projects", testAPIKey, map[string]any{
		"title": "Demo",
		"tags":  []string{"go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.ContentItem](t, rec)
	assert.Equal(t, model.StatusDraft, created.Status)
	assert.Equal(t, "/api/v1/admin/projects/"+created.ID, rec.Header().Get("Location"))

	// Drafts are invisible publicly.
	rec = e.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[listResponse[model.ContentItem]](t, rec).Count)
	rec = e.do(t, http.MethodGet, "/api/v1/projects/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/v1/admin/projects/"+created.ID, testAPIKey, map[string]any{"status": "Published"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.ContentItem](t, rec)
	assert.Equal(t, model.StatusPublished, updated.Status)
	assert.Equal(t, "Demo", updated.Title)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	// The signal from the update invalidated the cached public listing.
	rec = e.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[model.ContentItem]](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Items[0].ID)

	rec = e.do(t, http.MethodGet, "/api/v1/projects/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/v1/admin/projects/"+created.ID, testAPIKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/projects/"+created.ID, testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/v1/admin/projects/"+created.ID, testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPatch, "/api/v1/admin/projects/"+created.ID, testAPIKey, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, 0, decode[listResponse[model.ContentItem]](t, rec).Count)
}

func TestPatch_RejectsEmptyStatus(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/admin/projects", testAPIKey, map[string]any{"title": "Demo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[model.ContentItem](t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/meetings", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "topic": "Intro",
		"requestedAt": "2026-03-01T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	meetingID := decode[map[string]string](t, rec)["id"]

	tests := []struct {
		name string
		path string
	}{
		{"project", "/api/v1/admin/projects/" + project.ID},
		{"meeting", "/api/v1/admin/meetings/" + meetingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPatch, tt.path, testAPIKey, map[string]any{"status": ""})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec = e.do(t, http.MethodGet, "/api/v1/admin/projects/"+project.ID, testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusDraft, decode[model.ContentItem](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/meetings/"+meetingID, testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.MeetingPending, decode[model.Meeting](t, rec).Status)
}

func TestContentValidation(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing title", http.MethodPost, "/api/v1/admin/blog", map[string]any{"body": "x"}},
		{"unknown status", http.MethodPost, "/api/v1/admin/blog", map[string]any{"title": "x", "status": "archived"}},
		{"empty patch", http.MethodPatch, "/api/v1/admin/blog/some-id", map[string]any{}},
		{"bad featured", http.MethodGet, "/api/v1/blog?featured=maybe", nil},
		{"bad limit", http.MethodGet, "/api/v1/blog?limit=abc", nil},
		{"limit too large", http.MethodGet, "/api/v1/blog?limit=1000", nil},
		{"bad admin status", http.MethodGet, "/api/v1/admin/blog?status=archived", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, tc.method, tc.path, testAPIKey, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPublicList_FiltersAndLimits(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	ctx := context.Background()

	for _, item := range []model.ContentItem{
		{Title: "a", Status: model.StatusPublished, Featured: true},
		{Title: "b", Status: model.StatusDraft, Featured: true},
		{Title: "c", Status: model.StatusPublished},
		{Title: "d", Status: model.StatusPublished, Featured: true},
	} {
		_, err := e.catalog.Videos.Create(ctx, item)
		require.NoError(t, err)
	}

	rec := e.do(t, http.MethodGet, "/api/v1/videos", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[listResponse[model.ContentItem]](t, rec).Count)

	rec = e.do(t, http.MethodGet, "/api/v1/videos?featured=true&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[model.ContentItem]](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "d", list.Items[0].Title)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/videos?status=draft", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResponse[model.ContentItem]](t, rec).Count)
}

func TestPublicList_UnavailableIsDistinctFromEmpty(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodGet, "/api/v1/other-works", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())

	e.store.SetOffline(true)
	// A write signal clears the cached empty result so the outage is visible.
	e.notifier.Publish(content.CategoryOtherWork)

	rec = e.do(t, http.MethodGet, "/api/v1/other-works", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMessages(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/messages", "", map[string]any{
		"name": "Ada", "email": "not-an-email", "body": "Hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/messages", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "subject": "Hi", "body": "Hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/messages?read=false", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResponse[model.Message]](t, rec).Count)

	rec = e.do(t, http.MethodPatch, "/api/v1/admin/messages/"+id, testAPIKey, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/v1/admin/messages/"+id, testAPIKey, map[string]any{"read": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Message](t, rec).Read)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/messages?read=false", testAPIKey, nil)
	assert.Equal(t, 0, decode[listResponse[model.Message]](t, rec).Count)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/messages/"+id, testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[model.Message](t, rec).Name)

	rec = e.do(t, http.MethodDelete, "/api/v1/admin/messages/"+id, testAPIKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/v1/admin/messages/"+id, testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeetings(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/meetings", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "topic": "Intro",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/meetings", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "topic": "Intro",
		"requestedAt": "2026-03-01T15:00:00+02:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[map[string]string](t, rec)
	assert.Equal(t, "pending", out["status"])
	id := out["id"]

	rec = e.do(t, http.MethodGet, "/api/v1/admin/meetings?status=PENDING", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[model.Meeting]](t, rec)
	require.Equal(t, 1, list.Count)
	assert.True(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC).Equal(list.Items[0].RequestedAt))

	rec = e.do(t, http.MethodGet, "/api/v1/admin/meetings?status=later", testAPIKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/v1/admin/meetings/"+id, testAPIKey, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.MeetingConfirmed, decode[model.Meeting](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/meetings?status=pending", testAPIKey, nil)
	assert.Equal(t, 0, decode[listResponse[model.Meeting]](t, rec).Count)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/meetings/"+id, testAPIKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/v1/admin/meetings/"+id, testAPIKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestForms_RateLimited(t *testing.T) {
	cfg := defaultConfig()
	cfg.FormRatePerMinute = 1
	cfg.FormBurst = 2
	e := newTestEnv(t, cfg)

	msg := map[string]any{"name": "Ada", "email": "ada@example.com", "body": "Hello"}
	rec := e.do(t, http.MethodPost, "/api/v1/messages", "", msg)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/meetings", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "topic": "Intro",
		"requestedAt": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/v1/messages", "", msg)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads are not limited.
	rec = e.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	msgs, err := e.catalog.Messages.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestStats(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	ctx := context.Background()

	_, err := e.catalog.BlogPosts.Create(ctx, model.ContentItem{Title: "a", Status: model.StatusPublished})
	require.NoError(t, err)
	_, err = e.catalog.Messages.Create(ctx, model.Message{Name: "Ada"})
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/api/v1/admin/stats", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[content.Stats](t, rec)
	assert.Equal(t, content.KindStats{Total: 1, Published: 1}, stats.Content["blog"])
	assert.Equal(t, 1, stats.Messages.Unread)

	e.store.SetOffline(true)
	rec = e.do(t, http.MethodGet, "/api/v1/admin/stats", testAPIKey, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, defaultConfig())

	rec := e.do(t, http.MethodPost, "/api/v1/messages", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "body": "Hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gofolio_writes_total{collection="messages",op="create",result="ok"} 1`)
}

func TestEvents_StreamsChangeSignals(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/admin/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() (string, string) {
		t.Helper()
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	event, _ := nextEvent()
	require.Equal(t, "connected", event)

	_, err = e.catalog.Projects.Create(context.Background(), model.ContentItem{Title: "Demo"})
	require.NoError(t, err)

	event, data := nextEvent()
	assert.Equal(t, "change", event)
	assert.JSONEq(t, `{"category":"project"}`, data)

	e.notifier.Publish(content.CategoryMeeting)
	event, data = nextEvent()
	assert.Equal(t, "change", event)
	assert.JSONEq(t, `{"category":"meeting"}`, data)
}
