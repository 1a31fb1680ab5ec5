package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/chrome-keepalive/internal/kv"
	"github.com/shehryarbajwa/chrome-keepalive/internal/proxy"
	"github.com/shehryarbajwa/chrome-keepalive/internal/ratelimit"
	"github.com/shehryarbajwa/chrome-keepalive/internal/records"
	"github.com/shehryarbajwa/chrome-keepalive/internal/session"
	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

type stubSession struct {
	status  models.Session
	saveErr error
	saves   int
}

func (s *stubSession) Status() models.Session { return s.status }

func (s *stubSession) SaveNow(ctx context.Context) error {
	s.saves++
	return s.saveErr
}

func (s *stubSession) ControlURL() string { return "" }

func newRouter(t *testing.T, s *stubSession, perHour, burst int) (*mux.Router, *records.Repository) {
	t.Helper()
	repo := records.NewRepository(kv.NewMemory(), records.Prefixed{})
	h := NewHandler(s, nil)
	return h.SetupRoutes(NewRecordHandler(repo), proxy.NewServer(s, nil), ratelimit.NewLimiter(perHour, burst), perHour), repo
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Client-ID", "test")
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetSession(t *testing.T) {
	s := &stubSession{status: models.Session{ID: "abc", Status: models.StatusRunning, LandingPage: "https://uulanding.vercel.app/"}}
	router, _ := newRouter(t, s, 100, 10)

	rec := do(router, http.MethodGet, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got models.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, models.StatusRunning, got.Status)
}

func TestSaveSession(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"failed", errors.New("save_cookies: store failure: connection refused"), http.StatusBadGateway},
		{"stopped", session.ErrNotRunning, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSession{saveErr: tt.err}
			router, _ := newRouter(t, s, 100, 10)

			rec := do(router, http.MethodPost, "/v1/session/save")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, 1, s.saves)
		})
	}
}

func TestListRecords(t *testing.T) {
	router, repo := newRouter(t, &stubSession{}, 100, 10)
	ctx := context.Background()

	rec := do(router, http.MethodGet, "/v1/records/cookies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, repo.ReplaceCookies(ctx, []models.Cookie{{Name: "sid", Value: "1", Domain: "a.com", Path: "/"}}))
	_, err := repo.UpsertStorage(ctx, "token", "t")
	require.NoError(t, err)

	rec = do(router, http.MethodGet, "/v1/records/cookies")
	var cookies []models.Cookie
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cookies))
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)

	rec = do(router, http.MethodGet, "/v1/records/storage")
	assert.JSONEq(t, `[{"key":"token","value":"t"}]`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	router, _ := newRouter(t, &stubSession{}, 1, 2)

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/v1/session/save").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/v1/session/save").Code)

	rec := do(router, http.MethodPost, "/v1/session/save")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// status is not rate limited
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/v1/session").Code)
}

func TestGetDebugURL(t *testing.T) {
	router, _ := newRouter(t, &stubSession{status: models.Session{ID: "abc"}}, 100, 10)

	rec := do(router, http.MethodGet, "/v1/session/debug")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ws://example.com/v1/session/ws", body["debuggerUrl"])
	assert.Equal(t, "abc", body["sessionId"])
}

func TestGetClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", getClientID(req))

	req.Header.Set("X-Client-ID", "ops")
	assert.Equal(t, "ops", getClientID(req))
}
