package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/api/handler"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/cache"
	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
	"github.com/Dilbarpun07/GBFC-website/internal/views"
)

const coach = "coach-1"

type testAPI struct {
	srv *httptest.Server
	mem *gateway.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	mem := gateway.NewMemoryStore()
	rec := notifications.NewRecorder(50)
	sync := syncer.New(syncer.Deps{
		Repos:    repository.NewSet(mem),
		Notifier: rec,
		Clock:    clock,
		Logger:   logger,
	}, syncer.Options{})

	appCache := cache.NewWithClock(true, clock)
	t.Cleanup(appCache.Close)

	cfg := &config.Config{CORSAllowOrigins: []string{"*"}}
	h := handler.New(handler.Deps{
		Sync:    sync,
		Views:   views.NewBuilder(clock, time.UTC),
		Cache:   appCache,
		Notices: rec,
		Store:   mem,
		Config:  cfg,
		Logger:  logger,
	})
	srv := httptest.NewServer(NewRouter(h, auth.NewVerifier("", 0), cfg))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, mem: mem}
}

func (a *testAPI) do(t *testing.T, method, path, principal string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, a.srv.URL+path, rd)
	if principal != "" {
		req.Header.Set(auth.DevPrincipalHeader, principal)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (a *testAPI) signIn(t *testing.T) {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/v1/session", coach, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("establish: %d %s", resp.StatusCode, body)
	}
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	json.Unmarshal(body, &e)
	return e.Error.Code
}

type mutation struct {
	Data     json.RawMessage `json:"data"`
	Changed  *bool           `json:"changed"`
	Version  uint64          `json:"version"`
	Warnings []string        `json:"warnings"`
}

func decodeMutation(t *testing.T, body []byte) (mutation, map[string]any) {
	t.Helper()
	var m mutation
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	var data map[string]any
	json.Unmarshal(m.Data, &data)
	return m, data
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	for _, path := range []string{"/health", "/health/store", "/health/cache", "/docs/doc.json"} {
		if resp, body := a.do(t, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusOK {
			t.Errorf("%s: %d %s", path, resp.StatusCode, body)
		}
	}
}

func TestSessionGuards(t *testing.T) {
	a := newTestAPI(t)

	if resp, _ := a.do(t, http.MethodGet, "/api/v1/snapshot", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", resp.StatusCode)
	}
	resp, body := a.do(t, http.MethodGet, "/api/v1/snapshot", coach, nil)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(t, body) != "NO_SESSION" {
		t.Errorf("before session: %d %s", resp.StatusCode, body)
	}

	a.signIn(t)
	if resp, _ := a.do(t, http.MethodGet, "/api/v1/snapshot", "intruder", nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("other principal status = %d", resp.StatusCode)
	}

	if resp, _ := a.do(t, http.MethodDelete, "/api/v1/session", coach, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("end status = %d", resp.StatusCode)
	}
	if resp, _ := a.do(t, http.MethodGet, "/api/v1/teams", coach, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("after end status = %d", resp.StatusCode)
	}
}

func TestTeamLifecycle(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/teams", coach, map[string]string{"name": "Falcons"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	_, team := decodeMutation(t, body)
	id, _ := team["id"].(string)
	if team["ownerId"] != coach || id == "" {
		t.Fatalf("team = %v", team)
	}

	resp, body = a.do(t, http.MethodGet, "/api/v1/teams", coach, nil)
	var teams []map[string]any
	json.Unmarshal(body, &teams)
	if len(teams) != 1 || teams[0]["name"] != "Falcons" {
		t.Fatalf("teams = %s", body)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("no ETag")
	}
	if resp, _ := a.do(t, http.MethodGet, "/api/v1/teams", coach, nil, "If-None-Match", etag); resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d", resp.StatusCode)
	}

	resp, body = a.do(t, http.MethodPatch, "/api/v1/teams/"+id, coach, map[string]string{"name": "Falcons"})
	if m, _ := decodeMutation(t, body); resp.StatusCode != http.StatusOK || m.Changed == nil || *m.Changed {
		t.Errorf("no-op rename: %d %s", resp.StatusCode, body)
	}

	if resp, _ := a.do(t, http.MethodDelete, "/api/v1/teams/"+id, coach, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	// The snapshot version moved, so the old ETag no longer matches.
	if resp, body := a.do(t, http.MethodGet, "/api/v1/teams", coach, nil, "If-None-Match", etag); resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("after delete: %d %s", resp.StatusCode, body)
	}
}

func TestValidationError(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/matches", coach, map[string]string{
		"teamId": "t1", "opponent": "Rovers", "date": "June 1st", "time": "15:00", "location": "Home",
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, body) != "VALIDATION_FAILED" {
		t.Errorf("got %d %s", resp.StatusCode, body)
	}
	if a.mem.CountCalls(gateway.OpInsert, "") != 0 {
		t.Error("invalid match reached the store")
	}

	resp, body = a.do(t, http.MethodPost, "/api/v1/players", coach, map[string]any{"name": "Sam", "teamId": "t1", "shirt": 9})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, body) != "BAD_REQUEST" {
		t.Errorf("unknown field: %d %s", resp.StatusCode, body)
	}
}

func TestRemoteWriteFailure(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)
	a.mem.FailOn(gateway.OpInsert, gateway.Teams, "", errors.New("permission denied"))

	resp, body := a.do(t, http.MethodPost, "/api/v1/teams", coach, map[string]string{"name": "Falcons"})
	if resp.StatusCode != http.StatusBadGateway || errorCode(t, body) != "REMOTE_WRITE_FAILED" {
		t.Errorf("got %d %s", resp.StatusCode, body)
	}

	resp, body = a.do(t, http.MethodGet, "/api/v1/notices?limit=1", coach, nil)
	var notices []notifications.Notice
	json.Unmarshal(body, &notices)
	if resp.StatusCode != http.StatusOK || len(notices) != 1 || notices[0].Level != notifications.LevelError {
		t.Errorf("notices = %s", body)
	}
}

func TestTrainingSessionWithPartialFailure(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)

	var ids []string
	for _, name := range []string{"P1", "P2"} {
		_, body := a.do(t, http.MethodPost, "/api/v1/players", coach, map[string]any{"name": name, "teamId": "t1"})
		_, p := decodeMutation(t, body)
		ids = append(ids, p["id"].(string))
	}
	a.mem.FailOn(gateway.OpUpdate, gateway.Players, ids[1], errors.New("row locked"))

	resp, body := a.do(t, http.MethodPost, "/api/v1/training-sessions", coach, map[string]any{
		"teamId": "t1", "date": "2024-04-30", "attendedPlayerIds": ids,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d %s", resp.StatusCode, body)
	}
	m, ts := decodeMutation(t, body)
	if len(m.Warnings) != 1 || !strings.Contains(m.Warnings[0], ids[1]) {
		t.Errorf("warnings = %v", m.Warnings)
	}
	if ts["id"] == "" {
		t.Error("session not returned")
	}

	_, body = a.do(t, http.MethodGet, "/api/v1/training-sessions", coach, nil)
	var sessions []struct {
		ID        string           `json:"id"`
		Attendees []map[string]any `json:"attendees"`
	}
	json.Unmarshal(body, &sessions)
	if len(sessions) != 1 || len(sessions[0].Attendees) != 2 {
		t.Errorf("sessions = %s", body)
	}

	_, body = a.do(t, http.MethodGet, "/api/v1/players?team_id=t1", coach, nil)
	var players []map[string]any
	json.Unmarshal(body, &players)
	got := map[string]float64{}
	for _, p := range players {
		got[p["id"].(string)] = p["trainingsAttended"].(float64)
	}
	if got[ids[0]] != 1 || got[ids[1]] != 0 {
		t.Errorf("trainingsAttended = %v", got)
	}
}

func TestEditTrainingSessionNotFound(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)
	resp, _ := a.do(t, http.MethodPatch, "/api/v1/training-sessions/missing", coach, map[string]any{"date": "2024-05-01"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestResyncRejectsUnknownKind(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)
	if resp, _ := a.do(t, http.MethodPost, "/api/v1/resync?kind=coaches", coach, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp, _ := a.do(t, http.MethodPost, "/api/v1/resync?kind=players&kind=training-sessions", coach, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	a := newTestAPI(t)
	a.signIn(t)
	a.do(t, http.MethodPost, "/api/v1/matches", coach, map[string]string{
		"teamId": "t1", "opponent": "Rovers", "date": "2024-05-02", "time": "15:00", "location": "Home",
	})

	resp, body := a.do(t, http.MethodGet, "/api/v1/dashboard", coach, nil)
	var d views.Dashboard
	if err := json.Unmarshal(body, &d); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d %s", resp.StatusCode, body)
	}
	if len(d.UpcomingMatches) != 1 || d.Counts[2].Label != "1 match scheduled" {
		t.Errorf("dashboard = %+v", d)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimitMiddleware(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	// burst is half the window allowance
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
