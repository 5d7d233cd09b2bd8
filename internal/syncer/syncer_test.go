package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
)

var testSession = Session{PrincipalID: "owner-1", AccessToken: "token-1"}

type harness struct {
	sync *Synchronizer
	mem  *gateway.MemoryStore
	rec  *notifications.Recorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	mem := gateway.NewMemoryStore()
	return newHarnessWith(t, mem, mem, opts)
}

func newHarnessWith(t *testing.T, mem *gateway.MemoryStore, gw gateway.Gateway, opts Options) *harness {
	t.Helper()
	rec := notifications.NewRecorder(200)
	s := New(Deps{
		Repos:    repository.NewSet(gw),
		Notifier: rec,
		Clock:    clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts)
	return &harness{sync: s, mem: mem, rec: rec}
}

// seed inserts a row directly into the store, bypassing the synchronizer.
func (h *harness) seed(t *testing.T, table gateway.Table, row map[string]any) string {
	t.Helper()
	raw, err := h.mem.Insert(context.Background(), table, row)
	if err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
	var out struct {
		ID string `json:"id"`
	}
	json.Unmarshal(raw, &out)
	return out.ID
}

func (h *harness) establish(t *testing.T) {
	t.Helper()
	if err := h.sync.Establish(context.Background(), testSession); err != nil {
		t.Fatalf("Establish: %v", err)
	}
}

func (h *harness) lastNotice(t *testing.T) notifications.Notice {
	t.Helper()
	recent := h.rec.Recent(1)
	if len(recent) == 0 {
		t.Fatal("no notices recorded")
	}
	return recent[0]
}

func (h *harness) player(t *testing.T, id string) model.Player {
	t.Helper()
	p, ok := h.sync.Snapshot().Player(id)
	if !ok {
		t.Fatalf("player %s not in snapshot", id)
	}
	return p
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestEntryPointsRequireSession(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	if _, err := h.sync.CreateTeam(ctx, "Falcons", "owner-1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("CreateTeam err = %v, want ErrNoSession", err)
	}
	if err := h.sync.Resync(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("Resync err = %v, want ErrNoSession", err)
	}
	if n := len(h.mem.Calls()); n != 0 {
		t.Errorf("made %d store calls without a session", n)
	}
}

func TestEstablishLoadsAllCollections(t *testing.T) {
	h := newHarness(t, Options{})
	team := h.seed(t, gateway.Teams, map[string]any{"name": "Falcons", "user_id": "owner-1"})
	h.seed(t, gateway.Players, map[string]any{"name": "Sam", "team_id": team})
	h.seed(t, gateway.Matches, map[string]any{"team_id": team, "opponent": "Rovers", "date": "2024-06-01", "time": "15:00", "location": "Home"})
	h.seed(t, gateway.TrainingSessions, map[string]any{"team_id": team, "date": "2024-04-01", "attended_player_ids": []string{}})

	h.establish(t)

	snap := h.sync.Snapshot()
	if snap.State != StateReady || h.sync.State() != StateReady {
		t.Fatalf("state = %v", snap.State)
	}
	for _, k := range model.AllKinds {
		if snap.Count(k) != 1 {
			t.Errorf("%s count = %d, want 1", k, snap.Count(k))
		}
	}
	if snap.PrincipalID != "owner-1" {
		t.Errorf("principal = %q", snap.PrincipalID)
	}
}

func TestEstablishDegradesOnlyFailedCollection(t *testing.T) {
	h := newHarness(t, Options{})
	team := h.seed(t, gateway.Teams, map[string]any{"name": "Falcons", "user_id": "owner-1"})
	h.seed(t, gateway.Matches, map[string]any{"team_id": team, "opponent": "Rovers", "date": "2024-06-01", "time": "15:00", "location": "Home"})
	h.mem.FailOn(gateway.OpSelect, gateway.Matches, "", errors.New("timeout"))

	h.establish(t)

	snap := h.sync.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("state = %v, want ready despite a failed fetch", snap.State)
	}
	if len(snap.Teams) != 1 {
		t.Errorf("teams = %d, want 1", len(snap.Teams))
	}
	if snap.Matches == nil || len(snap.Matches) != 0 {
		t.Errorf("matches = %v, want empty", snap.Matches)
	}
	if !snap.IsDegraded(model.KindMatches) || snap.IsDegraded(model.KindTeams) {
		t.Errorf("degraded = %v", snap.Degraded)
	}

	var warned bool
	for _, n := range h.rec.Recent(0) {
		if n.Level == notifications.LevelWarning && n.Kind == model.KindMatches {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning notice for matches")
	}

	// A later successful resync clears the degraded flag.
	h.mem.FailOn(gateway.OpSelect, gateway.Matches, "", nil)
	if err := h.sync.Resync(context.Background(), model.KindMatches); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if snap := h.sync.Snapshot(); snap.IsDegraded(model.KindMatches) || len(snap.Matches) != 1 {
		t.Errorf("after resync: degraded=%v matches=%d", snap.Degraded, len(snap.Matches))
	}
}

func TestEndClearsCollections(t *testing.T) {
	h := newHarness(t, Options{})
	h.seed(t, gateway.Teams, map[string]any{"name": "Falcons", "user_id": "owner-1"})
	h.establish(t)

	h.sync.End()

	snap := h.sync.Snapshot()
	if snap.State != StateUnauthenticated {
		t.Fatalf("state = %v", snap.State)
	}
	for _, k := range model.AllKinds {
		if snap.Count(k) != 0 {
			t.Errorf("%s count = %d after End", k, snap.Count(k))
		}
	}
	if h.sync.Principal() != "" {
		t.Errorf("principal = %q after End", h.sync.Principal())
	}
}

// blockSelect holds the first select on table until release is closed.
func blockSelect(mem *gateway.MemoryStore, table gateway.Table) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	mem.BeforeEach(func(op gateway.Op, tbl gateway.Table) {
		if op != gateway.OpSelect || tbl != table {
			return
		}
		first := false
		once.Do(func() { first = true })
		if first {
			close(started)
			<-release
		}
	})
	return started, release
}

func TestLoadLandingAfterEndIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	h.seed(t, gateway.Teams, map[string]any{"name": "Falcons", "user_id": "owner-1"})
	started, release := blockSelect(h.mem, gateway.Players)

	done := make(chan error, 1)
	go func() { done <- h.sync.Establish(context.Background(), testSession) }()

	<-started
	if h.sync.State() != StateLoading {
		t.Fatalf("state = %v, want loading", h.sync.State())
	}
	h.sync.End()
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("Establish err = %v, want ErrSessionEnded", err)
	}
	snap := h.sync.Snapshot()
	if snap.State != StateUnauthenticated || len(snap.Teams) != 0 {
		t.Errorf("stale load repopulated the snapshot: state=%v teams=%d", snap.State, len(snap.Teams))
	}
}

func TestMutationLandingAfterEndIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	h.establish(t)
	started, release := blockSelect(h.mem, gateway.Teams)

	done := make(chan error, 1)
	go func() {
		_, err := h.sync.CreateTeam(context.Background(), "Falcons", "owner-1")
		done <- err
	}()

	<-started
	h.sync.End()
	close(release)
	<-done

	snap := h.sync.Snapshot()
	if snap.State != StateUnauthenticated || len(snap.Teams) != 0 {
		t.Errorf("stale resync repopulated the snapshot: state=%v teams=%d", snap.State, len(snap.Teams))
	}
	if h.sync.State() != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", h.sync.State())
	}
}

func TestMutationsRejectedWhileLoading(t *testing.T) {
	h := newHarness(t, Options{})
	started, release := blockSelect(h.mem, gateway.Teams)

	done := make(chan error, 1)
	go func() { done <- h.sync.Establish(context.Background(), testSession) }()
	<-started

	_, err := h.sync.CreateTeam(context.Background(), "Falcons", "owner-1")
	close(release)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("CreateTeam err = %v, want ErrNotReady", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if h.mem.CountCalls(gateway.OpInsert, "") != 0 {
		t.Error("insert reached the store during loading")
	}
}

func TestEstablishRequiresPrincipal(t *testing.T) {
	h := newHarness(t, Options{})
	err := h.sync.Establish(context.Background(), Session{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestSubscribeSeesLatestSnapshot(t *testing.T) {
	h := newHarness(t, Options{})
	ch, cancel := h.sync.Subscribe()
	defer cancel()

	first := <-ch
	if first.State != StateUnauthenticated {
		t.Fatalf("initial state = %v", first.State)
	}

	h.establish(t)
	h.sync.CreateTeam(context.Background(), "Falcons", "owner-1")

	// Several publishes happened; the buffered value is the newest.
	got := <-ch
	if got.Version != h.sync.Snapshot().Version || len(got.Teams) != 1 {
		t.Errorf("got version %d with %d teams, want latest %d", got.Version, len(got.Teams), h.sync.Snapshot().Version)
	}
}

func TestResyncPicksUpExternalChanges(t *testing.T) {
	h := newHarness(t, Options{})
	h.establish(t)
	h.seed(t, gateway.Teams, map[string]any{"name": "Added elsewhere", "user_id": "owner-2"})

	if len(h.sync.Snapshot().Teams) != 0 {
		t.Fatal("snapshot changed without a resync")
	}
	if err := h.sync.Resync(context.Background(), model.KindTeams); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if len(h.sync.Snapshot().Teams) != 1 {
		t.Error("resync did not pick up the new team")
	}
}

func TestAtomicModeFallsBackWithoutIncrementer(t *testing.T) {
	mem := gateway.NewMemoryStore()
	h := newHarnessWith(t, mem, struct{ gateway.Gateway }{mem}, Options{IncrementMode: config.IncrementAtomic})
	if got := h.sync.IncrementMode(); got != config.IncrementSnapshot {
		t.Fatalf("IncrementMode = %q, want snapshot", got)
	}
}
