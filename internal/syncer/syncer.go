// Package syncer owns the canonical in-memory copies of the four roster
// collections (teams, players, matches, training sessions). Every mutation
// goes through a Synchronizer entry point, which validates locally, writes
// through the repositories and then re-fetches the affected collections.
//
// Lifecycle:
//
//	Unauthenticated --Establish--> Loading --all four fetched--> Ready
//	any state       --End-------> Unauthenticated
//
// Each Establish starts a new generation. Fetch results carry the
// generation they were started under and are dropped if it is no longer
// current, so a response that lands after End or a re-Establish never
// repopulates the collections.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
)

var (
	// ErrNoSession is returned by entry points called without a session.
	ErrNoSession = errors.New("no active session")
	// ErrNotReady is returned by mutations while the initial load runs.
	ErrNotReady = errors.New("session is still loading")
	// ErrSessionEnded is returned by Establish when End or another
	// Establish superseded it before the load finished.
	ErrSessionEnded = errors.New("session ended before load completed")
)

// Session identifies the signed-in principal.
type Session struct {
	PrincipalID string
	AccessToken string
}

// Options tunes the synchronizer. Zero values take defaults.
type Options struct {
	// IncrementMode is config.IncrementSnapshot, IncrementSerialized or
	// IncrementAtomic.
	IncrementMode string
	// IncrementWorkers bounds concurrent attendance writes.
	IncrementWorkers int
}

// Deps are the synchronizer's collaborators. Repos is required.
type Deps struct {
	Repos    *repository.Set
	Notifier notifications.Notifier
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Synchronizer is safe for concurrent use.
type Synchronizer struct {
	repos    *repository.Set
	notifier notifications.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	opts     Options

	// mu guards the session fields and serializes publishes.
	mu         sync.Mutex
	generation uint64
	session    *Session
	state      State

	snap atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	subs   map[chan *Snapshot]struct{}

	playerLocks keyedMutex
}

// New creates a synchronizer in the Unauthenticated state.
func New(deps Deps, opts Options) *Synchronizer {
	if deps.Notifier == nil {
		deps.Notifier = notifications.Discard
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.IncrementMode == "" {
		opts.IncrementMode = config.IncrementSnapshot
	}
	if opts.IncrementWorkers < 1 {
		opts.IncrementWorkers = 4
	}
	if opts.IncrementMode == config.IncrementAtomic && !deps.Repos.Players.SupportsIncrement() {
		deps.Logger.Warn("Store has no server-side increment, falling back to snapshot mode")
		opts.IncrementMode = config.IncrementSnapshot
	}

	s := &Synchronizer{
		repos:    deps.Repos,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		logger:   deps.Logger,
		opts:     opts,
		subs:     make(map[chan *Snapshot]struct{}),
	}
	s.snap.Store(emptySnapshot())
	return s
}

// IncrementMode returns the effective attendance increment strategy.
func (s *Synchronizer) IncrementMode() string { return s.opts.IncrementMode }

// Snapshot returns the current published snapshot. Never nil.
func (s *Synchronizer) Snapshot() *Snapshot {
	return s.snap.Load()
}

// State returns the current session state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Principal returns the signed-in principal id, or "" without a session.
func (s *Synchronizer) Principal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.PrincipalID
}

// Subscribe returns a channel that receives every published snapshot. The
// channel holds one value; a slow reader sees only the latest snapshot.
// The current snapshot is delivered immediately.
func (s *Synchronizer) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	// Loading under subsMu means any later publish also reaches ch.
	s.subsMu.Lock()
	ch <- s.Snapshot()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

// --------------------------------------------------------------------------
// Session lifecycle
// --------------------------------------------------------------------------

// Establish starts a session for sess and loads all four collections
// concurrently. A collection whose fetch fails is published empty with a
// warning notice; the others are unaffected. Establish returns once the
// state is Ready, or ErrSessionEnded if the session was superseded.
func (s *Synchronizer) Establish(ctx context.Context, sess Session) error {
	if sess.PrincipalID == "" {
		return &ValidationError{Field: "principalId", Reason: "is required"}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.session = &sess
	s.state = StateLoading
	next := emptySnapshot()
	next.Generation = gen
	next.State = StateLoading
	next.PrincipalID = sess.PrincipalID
	s.publishLocked(next)
	s.mu.Unlock()

	s.logger.Info("Session establishing", "principal", sess.PrincipalID, "generation", gen)

	// A load runs to completion even if the caller goes away.
	ctx = gateway.WithAccessToken(context.WithoutCancel(ctx), sess.AccessToken)
	res := s.fetch(ctx, model.AllKinds)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Info("Discarded stale initial load", "generation", gen)
		return ErrSessionEnded
	}
	next = s.snap.Load().clone()
	next.State = StateReady
	res.applyTo(next)
	s.state = StateReady
	s.publishLocked(next)
	s.mu.Unlock()

	s.warnFetchFailures("load", res)
	s.logger.Info("Session ready",
		"principal", sess.PrincipalID,
		"teams", len(next.Teams),
		"players", len(next.Players),
		"matches", len(next.Matches),
		"training_sessions", len(next.TrainingSessions))
	return nil
}

// End clears all four collections and returns to Unauthenticated. In-flight
// fetches and mutations continue but their results are discarded.
func (s *Synchronizer) End() {
	s.mu.Lock()
	had := s.session != nil
	s.generation++
	s.session = nil
	s.state = StateUnauthenticated
	next := emptySnapshot()
	next.Generation = s.generation
	s.publishLocked(next)
	s.mu.Unlock()

	if had {
		s.logger.Info("Session ended")
	}
}

// Resync re-fetches the given collections (all four when none are given)
// and publishes the result. Fetch failures degrade the collection to empty
// and are returned joined.
func (s *Synchronizer) Resync(ctx context.Context, kinds ...model.Kind) error {
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		kinds = model.AllKinds
	}
	return s.resync(ctx, gen, kinds...)
}

// resync is the single reconciliation path used after every mutation.
// Concurrent resyncs of one collection are last-write-wins in completion
// order.
func (s *Synchronizer) resync(ctx context.Context, gen uint64, kinds ...model.Kind) error {
	res := s.fetch(ctx, uniqueKinds(kinds))

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("Discarded stale resync", "generation", gen, "kinds", kinds)
		return nil
	}
	next := s.snap.Load().clone()
	res.applyTo(next)
	s.publishLocked(next)
	s.mu.Unlock()

	s.warnFetchFailures("resync", res)
	return res.err()
}

// begin checks the session is Ready and returns a context carrying its
// access token and the generation to publish under. The returned context is
// never cancelled: once started, an entry point runs every step.
func (s *Synchronizer) begin(ctx context.Context) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUnauthenticated:
		return ctx, 0, ErrNoSession
	case StateLoading:
		return ctx, 0, ErrNotReady
	}
	return gateway.WithAccessToken(context.WithoutCancel(ctx), s.session.AccessToken), s.generation, nil
}

// publishLocked stamps and stores next and wakes subscribers. s.mu must be
// held.
func (s *Synchronizer) publishLocked(next *Snapshot) {
	prev := s.snap.Load()
	next.Version = prev.Version + 1
	next.UpdatedAt = s.clock.Now()
	s.snap.Store(next)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- next:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

// --------------------------------------------------------------------------
// Fetch fan-out
// --------------------------------------------------------------------------

// fetchResult holds the outcome of one fan-out. Each goroutine writes only
// its own collection field.
type fetchResult struct {
	kinds            []model.Kind
	teams            []model.Team
	players          []model.Player
	matches          []model.Match
	trainingSessions []model.TrainingSession

	mu   sync.Mutex
	errs map[model.Kind]error
}

func (s *Synchronizer) fetch(ctx context.Context, kinds []model.Kind) *fetchResult {
	res := &fetchResult{kinds: kinds, errs: make(map[model.Kind]error)}

	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(k model.Kind) {
			defer wg.Done()
			var err error
			switch k {
			case model.KindTeams:
				res.teams, err = s.repos.Teams.FetchAll(ctx)
			case model.KindPlayers:
				res.players, err = s.repos.Players.FetchAll(ctx)
			case model.KindMatches:
				res.matches, err = s.repos.Matches.FetchAll(ctx)
			case model.KindTrainingSessions:
				res.trainingSessions, err = s.repos.TrainingSessions.FetchAll(ctx)
			}
			if err != nil {
				res.mu.Lock()
				res.errs[k] = err
				res.mu.Unlock()
			}
		}(k)
	}
	wg.Wait()
	return res
}

// applyTo replaces each fetched collection wholesale. Failed collections
// become empty.
func (r *fetchResult) applyTo(snap *Snapshot) {
	for _, k := range r.kinds {
		_, failed := r.errs[k]
		snap.setDegraded(k, failed)
		switch k {
		case model.KindTeams:
			snap.Teams = nonNil(r.teams)
		case model.KindPlayers:
			snap.Players = nonNil(r.players)
		case model.KindMatches:
			snap.Matches = nonNil(r.matches)
		case model.KindTrainingSessions:
			snap.TrainingSessions = nonNil(r.trainingSessions)
		}
	}
}

func (r *fetchResult) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.errs))
	for _, k := range r.kinds {
		if err, ok := r.errs[k]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Synchronizer) warnFetchFailures(op string, res *fetchResult) {
	for _, k := range res.kinds {
		err, ok := res.errs[k]
		if !ok {
			continue
		}
		s.logger.Warn("Fetch failed, showing empty collection", "op", op, "kind", k, "error", err)
		s.notify(notifications.LevelWarning, op, k, "Failed to fetch "+kindPlural(k)+".", err)
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func uniqueKinds(kinds []model.Kind) []model.Kind {
	seen := make(map[model.Kind]bool, len(kinds))
	out := make([]model.Kind, 0, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func kindPlural(k model.Kind) string {
	switch k {
	case model.KindTrainingSessions:
		return "training sessions"
	default:
		return string(k)
	}
}

// --------------------------------------------------------------------------
// Notices
// --------------------------------------------------------------------------

func (s *Synchronizer) notify(level notifications.Level, op string, kind model.Kind, msg string, err error) {
	n := notifications.Notice{
		Level:   level,
		Op:      op,
		Kind:    kind,
		Message: msg,
		Time:    s.clock.Now(),
	}
	if err != nil {
		n.Error = err.Error()
	}
	s.notifier.Notify(n)
}
