package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
)

// PartialIncrementError reports attendance counters that could not be
// written after a training session was created. The session itself exists.
type PartialIncrementError struct {
	SessionID string
	Failed    map[string]error // player id -> cause
}

func (e *PartialIncrementError) Error() string {
	return fmt.Sprintf("training session %s created but %d attendance update(s) failed", e.SessionID, len(e.Failed))
}

func (e *PartialIncrementError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.PlayerIDs() {
		errs = append(errs, e.Failed[id])
	}
	return errs
}

// PlayerIDs returns the failed player ids in sorted order.
func (e *PartialIncrementError) PlayerIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrPlayersUnavailable marks attendees whose counter could not be read
// because the players collection failed to load.
var ErrPlayersUnavailable = errors.New("players collection unavailable")

// incrementAttendance adds one to trainingsAttended for every attendee that
// exists in the players collection. Absent ids are skipped, unless the
// players collection is degraded, in which case they are reported as
// failed. Failures do not stop the remaining writes.
func (s *Synchronizer) incrementAttendance(ctx context.Context, sessionID string, playerIDs []string) error {
	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	record := func(id string, err error) {
		mu.Lock()
		failed[id] = err
		mu.Unlock()
	}

	var (
		current         map[string]model.Player
		playersDegraded bool
	)
	switch s.opts.IncrementMode {
	case config.IncrementSerialized:
		unlock := s.playerLocks.lockAll(playerIDs)
		defer unlock()
		// Re-read under the locks so no other session's write in this
		// process is overwritten.
		players, err := s.repos.Players.FetchAll(ctx)
		if err != nil {
			for _, id := range playerIDs {
				record(id, err)
			}
			return &PartialIncrementError{SessionID: sessionID, Failed: failed}
		}
		current = indexPlayers(players)
	default:
		snap := s.Snapshot()
		current = indexPlayers(snap.Players)
		playersDegraded = snap.IsDegraded(model.KindPlayers)
	}

	var g errgroup.Group
	g.SetLimit(s.opts.IncrementWorkers)
	for _, id := range playerIDs {
		p, ok := current[id]
		if !ok && playersDegraded {
			record(id, ErrPlayersUnavailable)
			continue
		}
		if !ok {
			s.logger.Debug("Skipping attendance for unknown player", "player_id", id, "session_id", sessionID)
			continue
		}
		g.Go(func() error {
			var err error
			if s.opts.IncrementMode == config.IncrementAtomic {
				err = s.repos.Players.IncrementByID(ctx, p.ID, repository.ColTrainingsAttended, 1)
			} else {
				next := p.TrainingsAttended + 1
				err = s.repos.Players.UpdateByID(ctx, p.ID, model.PlayerUpdate{TrainingsAttended: &next})
			}
			if err != nil {
				s.logger.Warn("Attendance update failed", "player_id", p.ID, "session_id", sessionID, "error", err)
				record(p.ID, err)
			}
			return nil
		})
	}
	g.Wait()

	if len(failed) > 0 {
		return &PartialIncrementError{SessionID: sessionID, Failed: failed}
	}
	return nil
}

func indexPlayers(players []model.Player) map[string]model.Player {
	m := make(map[string]model.Player, len(players))
	for _, p := range players {
		m[p.ID] = p
	}
	return m
}

// keyedMutex hands out one mutex per key. Entries are reference counted and
// dropped once no caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sync.Mutex
	refs int
}

// lockAll locks every key in sorted order and returns the unlock func.
// Sorting keeps two overlapping callers from deadlocking.
func (k *keyedMutex) lockAll(keys []string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	held := make([]*keyedEntry, 0, len(sorted))
	for _, key := range sorted {
		e, ok := k.locks[key]
		if !ok {
			e = &keyedEntry{}
			k.locks[key] = e
		}
		e.refs++
		held = append(held, e)
	}
	k.mu.Unlock()

	for _, e := range held {
		e.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		k.mu.Lock()
		for i, key := range sorted {
			if held[i].refs--; held[i].refs == 0 {
				delete(k.locks, key)
			}
		}
		k.mu.Unlock()
	}
}

// size reports how many keys have live entries.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
