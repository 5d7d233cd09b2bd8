package syncer

import (
	"fmt"
	"time"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// State is the synchronizer's session state.
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unauthenticated"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unauthenticated":
		*s = StateUnauthenticated
	case "loading":
		*s = StateLoading
	case "ready":
		*s = StateReady
	default:
		return fmt.Errorf("unknown session state %q", b)
	}
	return nil
}

// Snapshot is an immutable view of the four collections. A new Snapshot is
// published for every change; slices are shared between snapshots and must
// not be modified by readers.
type Snapshot struct {
	// Generation identifies the session the snapshot belongs to.
	Generation uint64 `json:"generation"`
	// Version increases with every publish across sessions.
	Version     uint64    `json:"version"`
	State       State     `json:"state"`
	PrincipalID string    `json:"principalId,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Teams            []model.Team            `json:"teams"`
	Players          []model.Player          `json:"players"`
	Matches          []model.Match           `json:"matches"`
	TrainingSessions []model.TrainingSession `json:"trainingSessions"`

	// Degraded lists collections whose last fetch failed and are shown
	// empty.
	Degraded []model.Kind `json:"degraded,omitempty"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Teams:            []model.Team{},
		Players:          []model.Player{},
		Matches:          []model.Match{},
		TrainingSessions: []model.TrainingSession{},
	}
}

// clone copies the header fields; collection slices are shared.
func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Degraded = append([]model.Kind(nil), s.Degraded...)
	return &c
}

// Count returns the number of entities in kind's collection.
func (s *Snapshot) Count(kind model.Kind) int {
	switch kind {
	case model.KindTeams:
		return len(s.Teams)
	case model.KindPlayers:
		return len(s.Players)
	case model.KindMatches:
		return len(s.Matches)
	case model.KindTrainingSessions:
		return len(s.TrainingSessions)
	}
	return 0
}

func (s *Snapshot) Team(id string) (model.Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return model.Team{}, false
}

func (s *Snapshot) Player(id string) (model.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return model.Player{}, false
}

func (s *Snapshot) Match(id string) (model.Match, bool) {
	for _, m := range s.Matches {
		if m.ID == id {
			return m, true
		}
	}
	return model.Match{}, false
}

func (s *Snapshot) TrainingSession(id string) (model.TrainingSession, bool) {
	for _, ts := range s.TrainingSessions {
		if ts.ID == id {
			return ts, true
		}
	}
	return model.TrainingSession{}, false
}

// IsDegraded reports whether kind's last fetch failed.
func (s *Snapshot) IsDegraded(kind model.Kind) bool {
	for _, k := range s.Degraded {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *Snapshot) setDegraded(kind model.Kind, degraded bool) {
	out := s.Degraded[:0]
	for _, k := range s.Degraded {
		if k != kind {
			out = append(out, k)
		}
	}
	if degraded {
		out = append(out, kind)
	}
	s.Degraded = out
}

// Summary is the header of a snapshot without the collections, used for
// change announcements.
type Summary struct {
	Generation uint64             `json:"generation"`
	Version    uint64             `json:"version"`
	State      State              `json:"state"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Counts     map[model.Kind]int `json:"counts"`
	Degraded   []model.Kind       `json:"degraded,omitempty"`
}

func (s *Snapshot) Summary() Summary {
	counts := make(map[model.Kind]int, len(model.AllKinds))
	for _, k := range model.AllKinds {
		counts[k] = s.Count(k)
	}
	return Summary{
		Generation: s.Generation,
		Version:    s.Version,
		State:      s.State,
		UpdatedAt:  s.UpdatedAt,
		Counts:     counts,
		Degraded:   s.Degraded,
	}
}
