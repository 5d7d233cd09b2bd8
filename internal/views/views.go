// Package views derives read-only projections from a synchronizer snapshot:
// dashboard counts, upcoming matches, session listings and the player roster
// grouped by team. Nothing here writes to the store.
package views

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// UpcomingLimit is the number of matches shown on the dashboard.
const UpcomingLimit = 3

// UnassignedTeam heads the roster group for players whose team is unknown.
const UnassignedTeam = "Unassigned Players"

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Builder computes projections. Match times are interpreted in loc.
type Builder struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewBuilder returns a Builder. A nil clock uses the real clock; a nil
// location uses UTC.
func NewBuilder(clock clockwork.Clock, loc *time.Location) *Builder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{clock: clock, loc: loc}
}

// --------------------------------------------------------------------------
// Dashboard
// --------------------------------------------------------------------------

// Count is one dashboard tile.
type Count struct {
	Kind  model.Kind `json:"kind"`
	Total int        `json:"total"`
	Label string     `json:"label"`
}

// MatchView is a match with its team resolved.
type MatchView struct {
	model.Match
	TeamName string    `json:"teamName"`
	StartsAt time.Time `json:"startsAt"`
}

// SessionView is a training session with its team and attendees resolved.
type SessionView struct {
	model.TrainingSession
	TeamName  string         `json:"teamName"`
	Attendees []model.Player `json:"attendees"`
	// RosterSize is the number of players currently on the session's team.
	RosterSize int `json:"rosterSize"`
}

// RosterGroup is one team's players.
type RosterGroup struct {
	TeamID   string         `json:"teamId"`
	TeamName string         `json:"teamName"`
	Players  []model.Player `json:"players"`
}

type Dashboard struct {
	State           syncer.State  `json:"state"`
	Version         uint64        `json:"version"`
	Counts          []Count       `json:"counts"`
	UpcomingMatches []MatchView   `json:"upcomingMatches"`
	RecentSessions  []SessionView `json:"recentSessions"`
	Degraded        []model.Kind  `json:"degraded,omitempty"`
}

// Dashboard assembles the overview for snap. recent caps the number of
// sessions returned; zero or less returns all of them.
func (b *Builder) Dashboard(snap *syncer.Snapshot, recent int) Dashboard {
	counts := make([]Count, 0, len(model.AllKinds))
	for _, k := range model.AllKinds {
		n := snap.Count(k)
		counts = append(counts, Count{Kind: k, Total: n, Label: CountLabel(k, n)})
	}
	sessions := b.SessionsNewestFirst(snap, "")
	if recent > 0 && len(sessions) > recent {
		sessions = sessions[:recent]
	}
	return Dashboard{
		State:           snap.State,
		Version:         snap.Version,
		Counts:          counts,
		UpcomingMatches: b.UpcomingMatches(snap, UpcomingLimit),
		RecentSessions:  sessions,
		Degraded:        snap.Degraded,
	}
}

// CountLabel renders n with the right noun, e.g. "1 team registered" or
// "4 sessions recorded".
func CountLabel(kind model.Kind, n int) string {
	var one, many, verb string
	switch kind {
	case model.KindTeams:
		one, many, verb = "team", "teams", "registered"
	case model.KindPlayers:
		one, many, verb = "player", "players", "registered"
	case model.KindMatches:
		one, many, verb = "match", "matches", "scheduled"
	case model.KindTrainingSessions:
		one, many, verb = "session", "sessions", "recorded"
	default:
		one, many, verb = string(kind), string(kind), "stored"
	}
	if n == 1 {
		return fmt.Sprintf("1 %s %s", one, verb)
	}
	return fmt.Sprintf("%d %s %s", n, many, verb)
}

// --------------------------------------------------------------------------
// Matches
// --------------------------------------------------------------------------

// UpcomingMatches returns matches starting strictly after now, soonest
// first, at most limit of them. Matches whose date or time does not parse
// are left out.
func (b *Builder) UpcomingMatches(snap *syncer.Snapshot, limit int) []MatchView {
	now := b.clock.Now()
	names := teamNames(snap)

	out := []MatchView{}
	for _, m := range snap.Matches {
		at, err := time.ParseInLocation(dateTimeLayout, m.Date+" "+m.Time, b.loc)
		if err != nil || !at.After(now) {
			continue
		}
		out = append(out, MatchView{Match: m, TeamName: names[m.TeamID], StartsAt: at})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Matches returns every match with its team name, optionally filtered by team.
func (b *Builder) Matches(snap *syncer.Snapshot, teamID string) []MatchView {
	names := teamNames(snap)
	out := []MatchView{}
	for _, m := range snap.Matches {
		if teamID != "" && m.TeamID != teamID {
			continue
		}
		at, _ := time.ParseInLocation(dateTimeLayout, m.Date+" "+m.Time, b.loc)
		out = append(out, MatchView{Match: m, TeamName: names[m.TeamID], StartsAt: at})
	}
	return out
}

// --------------------------------------------------------------------------
// Training sessions
// --------------------------------------------------------------------------

// SessionsNewestFirst resolves every session (optionally for one team) and
// orders them by date, newest first. Attendee ids that no longer name a
// player are skipped.
func (b *Builder) SessionsNewestFirst(snap *syncer.Snapshot, teamID string) []SessionView {
	names := teamNames(snap)
	players := make(map[string]model.Player, len(snap.Players))
	roster := make(map[string]int)
	for _, p := range snap.Players {
		players[p.ID] = p
		roster[p.TeamID]++
	}

	out := []SessionView{}
	for _, s := range snap.TrainingSessions {
		if teamID != "" && s.TeamID != teamID {
			continue
		}
		attendees := []model.Player{}
		for _, id := range s.AttendedPlayerIDs {
			if p, ok := players[id]; ok {
				attendees = append(attendees, p)
			}
		}
		out = append(out, SessionView{
			TrainingSession: s,
			TeamName:        names[s.TeamID],
			Attendees:       attendees,
			RosterSize:      roster[s.TeamID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sessionDay(out[i].Date).After(sessionDay(out[j].Date))
	})
	return out
}

func sessionDay(date string) time.Time {
	t, _ := time.Parse(dateLayout, date)
	return t
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// PlayersByTeam groups players by team in order of first appearance.
// Players whose team is not in the snapshot are grouped under
// UnassignedTeam, keyed by the team id they carry.
func (b *Builder) PlayersByTeam(snap *syncer.Snapshot) []RosterGroup {
	names := teamNames(snap)
	index := make(map[string]int)
	var groups []RosterGroup
	for _, p := range snap.Players {
		i, ok := index[p.TeamID]
		if !ok {
			name, known := names[p.TeamID]
			if !known {
				name = UnassignedTeam
			}
			i = len(groups)
			index[p.TeamID] = i
			groups = append(groups, RosterGroup{TeamID: p.TeamID, TeamName: name})
		}
		groups[i].Players = append(groups[i].Players, p)
	}
	if groups == nil {
		return []RosterGroup{}
	}
	return groups
}

// Players returns players, optionally only those on teamID.
func (b *Builder) Players(snap *syncer.Snapshot, teamID string) []model.Player {
	if teamID == "" {
		return snap.Players
	}
	out := []model.Player{}
	for _, p := range snap.Players {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out
}

func teamNames(snap *syncer.Snapshot) map[string]string {
	m := make(map[string]string, len(snap.Teams))
	for _, t := range snap.Teams {
		m[t.ID] = t.Name
	}
	return m
}
