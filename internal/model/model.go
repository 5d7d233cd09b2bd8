// Package model defines the domain entities shared by the repositories, the
// synchronizer and the API layer. Field names are camelCase on the JSON side;
// the snake_case store shape lives in package repository.
package model

import "fmt"

// Kind identifies one of the four canonical collections.
type Kind string

const (
	KindTeams            Kind = "teams"
	KindPlayers          Kind = "players"
	KindMatches          Kind = "matches"
	KindTrainingSessions Kind = "training_sessions"
)

// AllKinds lists every collection in load order.
var AllKinds = []Kind{KindTeams, KindPlayers, KindMatches, KindTrainingSessions}

// ParseKind accepts the store table name or the URL spelling
// ("training-sessions").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "teams", "team":
		return KindTeams, nil
	case "players", "player":
		return KindPlayers, nil
	case "matches", "match":
		return KindMatches, nil
	case "training_sessions", "training-sessions", "training", "sessions":
		return KindTrainingSessions, nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Label is the human-readable singular noun used in notices.
func (k Kind) Label() string {
	switch k {
	case KindTeams:
		return "Team"
	case KindPlayers:
		return "Player"
	case KindMatches:
		return "Match"
	case KindTrainingSessions:
		return "Training session"
	}
	return string(k)
}

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

type Team struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

type Player struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	TeamID            string `json:"teamId"`
	MatchesPlayed     int    `json:"matchesPlayed"`
	TrainingsAttended int    `json:"trainingsAttended"`
	Goals             int    `json:"goals"`
	Assists           int    `json:"assists"`
}

// Match date is "YYYY-MM-DD" and time is "HH:MM".
type Match struct {
	ID       string `json:"id"`
	TeamID   string `json:"teamId"`
	Opponent string `json:"opponent"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// TrainingSession.AttendedPlayerIDs is a set; order is insertion order.
type TrainingSession struct {
	ID                string   `json:"id"`
	TeamID            string   `json:"teamId"`
	Date              string   `json:"date"`
	AttendedPlayerIDs []string `json:"attendedPlayerIds"`
}

// Attended reports whether playerID is in the session's attendee set.
func (s TrainingSession) Attended(playerID string) bool {
	for _, id := range s.AttendedPlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Partial values for inserts (no id) and updates (nil = not provided)
// --------------------------------------------------------------------------

type NewTeam struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

type NewPlayer struct {
	Name              string `json:"name"`
	TeamID            string `json:"teamId"`
	MatchesPlayed     int    `json:"matchesPlayed"`
	TrainingsAttended int    `json:"trainingsAttended"`
	Goals             int    `json:"goals"`
	Assists           int    `json:"assists"`
}

type NewMatch struct {
	TeamID   string `json:"teamId"`
	Opponent string `json:"opponent"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

type NewTrainingSession struct {
	TeamID            string   `json:"teamId"`
	Date              string   `json:"date"`
	AttendedPlayerIDs []string `json:"attendedPlayerIds"`
}

type TeamUpdate struct {
	Name *string `json:"name,omitempty"`
}

type PlayerUpdate struct {
	Name              *string `json:"name,omitempty"`
	TeamID            *string `json:"teamId,omitempty"`
	MatchesPlayed     *int    `json:"matchesPlayed,omitempty"`
	TrainingsAttended *int    `json:"trainingsAttended,omitempty"`
	Goals             *int    `json:"goals,omitempty"`
	Assists           *int    `json:"assists,omitempty"`
}

type MatchUpdate struct {
	TeamID   *string `json:"teamId,omitempty"`
	Opponent *string `json:"opponent,omitempty"`
	Date     *string `json:"date,omitempty"`
	Time     *string `json:"time,omitempty"`
	Location *string `json:"location,omitempty"`
}

type TrainingSessionUpdate struct {
	TeamID            *string  `json:"teamId,omitempty"`
	Date              *string  `json:"date,omitempty"`
	AttendedPlayerIDs []string `json:"attendedPlayerIds,omitempty"`
}

// ChangesFrom drops every field equal to the current value and reports
// whether anything remains.
func (u PlayerUpdate) ChangesFrom(p Player) (PlayerUpdate, bool) {
	out := PlayerUpdate{}
	if u.Name != nil && *u.Name != p.Name {
		out.Name = u.Name
	}
	if u.TeamID != nil && *u.TeamID != p.TeamID {
		out.TeamID = u.TeamID
	}
	if u.MatchesPlayed != nil && *u.MatchesPlayed != p.MatchesPlayed {
		out.MatchesPlayed = u.MatchesPlayed
	}
	if u.TrainingsAttended != nil && *u.TrainingsAttended != p.TrainingsAttended {
		out.TrainingsAttended = u.TrainingsAttended
	}
	if u.Goals != nil && *u.Goals != p.Goals {
		out.Goals = u.Goals
	}
	if u.Assists != nil && *u.Assists != p.Assists {
		out.Assists = u.Assists
	}
	return out, out != PlayerUpdate{}
}

func (u MatchUpdate) ChangesFrom(m Match) (MatchUpdate, bool) {
	out := MatchUpdate{}
	if u.TeamID != nil && *u.TeamID != m.TeamID {
		out.TeamID = u.TeamID
	}
	if u.Opponent != nil && *u.Opponent != m.Opponent {
		out.Opponent = u.Opponent
	}
	if u.Date != nil && *u.Date != m.Date {
		out.Date = u.Date
	}
	if u.Time != nil && *u.Time != m.Time {
		out.Time = u.Time
	}
	if u.Location != nil && *u.Location != m.Location {
		out.Location = u.Location
	}
	return out, out != MatchUpdate{}
}

func (u TrainingSessionUpdate) ChangesFrom(s TrainingSession) (TrainingSessionUpdate, bool) {
	out := TrainingSessionUpdate{}
	changed := false
	if u.TeamID != nil && *u.TeamID != s.TeamID {
		out.TeamID = u.TeamID
		changed = true
	}
	if u.Date != nil && *u.Date != s.Date {
		out.Date = u.Date
		changed = true
	}
	if u.AttendedPlayerIDs != nil && !sameSet(u.AttendedPlayerIDs, s.AttendedPlayerIDs) {
		out.AttendedPlayerIDs = u.AttendedPlayerIDs
		changed = true
	}
	return out, changed
}

// Dedupe returns ids with duplicates and empty strings removed, keeping the
// first occurrence order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = Dedupe(a), Dedupe(b)
	if len(a) != len(b) {
		return false
	}
	in := make(map[string]struct{}, len(a))
	for _, id := range a {
		in[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := in[id]; !ok {
			return false
		}
	}
	return true
}
