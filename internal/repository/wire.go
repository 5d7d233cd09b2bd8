package repository

import (
	"encoding/json"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// Store row shapes. Field names follow the table columns exactly.

type teamRow struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

type playerRow struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	TeamID            string `json:"team_id"`
	MatchesPlayed     int    `json:"matches_played"`
	TrainingsAttended int    `json:"trainings_attended"`
	Goals             int    `json:"goals"`
	Assists           int    `json:"assists"`
}

type matchRow struct {
	ID       string `json:"id,omitempty"`
	TeamID   string `json:"team_id"`
	Opponent string `json:"opponent"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

type trainingSessionRow struct {
	ID                string   `json:"id,omitempty"`
	TeamID            string   `json:"team_id"`
	Date              string   `json:"date"`
	AttendedPlayerIDs []string `json:"attended_player_ids"`
}

// --------------------------------------------------------------------------
// Team
// --------------------------------------------------------------------------

func decodeTeam(raw json.RawMessage) (model.Team, error) {
	var r teamRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Team{}, err
	}
	return model.Team{ID: r.ID, Name: r.Name, OwnerID: r.UserID}, nil
}

func encodeNewTeam(t model.NewTeam) any {
	return teamRow{Name: t.Name, UserID: t.OwnerID}
}

func encodeTeamUpdate(u model.TeamUpdate) map[string]any {
	m := map[string]any{}
	if u.Name != nil {
		m["name"] = *u.Name
	}
	return m
}

// --------------------------------------------------------------------------
// Player
// --------------------------------------------------------------------------

func decodePlayer(raw json.RawMessage) (model.Player, error) {
	var r playerRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Player{}, err
	}
	return model.Player{
		ID:                r.ID,
		Name:              r.Name,
		TeamID:            r.TeamID,
		MatchesPlayed:     r.MatchesPlayed,
		TrainingsAttended: r.TrainingsAttended,
		Goals:             r.Goals,
		Assists:           r.Assists,
	}, nil
}

func encodeNewPlayer(p model.NewPlayer) any {
	return playerRow{
		Name:              p.Name,
		TeamID:            p.TeamID,
		MatchesPlayed:     p.MatchesPlayed,
		TrainingsAttended: p.TrainingsAttended,
		Goals:             p.Goals,
		Assists:           p.Assists,
	}
}

func encodePlayerUpdate(u model.PlayerUpdate) map[string]any {
	m := map[string]any{}
	if u.Name != nil {
		m["name"] = *u.Name
	}
	if u.TeamID != nil {
		m["team_id"] = *u.TeamID
	}
	if u.MatchesPlayed != nil {
		m["matches_played"] = *u.MatchesPlayed
	}
	if u.TrainingsAttended != nil {
		m[ColTrainingsAttended] = *u.TrainingsAttended
	}
	if u.Goals != nil {
		m["goals"] = *u.Goals
	}
	if u.Assists != nil {
		m["assists"] = *u.Assists
	}
	return m
}

// --------------------------------------------------------------------------
// Match
// --------------------------------------------------------------------------

func decodeMatch(raw json.RawMessage) (model.Match, error) {
	var r matchRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Match{}, err
	}
	return model.Match{
		ID:       r.ID,
		TeamID:   r.TeamID,
		Opponent: r.Opponent,
		Date:     r.Date,
		Time:     r.Time,
		Location: r.Location,
	}, nil
}

func encodeNewMatch(m model.NewMatch) any {
	return matchRow{
		TeamID:   m.TeamID,
		Opponent: m.Opponent,
		Date:     m.Date,
		Time:     m.Time,
		Location: m.Location,
	}
}

func encodeMatchUpdate(u model.MatchUpdate) map[string]any {
	m := map[string]any{}
	if u.TeamID != nil {
		m["team_id"] = *u.TeamID
	}
	if u.Opponent != nil {
		m["opponent"] = *u.Opponent
	}
	if u.Date != nil {
		m["date"] = *u.Date
	}
	if u.Time != nil {
		m["time"] = *u.Time
	}
	if u.Location != nil {
		m["location"] = *u.Location
	}
	return m
}

// --------------------------------------------------------------------------
// Training session
// --------------------------------------------------------------------------

func decodeTrainingSession(raw json.RawMessage) (model.TrainingSession, error) {
	var r trainingSessionRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.TrainingSession{}, err
	}
	ids := r.AttendedPlayerIDs
	if ids == nil {
		ids = []string{}
	}
	return model.TrainingSession{
		ID:                r.ID,
		TeamID:            r.TeamID,
		Date:              r.Date,
		AttendedPlayerIDs: ids,
	}, nil
}

func encodeNewTrainingSession(s model.NewTrainingSession) any {
	ids := s.AttendedPlayerIDs
	if ids == nil {
		ids = []string{}
	}
	return trainingSessionRow{TeamID: s.TeamID, Date: s.Date, AttendedPlayerIDs: ids}
}

func encodeTrainingSessionUpdate(u model.TrainingSessionUpdate) map[string]any {
	m := map[string]any{}
	if u.TeamID != nil {
		m["team_id"] = *u.TeamID
	}
	if u.Date != nil {
		m["date"] = *u.Date
	}
	if u.AttendedPlayerIDs != nil {
		m["attended_player_ids"] = u.AttendedPlayerIDs
	}
	return m
}
