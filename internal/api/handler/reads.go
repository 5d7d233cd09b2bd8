package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dilbarpun07/GBFC-website/internal/api/respond"
	"github.com/Dilbarpun07/GBFC-website/internal/cache"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

const defaultRecentSessions = 5

// GetSnapshot returns the full published snapshot.
// @Summary Full snapshot
// @Description All four collections as last published. Supports If-None-Match.
// @Tags reads
// @Produce json
// @Success 200 {object} syncer.Snapshot
// @Success 304
// @Router /snapshot [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, "snapshot", cache.TTLSnapshot, func(s *syncer.Snapshot) any { return s })
}

// GetDashboard returns counts, the next upcoming matches and recent sessions.
// @Summary Dashboard
// @Tags reads
// @Produce json
// @Param recent query int false "Recent sessions to include (default 5, 0 for all)"
// @Success 200 {object} views.Dashboard
// @Router /dashboard [get]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	recent := defaultRecentSessions
	if v := r.URL.Query().Get("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.WriteError(w, http.StatusBadRequest, respond.CodeBadRequest, "recent must be a non-negative integer")
			return
		}
		recent = n
	}
	h.serveView(w, r, "dashboard", cache.TTLDashboard, func(s *syncer.Snapshot) any {
		return h.views.Dashboard(s, recent)
	})
}

// @Summary List teams
// @Tags reads
// @Produce json
// @Success 200 {array} model.Team
// @Router /teams [get]
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, "teams", cache.TTLSnapshot, func(s *syncer.Snapshot) any { return s.Teams })
}

// @Summary List players
// @Tags reads
// @Produce json
// @Param team_id query string false "Only players on this team"
// @Success 200 {array} model.Player
// @Router /players [get]
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	h.serveView(w, r, "players", cache.TTLSnapshot, func(s *syncer.Snapshot) any {
		return h.views.Players(s, teamID)
	})
}

// @Summary Players grouped by team
// @Tags reads
// @Produce json
// @Success 200 {array} views.RosterGroup
// @Router /players/by-team [get]
func (h *Handler) PlayersByTeam(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, "players-by-team", cache.TTLSnapshot, func(s *syncer.Snapshot) any {
		return h.views.PlayersByTeam(s)
	})
}

// @Summary List matches
// @Tags reads
// @Produce json
// @Param team_id query string false "Only matches for this team"
// @Success 200 {array} views.MatchView
// @Router /matches [get]
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	h.serveView(w, r, "matches", cache.TTLSnapshot, func(s *syncer.Snapshot) any {
		return h.views.Matches(s, teamID)
	})
}

// @Summary List training sessions, newest first
// @Tags reads
// @Produce json
// @Param team_id query string false "Only sessions for this team"
// @Success 200 {array} views.SessionView
// @Router /training-sessions [get]
func (h *Handler) ListTrainingSessions(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	h.serveView(w, r, "training-sessions", cache.TTLSnapshot, func(s *syncer.Snapshot) any {
		return h.views.SessionsNewestFirst(s, teamID)
	})
}

// asFetchError reports whether every error joined in err is a fetch failure.
func asFetchError(err error) (*repository.FetchError, bool) {
	var first *repository.FetchError
	for _, e := range flatten(err) {
		var ferr *repository.FetchError
		if !errors.As(e, &ferr) {
			return nil, false
		}
		if first == nil {
			first = ferr
		}
	}
	return first, first != nil
}

func flatten(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
