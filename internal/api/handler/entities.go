package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dilbarpun07/GBFC-website/internal/api/respond"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// --------------------------------------------------------------------------
// Teams
// --------------------------------------------------------------------------

type teamRequest struct {
	Name string `json:"name"`
}

// CreateTeam creates a team owned by the caller.
// @Summary Create team
// @Tags teams
// @Accept json
// @Produce json
// @Param body body teamRequest true "Team"
// @Success 201 {object} mutationResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /teams [post]
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, _ := auth.FromContext(r.Context())
	team, err := h.sync.CreateTeam(r.Context(), req.Name, p.ID)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, team, nil)
}

// @Summary Rename team
// @Tags teams
// @Accept json
// @Produce json
// @Param id path string true "Team id"
// @Param body body teamRequest true "New name"
// @Success 200 {object} mutationResponse
// @Router /teams/{id} [patch]
func (h *Handler) EditTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := h.sync.EditTeam(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusOK, nil, &changed)
}

// DeleteTeam deletes a team along with its players, matches and sessions.
// @Summary Delete team
// @Tags teams
// @Param id path string true "Team id"
// @Success 204
// @Router /teams/{id} [delete]
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.DeleteTeam(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeSyncError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// @Summary Add player
// @Tags players
// @Accept json
// @Produce json
// @Param body body model.NewPlayer true "Player"
// @Success 201 {object} mutationResponse
// @Router /players [post]
func (h *Handler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	var req model.NewPlayer
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.sync.AddPlayer(r.Context(), req)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, p, nil)
}

// EditPlayer applies the provided fields; unchanged values are not sent.
// @Summary Edit player
// @Tags players
// @Accept json
// @Produce json
// @Param id path string true "Player id"
// @Param body body model.PlayerUpdate true "Fields to change"
// @Success 200 {object} mutationResponse
// @Router /players/{id} [patch]
func (h *Handler) EditPlayer(w http.ResponseWriter, r *http.Request) {
	var req model.PlayerUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := h.sync.EditPlayer(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusOK, nil, &changed)
}

// @Summary Delete player
// @Tags players
// @Param id path string true "Player id"
// @Success 204
// @Router /players/{id} [delete]
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.DeletePlayer(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeSyncError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --------------------------------------------------------------------------
// Matches
// --------------------------------------------------------------------------

// @Summary Add match
// @Tags matches
// @Accept json
// @Produce json
// @Param body body model.NewMatch true "Match; date YYYY-MM-DD, time HH:MM"
// @Success 201 {object} mutationResponse
// @Router /matches [post]
func (h *Handler) AddMatch(w http.ResponseWriter, r *http.Request) {
	var req model.NewMatch
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.sync.AddMatch(r.Context(), req)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, m, nil)
}

// @Summary Edit match
// @Tags matches
// @Accept json
// @Produce json
// @Param id path string true "Match id"
// @Param body body model.MatchUpdate true "Fields to change"
// @Success 200 {object} mutationResponse
// @Router /matches/{id} [patch]
func (h *Handler) EditMatch(w http.ResponseWriter, r *http.Request) {
	var req model.MatchUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := h.sync.EditMatch(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusOK, nil, &changed)
}

// @Summary Delete match
// @Tags matches
// @Param id path string true "Match id"
// @Success 204
// @Router /matches/{id} [delete]
func (h *Handler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeSyncError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --------------------------------------------------------------------------
// Training sessions
// --------------------------------------------------------------------------

// AddTrainingSession records a session and bumps each attendee's counter.
// Counter failures do not undo the session: the response is still 201 and
// lists the players whose counters were not updated under warnings.
// @Summary Add training session
// @Tags training
// @Accept json
// @Produce json
// @Param body body model.NewTrainingSession true "Session"
// @Success 201 {object} mutationResponse
// @Router /training-sessions [post]
func (h *Handler) AddTrainingSession(w http.ResponseWriter, r *http.Request) {
	var req model.NewTrainingSession
	if !decodeJSON(w, r, &req) {
		return
	}
	ts, err := h.sync.AddTrainingSession(r.Context(), req)
	var partial *syncer.PartialIncrementError
	switch {
	case errors.As(err, &partial):
		warnings := make([]string, 0, len(partial.Failed))
		for _, id := range partial.PlayerIDs() {
			warnings = append(warnings, "attendance not updated for player "+id+": "+partial.Failed[id].Error())
		}
		respond.WriteJSONObject(w, http.StatusCreated, mutationResponse{
			Data:     ts,
			Version:  h.sync.Snapshot().Version,
			Warnings: warnings,
		})
	case err != nil:
		h.writeSyncError(w, err)
	default:
		h.writeMutation(w, http.StatusCreated, ts, nil)
	}
}

// EditTrainingSession updates a session. Attendance counters are not
// recomputed.
// @Summary Edit training session
// @Tags training
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param body body model.TrainingSessionUpdate true "Fields to change"
// @Success 200 {object} mutationResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /training-sessions/{id} [patch]
func (h *Handler) EditTrainingSession(w http.ResponseWriter, r *http.Request) {
	var req model.TrainingSessionUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	original, ok := h.sync.Snapshot().TrainingSession(chi.URLParam(r, "id"))
	if !ok {
		respond.WriteError(w, http.StatusNotFound, respond.CodeNotFound, "Training session not found")
		return
	}
	changed, err := h.sync.EditTrainingSession(r.Context(), original, req)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	h.writeMutation(w, http.StatusOK, nil, &changed)
}

// DeleteTrainingSession deletes a session. Counters are left unchanged.
// @Summary Delete training session
// @Tags training
// @Param id path string true "Session id"
// @Success 204
// @Router /training-sessions/{id} [delete]
func (h *Handler) DeleteTrainingSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.DeleteTrainingSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeSyncError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
