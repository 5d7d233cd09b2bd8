package handler

import (
	"net/http"
	"strconv"

	"github.com/Dilbarpun07/GBFC-website/internal/api/respond"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/stream"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// EstablishSession signs the caller in and loads all four collections.
// @Summary Establish session
// @Description Verifies the bearer token and loads teams, players, matches and training sessions. Collections that fail to load are returned empty and listed under degraded.
// @Tags session
// @Produce json
// @Success 200 {object} syncer.Summary
// @Failure 401 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /session [post]
func (h *Handler) EstablishSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	err := h.sync.Establish(r.Context(), syncer.Session{PrincipalID: p.ID, AccessToken: p.Token})
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.sync.Snapshot().Summary())
}

// EndSession signs out and clears every collection.
// @Summary End session
// @Tags session
// @Success 204
// @Router /session [delete]
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sync.End()
	w.WriteHeader(http.StatusNoContent)
}

// Resync re-fetches the named collections, or all of them.
// @Summary Manual resync
// @Tags session
// @Produce json
// @Param kind query []string false "Collections to refresh (teams, players, matches, training-sessions)"
// @Success 200 {object} syncer.Summary
// @Router /resync [post]
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	var kinds []model.Kind
	for _, raw := range r.URL.Query()["kind"] {
		k, err := model.ParseKind(raw)
		if err != nil {
			respond.WriteErrorDetail(w, http.StatusBadRequest, respond.CodeBadRequest, "Unknown collection", err.Error())
			return
		}
		kinds = append(kinds, k)
	}
	if err := h.sync.Resync(r.Context(), kinds...); err != nil {
		// Fetch failures are already reflected as degraded collections.
		if _, degraded := asFetchError(err); !degraded {
			h.writeSyncError(w, err)
			return
		}
	}
	respond.WriteJSONObject(w, http.StatusOK, h.sync.Snapshot().Summary())
}

// Notices returns the most recent user-visible signals, oldest first.
// @Summary Recent notices
// @Tags session
// @Produce json
// @Param limit query int false "Maximum notices (default 50)"
// @Success 200 {array} notifications.Notice
// @Router /notices [get]
func (h *Handler) Notices(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.WriteError(w, http.StatusBadRequest, respond.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if h.notices == nil {
		respond.WriteJSONObject(w, http.StatusOK, []any{})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.notices.Recent(limit))
}

// Stream upgrades to a websocket that receives snapshot summaries and
// notices as they are published.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respond.WriteError(w, http.StatusNotFound, respond.CodeNotFound, "Streaming is disabled")
		return
	}
	p, _ := auth.FromContext(r.Context())
	initial := &stream.Event{Type: stream.EventSnapshot, Data: h.sync.Snapshot().Summary()}
	if err := h.hub.Serve(w, r, p.ID, initial); err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("Stream upgrade failed", "error", err)
	}
}
