// Package handler provides HTTP handlers for all API endpoints.
// Reads are served from the synchronizer's published snapshot; writes go
// through synchronizer entry points, never straight to the store.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dilbarpun07/GBFC-website/internal/api/respond"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/cache"
	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
	"github.com/Dilbarpun07/GBFC-website/internal/stream"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
	"github.com/Dilbarpun07/GBFC-website/internal/views"
)

const maxBodyBytes = 1 << 20

// Deps are the handler's collaborators. Store, Hub and Notices may be nil.
type Deps struct {
	Sync    *syncer.Synchronizer
	Views   *views.Builder
	Cache   *cache.Cache
	Notices *notifications.Recorder
	Hub     *stream.Hub
	Store   gateway.Pinger
	Config  *config.Config
	Logger  *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	sync    *syncer.Synchronizer
	views   *views.Builder
	cache   *cache.Cache
	notices *notifications.Recorder
	hub     *stream.Hub
	store   gateway.Pinger
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Views == nil {
		d.Views = views.NewBuilder(nil, nil)
	}
	if d.Cache == nil {
		d.Cache = cache.New(false)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		sync:    d.Sync,
		views:   d.Views,
		cache:   d.Cache,
		notices: d.Notices,
		hub:     d.Hub,
		store:   d.Store,
		cfg:     d.Config,
		logger:  d.Logger,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":           "GBFC Team Manager API",
		"version":        "1.0.0",
		"status":         "running",
		"docs":           "/docs",
		"state":          h.sync.State(),
		"increment_mode": h.sync.IncrementMode(),
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"session":   h.sync.State(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore verifies the backing store is reachable.
// @Summary Store health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":    "unknown",
			"store":     "no health probe for this gateway",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Store health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     "unreachable",
			"error":     "Store connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		body["stream_connections"] = h.hub.Count()
	}
	respond.WriteJSONObject(w, http.StatusOK, body)
}

// RequireSession admits requests whose principal owns the active session.
// It must run after auth.Verifier.Middleware.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Missing access token")
			return
		}
		switch owner := h.sync.Principal(); owner {
		case "":
			respond.WriteError(w, http.StatusUnauthorized, respond.CodeNoSession, "No active session; POST /api/v1/session first")
			return
		case p.ID:
		default:
			respond.WriteError(w, http.StatusForbidden, respond.CodeForbidden, "Another user holds the active session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------------------------------------------------------------------------
// Shared helpers
// --------------------------------------------------------------------------

// mutationResponse wraps the result of a synchronizer entry point.
type mutationResponse struct {
	Data     any      `json:"data,omitempty"`
	Changed  *bool    `json:"changed,omitempty"`
	Version  uint64   `json:"version"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handler) writeMutation(w http.ResponseWriter, status int, data any, changed *bool) {
	respond.WriteJSONObject(w, status, mutationResponse{
		Data:    data,
		Changed: changed,
		Version: h.sync.Snapshot().Version,
	})
}

// writeSyncError maps the synchronizer's error taxonomy onto status codes.
func (h *Handler) writeSyncError(w http.ResponseWriter, err error) {
	var (
		verr *syncer.ValidationError
		werr *repository.WriteError
		ferr *repository.FetchError
	)
	switch {
	case errors.As(err, &verr):
		respond.WriteErrorDetail(w, http.StatusBadRequest, respond.CodeValidationFailed,
			"Please check the form", verr.Error())
	case errors.Is(err, syncer.ErrNoSession):
		respond.WriteError(w, http.StatusUnauthorized, respond.CodeNoSession, "No active session")
	case errors.Is(err, syncer.ErrNotReady), errors.Is(err, syncer.ErrSessionEnded):
		respond.WriteError(w, http.StatusConflict, respond.CodeNotReady, "Session is still loading; try again shortly")
	case errors.As(err, &werr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, respond.CodeRemoteWriteFailed,
			fmt.Sprintf("Failed to %s %s", werr.Op, werr.Kind.Label()), werr.Err.Error())
	case errors.As(err, &ferr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, respond.CodeRemoteFetchFailed,
			fmt.Sprintf("Failed to fetch %s", ferr.Kind), ferr.Err.Error())
	default:
		h.logger.Error("Unhandled synchronizer error", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, respond.CodeInternal, "Internal error")
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		respond.WriteErrorDetail(w, http.StatusBadRequest, respond.CodeBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// serveView renders build(snapshot) with snapshot-versioned caching and
// If-None-Match support.
func (h *Handler) serveView(w http.ResponseWriter, r *http.Request, name string, ttl time.Duration, build func(*syncer.Snapshot) any) {
	snap := h.sync.Snapshot()
	key := cache.Key(name, snap.Generation, snap.Version, r.URL.RawQuery)

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	data, err := json.Marshal(build(snap))
	if err != nil {
		h.logger.Error("Failed to encode view", "view", name, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, respond.CodeInternal, "Failed to encode response")
		return
	}
	etag := h.cache.Set(key, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}
