// Package admin serves a read-only HTTP view of the bridge: health, the
// committed pass, live scene objects, sync counters and the raw blobs.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/internal/state"
	"github.com/Faultbox/vpet-bridge/internal/updates"
)

// StatsSource reports synchronization counters.
type StatsSource interface {
	Stats() updates.Stats
}

// Handler exposes the scene state over HTTP.
type Handler struct {
	state *state.State
	stats StatsSource
	log   *zap.Logger
}

// NewHandler returns a handler over st. stats may be nil.
func NewHandler(st *state.State, stats StatsSource) *Handler {
	return &Handler{state: st, stats: stats, log: logger.Named("admin")}
}

// Router returns a chi router with every route registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the admin routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/scene", h.handleScene)
		r.Get("/objects", h.handleObjects)
		r.Get("/sync", h.handleSync)
		r.Get("/blobs/{name}", h.handleBlob)
	})
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (h *Handler) handleScene(w http.ResponseWriter, r *http.Request) {
	sum, err := h.state.Summary()
	if err != nil {
		h.stateError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (h *Handler) handleObjects(w http.ResponseWriter, r *http.Request) {
	objs, err := h.state.Objects()
	if err != nil {
		h.stateError(w, err)
		return
	}
	writeJSON(w, objs)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		http.Error(w, "sync channel not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.stats.Stats())
}

func (h *Handler) handleBlob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !knownCommand(name) {
		http.Error(w, "unknown blob "+name, http.StatusNotFound)
		return
	}
	blob := h.state.Blob(name)
	digest, ok := h.state.Digest(name)
	if blob == nil || !ok {
		h.stateError(w, state.ErrNoScene)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, digest)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(len(blob)))
	if _, err := w.Write(blob); err != nil {
		h.log.Debug("blob write", zap.String("name", name), zap.Error(err))
	}
}

func (h *Handler) stateError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrNoScene) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.Error("state query failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func knownCommand(name string) bool {
	for _, cmd := range serializer.Commands {
		if cmd == name {
			return true
		}
	}
	return false
}

func etagMatches(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" || part == etag {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Debug("json encode", zap.Error(err))
	}
}
