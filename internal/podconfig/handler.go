package podconfig

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes the hot-reload endpoint over the settings Store.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes mounts POST /reload and GET / (the current snapshot, for debugging
// and for the dashboard to discover its own configured URL).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Post("/reload", h.handleReload)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.store.Current())
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		h.logger.Error("reloading pod config", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to reload configuration")
		return
	}
	h.logger.Info("pod config reloaded")
	httpserver.Respond(w, http.StatusOK, h.store.Current())
}
