package onboarding

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes the pod's onboarding progress over HTTP.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleStatus)
	return r
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Status(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("getting onboarding status", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, st)
}
