package workspace

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
	"github.com/prose-im/prose-pod-api/internal/onboarding"
)

// Handler exposes the pod's workspace identity over HTTP.
type Handler struct {
	store      *Store
	onboarding *onboarding.Store
	audit      *audit.Writer
	logger     *slog.Logger
}

func NewHandler(store *Store, onboardingStore *onboarding.Store, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{store: store, onboarding: onboardingStore, audit: auditWriter, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Patch("/", h.handleUpdate)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.Get(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("getting workspace", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, ws)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	ws, err := h.store.Update(r.Context(), req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("updating workspace", err))
		return
	}

	if ws.Name != "" {
		_ = h.onboarding.Reach(r.Context(), onboarding.StepWorkspaceInitialized)
	}

	h.audit.LogFromRequest(r, "workspace.update", "workspace", "", nil)
	httpserver.Respond(w, http.StatusOK, ws)
}
