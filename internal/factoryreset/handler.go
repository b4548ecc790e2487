package factoryreset

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/auth"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes the two-step factory reset over a single endpoint,
// dispatching on which field the body carries: "password" begins the
// reset, "confirmation_code" confirms and executes it.
type Handler struct {
	service *Service
	audit   *audit.Writer
	logger  *slog.Logger
}

func NewHandler(service *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{service: service, audit: auditWriter, logger: logger}
}

// Routes returns the admin-only factory-reset route.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleFactoryReset)
	return r
}

func (h *Handler) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password         string `json:"password"`
		ConfirmationCode string `json:"confirmation_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.BadRequest("invalid request body", err))
		return
	}

	switch {
	case body.ConfirmationCode != "":
		h.handleConfirm(w, r, body.ConfirmationCode)
	case body.Password != "":
		h.handleBegin(w, r, body.Password)
	default:
		httpserver.RespondAppError(w, h.logger, apperrors.Validation("password or confirmation_code is required"))
	}
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request, password string) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Unauthorized("authentication required"))
		return
	}

	resp, err := h.service.BeginReset(r.Context(), identity.JID, password)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "factory_reset.begin", "pod", "", nil)
	httpserver.Respond(w, http.StatusAccepted, resp)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, code string) {
	if err := h.service.ConfirmReset(r.Context(), code); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "factory_reset.confirm", "pod", "", nil)
	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}
