package serverconfig

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes the XMPP server's administrable settings over HTTP.
type Handler struct {
	service *Service
	audit   *audit.Writer
	logger  *slog.Logger
}

func NewHandler(service *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{service: service, audit: auditWriter, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Patch("/", h.handleUpdate)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "server_config.update", "server_config", "", nil)
	httpserver.Respond(w, http.StatusOK, c)
}
