package members

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes the member lifecycle over HTTP.
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
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleSetRole)
	r.Delete("/{id}", h.handleRemove)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items, total, err := h.service.List(r.Context(), params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetRoleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.SetRole(r.Context(), id, req.Role)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "member.set_role", "member", m.ID, nil)
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Remove(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "member.remove", "member", id, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
