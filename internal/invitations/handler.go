package invitations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// Handler exposes invitation management over HTTP. The admin-facing routes
// (list/create/cancel/resend) are mounted under the authenticated API; the
// accept and reject routes are mounted separately since the caller has no
// account yet.
type Handler struct {
	service *Service
	audit   *audit.Writer
	logger  *slog.Logger
}

func NewHandler(service *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{service: service, audit: auditWriter, logger: logger}
}

// Routes returns the admin-facing invitation routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Delete("/{id}", h.handleCancel)
	r.Post("/{id}/resend", h.handleResend)
	return r
}

// PublicRoutes returns the unauthenticated invitation-token routes.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Put("/{token}/accept", h.handleAccept)
	r.Put("/{token}/reject", h.handleReject)
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

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	inv, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "invitation.create", "invitation", inv.ID, nil)
	httpserver.Respond(w, http.StatusCreated, inv)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "invitation.cancel", "invitation", id, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.service.Resend(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "invitation.resend", "invitation", id, nil)
	httpserver.Respond(w, http.StatusOK, inv)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req AcceptRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.Accept(r.Context(), token, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "invitation.accept", "member", m.ID, nil)
	httpserver.Respond(w, http.StatusCreated, m)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.service.Reject(r.Context(), token); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, "invitation.reject", "invitation", "", nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
