package audit

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
)

// LogEntry is a single audit_log row as returned over the API.
type LogEntry struct {
	ID         string    `json:"id"`
	ActorJID   string    `json:"actor_jid"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Detail     string    `json:"detail"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}

// Handler provides HTTP handlers for the audit log API.
type Handler struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(db *sql.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, actor_jid, action, resource, resource_id, detail, ip_address, user_agent, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		params.PageSize, params.Offset,
	)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("listing audit log", err))
		return
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.ActorJID, &e.Action, &e.Resource, &e.ResourceID, &e.Detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			httpserver.RespondAppError(w, h.logger, apperrors.Internal("scanning audit log row", err))
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("iterating audit log rows", err))
		return
	}

	var total int
	if err := h.db.QueryRowContext(r.Context(), `SELECT count(*) FROM audit_log`).Scan(&total); err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("counting audit log", err))
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(entries, params, total))
}
