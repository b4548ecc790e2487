package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
	"github.com/prose-im/prose-pod-api/internal/members"
	"github.com/prose-im/prose-pod-api/internal/secrets"
	"github.com/prose-im/prose-pod-api/internal/xmpp"

	"github.com/go-chi/chi/v5"
)

// LoginResponse wraps the bearer token Prosody issued, in the shape a
// client expects from an OAuth2 token endpoint.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// FirstAccountRequest is the body for PUT /v1/init/first-account.
type FirstAccountRequest struct {
	JIDNode  string `json:"jid_node" validate:"required"`
	Nickname string `json:"nickname" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Handler serves the pod's two credential-bearing endpoints: exchanging
// Basic auth for a bearer token, and bootstrapping the very first admin
// account.
type Handler struct {
	login     *xmpp.LoginService
	serverCtl *xmpp.ServerCtl
	members   *members.Store
	limiter   *secrets.LoginLimiter
	audit     *audit.Writer
	logger    *slog.Logger
	domain    string
}

func NewHandler(login *xmpp.LoginService, serverCtl *xmpp.ServerCtl, memberStore *members.Store, limiter *secrets.LoginLimiter, auditWriter *audit.Writer, logger *slog.Logger, domain string) *Handler {
	return &Handler{
		login:     login,
		serverCtl: serverCtl,
		members:   memberStore,
		limiter:   limiter,
		audit:     auditWriter,
		logger:    logger,
		domain:    domain,
	}
}

// LoginRoutes mounts POST /v1/login (unauthenticated: it is the
// credential exchange itself).
func (h *Handler) LoginRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleLogin)
	return r
}

// InitRoutes mounts PUT /v1/init/first-account (unauthenticated: no admin
// exists yet to bear a token).
func (h *Handler) InitRoutes() chi.Router {
	r := chi.NewRouter()
	r.Put("/", h.handleInitFirstAccount)
	return r
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	jidNode, password, ok := r.BasicAuth()
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "basic auth credentials required")
		return
	}
	jid := fmt.Sprintf("%s@%s", jidNode, h.domain)

	limiterKey := jid
	if !h.limiter.Allow(limiterKey) {
		httpserver.RespondAppError(w, h.logger, apperrors.RateLimited("too many login attempts, try again later"))
		return
	}

	tok, err := h.login.Login(r.Context(), jid, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			httpserver.RespondAppError(w, h.logger, apperrors.Unauthorized("invalid credentials"))
			return
		}
		httpserver.RespondAppError(w, h.logger, apperrors.UpstreamUnavailable("exchanging credentials with xmpp server", err))
		return
	}

	h.limiter.Reset(limiterKey)
	h.audit.LogFromRequest(r, "auth.login", "member", jid, nil)

	expiresIn := 0
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			expiresIn = int(d.Seconds())
		}
	}
	httpserver.Respond(w, http.StatusOK, LoginResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   expiresIn,
	})
}

// handleInitFirstAccount creates the pod's first admin account. It
// succeeds at most once: any subsequent call is rejected as a conflict,
// since the presence of a single member already means the pod has an
// admin to manage it through ordinary invitations instead.
func (h *Handler) handleInitFirstAccount(w http.ResponseWriter, r *http.Request) {
	count, err := h.members.Count(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("counting members", err))
		return
	}
	if count > 0 {
		httpserver.RespondAppError(w, h.logger, apperrors.Conflict("first account has already been created"))
		return
	}

	var req FirstAccountRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.serverCtl.CreateUser(r.Context(), req.JIDNode, req.Password); err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.UpstreamUnavailable("provisioning XMPP account", err))
		return
	}

	jid := fmt.Sprintf("%s@%s", req.JIDNode, h.domain)
	m, err := h.members.Create(r.Context(), jid, req.Nickname, members.RoleAdmin)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, apperrors.Internal("creating first admin", err))
		return
	}

	h.audit.LogFromRequest(r, "auth.init_first_account", "member", m.ID, nil)
	httpserver.Respond(w, http.StatusCreated, m)
}
