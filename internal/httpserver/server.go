package httpserver

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prose-im/prose-pod-api/internal/auth"
	"github.com/prose-im/prose-pod-api/internal/config"
	"github.com/prose-im/prose-pod-api/internal/members"
	"github.com/prose-im/prose-pod-api/internal/version"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// Server holds the HTTP server dependencies. Unlike the teacher's
// tenant-scoped API, a pod serves a single XMPP domain, so there is no
// tenant-resolution middleware: PublicRouter and AuthedRouter are the only
// two trust boundaries domain handlers mount onto.
type Server struct {
	Router *chi.Mux

	// PublicRouter is "/v1" with no authentication applied: login,
	// first-account init, and invitation accept/reject (which
	// authenticate by possessing the token itself, not a bearer
	// credential).
	PublicRouter chi.Router

	// AuthedRouter is "/v1" behind bearer-token authentication. Handlers
	// needing admin privilege additionally wrap their own mount point in
	// auth.RequireAdmin.
	AuthedRouter chi.Router

	startedAt time.Time
}

// NewServer wires the global middleware chain, health/readiness/metrics
// endpoints, and the public/authenticated "/v1" sub-routers that domain
// packages mount their Routes()/PublicRoutes() onto.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	serverCtl *xmpp.ServerCtl,
	tokenVerifier *auth.TokenVerifier,
	memberStore *members.Store,
	metricsReg *prometheus.Registry,
) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz(db, serverCtl))
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Group(func(pub chi.Router) {
			s.PublicRouter = pub
		})

		r.Group(func(authed chi.Router) {
			authed.Use(auth.Middleware(tokenVerifier, memberStore, logger))
			authed.Use(auth.RequireAuth)
			s.AuthedRouter = authed
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz pings the sqlite handle and the XMPP server's admin
// control port — the pod's only two external dependencies, replacing the
// teacher's Postgres+Redis checks.
func (s *Server) handleReadyz(db *sql.DB, serverCtl *xmpp.ServerCtl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.PingContext(ctx); err != nil {
			RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
			return
		}

		if err := serverCtl.Ping(ctx); err != nil {
			RespondError(w, http.StatusServiceUnavailable, "unavailable", "xmpp server not ready")
			return
		}

		Respond(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type versionResponse struct {
	APIVersion string `json:"api_version"`
	CommitSHA  string `json:"commit_sha"`
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, versionResponse{
		APIVersion: version.Version,
		CommitSHA:  version.Commit,
	})
}
