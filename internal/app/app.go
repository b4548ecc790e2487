// Package app wires together every dependency the pod needs and runs the
// HTTP server: configuration, logging, metrics, the sqlite store, the XMPP
// control-plane clients, each domain package's Service/Store/Handler, and
// the background loops that keep the pod's state consistent with Prosody.
//
// Run loops over instances rather than running once: a factory reset asks
// the current instance to shut down and hands off to a fresh one via
// lifecycle.Manager.RotateInstance, so the process comes back up in
// factory-reset mode without ever exiting.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/auth"
	"github.com/prose-im/prose-pod-api/internal/config"
	"github.com/prose-im/prose-pod-api/internal/factoryreset"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
	"github.com/prose-im/prose-pod-api/internal/invitations"
	"github.com/prose-im/prose-pod-api/internal/license"
	"github.com/prose-im/prose-pod-api/internal/lifecycle"
	"github.com/prose-im/prose-pod-api/internal/members"
	"github.com/prose-im/prose-pod-api/internal/networkcheck"
	"github.com/prose-im/prose-pod-api/internal/notify"
	"github.com/prose-im/prose-pod-api/internal/onboarding"
	"github.com/prose-im/prose-pod-api/internal/platform"
	"github.com/prose-im/prose-pod-api/internal/podconfig"
	"github.com/prose-im/prose-pod-api/internal/secrets"
	"github.com/prose-im/prose-pod-api/internal/serverconfig"
	"github.com/prose-im/prose-pod-api/internal/telemetry"
	"github.com/prose-im/prose-pod-api/internal/version"
	"github.com/prose-im/prose-pod-api/internal/workspace"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// Run is the process entry point: it repeatedly builds the dependency
// graph for one instance and serves HTTP until that instance is either
// cancelled for good (ctx done, or an unrecoverable error) or asked to
// restart in place (a completed factory reset).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	lm := lifecycle.New(ctx)
	for {
		restart, err := runInstance(lm, cfg, logger)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
		lm = lm.RotateInstance()
	}
}

// runInstance builds and serves exactly one instance, returning (true, nil)
// if it ended because of a factory-reset restart request, (false, nil) on
// ordinary shutdown, or a non-nil error on an unrecoverable startup or
// runtime failure.
func runInstance(lm *lifecycle.Manager, cfg *config.Config, logger *slog.Logger) (restart bool, err error) {
	ctx := lm.Context()

	if err := lm.WaitForPredecessor(ctx); err != nil {
		return false, fmt.Errorf("waiting for predecessor instance to drain: %w", err)
	}

	logger.Info("starting prose-pod-api instance",
		"version", version.Version,
		"listen", cfg.ListenAddr(),
		"domain", cfg.XMPPDomain,
	)

	db, err := platform.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return false, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(db, cfg.MigrationsDir); err != nil {
		return false, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	for _, c := range telemetry.All() {
		if err := metricsReg.Register(c); err != nil {
			return false, fmt.Errorf("registering metric: %w", err)
		}
	}

	serverCtl := xmpp.NewServerCtl(cfg.XMPPAdminRESTURL, cfg.XMPPAdminUsername, cfg.XMPPAdminPassword, cfg.XMPPDomain)

	if isFactoryResetMode(cfg) {
		return runFactoryResetMode(ctx, lm, cfg, db, serverCtl, metricsReg, logger)
	}
	return runNormalMode(ctx, lm, cfg, db, serverCtl, metricsReg, logger)
}

// isFactoryResetMode reports whether the administrator-edited config file
// is missing or empty, the signal the startup state machine uses to decide
// whether this instance should serve the full API or the minimal
// post-reset router. A factory reset truncates this file to a header
// banner on its way out, so a file holding only comments counts as empty.
func isFactoryResetMode(cfg *config.Config) bool {
	return configFileIsBlank(cfg.ConfigFilePath)
}

// configFileIsBlank reports whether the file at path is missing or holds
// nothing but blank lines and "#" comments.
func configFileIsBlank(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	for _, line := range strings.Split(string(data), "\n") {
		if l := strings.TrimSpace(line); l != "" && !strings.HasPrefix(l, "#") {
			return false
		}
	}
	return true
}

// runFactoryResetMode serves only health/readiness/version/metrics — no
// domain routes, no XMPP dependency wait — until an operator repopulates
// the config file, at which point it requests a restart so the next
// instance boots in normal mode.
func runFactoryResetMode(
	ctx context.Context,
	lm *lifecycle.Manager,
	cfg *config.Config,
	db *sql.DB,
	serverCtl *xmpp.ServerCtl,
	metricsReg *prometheus.Registry,
	logger *slog.Logger,
) (bool, error) {
	logger.Warn("entering factory-reset mode: config file is empty, only health/version endpoints are served")

	// No domain routes are mounted in this mode, so the authenticated
	// sub-router's middleware is built but never exercised; passing nil
	// verifier/member store here is safe for that reason.
	srv := httpserver.NewServer(cfg, logger, db, serverCtl, nil, nil, metricsReg)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: srv,
	}

	go watchForConfigRepopulation(ctx, cfg.ConfigFilePath, lm, logger)

	return serveUntilRestart(ctx, lm, httpSrv, logger)
}

// watchForConfigRepopulation polls the config file every few seconds and
// requests a restart as soon as it holds anything besides blank lines and
// comments, so a factory-reset instance doesn't require an external
// process restart to recover.
func watchForConfigRepopulation(ctx context.Context, path string, lm *lifecycle.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !configFileIsBlank(path) {
				logger.Info("config file repopulated, requesting restart into normal mode")
				lm.RequestRestart()
				return
			}
		}
	}
}

// runNormalMode wires every domain package and serves the full API.
func runNormalMode(
	ctx context.Context,
	lm *lifecycle.Manager,
	cfg *config.Config,
	db *sql.DB,
	serverCtl *xmpp.ServerCtl,
	metricsReg *prometheus.Registry,
	logger *slog.Logger,
) (bool, error) {
	loginService := xmpp.NewLoginService(cfg.XMPPOAuth2TokenURL, cfg.XMPPDomain)
	configRenderer := xmpp.NewConfigRenderer(cfg.ProsodyConfigPath, cfg.ProsodyCtlCommand)

	if err := serverCtl.WaitUntilReady(ctx, 2*time.Second); err != nil {
		return false, fmt.Errorf("waiting for xmpp server: %w", err)
	}
	logger.Info("xmpp server reachable")

	tokenVerifier, err := auth.NewTokenVerifier(ctx, cfg.XMPPOAuth2IssuerURL)
	if err != nil {
		return false, fmt.Errorf("initializing token verifier: %w", err)
	}

	podConfigStore, err := podconfig.NewStore(cfg.ConfigFilePath)
	if err != nil {
		return false, fmt.Errorf("loading pod config: %w", err)
	}
	licenseGate := license.NewGate(cfg.LicenseFilePath, cfg.MemberLimit)
	tokenSigner, err := secrets.NewTokenSigner(cfg.JWTSigningKey)
	if err != nil {
		return false, fmt.Errorf("initializing token signer: %w", err)
	}
	_ = tokenSigner // reconciled once password-reset links are added; see DESIGN.md
	loginLimiter := secrets.NewLoginLimiter(10, 15*time.Minute)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, logger)
		logger.Info("email notifications enabled", "host", cfg.SMTPHost)
	} else {
		notifier = notify.NoopNotifier{}
		logger.Info("email notifications disabled (PROSE_SMTP_HOST not set)")
	}

	memberStore := members.NewStore(db)
	invitationStore := invitations.NewStore(db)
	workspaceStore := workspace.NewStore(db)
	serverConfigStore := serverconfig.NewStore(db)
	onboardingStore := onboarding.NewStore(db)

	serverConfigService := serverconfig.NewService(serverConfigStore, workspaceStore, configRenderer, cfg.XMPPDomain)

	// Reconcile the XMPP server's rendered configuration from the stored
	// ServerConfig (merged with defaults) before serving any traffic —
	// startup_actions (a), run unconditionally since the config renderer
	// and reload are otherwise only ever invoked from an admin PATCH.
	if err := serverConfigService.Reconcile(ctx); err != nil {
		return false, fmt.Errorf("reconciling xmpp server config at startup: %w", err)
	}

	memberService := members.NewService(memberStore, serverCtl)
	invitationService := invitations.NewService(
		invitationStore, memberStore, workspaceStore, podConfigStore,
		serverCtl, licenseGate, onboardingStore, notifier, cfg.XMPPDomain, logger,
	)

	memberHandler := members.NewHandler(memberService, auditWriter, logger)
	invitationHandler := invitations.NewHandler(invitationService, auditWriter, logger)
	workspaceHandler := workspace.NewHandler(workspaceStore, onboardingStore, auditWriter, logger)
	serverConfigHandler := serverconfig.NewHandler(serverConfigService, auditWriter, logger)
	onboardingHandler := onboarding.NewHandler(onboardingStore, logger)
	auditHandler := audit.NewHandler(db, logger)

	networkRunner := networkcheck.NewRunner(logger, 4, time.Second)
	networkcheckHandler := networkcheck.NewHandler(
		networkRunner, onboardingStore, federationAdapter{serverConfigStore},
		cfg.XMPPDomain, cfg.DNSResolverAddr, cfg.XMPPDomain,
		cfg.XMPPClientPort, cfg.XMPPServerPort, cfg.HTTPSPort,
		cfg.PodStaticIPv4, cfg.PodStaticIPv6,
		logger,
	)

	authHandler := auth.NewHandler(loginService, serverCtl, memberStore, loginLimiter, auditWriter, logger, cfg.XMPPDomain)

	factoryResetService := factoryreset.NewService(
		loginService, serverCtl, db, lm,
		cfg.DatabasePath, cfg.ConfigFilePath, cfg.XMPPAdminPassword,
		logger,
	)
	factoryResetHandler := factoryreset.NewHandler(factoryResetService, auditWriter, logger)

	// Re-derive onboarding flags that predate onboarding_steps, from the
	// state they describe, before serving any traffic.
	onboarding.Backfill(ctx, onboardingStore,
		workspaceNameAdapter{workspaceStore},
		invitationCounterAdapter{invitationStore},
		networkcheckHandler,
		logger,
	)

	srv := httpserver.NewServer(cfg, logger, db, serverCtl, tokenVerifier, memberStore, metricsReg)

	srv.PublicRouter.Mount("/login", authHandler.LoginRoutes())
	srv.PublicRouter.Mount("/init/first-account", authHandler.InitRoutes())
	srv.PublicRouter.Mount("/invitation-tokens", invitationHandler.PublicRoutes())
	srv.PublicRouter.Mount("/network/dns/records", networkcheckHandler.DNSRecordsRoutes())
	srv.PublicRouter.Mount("/network/checks", networkcheckHandler.Routes())

	srv.AuthedRouter.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Mount("/members", memberHandler.Routes())
		r.Mount("/invitations", invitationHandler.Routes())
		r.Mount("/workspace", workspaceHandler.Routes())
		r.Mount("/server/config", serverConfigHandler.Routes())
		r.Mount("/onboarding", onboardingHandler.Routes())
		r.Mount("/audit-log", auditHandler.Routes())
		r.Mount("/factory-reset", factoryResetHandler.Routes())
	})

	// Service-account token refresh: wakes up every ~10s and refreshes
	// the admin service account's OAuth2 token at 90% of its TTL,
	// coalescing missed ticks (e.g. a paused container) into an
	// immediate refresh with a logged warning.
	go runServiceAccountTokenRefresh(ctx, loginService, cfg, logger)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilRestart(ctx, lm, httpSrv, logger)
}

// serveUntilRestart runs httpSrv until ctx is cancelled (either by process
// shutdown or by a factory reset calling lifecycle.Manager.RequestRestart),
// then shuts it down gracefully and reports whether the cancellation was a
// restart request.
func serveUntilRestart(ctx context.Context, lm *lifecycle.Manager, httpSrv *http.Server, logger *slog.Logger) (bool, error) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server instance", "restarting", lm.RestartRequested())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		lm.Done()
		return lm.RestartRequested(), err
	case err := <-errCh:
		lm.Done()
		return false, err
	}
}

// serviceAccountTokenTTL is how long a refreshed admin service-account
// token is assumed to remain valid. A TTL of 0 disables the refresh loop
// entirely (used in tests).
const serviceAccountTokenTTL = 55 * time.Minute

// runServiceAccountTokenRefresh wakes up every ~10s and refreshes the
// admin service account's OAuth2 token once 90% of its TTL has elapsed.
// Missed ticks (e.g. the process was paused) are coalesced: if wall-clock
// time shows the token is already past its TTL, the task refreshes
// immediately and logs a warning instead of waiting for the next regular
// refresh point.
func runServiceAccountTokenRefresh(ctx context.Context, login *xmpp.LoginService, cfg *config.Config, logger *slog.Logger) {
	if serviceAccountTokenTTL <= 0 {
		return
	}

	refreshAt := 90 * serviceAccountTokenTTL / 100
	lastRefresh := time.Now()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(lastRefresh)
			if elapsed < refreshAt {
				continue
			}
			if elapsed >= serviceAccountTokenTTL {
				logger.Warn("service account token refresh missed its window, refreshing immediately",
					"elapsed", elapsed, "ttl", serviceAccountTokenTTL)
			}
			jid := cfg.XMPPAdminUsername + "@" + cfg.XMPPDomain
			if _, err := login.Login(ctx, jid, cfg.XMPPAdminPassword); err != nil {
				logger.Error("refreshing service account token", "error", err)
				continue
			}
			lastRefresh = time.Now()
		}
	}
}

// workspaceNameAdapter satisfies onboarding.WorkspaceNameGetter over the
// workspace store, kept here rather than in internal/workspace so that
// package has no reason to import internal/onboarding.
type workspaceNameAdapter struct {
	store *workspace.Store
}

func (a workspaceNameAdapter) WorkspaceName(ctx context.Context) (string, error) {
	ws, err := a.store.Get(ctx)
	if err != nil {
		return "", err
	}
	return ws.Name, nil
}

// invitationCounterAdapter satisfies onboarding.InvitationCounter over the
// invitations store's rowid-based probe.
type invitationCounterAdapter struct {
	store *invitations.Store
}

func (a invitationCounterAdapter) EverCreated(ctx context.Context) (bool, error) {
	return a.store.ProbeEverCreated(ctx)
}

// federationAdapter satisfies networkcheck.FederationChecker over the
// server config store, kept here rather than in internal/serverconfig so
// that package has no reason to import internal/networkcheck.
type federationAdapter struct {
	store *serverconfig.Store
}

func (a federationAdapter) FederationEnabled(ctx context.Context) (bool, error) {
	cfg, err := a.store.Get(ctx)
	if err != nil {
		return false, err
	}
	return cfg.FederationEnabled, nil
}
