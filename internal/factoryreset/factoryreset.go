// Package factoryreset implements the pod's irreversible, admin-only
// factory reset: a two-step password-then-code confirmation protocol
// guarding an ordered, non-transactional destructive phase that wipes the
// XMPP server's data, the API's own database, and the administrator-edited
// config file, then asks the process to restart in place.
package factoryreset

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/lifecycle"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// codeTTL bounds how long a confirmation code issued by BeginReset stays
// valid, so an admin who started a reset and walked away doesn't leave a
// standing one-shot destructive trigger armed indefinitely.
const codeTTL = 5 * time.Minute

// configFileHeader is what the administrator-edited config file is
// truncated to, documenting why it's empty rather than leaving a bare
// zero-byte file an admin might mistake for corruption.
const configFileHeader = "# This pod's configuration was cleared by a factory reset.\n" +
	"# Re-populate this file; the pod notices within a few seconds and restarts in normal mode.\n"

// BeginRequest is the JSON body for the first step: password re-verification.
type BeginRequest struct {
	Password string `json:"password" validate:"required"`
}

// BeginResponse carries the confirmation code the caller must resubmit.
type BeginResponse struct {
	ConfirmationCode string `json:"confirmation_code"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// ConfirmRequest is the JSON body for the second step.
type ConfirmRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// Service drives the two-step factory reset protocol. A Service instance is
// scoped to one running pod instance: BeginReset/ConfirmReset close over the
// *sql.DB handle that instance's app.Run call opened, and RequestRestart
// tears down that same instance via its lifecycle.Manager.
type Service struct {
	login     *xmpp.LoginService
	serverCtl *xmpp.ServerCtl
	db        *sql.DB
	lifecycle *lifecycle.Manager
	logger    *slog.Logger

	databasePath      string
	configFilePath    string
	initAdminPassword string

	mu                sync.Mutex
	pendingCode       string
	pendingExpiresAt  time.Time
}

func NewService(
	login *xmpp.LoginService,
	serverCtl *xmpp.ServerCtl,
	db *sql.DB,
	lifecycleManager *lifecycle.Manager,
	databasePath, configFilePath, initAdminPassword string,
	logger *slog.Logger,
) *Service {
	return &Service{
		login:             login,
		serverCtl:         serverCtl,
		db:                db,
		lifecycle:         lifecycleManager,
		logger:            logger,
		databasePath:      databasePath,
		configFilePath:    configFilePath,
		initAdminPassword: initAdminPassword,
	}
}

// BeginReset re-verifies the caller's password against the XMPP server
// (never trusting the bearer token alone for a destructive operation) and
// issues a fresh one-shot confirmation code, replacing any code from a
// prior, abandoned BeginReset call.
func (s *Service) BeginReset(ctx context.Context, callerJID, password string) (BeginResponse, error) {
	if _, err := s.login.Login(ctx, callerJID, password); err != nil {
		return BeginResponse{}, apperrors.Unauthorized("invalid password")
	}

	code, err := generateCode()
	if err != nil {
		return BeginResponse{}, apperrors.Internal("generating confirmation code", err)
	}
	expiresAt := time.Now().UTC().Add(codeTTL)

	s.mu.Lock()
	s.pendingCode = code
	s.pendingExpiresAt = expiresAt
	s.mu.Unlock()

	return BeginResponse{ConfirmationCode: code, ExpiresAt: expiresAt}, nil
}

// ConfirmReset verifies the resubmitted code, then runs the destructive
// phase in order: reset the XMPP server's own admin config, wipe its user
// data, close the database, truncate the database file, truncate the
// config file, and finally signal a restart. The first failure aborts
// every step after it; nothing already done is rolled back.
func (s *Service) ConfirmReset(ctx context.Context, code string) error {
	if !s.consumeCode(code) {
		return apperrors.Unauthorized("invalid or expired confirmation code")
	}

	if err := s.serverCtl.ResetConfig(ctx, s.initAdminPassword); err != nil {
		return apperrors.UpstreamUnavailable("resetting xmpp server config", err)
	}
	if err := s.serverCtl.DeleteAllData(ctx); err != nil {
		return apperrors.UpstreamUnavailable("deleting xmpp server data", err)
	}
	if err := s.db.Close(); err != nil {
		return apperrors.Internal("closing database", err)
	}
	if err := truncateSQLiteFiles(s.databasePath); err != nil {
		return apperrors.Internal("truncating database file", err)
	}
	if err := os.WriteFile(s.configFilePath, []byte(configFileHeader), 0o644); err != nil {
		return apperrors.Internal("truncating config file", err)
	}

	s.logger.Warn("factory reset completed, requesting restart")
	s.lifecycle.RequestRestart()
	return nil
}

// consumeCode matches code against the pending one and clears it
// atomically, so a code can never trigger the destructive phase twice even
// under a racing double-submit.
func (s *Service) consumeCode(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingCode == "" || code != s.pendingCode || time.Now().UTC().After(s.pendingExpiresAt) {
		return false
	}
	s.pendingCode = ""
	return true
}

// truncateSQLiteFiles empties the main database file along with its WAL and
// shared-memory sidecars (journal_mode=WAL leaves uncommitted data there,
// which a bare truncate of the main file alone would not clear).
func truncateSQLiteFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Truncate(p, 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncating %s: %w", p, err)
		}
	}
	return nil
}

func generateCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil // 16 hex characters
}
