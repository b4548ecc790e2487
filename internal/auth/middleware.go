package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prose-im/prose-pod-api/internal/audit"
	"github.com/prose-im/prose-pod-api/internal/httpserver"
	"github.com/prose-im/prose-pod-api/internal/members"
)

// Middleware authenticates every request carrying an Authorization: Bearer
// header against the XMPP server's own OAuth2 tokens, resolves the member
// that JID belongs to, and stores both the Identity and the actor JID (for
// audit logging) in the request context. Requests with no bearer token, an
// invalid one, or a JID with no matching member are rejected with 401 —
// there is no dev-mode fallback, since a pod has exactly one XMPP server of
// record.
func Middleware(verifier *TokenVerifier, memberStore *members.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") && !strings.HasPrefix(authHeader, "bearer ") {
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			rawToken := strings.TrimSpace(authHeader[len("Bearer "):])

			jid, err := verifier.VerifyJID(r.Context(), rawToken)
			if err != nil {
				logger.Warn("bearer token rejected", "error", err)
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			m, err := memberStore.GetByJID(r.Context(), jid)
			if err != nil {
				logger.Warn("bearer token valid but JID has no member record", "jid", jid, "error", err)
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "unknown account")
				return
			}

			identity := &Identity{JID: jid, Role: m.Role}
			ctx := NewContext(r.Context(), identity)
			ctx = audit.WithActorJID(ctx, jid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
