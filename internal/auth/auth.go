// Package auth authenticates pod API callers. There is no local session
// store: ordinary members hold whatever bearer token Prosody's
// mod_http_oauth2 issued them, and the pod validates that token the same
// way any OIDC relying party validates a provider's JWT — against
// Prosody's own JWKS, treating the XMPP server as its own identity
// provider.
package auth

import (
	"context"

	"github.com/prose-im/prose-pod-api/internal/members"
)

// Identity is the authenticated caller of a request, resolved from a
// bearer token's "sub" claim and the local member roster.
type Identity struct {
	JID  string
	Role members.Role
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying identity.
func NewContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns the authenticated identity, or nil if the request
// context carries none (public routes, or middleware not applied).
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
