package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// TokenVerifier validates bearer tokens issued by Prosody's
// mod_http_oauth2 endpoint. mod_http_oauth2 publishes a standard OIDC
// discovery document and JWKS, so the same verifier the teacher uses
// against a third-party IdP works unchanged here — the XMPP server is
// simply its own issuer.
type TokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewTokenVerifier performs OIDC discovery against the XMPP server's
// issuer URL (its bare https://<domain>/ admin REST base). Discovery
// makes a network call to fetch the provider's signing keys.
func NewTokenVerifier(ctx context.Context, issuerURL string) (*TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering xmpp oauth2 provider %s: %w", issuerURL, err)
	}

	// Prosody issues tokens scoped to itself, not to a registered OAuth2
	// client of the pod API, so there is no client_id audience to check.
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})

	return &TokenVerifier{verifier: verifier}, nil
}

// VerifyJID validates rawToken and returns the JID it was issued to, read
// from the token's "sub" claim.
func (v *TokenVerifier) VerifyJID(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("verifying bearer token: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("extracting claims: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token missing sub claim")
	}
	return claims.Subject, nil
}
