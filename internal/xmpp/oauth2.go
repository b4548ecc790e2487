package xmpp

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// LoginService exchanges a member's username/password for the bearer token
// that Prosody's mod_http_oauth2 issues via the resource-owner-password
// grant. The pod never stores or issues its own session tokens for
// ordinary member authentication — it forwards the credentials to the XMPP
// server and returns whatever token Prosody hands back.
type LoginService struct {
	cfg *oauth2.Config
}

// NewLoginService builds a LoginService pointed at the XMPP server's own
// OAuth2 token endpoint.
func NewLoginService(tokenURL, domain string) *LoginService {
	return &LoginService{
		cfg: &oauth2.Config{
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:   []string{"urn:xmpp:scope:admin", "urn:xmpp:scope:profile"},
		},
	}
}

// Login performs the resource-owner-password-credentials exchange and
// returns Prosody's access token. jid is the member's full JID
// (node@domain), sent as is as the username per Prosody's mod_http_oauth2
// convention.
func (s *LoginService) Login(ctx context.Context, jid, password string) (*oauth2.Token, error) {
	tok, err := s.cfg.PasswordCredentialsToken(ctx, jid, password)
	if err != nil {
		return nil, fmt.Errorf("exchanging credentials with xmpp server: %w", err)
	}
	return tok, nil
}
