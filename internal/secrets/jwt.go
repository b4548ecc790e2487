// Package secrets holds the pod's own credential helpers: a signer for
// short-lived, purpose-scoped tokens, bcrypt password hashing, and a login
// rate limiter. Invitation tokens are not issued here; internal/invitations
// generates them as random strings and stores only their hashes. Session
// bearer tokens used for ordinary API authentication are issued by the
// XMPP server's own OAuth2 endpoint (see internal/xmpp), not by this
// package.
package secrets

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// TokenSigner issues and verifies short-lived, HMAC-signed JSON Web Tokens,
// the same shape as the teacher's session JWTs, but scoped to a single
// purpose (Claims.Purpose) rather than identity.
type TokenSigner struct {
	signer jose.Signer
	key    []byte
}

// NewTokenSigner builds a TokenSigner from a 32-byte (or longer) key. If key
// is empty, a random key is generated — tokens issued before a restart
// become unverifiable after one, so operators should set
// PROSE_JWT_SIGNING_KEY explicitly in production.
func NewTokenSigner(key string) (*TokenSigner, error) {
	raw := []byte(key)
	if len(raw) == 0 {
		raw = make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("generating random signing key: %w", err)
		}
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: raw}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating JWT signer: %w", err)
	}

	return &TokenSigner{signer: signer, key: raw}, nil
}

// Claims is the payload carried by invitation/reset tokens.
type Claims struct {
	Subject string    `json:"sub"` // invitation ID
	Purpose string    `json:"purpose"`
	Expiry  time.Time `json:"exp"`
}

// Issue signs claims and returns the compact JWT representation.
func (s *TokenSigner) Issue(c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}
	obj, err := s.signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return obj.CompactSerialize()
}

// Verify parses and validates token, checking the signature and expiry.
func (s *TokenSigner) Verify(token string) (Claims, error) {
	obj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}

	payload, err := obj.Verify(s.key)
	if err != nil {
		return Claims{}, fmt.Errorf("verifying token signature: %w", err)
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, fmt.Errorf("unmarshaling claims: %w", err)
	}

	if time.Now().After(c.Expiry) {
		return Claims{}, fmt.Errorf("token expired at %s", c.Expiry)
	}

	return c, nil
}
