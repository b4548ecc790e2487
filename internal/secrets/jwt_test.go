package secrets

import (
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	signer, err := NewTokenSigner("test-signing-key-0123456789abcdef")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	claims := Claims{Subject: "inv-1", Purpose: "invitation", Expiry: time.Now().Add(time.Hour)}
	token, err := signer.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Subject != claims.Subject || got.Purpose != claims.Purpose {
		t.Errorf("Verify returned %+v, want %+v", got, claims)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer, err := NewTokenSigner("test-signing-key-0123456789abcdef")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	token, err := signer.Issue(Claims{Subject: "inv-1", Purpose: "invitation", Expiry: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := signer.Verify(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	signerA, _ := NewTokenSigner("key-a-0123456789abcdef0123456789")
	signerB, _ := NewTokenSigner("key-b-0123456789abcdef0123456789")

	token, err := signerA.Issue(Claims{Subject: "inv-1", Purpose: "invitation", Expiry: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := signerB.Verify(token); err == nil {
		t.Fatal("expected verification with a different key to fail")
	}
}
