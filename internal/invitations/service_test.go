package invitations

import "testing"

func TestGenerateTokenHashMatchesRawToken(t *testing.T) {
	raw, hash, prefix := generateToken("acc")

	if raw[:tokenPrefixLen] != prefix {
		t.Errorf("prefix = %q, want prefix of raw token %q", prefix, raw)
	}
	if hashToken(raw) != hash {
		t.Errorf("hashToken(raw) = %q, want %q", hashToken(raw), hash)
	}
}

func TestGenerateTokenIsUnique(t *testing.T) {
	raw1, _, _ := generateToken("acc")
	raw2, _, _ := generateToken("acc")
	if raw1 == raw2 {
		t.Fatal("expected two distinct generated tokens")
	}
}
