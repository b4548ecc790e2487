package podconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewStoreFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Current().Notify.WorkspaceInvitationChannel != "email" {
		t.Errorf("expected default notify channel, got %q", store.Current().Notify.WorkspaceInvitationChannel)
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prose.toml")
	if err := os.WriteFile(path, []byte(`
[branding]
dashboard_url = "https://admin.example.com"
`), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Current().Branding.DashboardURL != "https://admin.example.com" {
		t.Fatalf("got %q", store.Current().Branding.DashboardURL)
	}

	if err := os.WriteFile(path, []byte(`
[branding]
dashboard_url = "https://new.example.com"
`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := store.Current().Branding.DashboardURL; got != "https://new.example.com" {
		t.Errorf("after reload, DashboardURL = %q, want https://new.example.com", got)
	}
}

func TestReloadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prose.toml")
	if err := os.WriteFile(path, []byte("not valid toml :::"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path); err == nil {
		t.Fatal("expected error loading malformed TOML")
	}
}
