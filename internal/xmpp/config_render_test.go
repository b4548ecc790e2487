package xmpp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderWritesExpectedModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prosody.cfg.lua")
	r := &ConfigRenderer{
		path:   path,
		reload: func(ctx context.Context) error { return nil },
	}

	err := r.Render(context.Background(), ConfigData{
		Domain:                   "prose.example.com",
		WorkspaceName:            "Acme Corp",
		TLSProfile:               "modern",
		FileUploadAllowed:        true,
		MessageArchiveRetention:  "infinite",
		PushNotificationsEnabled: false,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rendered config: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		`VirtualHost "prose.example.com"`,
		`name = "Acme Corp"`,
		`"http_file_share";`,
		`archive_expires_after = "infinite"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered config missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, `"cloud_notify";`) {
		t.Errorf("rendered config should not enable cloud_notify when push notifications are disabled:\n%s", body)
	}
}

func TestRenderPropagatesReloadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prosody.cfg.lua")
	wantErr := os.ErrPermission
	r := &ConfigRenderer{
		path:   path,
		reload: func(ctx context.Context) error { return wantErr },
	}

	err := r.Render(context.Background(), ConfigData{Domain: "x", TLSProfile: "modern"})
	if err == nil {
		t.Fatal("expected reload error to propagate")
	}
}
