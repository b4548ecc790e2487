package xmpp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"text/template"
)

// ConfigData is everything the rendered prosody.cfg.lua needs. It is
// deliberately a flat struct rather than the serverconfig/workspace domain
// types, so this package has no import-time dependency on them.
type ConfigData struct {
	Domain                    string
	WorkspaceName             string
	TLSProfile                string
	FileUploadAllowed         bool
	MessageArchiveRetention   string
	PushNotificationsEnabled  bool
	FederationEnabled        bool
}

var configTemplate = template.Must(template.New("prosody.cfg.lua").Parse(`
-- Generated by prose-pod-api. Do not edit by hand; changes will be
-- overwritten on the next configuration update.

VirtualHost "{{.Domain}}"
  name = "{{.WorkspaceName}}"
  ssl_profile = "{{.TLSProfile}}"

  modules_enabled = {
    "admin_rest";
    "http_oauth2";
    "vcard";
    "vcard_legacy";
    {{- if .FileUploadAllowed }}
    "http_file_share";
    {{- end }}
    {{- if .PushNotificationsEnabled }}
    "cloud_notify";
    {{- end }}
  }

  archive_expires_after = "{{.MessageArchiveRetention}}"
  enable_s2s = {{ if .FederationEnabled }}true{{ else }}false{{ end }}
`))

// ConfigRenderer writes prosody.cfg.lua and asks Prosody to reload it.
type ConfigRenderer struct {
	path   string
	reload func(ctx context.Context) error
}

// NewConfigRenderer builds a ConfigRenderer targeting path, reloading via
// ctlCommand (typically "prosodyctl").
func NewConfigRenderer(path, ctlCommand string) *ConfigRenderer {
	r := &ConfigRenderer{path: path}
	r.reload = func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, ctlCommand, "reload")
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("reloading prosody (%s): %w: %s", ctlCommand, err, output)
		}
		return nil
	}
	return r
}

// Render writes the config file and triggers a live reload. It does not
// restart the process, matching spec's requirement that configuration
// pushes take effect without disconnecting members.
func (r *ConfigRenderer) Render(ctx context.Context, data ConfigData) error {
	f, err := os.CreateTemp("", "prose-pod-api-prosody-*.cfg.lua")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := configTemplate.Execute(f, data); err != nil {
		f.Close()
		return fmt.Errorf("rendering prosody config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("installing config file at %s: %w", r.path, err)
	}

	return r.reload(ctx)
}
