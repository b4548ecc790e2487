// Package podconfig holds the pod's administrator-editable settings file
// (prose.toml) and exposes an atomic, hot-reloadable snapshot of it so
// in-flight requests always see a consistent AppConfig even while a reload
// is in progress.
package podconfig

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig is the administrator-editable settings file's shape. Unlike
// Config (internal/config), this is read from disk and can change at
// runtime through Store.Reload. The HTTP Handler in this package that
// wraps Reload is not mounted on the API's router, so no API endpoint
// triggers a reload.
type AppConfig struct {
	Branding struct {
		DashboardURL string `toml:"dashboard_url"`
	} `toml:"branding"`

	Notify struct {
		WorkspaceInvitationChannel string `toml:"workspace_invitation_channel"` // "email" or "none"
	} `toml:"notify"`

	Debug struct {
		DetailedErrorResponses bool `toml:"detailed_error_responses"`
	} `toml:"debug"`
}

// DefaultAppConfig is used when no file exists yet, so a freshly installed
// pod still boots and serves sane defaults.
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	cfg.Notify.WorkspaceInvitationChannel = "email"
	return cfg
}

// Store holds the current AppConfig behind an atomic pointer. Readers call
// Current() and get a consistent snapshot; Reload swaps the pointer
// atomically so no reader ever observes a half-written config.
type Store struct {
	path    string
	current atomic.Pointer[AppConfig]
}

// NewStore loads path (or falls back to defaults if it doesn't exist yet)
// and returns a Store ready to serve Current().
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active configuration snapshot. Safe for concurrent use.
func (s *Store) Current() *AppConfig {
	return s.current.Load()
}

// Reload re-reads the settings file from disk and atomically swaps the
// active snapshot. Requests already in flight keep using the snapshot they
// started with; only requests that call Current() after Reload returns see
// the new values.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.current.Store(DefaultAppConfig())
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", s.path, err)
	}

	cfg := DefaultAppConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", s.path, err)
	}

	s.current.Store(cfg)
	return nil
}
