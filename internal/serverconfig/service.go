package serverconfig

import (
	"context"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/workspace"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// Service keeps the stored server configuration and the live Prosody
// configuration in sync: every update is written to the database, then
// rendered and hot-reloaded into the running server.
type Service struct {
	store     *Store
	workspace *workspace.Store
	renderer  *xmpp.ConfigRenderer
	domain    string
}

func NewService(store *Store, workspaceStore *workspace.Store, renderer *xmpp.ConfigRenderer, domain string) *Service {
	return &Service{store: store, workspace: workspaceStore, renderer: renderer, domain: domain}
}

func (s *Service) Get(ctx context.Context) (ServerConfig, error) {
	c, err := s.store.Get(ctx)
	if err != nil {
		return ServerConfig{}, apperrors.Internal("getting server config", err)
	}
	return c, nil
}

// Reconcile renders the currently stored ServerConfig and pushes it live to
// Prosody without changing anything in the database, used once at startup
// (startup_actions (a)) so a restarted pod's rendered Prosody config never
// drifts from what ServerConfig says it should be, even if the config file
// on disk was hand-edited or lost between restarts.
func (s *Service) Reconcile(ctx context.Context) error {
	current, err := s.store.Get(ctx)
	if err != nil {
		return apperrors.Internal("getting server config", err)
	}

	ws, err := s.workspace.Get(ctx)
	if err != nil {
		return apperrors.Internal("getting workspace for config render", err)
	}

	err = s.renderer.Render(ctx, xmpp.ConfigData{
		Domain:                   s.domain,
		WorkspaceName:            ws.Name,
		TLSProfile:               current.TLSProfile,
		FileUploadAllowed:        current.FileUploadAllowed,
		MessageArchiveRetention:  current.MessageArchiveRetention.String(),
		PushNotificationsEnabled: current.PushNotificationsEnabled,
		FederationEnabled:        current.FederationEnabled,
	})
	if err != nil {
		return apperrors.UpstreamUnavailable("reconciling XMPP server configuration", err)
	}
	return nil
}

// Update persists the requested changes and pushes them live to Prosody.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (ServerConfig, error) {
	updated, err := s.store.Update(ctx, req)
	if err != nil {
		return ServerConfig{}, apperrors.Internal("updating server config", err)
	}

	ws, err := s.workspace.Get(ctx)
	if err != nil {
		return ServerConfig{}, apperrors.Internal("getting workspace for config render", err)
	}

	err = s.renderer.Render(ctx, xmpp.ConfigData{
		Domain:                   s.domain,
		WorkspaceName:            ws.Name,
		TLSProfile:               updated.TLSProfile,
		FileUploadAllowed:        updated.FileUploadAllowed,
		MessageArchiveRetention:  updated.MessageArchiveRetention.String(),
		PushNotificationsEnabled: updated.PushNotificationsEnabled,
		FederationEnabled:        updated.FederationEnabled,
	})
	if err != nil {
		return ServerConfig{}, apperrors.UpstreamUnavailable("reloading XMPP server configuration", err)
	}

	return updated, nil
}
