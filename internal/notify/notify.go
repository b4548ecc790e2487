// Package notify sends the pod's outbound member-facing notifications.
// It defines a provider-agnostic interface the way the teacher's
// pkg/messaging.Provider does for chat platforms, with a single SMTP-backed
// implementation for this domain's one channel: invitation email.
package notify

import "context"

// WorkspaceInvitationMessage carries everything a rendered invitation
// email needs.
type WorkspaceInvitationMessage struct {
	To              string
	WorkspaceName   string
	DashboardURL    string
	OrganizationName string
	AcceptURL       string
}

// Notifier is the interface every notification channel implements.
type Notifier interface {
	// Name returns the channel identifier ("email").
	Name() string

	// SendWorkspaceInvitation sends an invitation notification.
	SendWorkspaceInvitation(ctx context.Context, msg WorkspaceInvitationMessage) error
}

// NoopNotifier is used when no SMTP host is configured: invitations are
// still created and their accept links still work, the pod just never
// emails them, leaving delivery to the operator.
type NoopNotifier struct{}

func (NoopNotifier) Name() string { return "none" }

func (NoopNotifier) SendWorkspaceInvitation(context.Context, WorkspaceInvitationMessage) error {
	return nil
}
