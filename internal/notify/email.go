package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
)

// EmailNotifier sends invitation emails over SMTP. No mail-sending library
// appears anywhere in the corpus, so this is built directly on net/smtp —
// the one other ambient concern in this codebase without ecosystem backing
// (see DESIGN.md).
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *slog.Logger
}

// NewEmailNotifier creates an EmailNotifier. If host is empty, the
// notifier is disabled and logs instead of sending, mirroring the
// teacher's disabled-if-unconfigured notifier pattern.
func NewEmailNotifier(host string, port int, username, password, from string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, username: username, password: password, from: from, logger: logger}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) IsEnabled() bool {
	return n.host != ""
}

var invitationTemplate = template.Must(template.New("invitation-email").Parse(`Subject: You've been invited to {{.WorkspaceName}}
To: {{.To}}

{{if .OrganizationName}}{{.OrganizationName}} has{{else}}You have been{{end}} invited you to join the {{.WorkspaceName}} workspace.

Accept your invitation: {{.AcceptURL}}
Manage the workspace: {{.DashboardURL}}
`))

// SendWorkspaceInvitation renders and sends the invitation email. If the
// notifier is disabled it logs the message instead of sending.
func (n *EmailNotifier) SendWorkspaceInvitation(ctx context.Context, msg WorkspaceInvitationMessage) error {
	var body bytes.Buffer
	if err := invitationTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("rendering invitation email: %w", err)
	}

	if !n.IsEnabled() {
		n.logger.Debug("email notifier disabled, skipping invitation send", "to", msg.To)
		return nil
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	if err := smtp.SendMail(addr, auth, n.from, []string{msg.To}, body.Bytes()); err != nil {
		return fmt.Errorf("sending invitation email to %s: %w", msg.To, err)
	}
	return nil
}
