package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestSendWorkspaceInvitation_DisabledIsNoop(t *testing.T) {
	n := NewEmailNotifier("", 0, "", "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.SendWorkspaceInvitation(context.Background(), WorkspaceInvitationMessage{
		To:            "alice@example.com",
		WorkspaceName: "Acme",
		AcceptURL:     "https://pod.example.com/accept/abc",
	})
	if err != nil {
		t.Fatalf("expected disabled notifier to no-op, got error: %v", err)
	}
}

func TestSendWorkspaceInvitation_RendersTemplateBeforeSending(t *testing.T) {
	// An unreachable host with a non-empty value still exercises the
	// rendering path and fails only on the network send.
	n := NewEmailNotifier("127.0.0.1", 1, "", "", "pod@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.SendWorkspaceInvitation(context.Background(), WorkspaceInvitationMessage{
		To:            "alice@example.com",
		WorkspaceName: "Acme",
		AcceptURL:     "https://pod.example.com/accept/abc",
	})
	if err == nil {
		t.Fatal("expected a network error dialing an unreachable SMTP port")
	}
}
