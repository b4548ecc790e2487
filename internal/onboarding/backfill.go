package onboarding

import (
	"context"
	"log/slog"
)

// WorkspaceNameGetter reports the pod's currently configured workspace
// name, used to infer whether workspace initialization already happened
// before the onboarding_steps table existed.
type WorkspaceNameGetter interface {
	WorkspaceName(ctx context.Context) (string, error)
}

// InvitationCounter reports whether any invitation has ever been created,
// used to infer whether an invite was sent before the onboarding_steps
// table existed. Invitation rows are deleted on accept or reject, so a
// plain row count can't answer this; the probe instead checks SQLite's
// rowid allocator, which only ever advances (see
// invitations.Store.ProbeEverCreated). This is a one-time backfill path —
// once reached, the onboarding_steps sentinel row is the source of truth.
type InvitationCounter interface {
	EverCreated(ctx context.Context) (bool, error)
}

// DNSChecker reports whether a single fresh run of the DNS check suite
// passed in full.
type DNSChecker interface {
	AllDNSChecksPass(ctx context.Context) (bool, error)
}

// Backfill fills in onboarding flags that predate the onboarding_steps
// table (or were otherwise missed), by re-deriving them from the state
// they describe. It is run once at startup in normal mode and never
// overwrites a flag that is already set — onboarding flags are monotonic.
func Backfill(ctx context.Context, store *Store, workspaces WorkspaceNameGetter, invites InvitationCounter, dns DNSChecker, logger *slog.Logger) {
	status, err := store.Status(ctx)
	if err != nil {
		logger.Error("backfill: reading onboarding status", "error", err)
		return
	}

	if status.WorkspaceInitialized == nil {
		name, err := workspaces.WorkspaceName(ctx)
		if err != nil {
			logger.Error("backfill: reading workspace name", "error", err)
		} else if name != "" {
			if err := store.Reach(ctx, StepWorkspaceInitialized); err != nil {
				logger.Error("backfill: marking workspace initialized", "error", err)
			}
		}
	}

	if status.AtLeastOneInviteSent == nil {
		ever, err := invites.EverCreated(ctx)
		if err != nil {
			logger.Error("backfill: probing invitation history", "error", err)
		} else if ever {
			if err := store.Reach(ctx, StepAtLeastOneInviteSent); err != nil {
				logger.Error("backfill: marking invitation sent", "error", err)
			}
		}
	}

	if status.AllDNSChecksPassedOnce == nil {
		ok, err := dns.AllDNSChecksPass(ctx)
		if err != nil {
			logger.Error("backfill: running DNS checks", "error", err)
		} else if ok {
			if err := store.Reach(ctx, StepAllDNSChecksPassedOnce); err != nil {
				logger.Error("backfill: marking DNS checks passed", "error", err)
			}
		}
	}
}
