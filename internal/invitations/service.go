package invitations

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/license"
	"github.com/prose-im/prose-pod-api/internal/members"
	"github.com/prose-im/prose-pod-api/internal/notify"
	"github.com/prose-im/prose-pod-api/internal/onboarding"
	"github.com/prose-im/prose-pod-api/internal/podconfig"
	"github.com/prose-im/prose-pod-api/internal/telemetry"
	"github.com/prose-im/prose-pod-api/internal/workspace"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// acceptTTL is how long an invitation's accept token remains usable before
// the invitation needs a Resend.
const acceptTTL = 3 * 24 * time.Hour

// Service applies invitation lifecycle rules: creation is gated by the
// pod's member limit, and acceptance commits the member row (and deletes
// the invitation) before ever touching the XMPP server, so a crash or
// XMPP-side failure after that point leaves a partially-provisioned member
// rather than a dangling invitation.
type Service struct {
	store      *Store
	members    *members.Store
	workspace  *workspace.Store
	podConfig  *podconfig.Store
	serverCtl  *xmpp.ServerCtl
	gate       *license.Gate
	onboarding *onboarding.Store
	notifier   notify.Notifier
	domain     string
	logger     *slog.Logger
}

func NewService(
	store *Store,
	memberStore *members.Store,
	workspaceStore *workspace.Store,
	podConfigStore *podconfig.Store,
	serverCtl *xmpp.ServerCtl,
	gate *license.Gate,
	onboardingStore *onboarding.Store,
	notifier notify.Notifier,
	domain string,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		members:    memberStore,
		workspace:  workspaceStore,
		podConfig:  podConfigStore,
		serverCtl:  serverCtl,
		gate:       gate,
		onboarding: onboardingStore,
		notifier:   notifier,
		domain:     domain,
		logger:     logger,
	}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Invitation, int, error) {
	rows, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("listing invitations", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("counting invitations", err)
	}
	items := make([]Invitation, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.Invitation)
	}
	return items, total, nil
}

// Create issues a new invitation, refusing if the pod has reached its
// member limit, then dispatches the invitation email and persists the
// resulting dispatch status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	count, err := s.members.Count(ctx)
	if err != nil {
		return CreateResponse{}, apperrors.Internal("counting members", err)
	}
	if !s.gate.Allows(count) {
		return CreateResponse{}, apperrors.MemberLimitReached(s.gate.Limit())
	}

	jid := fmt.Sprintf("%s@%s", req.JIDNode, s.domain)
	if _, err := s.members.GetByJID(ctx, jid); err == nil {
		return CreateResponse{}, apperrors.Conflict("a member already exists for this node")
	} else if err != sql.ErrNoRows {
		return CreateResponse{}, apperrors.Internal("checking existing member", err)
	}

	if _, err := s.store.GetByJIDNode(ctx, req.JIDNode); err == nil {
		return CreateResponse{}, apperrors.Conflict("an invitation already exists for this node")
	} else if err != sql.ErrNoRows {
		return CreateResponse{}, apperrors.Internal("checking existing invitation", err)
	}

	acceptToken, rejectToken, tokens := generateTokenSet()
	acceptExpiresAt := time.Now().UTC().Add(acceptTTL)

	r, err := s.store.Create(ctx, req.JIDNode, req.PreAssignedRole, req.ContactEmail, tokens, acceptExpiresAt)
	if err != nil {
		return CreateResponse{}, apperrors.Internal("creating invitation", err)
	}

	telemetry.InvitationsTotal.WithLabelValues("created").Inc()

	// Best-effort: a failure to persist the flag never fails the request
	// that just successfully created the invitation.
	_ = s.onboarding.Reach(ctx, onboarding.StepAtLeastOneInviteSent)

	s.dispatchInvitationEmail(ctx, r, acceptToken)

	return CreateResponse{Invitation: r.Invitation, AcceptToken: acceptToken, RejectToken: rejectToken}, nil
}

// dispatchInvitationEmail sends the invitation notification if a contact
// email was given and the channel isn't disabled in AppConfig, persisting
// the resulting Sent/SendFailed status so a failed dispatch is visible and
// resendable rather than silently stuck looking "sent". An invitation with
// no contact email is left in ToSend — there was never anything to send.
func (s *Service) dispatchInvitationEmail(ctx context.Context, r row, acceptToken string) {
	if r.ContactEmail == "" {
		return
	}
	if s.podConfig.Current().Notify.WorkspaceInvitationChannel == "none" {
		return
	}

	ws, err := s.workspace.Get(ctx)
	if err != nil {
		s.markDispatch(ctx, r.ID, StatusSendFailed)
		return
	}

	err = s.notifier.SendWorkspaceInvitation(ctx, notify.WorkspaceInvitationMessage{
		To:            r.ContactEmail,
		WorkspaceName: ws.Name,
		DashboardURL:  s.podConfig.Current().Branding.DashboardURL,
		AcceptURL:     fmt.Sprintf("%s/invitations/%s/accept", s.podConfig.Current().Branding.DashboardURL, acceptToken),
	})
	if err != nil {
		s.logger.Warn("sending invitation email failed", "invitation_id", r.ID, "error", err)
		s.markDispatch(ctx, r.ID, StatusSendFailed)
		return
	}
	s.markDispatch(ctx, r.ID, StatusSent)
}

func (s *Service) markDispatch(ctx context.Context, id string, status Status) {
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		s.logger.Error("persisting invitation dispatch status", "invitation_id", id, "status", status, "error", err)
	}
}

// Accept resolves a raw accept token, commits the member row and deletes
// the invitation in one transaction, then provisions the XMPP side of the
// account. XMPP-side steps are best-effort past that commit: the member
// already exists in the pod's own records, and a provisioning failure is
// logged rather than rolled back, since the transaction that matters — the
// invitation being consumed exactly once — has already landed.
func (s *Service) Accept(ctx context.Context, rawToken string, req AcceptRequest) (members.Member, error) {
	r, err := s.findByToken(ctx, s.store.GetByAcceptTokenPrefix, rawToken, func(r row) string { return r.AcceptTokenHash })
	if err != nil {
		return members.Member{}, apperrors.Unauthorized("invalid invitation token")
	}
	if time.Now().UTC().After(r.AcceptTokenExpiresAt) {
		return members.Member{}, apperrors.NotFound("invitation has expired")
	}

	jid := fmt.Sprintf("%s@%s", r.JIDNode, s.domain)
	m, err := s.store.AcceptTx(ctx, s.members, r.ID, jid, req.Nickname, members.Role(r.PreAssignedRole))
	if err != nil {
		if err == sql.ErrNoRows {
			return members.Member{}, apperrors.NotFound("invitation has expired")
		}
		return members.Member{}, apperrors.Internal("accepting invitation", err)
	}

	s.provisionXMPPAccount(ctx, r, req)

	telemetry.InvitationsTotal.WithLabelValues("accepted").Inc()
	return m, nil
}

// provisionXMPPAccount performs the XMPP-side half of acceptance, which by
// invariant must run after the DB transaction in Accept has committed.
// Every step is logged on failure and none is retried here: the member row
// already exists, so a retry belongs to an admin-facing repair path, not to
// the accept request itself.
func (s *Service) provisionXMPPAccount(ctx context.Context, r row, req AcceptRequest) {
	if err := s.serverCtl.CreateUser(ctx, r.JIDNode, req.Password); err != nil {
		s.logger.Error("provisioning XMPP account", "jid_node", r.JIDNode, "error", err)
		return
	}
	if err := s.serverCtl.AddTeamMember(ctx, r.JIDNode); err != nil {
		s.logger.Error("adding team member", "jid_node", r.JIDNode, "error", err)
	}
	if r.PreAssignedRole != "" {
		if err := s.serverCtl.SetUserRole(ctx, r.JIDNode, prosodyRole(r.PreAssignedRole)); err != nil {
			s.logger.Error("setting user role", "jid_node", r.JIDNode, "error", err)
		}
	}
	if err := s.serverCtl.SetNickname(ctx, r.JIDNode, req.Nickname); err != nil {
		s.logger.Error("setting nickname", "jid_node", r.JIDNode, "error", err)
	}
}

func prosodyRole(role string) string {
	if role == "admin" {
		return "prosody:admin"
	}
	return "prosody:member"
}

// Reject consumes a raw reject token by deleting the invitation outright.
// It is idempotent: rejecting an already-gone invitation (already accepted,
// already rejected, or never existed) succeeds silently, since the caller's
// goal — "this invitation must not be usable" — already holds.
func (s *Service) Reject(ctx context.Context, rawToken string) error {
	r, err := s.findByToken(ctx, s.store.GetByRejectTokenPrefix, rawToken, func(r row) string { return r.RejectTokenHash })
	if err != nil {
		return nil
	}
	if err := s.store.Delete(ctx, r.ID); err != nil && err != sql.ErrNoRows {
		return apperrors.Internal("rejecting invitation", err)
	}
	telemetry.InvitationsTotal.WithLabelValues("rejected").Inc()
	return nil
}

// Resend rotates an invitation's tokens and accept expiry, then re-dispatches
// its email. Used both to recover from a SendFailed status and to refresh an
// invitation whose accept token has expired.
func (s *Service) Resend(ctx context.Context, id string) (CreateResponse, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return CreateResponse{}, apperrors.NotFound("invitation not found")
		}
		return CreateResponse{}, apperrors.Internal("getting invitation", err)
	}

	acceptToken, rejectToken, tokens := generateTokenSet()
	acceptExpiresAt := time.Now().UTC().Add(acceptTTL)

	if err := s.store.Resend(ctx, id, tokens, acceptExpiresAt); err != nil {
		return CreateResponse{}, apperrors.Internal("resending invitation", err)
	}
	r, err = s.store.Get(ctx, id)
	if err != nil {
		return CreateResponse{}, apperrors.Internal("getting resent invitation", err)
	}

	telemetry.InvitationsTotal.WithLabelValues("resent").Inc()
	s.dispatchInvitationEmail(ctx, r, acceptToken)

	return CreateResponse{Invitation: r.Invitation, AcceptToken: acceptToken, RejectToken: rejectToken}, nil
}

// Cancel removes a still-undecided invitation outright, for admin use.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return apperrors.NotFound("invitation not found")
		}
		return apperrors.Internal("cancelling invitation", err)
	}
	telemetry.InvitationsTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// findByToken looks up a raw token by its prefix, then verifies the full
// hash among the (normally single) candidate rows — the prefix narrows the
// scan to rows that could possibly match without ever storing the raw
// token.
func (s *Service) findByToken(ctx context.Context, lookup func(context.Context, string) ([]row, error), rawToken string, hashOf func(row) string) (row, error) {
	if len(rawToken) < tokenPrefixLen {
		return row{}, apperrors.BadRequest("malformed invitation token", nil)
	}
	prefix := rawToken[:tokenPrefixLen]
	hash := hashToken(rawToken)

	candidates, err := lookup(ctx, prefix)
	if err != nil {
		return row{}, apperrors.Internal("looking up invitation token", err)
	}
	for _, r := range candidates {
		if hashOf(r) == hash {
			return r, nil
		}
	}
	return row{}, apperrors.NotFound("invitation not found")
}

const tokenPrefixLen = 10

// generateTokenSet creates a fresh accept/reject token pair, returning both
// raw tokens (shown to the caller once) plus the hashes and prefixes to
// persist.
func generateTokenSet() (acceptToken, rejectToken string, tokens tokenSet) {
	acceptRaw, acceptHash, acceptPrefix := generateToken("acc")
	rejectRaw, rejectHash, rejectPrefix := generateToken("rej")
	return acceptRaw, rejectRaw, tokenSet{
		acceptHash: acceptHash, acceptPrefix: acceptPrefix,
		rejectHash: rejectHash, rejectPrefix: rejectPrefix,
	}
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func generateToken(kind string) (raw, hash, prefix string) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	raw = fmt.Sprintf("%s_%x", kind, b)
	prefix = raw[:tokenPrefixLen]
	hash = hashToken(raw)
	return
}
