package members

import (
	"context"
	"database/sql"
	"strings"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
	"github.com/prose-im/prose-pod-api/internal/xmpp"
)

// Service applies the pod's member lifecycle rules on top of the Store:
// the last admin may not be demoted or removed, and removing a member
// deletes its XMPP account as well as its database row.
type Service struct {
	store     *Store
	serverCtl *xmpp.ServerCtl
}

func NewService(store *Store, serverCtl *xmpp.ServerCtl) *Service {
	return &Service{store: store, serverCtl: serverCtl}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Member, int, error) {
	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("listing members", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("counting members", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return Member{}, apperrors.NotFound("member not found")
		}
		return Member{}, apperrors.Internal("getting member", err)
	}
	return m, nil
}

// SetRole changes a member's role, refusing to demote the last remaining
// admin — a pod with zero admins can no longer administer itself.
func (s *Service) SetRole(ctx context.Context, id string, role Role) (Member, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Member{}, err
	}

	if current.Role == RoleAdmin && role != RoleAdmin {
		remaining, err := s.countOtherAdmins(ctx, id)
		if err != nil {
			return Member{}, err
		}
		if remaining == 0 {
			return Member{}, apperrors.Conflict("cannot demote the last remaining admin")
		}
	}

	updated, err := s.store.SetRole(ctx, id, role)
	if err != nil {
		return Member{}, apperrors.Internal("updating member role", err)
	}
	return updated, nil
}

// Remove deletes a member's XMPP account and database row, refusing to
// remove the last remaining admin.
func (s *Service) Remove(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if current.Role == RoleAdmin {
		remaining, err := s.countOtherAdmins(ctx, id)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return apperrors.Conflict("cannot remove the last remaining admin")
		}
	}

	nodePart, _, _ := strings.Cut(current.JID, "@")
	if err := s.serverCtl.DeleteUser(ctx, nodePart); err != nil {
		return apperrors.UpstreamUnavailable("deleting XMPP account", err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return apperrors.Internal("deleting member", err)
	}
	return nil
}

func (s *Service) countOtherAdmins(ctx context.Context, excludeID string) (int, error) {
	// A small pod's member list is never large enough to need a dedicated
	// COUNT query keyed on role; listing is cheap and keeps the Store
	// surface minimal.
	all, err := s.store.List(ctx, 10_000, 0)
	if err != nil {
		return 0, apperrors.Internal("listing members", err)
	}
	count := 0
	for _, m := range all {
		if m.Role == RoleAdmin && m.ID != excludeID {
			count++
		}
	}
	return count, nil
}
