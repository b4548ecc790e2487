package invitations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prose-im/prose-pod-api/internal/members"
)

// Store provides database operations for invitations over a plain *sql.DB.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const invitationColumns = `id, jid_node, pre_assigned_role, status, contact_email,
	accept_token_hash, accept_token_prefix, reject_token_hash, reject_token_prefix,
	created_at, accept_token_expires_at`

// row mirrors the invitations table, including the token hashes which never
// leave the Store layer.
type row struct {
	Invitation
	AcceptTokenHash   string
	AcceptTokenPrefix string
	RejectTokenHash   string
	RejectTokenPrefix string
}

func scanInvitation(scan func(dest ...any) error) (row, error) {
	var r row
	var contactEmail sql.NullString
	err := scan(
		&r.ID, &r.JIDNode, &r.PreAssignedRole, &r.Status, &contactEmail,
		&r.AcceptTokenHash, &r.AcceptTokenPrefix, &r.RejectTokenHash, &r.RejectTokenPrefix,
		&r.CreatedAt, &r.AcceptTokenExpiresAt,
	)
	if err != nil {
		return row{}, err
	}
	r.ContactEmail = contactEmail.String
	return r, nil
}

// tokenSet is a pair of raw-token artifacts produced by generateToken,
// stored alongside an invitation so the accept/reject link can later be
// verified without ever persisting the raw tokens.
type tokenSet struct {
	acceptHash, acceptPrefix string
	rejectHash, rejectPrefix string
}

// Create inserts a new invitation row in StatusToSend.
func (s *Store) Create(ctx context.Context, jidNode, role, contactEmail string, tokens tokenSet, acceptExpiresAt time.Time) (row, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (
			id, jid_node, pre_assigned_role, status, contact_email,
			accept_token_hash, accept_token_prefix, reject_token_hash, reject_token_prefix,
			created_at, accept_token_expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, jidNode, role, StatusToSend, nullIfEmpty(contactEmail),
		tokens.acceptHash, tokens.acceptPrefix, tokens.rejectHash, tokens.rejectPrefix,
		now, acceptExpiresAt,
	)
	if err != nil {
		return row{}, fmt.Errorf("creating invitation: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns a single invitation by ID, including its token hashes.
func (s *Store) Get(ctx context.Context, id string) (row, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	return scanInvitation(r.Scan)
}

// GetByJIDNode returns a single invitation by the node it was issued for.
func (s *Store) GetByJIDNode(ctx context.Context, jidNode string) (row, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE jid_node = ?`, jidNode)
	return scanInvitation(r.Scan)
}

// GetByAcceptTokenPrefix returns candidate rows matching a raw accept
// token's prefix; callers verify the full hash themselves since the
// prefix alone isn't guaranteed unique.
func (s *Store) GetByAcceptTokenPrefix(ctx context.Context, prefix string) ([]row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE accept_token_prefix = ?`, prefix)
	if err != nil {
		return nil, fmt.Errorf("looking up invitation by accept token prefix: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// GetByRejectTokenPrefix mirrors GetByAcceptTokenPrefix for the reject token.
func (s *Store) GetByRejectTokenPrefix(ctx context.Context, prefix string) ([]row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE reject_token_prefix = ?`, prefix)
	if err != nil {
		return nil, fmt.Errorf("looking up invitation by reject token prefix: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]row, error) {
	var items []row
	for rows.Next() {
		r, err := scanInvitation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// List returns invitations ordered by creation time, offset-paginated.
func (s *Store) List(ctx context.Context, limit, offset int) ([]row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Count returns the total number of currently pending invitations, used for
// pagination. It is unrelated to ProbeEverCreated, which answers whether an
// invitation was ever created, including ones long since accepted or
// rejected and no longer present as rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM invitations`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting invitations: %w", err)
	}
	return n, nil
}

// SetStatus transitions an invitation's email-dispatch status unconditionally.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE invitations SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating invitation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Resend rotates both tokens and the accept expiry on an existing invitation,
// resetting its status to ToSend so it is picked up for re-dispatch.
func (s *Store) Resend(ctx context.Context, id string, tokens tokenSet, acceptExpiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET
			status = ?, accept_token_hash = ?, accept_token_prefix = ?,
			reject_token_hash = ?, reject_token_prefix = ?, accept_token_expires_at = ?
		WHERE id = ?`,
		StatusToSend, tokens.acceptHash, tokens.acceptPrefix, tokens.rejectHash, tokens.rejectPrefix, acceptExpiresAt, id,
	)
	if err != nil {
		return fmt.Errorf("resending invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an invitation row outright, used both for admin
// cancellation and for reject (where the row must not linger in any status).
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AcceptTx runs the transactional half of acceptance: it creates the member
// row and deletes the invitation row in a single committed transaction, so a
// crash between the two never leaves a member without a deleted invitation
// or vice versa. The XMPP-side provisioning that must happen only after this
// commit is the caller's responsibility (see Service.Accept).
func (s *Store) AcceptTx(ctx context.Context, members_ *members.Store, invitationID, jid, nickname string, role members.Role) (members.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return members.Member{}, fmt.Errorf("starting accept transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := members_.CreateTx(ctx, tx, jid, nickname, role)
	if err != nil {
		return members.Member{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, invitationID)
	if err != nil {
		return members.Member{}, fmt.Errorf("deleting accepted invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return members.Member{}, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return members.Member{}, fmt.Errorf("committing accept transaction: %w", err)
	}
	return m, nil
}

// ProbeEverCreated reports whether any invitation has ever been created,
// including ones since accepted or rejected and no longer present as rows.
// It follows the spec's literal mechanism: insert a disposable row, read
// back the rowid SQLite assigned it via LastInsertId, then roll back. A
// rowid greater than 1 proves a prior row once occupied the table, since
// SQLite's rowid allocator (the column invitations.id does not redeclare as
// INTEGER PRIMARY KEY, so ordinary rowid allocation applies) never reuses a
// number from a committed-then-deleted row within the same table, even
// across restarts. One subtlety worth flagging: a rowid is allocated before
// the enclosing rollback, so two concurrent probes can observe adjacent
// rowids without either of them being "the first row" — this probe only
// needs "greater than the lowest possible first rowid", not an exact count,
// so that doesn't matter here.
func (s *Store) ProbeEverCreated(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting probe transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invitations (
			id, jid_node, pre_assigned_role, status, contact_email,
			accept_token_hash, accept_token_prefix, reject_token_hash, reject_token_prefix,
			created_at, accept_token_expires_at
		) VALUES (?, '__probe__', 'member', ?, NULL, '', '', '', '', ?, ?)`,
		uuid.NewString(), StatusToSend, time.Now().UTC(), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting probe row: %w", err)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading probe rowid: %w", err)
	}

	return rowid > 1, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
