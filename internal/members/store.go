package members

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for members over a plain *sql.DB,
// mirroring the teacher's Store shape (explicit column list, hand-written
// Scan) but against sqlite's placeholder and driver conventions instead of
// pgx's.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const memberColumns = `id, jid, nickname, role, created_at, updated_at`

func scanMember(row *sql.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.JID, &m.Nickname, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// Create inserts a new member row outside any transaction, as first-account
// initialization does; invitation acceptance uses CreateTx instead.
func (s *Store) Create(ctx context.Context, jid, nickname string, role Role) (Member, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, jid, nickname, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, jid, nickname, role, now, now,
	)
	if err != nil {
		return Member{}, fmt.Errorf("creating member: %w", err)
	}

	return Member{ID: id, JID: jid, Nickname: nickname, Role: role, CreatedAt: now, UpdatedAt: now}, nil
}

// CreateTx is Create run against an existing transaction, used by invitation
// acceptance so the new member row and the deletion of its invitation commit
// atomically.
func (s *Store) CreateTx(ctx context.Context, tx *sql.Tx, jid, nickname string, role Role) (Member, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO members (id, jid, nickname, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, jid, nickname, role, now, now,
	)
	if err != nil {
		return Member{}, fmt.Errorf("creating member: %w", err)
	}

	return Member{ID: id, JID: jid, Nickname: nickname, Role: role, CreatedAt: now, UpdatedAt: now}, nil
}

// Get returns a single member by ID.
func (s *Store) Get(ctx context.Context, id string) (Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

// GetByJID returns a single member by full JID.
func (s *Store) GetByJID(ctx context.Context, jid string) (Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE jid = ?`, jid)
	return scanMember(row)
}

// List returns members ordered by JID, offset-paginated.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY jid LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var items []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.JID, &m.Nickname, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return items, nil
}

// Count returns the total number of members, used for both pagination and
// the license member-limit check.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM members`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return n, nil
}

// SetRole updates a member's role and returns the updated row.
func (s *Store) SetRole(ctx context.Context, id string, role Role) (Member, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE members SET role = ?, updated_at = ? WHERE id = ?`, role, now, id)
	if err != nil {
		return Member{}, fmt.Errorf("updating member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Member{}, sql.ErrNoRows
	}
	return s.Get(ctx, id)
}

// SetNickname updates a member's display nickname.
func (s *Store) SetNickname(ctx context.Context, id, nickname string) (Member, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE members SET nickname = ?, updated_at = ? WHERE id = ?`, nickname, now, id)
	if err != nil {
		return Member{}, fmt.Errorf("updating member nickname: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Member{}, sql.ErrNoRows
	}
	return s.Get(ctx, id)
}

// Delete removes a member row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
