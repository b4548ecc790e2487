package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides database operations for the singleton workspace row.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the workspace row, seeding it with defaults on first read.
func (s *Store) Get(ctx context.Context) (Workspace, error) {
	var w Workspace
	err := s.db.QueryRowContext(ctx, `SELECT name, icon_data_url, accent_color, updated_at FROM workspace WHERE id = 1`).
		Scan(&w.Name, &w.IconDataURL, &w.AccentColor, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return s.seed(ctx)
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("getting workspace: %w", err)
	}
	return w, nil
}

func (s *Store) seed(ctx context.Context) (Workspace, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace (id, name, icon_data_url, accent_color, updated_at)
		VALUES (1, '', '', '', ?)`, now)
	if err != nil {
		return Workspace{}, fmt.Errorf("seeding workspace: %w", err)
	}
	return Workspace{UpdatedAt: now}, nil
}

// Update applies a partial update to the workspace row.
func (s *Store) Update(ctx context.Context, req UpdateRequest) (Workspace, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Workspace{}, err
	}

	if req.Name != nil {
		current.Name = *req.Name
	}
	if req.IconDataURL != nil {
		current.IconDataURL = *req.IconDataURL
	}
	if req.AccentColor != nil {
		current.AccentColor = *req.AccentColor
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE workspace SET name = ?, icon_data_url = ?, accent_color = ?, updated_at = ? WHERE id = 1`,
		current.Name, current.IconDataURL, current.AccentColor, current.UpdatedAt,
	)
	if err != nil {
		return Workspace{}, fmt.Errorf("updating workspace: %w", err)
	}
	return current, nil
}
