package onboarding

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store tracks onboarding_steps rows. A step row existing at all means
// the step has been reached; completed_at records when.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Reach marks a step as completed if it has not already been reached.
// Onboarding flags are monotonic: calling Reach on an already-completed
// step is a no-op rather than updating completed_at.
func (s *Store) Reach(ctx context.Context, step Step) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO onboarding_steps (step, completed_at) VALUES (?, ?)
		ON CONFLICT (step) DO NOTHING`,
		string(step), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("reaching onboarding step %s: %w", step, err)
	}
	return nil
}

// Status returns every tracked onboarding flag and when it was reached.
func (s *Store) Status(ctx context.Context) (Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT step, completed_at FROM onboarding_steps`)
	if err != nil {
		return Status{}, fmt.Errorf("listing onboarding steps: %w", err)
	}
	defer rows.Close()

	var st Status
	for rows.Next() {
		var step string
		var completedAt time.Time
		if err := rows.Scan(&step, &completedAt); err != nil {
			return Status{}, fmt.Errorf("scanning onboarding step: %w", err)
		}
		t := completedAt
		switch Step(step) {
		case StepWorkspaceInitialized:
			st.WorkspaceInitialized = &t
		case StepAllDNSChecksPassedOnce:
			st.AllDNSChecksPassedOnce = &t
		case StepAtLeastOneInviteSent:
			st.AtLeastOneInviteSent = &t
		}
	}
	if err := rows.Err(); err != nil {
		return Status{}, fmt.Errorf("iterating onboarding steps: %w", err)
	}
	return st, nil
}

// Reset deletes every onboarding step row.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_steps`); err != nil {
		return fmt.Errorf("resetting onboarding steps: %w", err)
	}
	return nil
}
