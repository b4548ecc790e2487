package serverconfig

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prose-im/prose-pod-api/internal/durations"
)

// Store provides database operations for the singleton server_config row.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the server config row, seeding it with defaults on first read.
func (s *Store) Get(ctx context.Context) (ServerConfig, error) {
	var c ServerConfig
	var retention string
	err := s.db.QueryRowContext(ctx, `
		SELECT message_archive_retention, file_upload_allowed, file_storage_encryption_scheme,
		       push_notifications_enabled, tls_profile, federation_enabled, updated_at
		FROM server_config WHERE id = 1`).
		Scan(&retention, &c.FileUploadAllowed, &c.FileStorageEncryptionScheme,
			&c.PushNotificationsEnabled, &c.TLSProfile, &c.FederationEnabled, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return s.seed(ctx)
	}
	if err != nil {
		return ServerConfig{}, fmt.Errorf("getting server config: %w", err)
	}

	parsed, err := durations.Parse(retention)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("parsing stored message_archive_retention %q: %w", retention, err)
	}
	c.MessageArchiveRetention = parsed
	return c, nil
}

func (s *Store) seed(ctx context.Context) (ServerConfig, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_config (id, message_archive_retention, file_upload_allowed, file_storage_encryption_scheme, push_notifications_enabled, tls_profile, federation_enabled, updated_at)
		VALUES (1, 'infinite', 1, 'aes-256', 1, 'modern', 1, ?)`, now)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("seeding server config: %w", err)
	}
	return ServerConfig{
		MessageArchiveRetention:     durations.Forever(),
		FileUploadAllowed:           true,
		FileStorageEncryptionScheme: "aes-256",
		PushNotificationsEnabled:    true,
		TLSProfile:                  "modern",
		FederationEnabled:           true,
		UpdatedAt:                   now,
	}, nil
}

// Update applies a partial update to the server config row.
func (s *Store) Update(ctx context.Context, req UpdateRequest) (ServerConfig, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return ServerConfig{}, err
	}

	if req.MessageArchiveRetention != nil {
		parsed, err := durations.Parse(*req.MessageArchiveRetention)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid message_archive_retention: %w", err)
		}
		current.MessageArchiveRetention = parsed
	}
	if req.FileUploadAllowed != nil {
		current.FileUploadAllowed = *req.FileUploadAllowed
	}
	if req.FileStorageEncryptionScheme != nil {
		current.FileStorageEncryptionScheme = *req.FileStorageEncryptionScheme
	}
	if req.PushNotificationsEnabled != nil {
		current.PushNotificationsEnabled = *req.PushNotificationsEnabled
	}
	if req.TLSProfile != nil {
		current.TLSProfile = *req.TLSProfile
	}
	if req.FederationEnabled != nil {
		current.FederationEnabled = *req.FederationEnabled
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE server_config SET message_archive_retention = ?, file_upload_allowed = ?,
			file_storage_encryption_scheme = ?, push_notifications_enabled = ?, tls_profile = ?,
			federation_enabled = ?, updated_at = ?
		WHERE id = 1`,
		current.MessageArchiveRetention.String(), current.FileUploadAllowed, current.FileStorageEncryptionScheme,
		current.PushNotificationsEnabled, current.TLSProfile, current.FederationEnabled, current.UpdatedAt,
	)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("updating server config: %w", err)
	}
	return current, nil
}
