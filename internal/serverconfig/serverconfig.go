// Package serverconfig holds the XMPP server's administrable settings:
// TLS profile, file upload policy, message archive retention, and push
// notifications. Updates are persisted then rendered into the live
// Prosody configuration.
package serverconfig

import (
	"time"

	"github.com/prose-im/prose-pod-api/internal/durations"
)

// ServerConfig is the pod's singleton XMPP server settings row.
type ServerConfig struct {
	MessageArchiveRetention     durations.PossiblyInfinite `json:"message_archive_retention"`
	FileUploadAllowed           bool                       `json:"file_upload_allowed"`
	FileStorageEncryptionScheme string                     `json:"file_storage_encryption_scheme"`
	PushNotificationsEnabled    bool                       `json:"push_notifications_enabled"`
	TLSProfile                  string                     `json:"tls_profile"`
	FederationEnabled           bool                       `json:"federation_enabled"`
	UpdatedAt                   time.Time                  `json:"updated_at"`
}

// UpdateRequest is the JSON body for PATCH /v1/server-config. Every field
// is optional; only present fields are applied.
type UpdateRequest struct {
	MessageArchiveRetention     *string `json:"message_archive_retention,omitempty"`
	FileUploadAllowed           *bool   `json:"file_upload_allowed,omitempty"`
	FileStorageEncryptionScheme *string `json:"file_storage_encryption_scheme,omitempty" validate:"omitempty,oneof=aes-256 none"`
	PushNotificationsEnabled    *bool   `json:"push_notifications_enabled,omitempty"`
	TLSProfile                  *string `json:"tls_profile,omitempty" validate:"omitempty,oneof=modern intermediate old"`
	FederationEnabled           *bool   `json:"federation_enabled,omitempty"`
}
