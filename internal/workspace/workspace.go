// Package workspace holds the pod's single identity record: its display
// name, icon, and accent color, shown in client UIs.
package workspace

import "time"

// Workspace is the pod's singleton identity.
type Workspace struct {
	Name        string    `json:"name"`
	IconDataURL string    `json:"icon_data_url"`
	AccentColor string    `json:"accent_color"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateRequest is the JSON body for PATCH /v1/workspace. Every field is
// optional; only present fields are applied.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	IconDataURL *string `json:"icon_data_url,omitempty" validate:"omitempty,max=2097152"`
	AccentColor *string `json:"accent_color,omitempty" validate:"omitempty,hexcolor"`
}
