// Package members manages the pod's roster of XMPP accounts: the people
// who have accepted an invitation and now have a live account on the pod's
// XMPP server.
package members

import "time"

// Role is a member's permission level within the pod.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member is a single pod member.
type Member struct {
	ID        string    `json:"id"`
	JID       string    `json:"jid"`
	Nickname  string    `json:"nickname"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetRoleRequest is the JSON body for PATCH /v1/members/{id}.
type SetRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=member admin"`
}
