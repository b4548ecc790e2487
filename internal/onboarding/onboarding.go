// Package onboarding tracks the pod's one-way initialization milestones:
// once a flag is reached it stays true until an explicit factory reset.
package onboarding

import "time"

// Step is a named onboarding milestone.
type Step string

const (
	StepWorkspaceInitialized    Step = "is_workspace_initialized"
	StepAllDNSChecksPassedOnce  Step = "all_dns_checks_passed_once"
	StepAtLeastOneInviteSent    Step = "at_least_one_invitation_sent"
)

// Status is the full set of onboarding flags, each with the time it was
// first reached (nil if not yet reached).
type Status struct {
	WorkspaceInitialized   *time.Time `json:"is_workspace_initialized"`
	AllDNSChecksPassedOnce *time.Time `json:"all_dns_checks_passed_once"`
	AtLeastOneInviteSent   *time.Time `json:"at_least_one_invitation_sent"`
}
