// Package xmpp talks to the pod's own Prosody server: its admin REST
// interface for account management, its OAuth2 token endpoint for issuing
// member session tokens, and its on-disk configuration file, which this
// package renders and asks Prosody to reload.
package xmpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prose-im/prose-pod-api/internal/telemetry"
)

// ServerCtl is a thin client over Prosody's mod_admin_rest, authenticated
// with HTTP Basic auth using the pod's configured admin account.
type ServerCtl struct {
	baseURL  string
	username string
	password string
	domain   string
	client   *http.Client
}

// NewServerCtl builds a ServerCtl. baseURL is the admin-rest module's root
// (e.g. "http://localhost:5280/admin-rest").
func NewServerCtl(baseURL, username, password, domain string) *ServerCtl {
	return &ServerCtl{
		baseURL:  baseURL,
		username: username,
		password: password,
		domain:   domain,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateUser provisions a new XMPP account for nodePart@domain.
func (c *ServerCtl) CreateUser(ctx context.Context, nodePart, password string) error {
	return c.do(ctx, "create_user", map[string]string{
		"user":     nodePart,
		"host":     c.domain,
		"password": password,
	})
}

// DeleteUser deletes an XMPP account and its data.
func (c *ServerCtl) DeleteUser(ctx context.Context, nodePart string) error {
	return c.do(ctx, "delete_user", map[string]string{
		"user": nodePart,
		"host": c.domain,
	})
}

// ChangePassword updates an existing account's password.
func (c *ServerCtl) ChangePassword(ctx context.Context, nodePart, newPassword string) error {
	return c.do(ctx, "change_password", map[string]string{
		"user":     nodePart,
		"host":     c.domain,
		"password": newPassword,
	})
}

// SetNickname sets a member's vCard nickname field via Prosody's vCard
// pseudo-stanza REST wrapping.
func (c *ServerCtl) SetNickname(ctx context.Context, nodePart, nickname string) error {
	return c.do(ctx, "set_vcard_field", map[string]string{
		"user":  nodePart,
		"host":  c.domain,
		"field": "NICKNAME",
		"value": nickname,
	})
}

// SetUserRole assigns a Prosody role (e.g. "prosody:admin",
// "prosody:member") to an account.
func (c *ServerCtl) SetUserRole(ctx context.Context, nodePart, role string) error {
	return c.do(ctx, "set_user_role", map[string]string{
		"user": nodePart,
		"host": c.domain,
		"role": role,
	})
}

// AddTeamMember adds an account to the workspace's team roster MUC.
func (c *ServerCtl) AddTeamMember(ctx context.Context, nodePart string) error {
	return c.do(ctx, "add_team_member", map[string]string{
		"user": nodePart,
		"host": c.domain,
	})
}

// RemoveTeamMember removes an account from the workspace's team roster.
func (c *ServerCtl) RemoveTeamMember(ctx context.Context, nodePart string) error {
	return c.do(ctx, "remove_team_member", map[string]string{
		"user": nodePart,
		"host": c.domain,
	})
}

// DeleteAllData wipes every account and message on the server, used only
// by the destructive phase of factory reset.
func (c *ServerCtl) DeleteAllData(ctx context.Context) error {
	return c.do(ctx, "delete_all_data", map[string]string{"host": c.domain})
}

// ResetConfig regenerates the server's admin account with the given
// password, run as the first step of factory reset's destructive phase,
// before DeleteAllData and before the API's own database and config file
// are truncated.
func (c *ServerCtl) ResetConfig(ctx context.Context, initAdminPassword string) error {
	return c.do(ctx, "reset_config", map[string]string{
		"host":     c.domain,
		"password": initAdminPassword,
	})
}

// ListUsers returns the local parts of every account registered on the
// domain.
func (c *ServerCtl) ListUsers(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/list_users?host=%s", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building list_users request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.XMPPServerCtlErrorsTotal.WithLabelValues("list_users").Inc()
		return nil, fmt.Errorf("calling prosody admin-rest list_users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		telemetry.XMPPServerCtlErrorsTotal.WithLabelValues("list_users").Inc()
		return nil, fmt.Errorf("prosody admin-rest list_users returned status %d", resp.StatusCode)
	}

	var users []string
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decoding list_users response: %w", err)
	}
	return users, nil
}

// Ping performs a lightweight reachability check against the admin-rest
// endpoint, used for /readyz and for wait_until_ready's polling loop.
func (c *ServerCtl) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging prosody admin-rest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("prosody admin-rest returned status %d", resp.StatusCode)
	}
	return nil
}

// WaitUntilReady polls Ping until it succeeds or ctx is cancelled,
// intended for use right after the XMPP server process is started.
func (c *ServerCtl) WaitUntilReady(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := c.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for xmpp server: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *ServerCtl) do(ctx context.Context, operation string, params map[string]string) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", operation, err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.XMPPServerCtlErrorsTotal.WithLabelValues(operation).Inc()
		return fmt.Errorf("calling prosody admin-rest %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		telemetry.XMPPServerCtlErrorsTotal.WithLabelValues(operation).Inc()
		return fmt.Errorf("prosody admin-rest %s returned status %d", operation, resp.StatusCode)
	}

	return nil
}
