// Package config loads the pod's process-topology configuration from the
// environment. The administrator-editable TOML settings file is loaded by
// internal/podconfig; this package only holds its path.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds process-topology configuration, loaded once from the
// environment at startup and never reloaded.
type Config struct {
	// Server
	Host string `env:"PROSE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PROSE_PORT" envDefault:"8080"`

	// Storage
	DatabasePath string `env:"PROSE_DATABASE_PATH" envDefault:"/var/lib/prose-pod-api/database.sqlite"`
	MigrationsDir string `env:"PROSE_MIGRATIONS_DIR" envDefault:"migrations"`

	// Administrator-editable settings file (read by podconfig.Store; no API
	// endpoint reloads it).
	ConfigFilePath string `env:"PROSE_CONFIG_PATH" envDefault:"/etc/prose/prose.toml"`
	LicenseFilePath string `env:"PROSE_LICENSE_PATH" envDefault:"/etc/prose/prose.lic"`

	// Logging
	LogLevel  string `env:"PROSE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PROSE_LOG_FORMAT" envDefault:"json"`

	// CORS
	CORSAllowedOrigins []string `env:"PROSE_CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// XMPP server control plane.
	XMPPAdminRESTURL  string `env:"PROSE_XMPP_ADMIN_REST_URL" envDefault:"http://localhost:5280/admin-rest"`
	XMPPOAuth2TokenURL string `env:"PROSE_XMPP_OAUTH2_TOKEN_URL" envDefault:"http://localhost:5280/oauth2/token"`
	// XMPPOAuth2IssuerURL is the OIDC discovery issuer Prosody's
	// mod_http_oauth2 exposes for its own tokens. Distinct from
	// XMPPOAuth2TokenURL: the token URL is the raw grant endpoint the pod
	// POSTs credentials to, the issuer URL is what auth.NewTokenVerifier
	// runs OIDC discovery (.well-known/openid-configuration + JWKS)
	// against to validate the tokens members present back to the pod.
	XMPPOAuth2IssuerURL string `env:"PROSE_XMPP_OAUTH2_ISSUER_URL" envDefault:"http://localhost:5280"`
	XMPPDomain        string `env:"PROSE_XMPP_DOMAIN" envDefault:"prose.local"`
	XMPPAdminUsername string `env:"PROSE_XMPP_ADMIN_USERNAME" envDefault:"admin"`
	XMPPAdminPassword string `env:"PROSE_XMPP_ADMIN_PASSWORD"`
	// XMPPClientPort is the c2s port network checks probe for
	// reachability, distinct from the admin-REST control port above.
	XMPPClientPort    int    `env:"PROSE_XMPP_CLIENT_PORT" envDefault:"5222"`
	ProsodyConfigPath string `env:"PROSE_PROSODY_CONFIG_PATH" envDefault:"/etc/prosody/conf.d/prose.cfg.lua"`
	ProsodyCtlCommand string `env:"PROSE_PROSODY_CTL_COMMAND" envDefault:"prosodyctl"`

	// Authoritative DNS server used for network checks, bypassing the OS
	// resolver cache.
	DNSResolverAddr string `env:"PROSE_DNS_RESOLVER_ADDR" envDefault:"1.1.1.1:53"`
	// XMPPServerPort is the s2s port network checks probe when federation
	// is enabled.
	XMPPServerPort int `env:"PROSE_XMPP_SERVER_PORT" envDefault:"5269"`
	// HTTPSPort is the port network checks probe for the pod's HTTPS
	// reverse-proxy reachability.
	HTTPSPort int `env:"PROSE_HTTPS_PORT" envDefault:"443"`
	// PodStaticIPv4/PodStaticIPv6 are the pod's fixed public addresses, if
	// it has one: when set, network checks verify the xmpp.<domain> A/AAAA
	// record resolves to exactly this address. Left empty when the pod
	// sits behind a dynamic address (e.g. a managed load balancer), in
	// which case those record checks are skipped entirely.
	PodStaticIPv4 string `env:"PROSE_POD_STATIC_IPV4"`
	PodStaticIPv6 string `env:"PROSE_POD_STATIC_IPV6"`

	// Secrets
	JWTSigningKey string `env:"PROSE_JWT_SIGNING_KEY"`

	// SMTP notifications (optional — if Host is empty, EmailNotifier no-ops).
	SMTPHost     string `env:"PROSE_SMTP_HOST"`
	SMTPPort     int    `env:"PROSE_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"PROSE_SMTP_USERNAME"`
	SMTPPassword string `env:"PROSE_SMTP_PASSWORD"`
	SMTPFrom     string `env:"PROSE_SMTP_FROM" envDefault:"prose-pod-api@localhost"`

	// Member limit override; 0 means "use the license file or the default".
	MemberLimit int `env:"PROSE_MEMBER_LIMIT" envDefault:"0"`
}

// Load reads process-topology configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
