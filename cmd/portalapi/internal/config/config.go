package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load (PORTAL_DATABASE_URL, PORTAL_IDP_CLIENT_ID, ...).
const EnvPrefix = "PORTAL"

// Session store backends.
const (
	SessionStoreDatabase = "database"
	SessionStoreRedis    = "redis"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL of this server, used for the IdP callback URLs
	ServerURL string `mapstructure:"server_url"`

	// Base URL of the browser client; redirect targets and the CORS origin derive from it
	FrontendURL string `mapstructure:"frontend_url"`

	// Maximum database connection pool size
	MaxDBConnections int `mapstructure:"max_db_connections"`

	// Upper bound for every database statement
	DBTimeout time.Duration `mapstructure:"db_timeout"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	// Log output format: text or json
	LogFormat string `mapstructure:"log_format"`

	// Extra origins allowed by CORS in addition to the frontend origin
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Requests per minute per client IP on the login and callback endpoints
	LoginRateLimit int `mapstructure:"login_rate_limit"`

	IdP           IdPConfig           `mapstructure:"idp"`
	Session       SessionConfig       `mapstructure:"session"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// IdPConfig holds the external identity provider registration.
//
// The issuer is either set directly or derived from Instance and TenantID
// (<instance>/<tenant>/v2.0), the form used by Entra ID style providers.
type IdPConfig struct {
	Instance              string   `mapstructure:"instance"`
	TenantID              string   `mapstructure:"tenant_id"`
	Issuer                string   `mapstructure:"issuer"`
	ClientID              string   `mapstructure:"client_id"`
	ClientSecret          string   `mapstructure:"client_secret"`
	CallbackPath          string   `mapstructure:"callback_path"`
	SignedOutCallbackPath string   `mapstructure:"signed_out_callback_path"`
	Scopes                []string `mapstructure:"scopes"`
	// Scheme labels accounts provisioned from this provider (accounts.idp_provider)
	Scheme string `mapstructure:"scheme"`
}

// IssuerURL returns the OIDC discovery issuer.
func (c IdPConfig) IssuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	if c.Instance == "" || c.TenantID == "" {
		return ""
	}
	return strings.TrimRight(c.Instance, "/") + "/" + strings.Trim(c.TenantID, "/") + "/v2.0"
}

// Validate checks that the relying party can be constructed.
func (c IdPConfig) Validate() error {
	if c.IssuerURL() == "" {
		return errors.New("idp.issuer or idp.instance and idp.tenant_id are required")
	}
	if c.ClientID == "" {
		return errors.New("idp.client_id is required")
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		return fmt.Errorf("idp.callback_path must start with /: %q", c.CallbackPath)
	}
	if !strings.HasPrefix(c.SignedOutCallbackPath, "/") {
		return fmt.Errorf("idp.signed_out_callback_path must start with /: %q", c.SignedOutCallbackPath)
	}
	return nil
}

// SessionConfig controls the local BFF session.
type SessionConfig struct {
	// Store selects the session backend: database or redis
	Store         string `mapstructure:"store"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	CookieName   string `mapstructure:"cookie_name"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	// SameSite policy of the session cookie: lax, strict or none
	SameSite string        `mapstructure:"same_site"`
	Lifetime time.Duration `mapstructure:"lifetime"`

	// HashKey and BlockKey protect the handshake (state/PKCE) cookies. BlockKey
	// must be 16, 24 or 32 bytes. Random keys are generated when empty.
	HashKey  string `mapstructure:"hash_key"`
	BlockKey string `mapstructure:"block_key"`

	// How often expired sessions are purged from the database store
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// ObservabilityConfig holds OpenTelemetry export settings. Tracing is disabled
// when OTLPEndpoint is empty.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// defaults lists every key Load understands. Registering each key is what
// lets nested environment variables such as PORTAL_IDP_CLIENT_ID reach Unmarshal.
var defaults = map[string]any{
	"database_url":         "",
	"server_addr":          "localhost:8080",
	"server_url":           "",
	"frontend_url":         "",
	"max_db_connections":   25,
	"db_timeout":           5 * time.Second,
	"debug":                false,
	"log_format":           "text",
	"cors_allowed_origins": []string{},
	"login_rate_limit":     30,

	"idp.instance":                 "",
	"idp.tenant_id":                "",
	"idp.issuer":                   "",
	"idp.client_id":                "",
	"idp.client_secret":            "",
	"idp.callback_path":            "/signin-oidc",
	"idp.signed_out_callback_path": "/signout-callback-oidc",
	"idp.scopes":                   []string{"openid", "profile", "email"},
	"idp.scheme":                   "idp",

	"session.store":            SessionStoreDatabase,
	"session.redis_addr":       "localhost:6379",
	"session.redis_password":   "",
	"session.redis_db":         0,
	"session.cookie_name":      "portal.session",
	"session.cookie_secure":    true,
	"session.same_site":        "lax",
	"session.lifetime":         8 * time.Hour,
	"session.hash_key":         "",
	"session.block_key":        "",
	"session.janitor_interval": 15 * time.Minute,

	"observability.otlp_endpoint":   "",
	"observability.otlp_insecure":   false,
	"observability.service_name":    "portalapi",
	"observability.service_version": "dev",
	"observability.environment":     "development",
}

// Configure registers defaults and environment binding on v.
func Configure(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the global viper instance: defaults, then any
// config file already read, then PORTAL_ environment variables.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	Configure(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs. IdP settings are checked
// separately by the serve command.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if err := requireAbsoluteURL("server_url", c.ServerURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("frontend_url", c.FrontendURL); err != nil {
		return err
	}
	switch c.Session.Store {
	case SessionStoreDatabase, SessionStoreRedis:
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", SessionStoreDatabase, SessionStoreRedis, c.Session.Store)
	}
	switch len(c.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return errors.New("session.block_key must be 16, 24 or 32 bytes")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session.lifetime must be positive")
	}
	return nil
}

// FrontendOrigin returns the frontend base URL without a trailing slash, the
// value echoed in Access-Control-Allow-Origin.
func (c *Config) FrontendOrigin() string {
	return strings.TrimRight(c.FrontendURL, "/")
}

// RedirectURI returns the absolute IdP callback URL.
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.ServerURL, "/") + c.IdP.CallbackPath
}

// PostLogoutRedirectURI returns the absolute signed-out callback URL.
func (c *Config) PostLogoutRedirectURI() string {
	return strings.TrimRight(c.ServerURL, "/") + c.IdP.SignedOutCallbackPath
}

func requireAbsoluteURL(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: %q", key, value)
	}
	return nil
}
