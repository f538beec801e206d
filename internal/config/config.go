// Package config loads and validates the decksync YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"gopkg.in/yaml.v3"
)

// Read-only calendar access is all the reconciliation engine needs.
var (
	googleScopes  = []string{"https://www.googleapis.com/auth/calendar.readonly"}
	outlookScopes = []string{"offline_access", "Calendars.Read"}
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// DatabasePath locates the SQLite database. Defaults to
	// ~/.local/share/decksync/deck.db.
	DatabasePath string `yaml:"database_path"`

	// UserID selects whose accounts the engine syncs. Defaults to 1.
	UserID int64 `yaml:"user_id"`

	// PollInterval controls how often daemon mode re-syncs all accounts.
	// Minimum 1m, maximum 24h. Defaults to 30m if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Window bounds each listing around the current instant.
	Window WindowConfig `yaml:"window"`

	// Providers holds the per-provider OAuth application settings. A
	// provider with no client id/secret is treated as not configured and
	// its accounts are skipped with a "not configured" result.
	Providers ProvidersConfig `yaml:"providers"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// WindowConfig is the sync window in whole days around now.
type WindowConfig struct {
	// PastDays is how far back events are listed. Defaults to 30.
	PastDays int `yaml:"past_days"`

	// FutureDays is how far ahead events are listed. Defaults to 90.
	FutureDays int `yaml:"future_days"`
}

// ProvidersConfig groups the provider OAuth applications.
type ProvidersConfig struct {
	Google  ProviderConfig `yaml:"google"`
	Outlook ProviderConfig `yaml:"outlook"`
}

// ProviderConfig is one provider's OAuth application. ClientID and
// ClientSecret fall back to the environment (DECKSYNC_<PROVIDER>_CLIENT_ID /
// _CLIENT_SECRET) when left empty in the file, so secrets can stay out of
// the config.
type ProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Configured reports whether the provider integration is usable.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "decksync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/decksync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "decksync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// GoogleOAuth builds the oauth2 configuration for Google, or (nil, false)
// when the provider is not configured.
func (c *Config) GoogleOAuth() (*oauth2.Config, bool) {
	p := c.Providers.Google
	if !p.Configured() {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       googleScopes,
		Endpoint:     google.Endpoint,
	}, true
}

// OutlookOAuth builds the oauth2 configuration for Outlook, or (nil, false)
// when the provider is not configured.
func (c *Config) OutlookOAuth() (*oauth2.Config, bool) {
	p := c.Providers.Outlook
	if !p.Configured() {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       outlookScopes,
		Endpoint:     microsoft.AzureADEndpoint("common"),
	}, true
}

// validate checks that all fields are well-formed and fills defaults,
// including environment fallbacks for provider secrets.
func (c *Config) validate() error {
	if c.DatabasePath == "" {
		path, err := defaultDBPath()
		if err != nil {
			return err
		}
		c.DatabasePath = path
	}

	if c.UserID == 0 {
		c.UserID = 1
	}
	if c.UserID < 0 {
		return fmt.Errorf("user_id must be positive")
	}

	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Minute
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("poll_interval %v is too short (minimum 1m)", c.PollInterval)
	}
	if c.PollInterval > 24*time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 24h)", c.PollInterval)
	}

	if c.Window.PastDays == 0 {
		c.Window.PastDays = 30
	}
	if c.Window.FutureDays == 0 {
		c.Window.FutureDays = 90
	}
	if c.Window.PastDays < 0 || c.Window.FutureDays < 0 {
		return fmt.Errorf("window days must not be negative")
	}

	c.Providers.Google.fillFromEnv("DECKSYNC_GOOGLE")
	c.Providers.Outlook.fillFromEnv("DECKSYNC_OUTLOOK")

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (p *ProviderConfig) fillFromEnv(prefix string) {
	if p.ClientID == "" {
		p.ClientID = os.Getenv(prefix + "_CLIENT_ID")
	}
	if p.ClientSecret == "" {
		p.ClientSecret = os.Getenv(prefix + "_CLIENT_SECRET")
	}
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "decksync", "deck.db"), nil
}
