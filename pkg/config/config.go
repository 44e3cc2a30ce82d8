package config

import (
	"crypto/tls"
	"net/url"
	"time"

	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/observability"
	"github.com/ajitpratap0/console/pkg/router"
	"github.com/ajitpratap0/console/pkg/session"
)

// Config is the console configuration. Every field can be set from the
// YAML file or from a CONSOLE_<SECTION>_<KEY> environment variable.
type Config struct {
	// API is the console backend
	API APIConfig `mapstructure:"api" yaml:"api" json:"api"`

	// Session controls the auth cookie watcher
	Session SessionConfig `mapstructure:"session" yaml:"session" json:"session"`

	// Views holds collection and routing settings
	Views ViewsConfig `mapstructure:"views" yaml:"views" json:"views"`

	// Logging configures zap
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Observability covers metrics and tracing
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability" json:"observability"`
}

// APIConfig describes how to reach the backend
type APIConfig struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`
	EnableHTTP2        bool          `mapstructure:"enable_http2" yaml:"enable_http2" json:"enable_http2"`
	DisableCompression bool          `mapstructure:"disable_compression" yaml:"disable_compression" json:"disable_compression"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	// AdminPath is where bulk actions are posted
	AdminPath string `mapstructure:"admin_path" yaml:"admin_path" json:"admin_path"`
}

// SessionConfig describes the auth cookie
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name" json:"cookie_name"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	// Cookie is the initial cookie value, usually from CONSOLE_SESSION_COOKIE
	Cookie string `mapstructure:"cookie" yaml:"cookie,omitempty" json:"-"`
	// SignInURL is where the console goes when the session ends
	SignInURL string `mapstructure:"sign_in_url" yaml:"sign_in_url" json:"sign_in_url"`
}

// ViewsConfig holds collection and routing settings
type ViewsConfig struct {
	DefaultRoute string `mapstructure:"default_route" yaml:"default_route" json:"default_route"`
	// IDKey is the document attribute used as record id
	IDKey string `mapstructure:"id_key" yaml:"id_key" json:"id_key"`
	// SortKey orders the machines collection
	SortKey string `mapstructure:"sort_key" yaml:"sort_key" json:"sort_key"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level       string   `mapstructure:"level" yaml:"level" json:"level"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Development bool     `mapstructure:"development" yaml:"development" json:"development"`
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths" json:"output_paths"`
}

// ObservabilityConfig contains metrics and tracing settings
type ObservabilityConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics" yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddress serves /metrics when metrics are enabled
	MetricsAddress    string  `mapstructure:"metrics_address" yaml:"metrics_address" json:"metrics_address"`
	EnableTracing     bool    `mapstructure:"enable_tracing" yaml:"enable_tracing" json:"enable_tracing"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	Environment       string  `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000/",
			RequestTimeout: 60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			EnableHTTP2:    true,
			UserAgent:      "console/1.0",
			AdminPath:      "admin/actions",
		},
		Session: SessionConfig{
			CookieName:   session.DefaultCookieName,
			PollInterval: session.DefaultInterval,
			SignInURL:    "/sign-in",
		},
		Views: ViewsConfig{
			DefaultRoute: router.DefaultRoute,
			IDKey:        "id",
			SortKey:      "name",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     false,
			MetricsAddress:    "127.0.0.1:9464",
			EnableTracing:     false,
			TracingSampleRate: 1.0,
			Environment:       "development",
		},
	}
}

// Validate checks required fields and ranges
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("api.base_url", "must be an absolute URL")
	}
	if c.API.RequestTimeout <= 0 {
		return invalid("api.request_timeout", "must be positive")
	}
	if c.Session.CookieName == "" {
		return invalid("session.cookie_name", "is required")
	}
	if c.Session.PollInterval <= 0 {
		return invalid("session.poll_interval", "must be positive")
	}
	if c.Views.IDKey == "" {
		return invalid("views.id_key", "is required")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return invalid("observability.tracing_sample_rate", "must be between 0 and 1")
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return invalid("logging.encoding", "must be json or console")
	}
	return nil
}

func invalid(key, msg string) error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", key, msg).WithDetail("key", key)
}

// HTTPConfig derives the API client configuration
func (c *Config) HTTPConfig() *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	hc.BaseURL = c.API.BaseURL
	hc.RequestTimeout = c.API.RequestTimeout
	hc.DialTimeout = c.API.ConnectTimeout
	hc.EnableHTTP2 = c.API.EnableHTTP2
	hc.DisableCompression = c.API.DisableCompression
	hc.InsecureSkipVerify = c.API.InsecureSkipVerify
	hc.UserAgent = c.API.UserAgent
	hc.TLSMinVersion = tls.VersionTLS12
	return hc
}

// LoggerConfig derives the logger configuration
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// TracingConfig derives the tracing configuration
func (c *Config) TracingConfig(version string) observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.Enabled = c.Observability.EnableTracing
	tc.SamplingRate = c.Observability.TracingSampleRate
	tc.Environment = c.Observability.Environment
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}
