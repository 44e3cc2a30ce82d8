package config

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/console/pkg/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CONSOLE"

// FileName is the config file looked up when no path is given
const FileName = "console.yaml"

// Load reads configuration from path, or from FileName in the working
// directory and the user config directory when path is empty. A missing
// default file is not an error. ${VAR} references in the file are
// substituted before parsing and CONSOLE_ environment variables override
// file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	file, err := locate(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		data, err := os.ReadFile(file) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", file)
		}
		content := substituteEnvVars(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(content)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
				WithDetail("path", file)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML. Existing files are overwritten.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create config directory").
				WithDetail("path", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}

// DefaultPath returns FileName in the user config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, "console", FileName)
}

func locate(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, "config file not found").
				WithDetail("path", path)
		}
		return path, nil
	}
	for _, candidate := range []string{FileName, DefaultPath()} {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !stderrors.Is(err, os.ErrNotExist) {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, "cannot access config file").
				WithDetail("path", candidate)
		}
	}
	return "", nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout)
	v.SetDefault("api.connect_timeout", d.API.ConnectTimeout)
	v.SetDefault("api.enable_http2", d.API.EnableHTTP2)
	v.SetDefault("api.disable_compression", d.API.DisableCompression)
	v.SetDefault("api.insecure_skip_verify", d.API.InsecureSkipVerify)
	v.SetDefault("api.user_agent", d.API.UserAgent)
	v.SetDefault("api.admin_path", d.API.AdminPath)

	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.poll_interval", d.Session.PollInterval)
	v.SetDefault("session.cookie", d.Session.Cookie)
	v.SetDefault("session.sign_in_url", d.Session.SignInURL)

	v.SetDefault("views.default_route", d.Views.DefaultRoute)
	v.SetDefault("views.id_key", d.Views.IDKey)
	v.SetDefault("views.sort_key", d.Views.SortKey)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	v.SetDefault("observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("observability.metrics_address", d.Observability.MetricsAddress)
	v.SetDefault("observability.enable_tracing", d.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", d.Observability.TracingSampleRate)
	v.SetDefault("observability.environment", d.Observability.Environment)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
