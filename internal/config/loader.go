package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"authinfo/internal/authinfo"
	"authinfo/pkg/errors"
)

// Loader loads configuration from file
type Loader struct {
	path       string
	envEnabled bool
}

// NewLoader creates a config loader. An empty path loads only the embedded defaults.
func NewLoader(path string) *Loader {
	return &Loader{
		path:       path,
		envEnabled: true,
	}
}

// WithEnvVars enables or disables environment variable loading
func (l *Loader) WithEnvVars(enabled bool) *Loader {
	l.envEnabled = enabled
	return l
}

// Load loads the configuration. File values are layered over the embedded
// defaults, then environment variables over both.
func (l *Loader) Load() (*Config, error) {
	cfg, err := LoadDefault()
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeConfig, "failed to parse default config").WithCause(err)
	}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", l.path).WithCause(err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfig, "failed to parse config").
				WithDetail("path", l.path).WithCause(err)
		}
	}

	if l.envEnabled {
		if err := LoadEnv(cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfig, "failed to load env vars").WithCause(err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewError(errors.ErrorTypeConfig, "invalid configuration").WithCause(err)
	}

	return cfg, nil
}

// Load loads the configuration at path with environment overrides
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTP.Port)
	}

	if tls := c.Server.HTTP.TLS; tls != nil && tls.Enabled {
		if tls.CertFile == "" || tls.KeyFile == "" {
			return fmt.Errorf("TLS enabled but certFile or keyFile is missing")
		}
	}

	for i, rule := range c.OAuth2.IssuerRules {
		if rule.Marker == "" {
			return fmt.Errorf("issuer rule %d: marker is required", i)
		}
	}

	if err := c.validateRoutes(); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit rate and burst must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		switch c.RateLimit.Store {
		case "", "memory":
		case "redis":
			if c.Redis.Address == "" {
				return fmt.Errorf("redis address is required for the redis rate limit store")
			}
		default:
			return fmt.Errorf("unknown rate limit store: %s", c.RateLimit.Store)
		}
	}

	if rate := c.Telemetry.Tracing.SampleRate; rate < 0 || rate > 1 {
		return fmt.Errorf("tracing sample rate must be within [0, 1]: %v", rate)
	}

	if m := c.Management; m.Enabled {
		if m.Port <= 0 || m.Port > 65535 {
			return fmt.Errorf("invalid management port: %d", m.Port)
		}
		if m.Host == c.Server.HTTP.Host && m.Port == c.Server.HTTP.Port {
			return fmt.Errorf("management address %s conflicts with the HTTP server", m.Address())
		}
		if m.BasePath != "" && !strings.HasPrefix(m.BasePath, "/") {
			return fmt.Errorf("management base path must start with '/': %q", m.BasePath)
		}
	}

	return nil
}

// validateRoutes rejects paths that would collide on the HTTP mux
func (c *Config) validateRoutes() error {
	seen := map[string]string{authinfo.Path: "auth-info"}
	add := func(name, path string) error {
		if path == "" {
			return nil
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s path must start with '/': %q", name, path)
		}
		if other, ok := seen[path]; ok {
			return fmt.Errorf("%s path %q conflicts with %s", name, path, other)
		}
		seen[path] = name
		return nil
	}

	if c.Health.Enabled {
		for _, p := range []struct{ name, path string }{
			{"health", c.Health.HealthPath},
			{"ready", c.Health.ReadyPath},
			{"live", c.Health.LivePath},
		} {
			if err := add(p.name, p.path); err != nil {
				return err
			}
		}
	}
	if c.Metrics.Enabled {
		return add("metrics", c.Metrics.Path)
	}
	return nil
}
