package config

import (
	"time"

	"authinfo/internal/authinfo"
)

// Config holds service configuration
type Config struct {
	Server     Server     `yaml:"server"`
	OAuth2     OAuth2     `yaml:"oauth2"`
	CORS       CORS       `yaml:"cors"`
	Metrics    Metrics    `yaml:"metrics"`
	Health     Health     `yaml:"health"`
	RateLimit  RateLimit  `yaml:"rateLimit"`
	Redis      Redis      `yaml:"redis"`
	Telemetry  Telemetry  `yaml:"telemetry"`
	Management Management `yaml:"management"`
}

// Server configuration
type Server struct {
	HTTP HTTP `yaml:"http"`
}

// HTTP configuration. Timeouts are in seconds.
type HTTP struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
	TLS          *TLS   `yaml:"tls,omitempty"`
}

// TLS configuration
type TLS struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"certFile"`
	KeyFile    string `yaml:"keyFile"`
	MinVersion string `yaml:"minVersion,omitempty"`
}

// OAuth2 holds the client registration reported by /api/auth-info
type OAuth2 struct {
	Client Client `yaml:"client"`
	// IssuerRules overrides the built-in Keycloak/Okta rules when set.
	IssuerRules []authinfo.IssuerRule `yaml:"issuerRules"`
}

// Client is the OAuth2 client registration. All values may be empty.
type Client struct {
	AccessTokenURI string `yaml:"accessTokenUri"`
	ClientID       string `yaml:"clientId"`
	Scope          string `yaml:"scope"`
}

// CORS configuration
type CORS struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowedMethods   []string `yaml:"allowedMethods"`
	AllowedHeaders   []string `yaml:"allowedHeaders"`
	ExposedHeaders   []string `yaml:"exposedHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// Metrics configuration
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Health configuration
type Health struct {
	Enabled     bool        `yaml:"enabled"`
	HealthPath  string      `yaml:"healthPath"`
	ReadyPath   string      `yaml:"readyPath"`
	LivePath    string      `yaml:"livePath"`
	Timeout     int         `yaml:"timeout"`
	IssuerCheck IssuerCheck `yaml:"issuerCheck"`
}

// IssuerCheck configures the OIDC discovery probe against the derived issuer
type IssuerCheck struct {
	Enabled  bool `yaml:"enabled"`
	Timeout  int  `yaml:"timeout"`
	CacheTTL int  `yaml:"cacheTTL"`
}

// RateLimit configuration for /api/auth-info
type RateLimit struct {
	Enabled bool `yaml:"enabled"`
	// Rate is the number of requests refilled per window
	Rate  int `yaml:"rate"`
	Burst int `yaml:"burst"`
	// Window in seconds
	Window int `yaml:"window"`
	// Store is "memory" or "redis"
	Store             string `yaml:"store"`
	TrustForwardedFor bool   `yaml:"trustForwardedFor"`
}

// Redis connection configuration
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// ConnectRetries is how many times the startup ping is retried
	ConnectRetries int     `yaml:"connectRetries"`
	Breaker        Breaker `yaml:"breaker"`
}

// Breaker stops calling Redis after consecutive failures. Rate limiting
// is skipped while the circuit is open.
type Breaker struct {
	Enabled     bool `yaml:"enabled"`
	MaxFailures int  `yaml:"maxFailures"`
	// Timeout in seconds before a probe is let through
	Timeout int `yaml:"timeout"`
}

// Telemetry configuration
type Telemetry struct {
	Enabled bool             `yaml:"enabled"`
	Service string           `yaml:"service"`
	Version string           `yaml:"version"`
	Tracing TelemetryTracing `yaml:"tracing"`
	Metrics TelemetryMetrics `yaml:"metrics"`
}

// TelemetryTracing configuration
type TelemetryTracing struct {
	Enabled    bool              `yaml:"enabled"`
	Endpoint   string            `yaml:"endpoint"`
	Insecure   bool              `yaml:"insecure"`
	Headers    map[string]string `yaml:"headers"`
	SampleRate float64           `yaml:"sampleRate"`
}

// TelemetryMetrics configuration
type TelemetryMetrics struct {
	Enabled bool `yaml:"enabled"`
}

// Management configures the admin API. It listens on its own address so it
// can stay off the public interface.
type Management struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	// Token is required as a bearer token when set
	Token string `yaml:"token"`
}

// Address returns host:port
func (m *Management) Address() string {
	return joinHostPort(m.Host, m.Port)
}

// Settings converts the client section to authinfo.Settings
func (o *OAuth2) Settings() authinfo.Settings {
	return authinfo.Settings{
		AccessTokenURI: o.Client.AccessTokenURI,
		ClientID:       o.Client.ClientID,
		Scope:          o.Client.Scope,
	}
}

// Address returns host:port
func (h *HTTP) Address() string {
	return joinHostPort(h.Host, h.Port)
}

// WindowDuration returns the rate limit window
func (r *RateLimit) WindowDuration() time.Duration {
	return time.Duration(r.Window) * time.Second
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// ReadTimeoutDuration returns the read timeout, defaulting to 15s
func (h *HTTP) ReadTimeoutDuration() time.Duration { return seconds(h.ReadTimeout, 15*time.Second) }

// WriteTimeoutDuration returns the write timeout, defaulting to 15s
func (h *HTTP) WriteTimeoutDuration() time.Duration { return seconds(h.WriteTimeout, 15*time.Second) }

// IdleTimeoutDuration returns the idle timeout, defaulting to 60s
func (h *HTTP) IdleTimeoutDuration() time.Duration { return seconds(h.IdleTimeout, 60*time.Second) }

// TimeoutDuration returns the health check timeout, defaulting to 5s
func (h *Health) TimeoutDuration() time.Duration { return seconds(h.Timeout, 5*time.Second) }

// TimeoutDuration returns the discovery timeout, defaulting to 5s
func (c *IssuerCheck) TimeoutDuration() time.Duration { return seconds(c.Timeout, 5*time.Second) }

// TimeoutDuration returns the open-circuit timeout, defaulting to 30s
func (b *Breaker) TimeoutDuration() time.Duration { return seconds(b.Timeout, 30*time.Second) }

// CacheTTLDuration returns how long a discovery result is reused, defaulting to 60s
func (c *IssuerCheck) CacheTTLDuration() time.Duration { return seconds(c.CacheTTL, time.Minute) }
