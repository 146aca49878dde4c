package config

import (
	_ "embed"
	"net"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfigYAML string

// DefaultMetricsPath is used when metrics are enabled without a path
const DefaultMetricsPath = "/metrics"

// ApplyDefaults fills values that must be set before validation and route
// registration. Empty health paths stay empty and disable that probe.
func (c *Config) ApplyDefaults() {
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// LoadDefault loads the default embedded configuration
func LoadDefault() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
