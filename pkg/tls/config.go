package tls

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Config represents TLS configuration for the listener
type Config struct {
	CertFile   string
	KeyFile    string
	MinVersion string
}

// ParseTLSVersion maps "1.0".."1.3" (optionally prefixed with "TLS") to the
// crypto/tls constant. Anything else yields TLS 1.2.
func ParseTLSVersion(version string) uint16 {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(version)), "TLS")
	switch strings.TrimSpace(v) {
	case "1.0", "10":
		return tls.VersionTLS10
	case "1.1", "11":
		return tls.VersionTLS11
	case "1.3", "13":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// NewServerConfig loads the key pair and builds a server tls.Config
func NewServerConfig(cfg Config) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("certificate and key files are required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   ParseTLSVersion(cfg.MinVersion),
		MaxVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}, nil
}
