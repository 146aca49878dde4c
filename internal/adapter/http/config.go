package http

import (
	"crypto/tls"
	"time"
)

// Config holds HTTP adapter configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TLSConfig enables TLS when set
	TLSConfig *tls.Config
}
