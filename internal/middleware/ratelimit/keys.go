package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts rate limit key from request
type KeyFunc func(*http.Request) string

// ByIP keys requests by client IP. With trustForwarded the first
// X-Forwarded-For hop, then X-Real-IP, are used before the remote address;
// enable it only behind a proxy that sets these headers.
func ByIP(trustForwarded bool) KeyFunc {
	return func(r *http.Request) string {
		if trustForwarded {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}
		return remoteIP(r.RemoteAddr)
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
