package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Config holds CORS configuration
type Config struct {
	// AllowedOrigins lists allowed origins. "*" allows any origin and
	// "https://*.example.com" allows any subdomain.
	AllowedOrigins []string
	AllowedMethods []string
	// AllowedHeaders lists request headers a preflight may ask for; "*" allows any
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is how long (in seconds) a preflight result can be cached
	MaxAge int
}

// DefaultConfig returns the configuration used for a read-only JSON API
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}
}

// CORS provides Cross-Origin Resource Sharing middleware
type CORS struct {
	config         Config
	anyOrigin      bool
	allowedOrigins map[string]bool
	originSuffixes []wildcard
	anyHeader      bool
	allowedHeaders map[string]bool
	methods        string
	exposed        string
}

type wildcard struct {
	prefix string
	suffix string
}

// New creates a new CORS middleware handler
func New(config Config) *CORS {
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = DefaultConfig().AllowedMethods
	}

	c := &CORS{
		config:         config,
		allowedOrigins: make(map[string]bool),
		allowedHeaders: make(map[string]bool),
		methods:        strings.Join(config.AllowedMethods, ", "),
		exposed:        strings.Join(config.ExposedHeaders, ", "),
	}

	for _, origin := range config.AllowedOrigins {
		origin = strings.ToLower(strings.TrimSpace(origin))
		switch {
		case origin == "*":
			c.anyOrigin = true
		case strings.Contains(origin, "*"):
			prefix, suffix, _ := strings.Cut(origin, "*")
			c.originSuffixes = append(c.originSuffixes, wildcard{prefix: prefix, suffix: suffix})
		default:
			c.allowedOrigins[origin] = true
		}
	}

	for _, header := range config.AllowedHeaders {
		header = strings.ToLower(strings.TrimSpace(header))
		if header == "*" {
			c.anyHeader = true
			continue
		}
		c.allowedHeaders[header] = true
	}

	return c
}

// Handler returns an HTTP handler that applies CORS headers. Preflight
// requests are answered here and never reach next.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			c.handlePreflight(w, r, origin)
			return
		}

		c.handleActualRequest(w, origin)
		next.ServeHTTP(w, r)
	})
}

func (c *CORS) handlePreflight(w http.ResponseWriter, r *http.Request, origin string) {
	headers := w.Header()
	headers.Add("Vary", "Origin")
	headers.Add("Vary", "Access-Control-Request-Method")
	headers.Add("Vary", "Access-Control-Request-Headers")

	if !c.isOriginAllowed(origin) || !c.isMethodAllowed(r.Header.Get("Access-Control-Request-Method")) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	c.setOrigin(headers, origin)
	headers.Set("Access-Control-Allow-Methods", c.methods)

	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		if !c.areHeadersAllowed(reqHeaders) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		headers.Set("Access-Control-Allow-Headers", reqHeaders)
	}

	if c.config.MaxAge > 0 {
		headers.Set("Access-Control-Max-Age", strconv.Itoa(c.config.MaxAge))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *CORS) handleActualRequest(w http.ResponseWriter, origin string) {
	if origin == "" {
		return
	}

	headers := w.Header()
	headers.Add("Vary", "Origin")

	if !c.isOriginAllowed(origin) {
		return
	}

	c.setOrigin(headers, origin)
	if c.exposed != "" {
		headers.Set("Access-Control-Expose-Headers", c.exposed)
	}
}

// setOrigin echoes the origin; "*" is only used when credentials are off
// because browsers reject a wildcard with credentials.
func (c *CORS) setOrigin(headers http.Header, origin string) {
	if c.anyOrigin && !c.config.AllowCredentials {
		headers.Set("Access-Control-Allow-Origin", "*")
		return
	}

	headers.Set("Access-Control-Allow-Origin", origin)
	if c.config.AllowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
}

func (c *CORS) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.anyOrigin {
		return true
	}

	origin = strings.ToLower(origin)
	if c.allowedOrigins[origin] {
		return true
	}
	for _, w := range c.originSuffixes {
		if len(origin) > len(w.prefix)+len(w.suffix) &&
			strings.HasPrefix(origin, w.prefix) && strings.HasSuffix(origin, w.suffix) {
			return true
		}
	}
	return false
}

func (c *CORS) isMethodAllowed(method string) bool {
	for _, allowed := range c.config.AllowedMethods {
		if strings.EqualFold(allowed, method) {
			return true
		}
	}
	return false
}

func (c *CORS) areHeadersAllowed(headers string) bool {
	if c.anyHeader {
		return true
	}

	for _, header := range strings.Split(headers, ",") {
		header = strings.TrimSpace(strings.ToLower(header))
		if header != "" && !c.allowedHeaders[header] {
			return false
		}
	}
	return true
}
