package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"authinfo/pkg/errors"
)

// Middleware creates rate limiting middleware with storage backend.
// Store failures let the request through: the endpoint only serves public
// configuration, so availability wins over strict limiting.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ByIP(false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			res, err := cfg.Store.Allow(r.Context(), key, cfg.Limit)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("rate limit check failed, allowing request",
						"key", key,
						"path", r.URL.Path,
						"error", err,
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit.Burst))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))

				if cfg.Logger != nil {
					cfg.Logger.Debug("rate limit exceeded", "key", key, "path", r.URL.Path)
				}
				if cfg.OnReject != nil {
					cfg.OnReject(key)
				}

				errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeRateLimit, "rate limit exceeded").
					WithDetail("key", key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
