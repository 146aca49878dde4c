// Package requestid generates and propagates request IDs.
// Generated IDs have the form timestamp-randomhex.
package requestid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Header is the HTTP header carrying the request ID
const Header = "X-Request-ID"

// maxLen bounds client supplied IDs
const maxLen = 128

type ctxKey struct{}

// counter is used as fallback when random generation fails
var counter atomic.Uint64

// GenerateRequestID generates a unique request ID with format: timestamp-randomhex
// Example: 1737039600123-a2b3c4d5
func GenerateRequestID() string {
	timestamp := time.Now().UnixMilli()

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("%d-%d", timestamp, counter.Add(1))
	}

	return fmt.Sprintf("%d-%s", timestamp, hex.EncodeToString(randomBytes))
}

// FromRequest returns the inbound request ID if it is usable, otherwise a new one.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); valid(id) {
		return id
	}
	return GenerateRequestID()
}

// WithID stores the request ID in the context
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for _, c := range id {
		// printable ASCII only, no spaces
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
