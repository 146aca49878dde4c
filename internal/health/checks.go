package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// PingCheck creates a health check from a ping function such as a store's Ping
func PingCheck(ping func(context.Context) error) Check {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

// ErrNoIssuer is returned when there is no issuer to discover
var ErrNoIssuer = errors.New("no issuer configured")

// IssuerCheck verifies that the derived issuer publishes OpenID Connect
// discovery metadata. Results are cached per issuer for the TTL.
type IssuerCheck struct {
	issuer   func() string
	ttl      time.Duration
	client   *http.Client
	discover func(ctx context.Context, issuer string) error
	now      func() time.Time

	mu        sync.Mutex
	last      string
	lastErr   error
	checkedAt time.Time
}

// NewIssuerCheck creates a discovery check for the issuer returned by issuer.
// A nil client uses http.DefaultClient.
func NewIssuerCheck(issuer func() string, ttl time.Duration, client *http.Client) *IssuerCheck {
	c := &IssuerCheck{
		issuer: issuer,
		ttl:    ttl,
		client: client,
		now:    time.Now,
	}
	c.discover = c.oidcDiscover
	return c
}

func (c *IssuerCheck) oidcDiscover(ctx context.Context, issuer string) error {
	if c.client != nil {
		ctx = oidc.ClientContext(ctx, c.client)
	}
	if _, err := oidc.NewProvider(ctx, issuer); err != nil {
		return fmt.Errorf("discovery for %s failed: %w", issuer, err)
	}
	return nil
}

// Check implements Check
func (c *IssuerCheck) Check(ctx context.Context) error {
	issuer := c.issuer()
	if issuer == "" {
		return ErrNoIssuer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if issuer == c.last && c.now().Sub(c.checkedAt) < c.ttl {
		return c.lastErr
	}

	err := c.discover(ctx, issuer)
	if ctx.Err() != nil {
		// The probe gave up; that says nothing about the issuer.
		return err
	}
	c.last, c.lastErr, c.checkedAt = issuer, err, c.now()
	return err
}
