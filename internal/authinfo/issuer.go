package authinfo

import (
	"fmt"
	"strings"
)

// Provider names reported for the built-in rules
const (
	ProviderKeycloak = "keycloak"
	ProviderOkta     = "okta"
)

// IssuerRule truncates a token endpoint URI before the first occurrence of Marker.
type IssuerRule struct {
	Marker   string `yaml:"marker"`
	Provider string `yaml:"provider"`
}

// DefaultRules returns the built-in rules in match order.
//
// Keycloak token endpoints look like {issuer}/protocol/openid-connect/token,
// Okta ones like {issuer}/v1/token.
func DefaultRules() []IssuerRule {
	return []IssuerRule{
		{Marker: "/protocol", Provider: ProviderKeycloak},
		{Marker: "/v1/token", Provider: ProviderOkta},
	}
}

// Resolver derives an issuer from a token endpoint URI using an ordered rule list.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	rules []IssuerRule
}

// NewResolver creates a resolver. An empty rule list falls back to DefaultRules.
func NewResolver(rules []IssuerRule) (*Resolver, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	copied := make([]IssuerRule, len(rules))
	for i, rule := range rules {
		if rule.Marker == "" {
			return nil, fmt.Errorf("issuer rule %d: marker is required", i)
		}
		copied[i] = rule
	}

	return &Resolver{rules: copied}, nil
}

// Rules returns a copy of the resolver's rules
func (r *Resolver) Rules() []IssuerRule {
	out := make([]IssuerRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Issuer returns the issuer for rawTokenURI and the provider of the matching rule.
// The first rule whose marker occurs anywhere in the URI wins; the issuer is
// everything before the first occurrence of that marker. When no rule matches
// the URI is returned unchanged with an empty provider.
func (r *Resolver) Issuer(rawTokenURI string) (issuer, provider string) {
	for _, rule := range r.rules {
		if idx := strings.Index(rawTokenURI, rule.Marker); idx >= 0 {
			return rawTokenURI[:idx], rule.Provider
		}
	}
	return rawTokenURI, ""
}
