package authinfo

import "sync/atomic"

// Snapshot is one consistent view of settings and rules
type Snapshot struct {
	Settings Settings
	Resolver *Resolver
}

// Source holds the current Snapshot. Update swaps it atomically so
// in-flight requests keep the view they started with.
type Source struct {
	current atomic.Pointer[Snapshot]
}

// NewSource creates a source from settings and issuer rules
func NewSource(settings Settings, rules []IssuerRule) (*Source, error) {
	s := &Source{}
	if err := s.Update(settings, rules); err != nil {
		return nil, err
	}
	return s, nil
}

// Update replaces the current snapshot. On error the previous snapshot stays active.
func (s *Source) Update(settings Settings, rules []IssuerRule) error {
	resolver, err := NewResolver(rules)
	if err != nil {
		return err
	}
	s.current.Store(&Snapshot{Settings: settings, Resolver: resolver})
	return nil
}

// Load returns the current snapshot
func (s *Source) Load() *Snapshot {
	return s.current.Load()
}
