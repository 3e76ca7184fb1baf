package claims

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MemoryIdentityProvider is an in-memory IdentityProvider for local development and tests.
type MemoryIdentityProvider struct {
	mu         sync.RWMutex
	identities map[string]Identity
	emails     map[string]string
	nextID     int
}

// NewMemoryIdentityProvider returns an empty in-memory identity provider.
func NewMemoryIdentityProvider() *MemoryIdentityProvider {
	return &MemoryIdentityProvider{
		identities: make(map[string]Identity),
		emails:     make(map[string]string),
	}
}

// Seed registers an identity with a fixed id.
func (p *MemoryIdentityProvider) Seed(identity Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[identity.ID] = identity
	if identity.Email != "" {
		p.emails[identity.Email] = identity.ID
	}
}

func (p *MemoryIdentityProvider) CreateIdentity(_ context.Context, email, _ string, displayName string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.emails[email]; exists {
		return "", fmt.Errorf("email %s already in use", email)
	}

	p.nextID++
	id := fmt.Sprintf("uid-%d", p.nextID)
	p.identities[id] = Identity{ID: id, Email: email, DisplayName: displayName}
	p.emails[email] = id
	return id, nil
}

func (p *MemoryIdentityProvider) GetIdentity(_ context.Context, id string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identity, ok := p.identities[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	identity.CustomClaims = maps.Clone(identity.CustomClaims)
	return identity, nil
}

func (p *MemoryIdentityProvider) SetCustomClaims(_ context.Context, id string, claims RoleClaims) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.identities[id]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.CustomClaims = claims.Map()
	p.identities[id] = identity
	return nil
}
