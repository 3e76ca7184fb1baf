package claims

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

type firebaseIdentityProvider struct {
	client *auth.Client
}

// NewFirebaseIdentityProvider adapts a Firebase Authentication client to IdentityProvider.
func NewFirebaseIdentityProvider(client *auth.Client) IdentityProvider {
	return &firebaseIdentityProvider{client: client}
}

func (p *firebaseIdentityProvider) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	record, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create firebase user: %w", err)
	}
	return record.UID, nil
}

func (p *firebaseIdentityProvider) GetIdentity(ctx context.Context, id string) (Identity, error) {
	record, err := p.client.GetUser(ctx, id)
	if auth.IsUserNotFound(err) {
		return Identity{}, ErrIdentityNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("get firebase user %s: %w", id, err)
	}

	identity := Identity{ID: id, CustomClaims: record.CustomClaims}
	if record.UserInfo != nil {
		identity.ID = record.UID
		identity.Email = record.Email
		identity.DisplayName = record.DisplayName
		identity.PhotoURL = record.PhotoURL
	}
	return identity, nil
}

func (p *firebaseIdentityProvider) SetCustomClaims(ctx context.Context, id string, claims RoleClaims) error {
	if err := p.client.SetCustomUserClaims(ctx, id, claims.Map()); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("set custom claims for %s: %w", id, err)
	}
	return nil
}
