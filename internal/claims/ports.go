package claims

import "context"

// IdentityProvider manages authentication identities and their custom claims.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (string, error)
	GetIdentity(ctx context.Context, id string) (Identity, error)
	SetCustomClaims(ctx context.Context, id string, claims RoleClaims) error
}

// UserStore persists UserRecord documents. Every write stamps updatedAt with a server timestamp.
type UserStore interface {
	GetUser(ctx context.Context, id string) (UserRecord, error)
	CreateUser(ctx context.Context, record UserRecord) error
	// UpdateRole writes the role, its derived flags and claimsUpdated=true.
	UpdateRole(ctx context.Context, id string, role Role) error
	// MarkClaimsUpdated records that the identity's claims now match role. It
	// returns ErrRoleChanged without writing when the stored role differs.
	MarkClaimsUpdated(ctx context.Context, id string, role Role) error
	// ListUnsynced pages, in id order, through records with an assignable role
	// and claimsUpdated=false whose id sorts after the cursor.
	ListUnsynced(ctx context.Context, after string, limit int) ([]UserRecord, error)
}
