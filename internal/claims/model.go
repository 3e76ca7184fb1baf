package claims

import (
	"strings"
	"time"
)

// Role is the access level assigned to a Chatafisha user.
type Role string

const (
	RoleUnset     Role = ""
	RoleSubmitter Role = "submitter"
	RoleVerifier  Role = "verifier"
	RoleFunder    Role = "funder"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a raw role value. The literal "unset" maps to RoleUnset.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role == "unset" {
		return RoleUnset
	}
	return role
}

// Valid reports whether the role is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSubmitter, RoleVerifier, RoleFunder, RoleAdmin:
		return true
	default:
		return false
	}
}

// AssignableRoles lists every role that Valid accepts.
func AssignableRoles() []Role {
	return []Role{RoleSubmitter, RoleVerifier, RoleFunder, RoleAdmin}
}

// RoleClaims is the custom-claims payload attached to an identity.
type RoleClaims struct {
	Role        Role `json:"role" firestore:"role"`
	IsSubmitter bool `json:"isSubmitter" firestore:"isSubmitter"`
	IsVerifier  bool `json:"isVerifier" firestore:"isVerifier"`
	IsFunder    bool `json:"isFunder" firestore:"isFunder"`
	IsAdmin     bool `json:"isAdmin" firestore:"isAdmin"`
}

// ClaimsForRole derives the full claims set from a role.
func ClaimsForRole(role Role) RoleClaims {
	return RoleClaims{
		Role:        role,
		IsSubmitter: role == RoleSubmitter,
		IsVerifier:  role == RoleVerifier,
		IsFunder:    role == RoleFunder,
		IsAdmin:     role == RoleAdmin,
	}
}

// Map renders the claims in the shape the identity provider stores.
func (c RoleClaims) Map() map[string]any {
	return map[string]any{
		"role":        string(c.Role),
		"isSubmitter": c.IsSubmitter,
		"isVerifier":  c.IsVerifier,
		"isFunder":    c.IsFunder,
		"isAdmin":     c.IsAdmin,
	}
}

// UserRecord is the per-user document stored in the users collection, keyed by identity id.
type UserRecord struct {
	ID            string    `json:"id" firestore:"-"`
	Email         string    `json:"email,omitempty" firestore:"email,omitempty"`
	DisplayName   string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	Role          Role      `json:"role" firestore:"role"`
	ClaimsUpdated bool      `json:"claimsUpdated" firestore:"claimsUpdated"`
	IsSubmitter   bool      `json:"isSubmitter" firestore:"isSubmitter"`
	IsVerifier    bool      `json:"isVerifier" firestore:"isVerifier"`
	IsFunder      bool      `json:"isFunder" firestore:"isFunder"`
	IsAdmin       bool      `json:"isAdmin" firestore:"isAdmin"`
	CreatedAt     time.Time `json:"createdAt,omitempty" firestore:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// Identity is the identity provider's view of a user.
type Identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"displayName"`
	PhotoURL     string         `json:"photoURL,omitempty"`
	CustomClaims map[string]any `json:"customClaims"`
}

// Snapshot is the subset of a user document the synchronizer looks at.
type Snapshot struct {
	Role          Role
	ClaimsUpdated bool
}

// DocumentChange describes a create or update of a user document.
// Before is nil for creations.
type DocumentChange struct {
	EventID string
	Key     string
	Before  *Snapshot
	After   Snapshot
}

// Created reports whether the change is a document creation.
func (c DocumentChange) Created() bool {
	return c.Before == nil
}

// Caller is the authenticated principal invoking a callable endpoint.
type Caller struct {
	UserID string
}

// Authenticated reports whether the caller carries a verified identity id.
func (c *Caller) Authenticated() bool {
	return c != nil && strings.TrimSpace(c.UserID) != ""
}

// CreateUserInput describes the payload of the createUser endpoint.
type CreateUserInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"required"`
	Role        string `json:"role" validate:"required"`
}

// CreateUserResult is returned by createUser.
type CreateUserResult struct {
	UID string `json:"uid"`
}

// UpdateUserRoleInput describes the payload of the updateUserRole endpoint.
type UpdateUserRoleInput struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

// UpdateUserRoleResult is returned by updateUserRole.
type UpdateUserRoleResult struct {
	Success bool `json:"success"`
}

// CurrentUserClaims is returned by getCurrentUserClaims.
type CurrentUserClaims struct {
	ID           string         `json:"id"`
	CustomClaims map[string]any `json:"customClaims"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"displayName"`
}
