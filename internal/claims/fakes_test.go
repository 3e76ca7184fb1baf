package claims

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

type claimsCall struct {
	ID     string
	Claims RoleClaims
}

type fakeIdentities struct {
	mu sync.Mutex

	createIdentityFn  func(context.Context, string, string, string) (string, error)
	getIdentityFn     func(context.Context, string) (Identity, error)
	setCustomClaimsFn func(context.Context, string, RoleClaims) error

	creates   int
	gets      int
	claimSets []claimsCall
}

func (f *fakeIdentities) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	if f.createIdentityFn != nil {
		return f.createIdentityFn(ctx, email, password, displayName)
	}
	return "", errors.New("createIdentityFn not provided")
}

func (f *fakeIdentities) GetIdentity(ctx context.Context, id string) (Identity, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	if f.getIdentityFn != nil {
		return f.getIdentityFn(ctx, id)
	}
	return Identity{}, errors.New("getIdentityFn not provided")
}

func (f *fakeIdentities) SetCustomClaims(ctx context.Context, id string, claims RoleClaims) error {
	f.mu.Lock()
	f.claimSets = append(f.claimSets, claimsCall{ID: id, Claims: claims})
	f.mu.Unlock()
	if f.setCustomClaimsFn != nil {
		return f.setCustomClaimsFn(ctx, id, claims)
	}
	return nil
}

func (f *fakeIdentities) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates + len(f.claimSets)
}

type fakeUsers struct {
	mu sync.Mutex

	getUserFn           func(context.Context, string) (UserRecord, error)
	createUserFn        func(context.Context, UserRecord) error
	updateRoleFn        func(context.Context, string, Role) error
	markClaimsUpdatedFn func(context.Context, string, Role) error
	listUnsyncedFn      func(context.Context, string, int) ([]UserRecord, error)

	created []UserRecord
	updated []string
	marked  []string
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (UserRecord, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, id)
	}
	return UserRecord{}, ErrUserNotFound
}

func (f *fakeUsers) CreateUser(ctx context.Context, record UserRecord) error {
	f.mu.Lock()
	f.created = append(f.created, record)
	f.mu.Unlock()
	if f.createUserFn != nil {
		return f.createUserFn(ctx, record)
	}
	return nil
}

func (f *fakeUsers) UpdateRole(ctx context.Context, id string, role Role) error {
	f.mu.Lock()
	f.updated = append(f.updated, id)
	f.mu.Unlock()
	if f.updateRoleFn != nil {
		return f.updateRoleFn(ctx, id, role)
	}
	return nil
}

func (f *fakeUsers) MarkClaimsUpdated(ctx context.Context, id string, role Role) error {
	f.mu.Lock()
	f.marked = append(f.marked, id)
	f.mu.Unlock()
	if f.markClaimsUpdatedFn != nil {
		return f.markClaimsUpdatedFn(ctx, id, role)
	}
	return nil
}

func (f *fakeUsers) ListUnsynced(ctx context.Context, after string, limit int) ([]UserRecord, error) {
	if f.listUnsyncedFn != nil {
		return f.listUnsyncedFn(ctx, after, limit)
	}
	return nil, nil
}

func (f *fakeUsers) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created) + len(f.updated) + len(f.marked)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usersWithRoles(roles map[string]Role) *fakeUsers {
	return &fakeUsers{
		getUserFn: func(_ context.Context, id string) (UserRecord, error) {
			role, ok := roles[id]
			if !ok {
				return UserRecord{}, ErrUserNotFound
			}
			return UserRecord{ID: id, Role: role}, nil
		},
	}
}
