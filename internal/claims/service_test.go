package claims

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := status.Code(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestGetCurrentUserClaimsRequiresAuth(t *testing.T) {
	ids := &fakeIdentities{}
	svc := NewService(ids, &fakeUsers{}, discardLogger())

	for _, caller := range []*Caller{nil, {}, {UserID: "  "}} {
		_, err := svc.GetCurrentUserClaims(context.Background(), caller)
		assertCode(t, err, codes.Unauthenticated)
	}
	if ids.gets != 0 {
		t.Fatalf("expected no identity reads, got %d", ids.gets)
	}
}

func TestGetCurrentUserClaimsReturnsIdentity(t *testing.T) {
	ids := &fakeIdentities{
		getIdentityFn: func(_ context.Context, id string) (Identity, error) {
			return Identity{ID: id, Email: "amina@example.org", DisplayName: "Amina", CustomClaims: map[string]any{"role": "funder"}}, nil
		},
	}
	svc := NewService(ids, &fakeUsers{}, discardLogger())

	resp, err := svc.GetCurrentUserClaims(context.Background(), &Caller{UserID: "u7"})
	if err != nil {
		t.Fatalf("GetCurrentUserClaims returned error: %v", err)
	}
	if resp.ID != "u7" || resp.Email != "amina@example.org" || resp.DisplayName != "Amina" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.CustomClaims["role"] != "funder" {
		t.Fatalf("expected claims to be propagated, got %v", resp.CustomClaims)
	}
}

func TestGetCurrentUserClaimsEmptyClaims(t *testing.T) {
	ids := &fakeIdentities{
		getIdentityFn: func(_ context.Context, id string) (Identity, error) {
			return Identity{ID: id}, nil
		},
	}
	resp, err := NewService(ids, &fakeUsers{}, discardLogger()).GetCurrentUserClaims(context.Background(), &Caller{UserID: "u7"})
	if err != nil {
		t.Fatalf("GetCurrentUserClaims returned error: %v", err)
	}
	if resp.CustomClaims == nil || len(resp.CustomClaims) != 0 {
		t.Fatalf("expected empty non-nil claims, got %#v", resp.CustomClaims)
	}
}

func TestGetCurrentUserClaimsHidesUpstreamError(t *testing.T) {
	ids := &fakeIdentities{
		getIdentityFn: func(context.Context, string) (Identity, error) {
			return Identity{}, errors.New("dial tcp 10.0.0.1:443: connection refused")
		},
	}
	resp, err := NewService(ids, &fakeUsers{}, discardLogger()).GetCurrentUserClaims(context.Background(), &Caller{UserID: "u7"})
	assertCode(t, err, codes.Internal)
	if resp != nil {
		t.Fatalf("expected no partial result")
	}
	if status.Convert(err).Message() != "internal error" {
		t.Fatalf("upstream detail leaked: %v", err)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	input := CreateUserInput{Email: "new@example.org", Password: "secret123", DisplayName: "New", Role: "verifier"}

	tests := []struct {
		name   string
		caller *Caller
		want   codes.Code
	}{
		{name: "anonymous", caller: nil, want: codes.Unauthenticated},
		{name: "submitter", caller: &Caller{UserID: "sub"}, want: codes.PermissionDenied},
		{name: "verifier", caller: &Caller{UserID: "ver"}, want: codes.PermissionDenied},
		{name: "missing record", caller: &Caller{UserID: "ghost"}, want: codes.PermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := &fakeIdentities{}
			users := usersWithRoles(map[string]Role{"sub": RoleSubmitter, "ver": RoleVerifier})
			svc := NewService(ids, users, discardLogger())

			_, err := svc.CreateUser(context.Background(), tt.caller, input)
			assertCode(t, err, tt.want)
			if ids.writes() != 0 || users.writes() != 0 {
				t.Fatalf("expected no writes, got identity=%d store=%d", ids.writes(), users.writes())
			}

			_, err = svc.UpdateUserRole(context.Background(), tt.caller, UpdateUserRoleInput{UserID: "u1", Role: "admin"})
			assertCode(t, err, tt.want)
			if ids.writes() != 0 || users.writes() != 0 {
				t.Fatalf("expected no writes, got identity=%d store=%d", ids.writes(), users.writes())
			}
		})
	}
}

func TestCreateUserAdminCheckStoreFailure(t *testing.T) {
	users := &fakeUsers{
		getUserFn: func(context.Context, string) (UserRecord, error) {
			return UserRecord{}, errors.New("deadline exceeded")
		},
	}
	_, err := NewService(&fakeIdentities{}, users, discardLogger()).CreateUser(context.Background(), &Caller{UserID: "adm"}, CreateUserInput{})
	assertCode(t, err, codes.Internal)
}

func TestCreateUserValidatesInput(t *testing.T) {
	valid := CreateUserInput{Email: "new@example.org", Password: "secret123", DisplayName: "New", Role: "funder"}

	tests := []struct {
		name   string
		mutate func(*CreateUserInput)
	}{
		{name: "missing email", mutate: func(in *CreateUserInput) { in.Email = "" }},
		{name: "bad email", mutate: func(in *CreateUserInput) { in.Email = "not-an-email" }},
		{name: "missing password", mutate: func(in *CreateUserInput) { in.Password = "" }},
		{name: "missing display name", mutate: func(in *CreateUserInput) { in.DisplayName = "   " }},
		{name: "missing role", mutate: func(in *CreateUserInput) { in.Role = "" }},
		{name: "unknown role", mutate: func(in *CreateUserInput) { in.Role = "overlord" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := &fakeIdentities{}
			users := usersWithRoles(map[string]Role{"adm": RoleAdmin})
			input := valid
			tt.mutate(&input)

			_, err := NewService(ids, users, discardLogger()).CreateUser(context.Background(), &Caller{UserID: "adm"}, input)
			assertCode(t, err, codes.InvalidArgument)
			if ids.writes() != 0 || users.writes() != 0 {
				t.Fatalf("expected validation to fail before any write")
			}
		})
	}
}

func TestCreateUserVerifier(t *testing.T) {
	ids := &fakeIdentities{
		createIdentityFn: func(_ context.Context, email, password, displayName string) (string, error) {
			if email != "vera@example.org" || password != "secret123" || displayName != "Vera" {
				t.Fatalf("unexpected identity input: %s %s %s", email, password, displayName)
			}
			return "new-uid", nil
		},
	}
	users := usersWithRoles(map[string]Role{"adm": RoleAdmin})
	svc := NewService(ids, users, discardLogger())

	resp, err := svc.CreateUser(context.Background(), &Caller{UserID: "adm"}, CreateUserInput{
		Email:       "vera@example.org",
		Password:    "secret123",
		DisplayName: "Vera",
		Role:        "verifier",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if resp.UID != "new-uid" {
		t.Fatalf("expected uid new-uid, got %s", resp.UID)
	}

	want := RoleClaims{Role: RoleVerifier, IsVerifier: true}
	if len(ids.claimSets) != 1 || ids.claimSets[0].ID != "new-uid" || ids.claimSets[0].Claims != want {
		t.Fatalf("unexpected claims writes: %+v", ids.claimSets)
	}
	if len(users.created) != 1 {
		t.Fatalf("expected one user record, got %d", len(users.created))
	}
	record := users.created[0]
	if record.ID != "new-uid" || record.Role != RoleVerifier || !record.ClaimsUpdated || !record.IsVerifier || record.IsAdmin {
		t.Fatalf("unexpected user record: %+v", record)
	}
}

func TestCreateUserNoRollbackOnRecordFailure(t *testing.T) {
	ids := &fakeIdentities{
		createIdentityFn: func(context.Context, string, string, string) (string, error) { return "orphan", nil },
	}
	users := usersWithRoles(map[string]Role{"adm": RoleAdmin})
	users.createUserFn = func(context.Context, UserRecord) error { return errors.New("unavailable") }

	_, err := NewService(ids, users, discardLogger()).CreateUser(context.Background(), &Caller{UserID: "adm"}, CreateUserInput{
		Email: "o@example.org", Password: "secret123", DisplayName: "O", Role: "submitter",
	})
	assertCode(t, err, codes.Internal)
	if ids.creates != 1 || len(ids.claimSets) != 1 {
		t.Fatalf("identity steps should have run exactly once, got creates=%d claims=%d", ids.creates, len(ids.claimSets))
	}
}

func TestUpdateUserRole(t *testing.T) {
	ids := &fakeIdentities{}
	var gotRole Role
	users := usersWithRoles(map[string]Role{"adm": RoleAdmin, "u1": RoleSubmitter})
	users.updateRoleFn = func(_ context.Context, id string, role Role) error {
		gotRole = role
		return nil
	}

	resp, err := NewService(ids, users, discardLogger()).UpdateUserRole(context.Background(), &Caller{UserID: "adm"}, UpdateUserRoleInput{UserID: "u1", Role: "Verifier"})
	if err != nil {
		t.Fatalf("UpdateUserRole returned error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success")
	}
	if gotRole != RoleVerifier {
		t.Fatalf("expected store role verifier, got %q", gotRole)
	}
	if len(ids.claimSets) != 1 || ids.claimSets[0].Claims != ClaimsForRole(RoleVerifier) {
		t.Fatalf("unexpected claims writes: %+v", ids.claimSets)
	}
}

func TestUpdateUserRoleValidatesInput(t *testing.T) {
	for _, input := range []UpdateUserRoleInput{{Role: "admin"}, {UserID: "u1"}, {UserID: "u1", Role: "boss"}} {
		ids := &fakeIdentities{}
		users := usersWithRoles(map[string]Role{"adm": RoleAdmin})
		_, err := NewService(ids, users, discardLogger()).UpdateUserRole(context.Background(), &Caller{UserID: "adm"}, input)
		assertCode(t, err, codes.InvalidArgument)
		if ids.writes() != 0 || users.writes() != 0 {
			t.Fatalf("expected no writes for %+v", input)
		}
	}
}

func TestUpdateUserRoleClaimsFailureSkipsRecord(t *testing.T) {
	ids := &fakeIdentities{
		setCustomClaimsFn: func(context.Context, string, RoleClaims) error { return ErrIdentityNotFound },
	}
	users := usersWithRoles(map[string]Role{"adm": RoleAdmin})

	_, err := NewService(ids, users, discardLogger()).UpdateUserRole(context.Background(), &Caller{UserID: "adm"}, UpdateUserRoleInput{UserID: "nobody", Role: "funder"})
	assertCode(t, err, codes.Internal)
	if len(users.updated) != 0 {
		t.Fatalf("record must not be updated when claims fail")
	}
}
