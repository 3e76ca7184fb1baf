package claims

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUserNotFound indicates the requested user document does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrIdentityNotFound indicates the identity provider has no such identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrRoleChanged indicates the stored role no longer matches the role being marked as synced.
	ErrRoleChanged = errors.New("user role changed")
)

var (
	errUnauthenticated = status.Error(codes.Unauthenticated, "the function must be called while authenticated")
	errNotAdmin        = status.Error(codes.PermissionDenied, "only admins can perform this action")
	errInternal        = status.Error(codes.Internal, "internal error")
)

func invalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
