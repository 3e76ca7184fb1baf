package claims

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Service exposes the callable endpoints backed by the identity provider and user store.
type Service interface {
	GetCurrentUserClaims(ctx context.Context, caller *Caller) (*CurrentUserClaims, error)
	CreateUser(ctx context.Context, caller *Caller, input CreateUserInput) (*CreateUserResult, error)
	UpdateUserRole(ctx context.Context, caller *Caller, input UpdateUserRoleInput) (*UpdateUserRoleResult, error)
}

type service struct {
	identities IdentityProvider
	users      UserStore
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewService creates the callable service.
func NewService(identities IdentityProvider, users UserStore, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		identities: identities,
		users:      users,
		validate:   newValidator(),
		logger:     logger,
	}
}

func (s *service) GetCurrentUserClaims(ctx context.Context, caller *Caller) (*CurrentUserClaims, error) {
	if !caller.Authenticated() {
		return nil, errUnauthenticated
	}

	identity, err := s.identities.GetIdentity(ctx, caller.UserID)
	if err != nil {
		s.logger.Error("failed to fetch identity", slog.String("userId", caller.UserID), slog.Any("error", err))
		return nil, errInternal
	}

	customClaims := identity.CustomClaims
	if customClaims == nil {
		customClaims = map[string]any{}
	}

	return &CurrentUserClaims{
		ID:           identity.ID,
		CustomClaims: customClaims,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
	}, nil
}

func (s *service) CreateUser(ctx context.Context, caller *Caller, input CreateUserInput) (*CreateUserResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := s.validate.Struct(input); err != nil {
		return nil, invalidArgument(describeValidation(err))
	}
	role := ParseRole(input.Role)
	if !role.Valid() {
		return nil, invalidArgument("role must be one of submitter, verifier, funder, admin")
	}

	uid, err := s.identities.CreateIdentity(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		s.logger.Error("failed to create identity", slog.String("email", input.Email), slog.Any("error", err))
		return nil, errInternal
	}

	logger := s.logger.With(slog.String("userId", uid), slog.String("role", string(role)))

	if err := s.identities.SetCustomClaims(ctx, uid, ClaimsForRole(role)); err != nil {
		logger.Error("identity created but custom claims not set", slog.Any("error", err))
		return nil, errInternal
	}

	claims := ClaimsForRole(role)
	record := UserRecord{
		ID:            uid,
		Email:         input.Email,
		DisplayName:   input.DisplayName,
		Role:          role,
		ClaimsUpdated: true,
		IsSubmitter:   claims.IsSubmitter,
		IsVerifier:    claims.IsVerifier,
		IsFunder:      claims.IsFunder,
		IsAdmin:       claims.IsAdmin,
	}
	if err := s.users.CreateUser(ctx, record); err != nil {
		logger.Error("identity created but user record not written", slog.Any("error", err))
		return nil, errInternal
	}

	logger.Info("user created", slog.String("createdBy", caller.UserID))
	return &CreateUserResult{UID: uid}, nil
}

func (s *service) UpdateUserRole(ctx context.Context, caller *Caller, input UpdateUserRoleInput) (*UpdateUserRoleResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	input.UserID = strings.TrimSpace(input.UserID)
	if err := s.validate.Struct(input); err != nil {
		return nil, invalidArgument(describeValidation(err))
	}
	role := ParseRole(input.Role)
	if !role.Valid() {
		return nil, invalidArgument("role must be one of submitter, verifier, funder, admin")
	}

	logger := s.logger.With(slog.String("userId", input.UserID), slog.String("role", string(role)))

	if err := s.identities.SetCustomClaims(ctx, input.UserID, ClaimsForRole(role)); err != nil {
		logger.Error("failed to set custom claims", slog.Any("error", err))
		return nil, errInternal
	}

	if err := s.users.UpdateRole(ctx, input.UserID, role); err != nil {
		logger.Error("custom claims set but user record not updated", slog.Any("error", err))
		return nil, errInternal
	}

	logger.Info("user role updated", slog.String("updatedBy", caller.UserID))
	return &UpdateUserRoleResult{Success: true}, nil
}

// requireAdmin checks the caller's role with a fresh store read rather than trusting token claims.
func (s *service) requireAdmin(ctx context.Context, caller *Caller) error {
	if !caller.Authenticated() {
		return errUnauthenticated
	}

	record, err := s.users.GetUser(ctx, caller.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return errNotAdmin
	}
	if err != nil {
		s.logger.Error("failed to load caller record", slog.String("userId", caller.UserID), slog.Any("error", err))
		return errInternal
	}
	if record.Role != RoleAdmin {
		return errNotAdmin
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

// newValidator reports fields by their JSON names so messages match the request payload.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
