package claims

import (
	"context"
	"errors"
	"log/slog"
)

// Outcome describes what the synchronizer did with a document change.
type Outcome string

const (
	OutcomeSynced        Outcome = "synced"
	OutcomeNoRole        Outcome = "no_role"
	OutcomeRoleUnchanged Outcome = "role_unchanged"
	OutcomeInvalidRole   Outcome = "invalid_role"
	OutcomeStale         Outcome = "stale"
	OutcomeUserMissing   Outcome = "user_missing"
	OutcomeReadFailed    Outcome = "read_failed"
	OutcomeClaimsFailed  Outcome = "claims_failed"
	OutcomeMarkFailed    Outcome = "mark_failed"
)

// maxSyncAttempts bounds how often one sync follows a role that keeps moving underneath it.
const maxSyncAttempts = 3

// Failed reports whether a sync was attempted and did not complete.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeReadFailed, OutcomeClaimsFailed, OutcomeMarkFailed:
		return true
	default:
		return false
	}
}

// Synchronizer mirrors a user document's role into the identity's custom claims.
type Synchronizer struct {
	identities IdentityProvider
	users      UserStore
	logger     *slog.Logger
}

// NewSynchronizer wires a Synchronizer to its collaborators.
func NewSynchronizer(identities IdentityProvider, users UserStore, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{identities: identities, users: users, logger: logger}
}

// Handle processes one create or update event. Failures are logged and
// swallowed; the returned Outcome is informational only.
func (s *Synchronizer) Handle(ctx context.Context, change DocumentChange) Outcome {
	logger := s.logger.With(slog.String("userId", change.Key), slog.String("eventId", change.EventID))

	role := change.After.Role
	if change.Created() {
		if role == RoleUnset {
			logger.Info("user created without role, nothing to sync")
			return OutcomeNoRole
		}
	} else {
		if change.Before.Role == role {
			return OutcomeRoleUnchanged
		}
		if role == RoleUnset {
			logger.Info("role removed from user, claims left untouched", slog.String("previousRole", string(change.Before.Role)))
			return OutcomeNoRole
		}
	}

	if !role.Valid() {
		logger.Warn("user has unknown role, skipping claims sync", slog.String("role", string(role)))
		return OutcomeInvalidRole
	}

	// The event payload is only a hint. Claims follow what the document holds now.
	record, err := s.users.GetUser(ctx, change.Key)
	if errors.Is(err, ErrUserNotFound) {
		logger.Warn("user document not found, skipping claims sync")
		return OutcomeUserMissing
	}
	if err != nil {
		logger.Error("failed to read user document", slog.Any("error", err))
		return OutcomeReadFailed
	}
	if record.Role != role {
		logger.Info("event role does not match the stored role, skipping",
			slog.String("eventRole", string(role)),
			slog.String("storedRole", string(record.Role)))
		return OutcomeStale
	}

	return syncRole(ctx, s.identities, s.users, logger, change.Key, role)
}

// syncRole writes the claims for role and then marks the record. The mark only
// lands while the document still holds role; when the role moved in between,
// the claims are rewritten for the new role.
func syncRole(ctx context.Context, identities IdentityProvider, users UserStore, logger *slog.Logger, id string, role Role) Outcome {
	for attempt := 1; ; attempt++ {
		if role == RoleUnset {
			logger.Info("user has no role, nothing to sync")
			return OutcomeNoRole
		}
		if !role.Valid() {
			logger.Warn("user has unknown role, skipping claims sync", slog.String("role", string(role)))
			return OutcomeInvalidRole
		}

		if err := identities.SetCustomClaims(ctx, id, ClaimsForRole(role)); err != nil {
			logger.Error("failed to set custom claims", slog.String("role", string(role)), slog.Any("error", err))
			return OutcomeClaimsFailed
		}

		err := users.MarkClaimsUpdated(ctx, id, role)
		if err == nil {
			logger.Info("custom claims synced", slog.String("role", string(role)))
			return OutcomeSynced
		}
		if !errors.Is(err, ErrRoleChanged) || attempt == maxSyncAttempts {
			logger.Error("custom claims set but user record not marked", slog.String("role", string(role)), slog.Any("error", err))
			return OutcomeMarkFailed
		}

		record, err := users.GetUser(ctx, id)
		if err != nil {
			logger.Error("failed to re-read user document", slog.Any("error", err))
			return OutcomeReadFailed
		}
		logger.Info("role changed during sync, following it",
			slog.String("from", string(role)),
			slog.String("to", string(record.Role)))
		role = record.Role
	}
}
