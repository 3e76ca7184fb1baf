package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatafisha/claims-service/internal/claims"
	"github.com/chatafisha/claims-service/internal/dedup"
	"github.com/chatafisha/claims-service/internal/platform/auth"
	"github.com/chatafisha/claims-service/internal/platform/logging"
	"github.com/chatafisha/claims-service/internal/trigger"
)

const (
	serviceTimeout = 8 * time.Second
	triggerTimeout = 30 * time.Second
)

// ChangeHandler reacts to a decoded user document change.
type ChangeHandler interface {
	Handle(ctx context.Context, change claims.DocumentChange) claims.Outcome
}

// RegisterRoutes registers the callable endpoints. Authentication is optional at
// the middleware layer so the service can answer UNAUTHENTICATED itself.
func RegisterRoutes(r chi.Router, service claims.Service, verifier auth.Verifier, logger *slog.Logger) {
	r.Route("/v1/callable", func(r chi.Router) {
		r.Use(auth.OptionalMiddleware(verifier))

		r.Post("/getCurrentUserClaims", getCurrentUserClaims(service, logger))
		r.Post("/createUser", createUser(service, logger))
		r.Post("/updateUserRole", updateUserRole(service, logger))
	})
}

// RegisterEventRoutes registers the Firestore trigger ingress. Only the
// trigger's push identity, as checked by pushVerifier, may deliver events.
func RegisterEventRoutes(r chi.Router, pushVerifier auth.Verifier, decoder *trigger.Decoder, seen dedup.Store, handler ChangeHandler, logger *slog.Logger) {
	r.With(auth.Middleware(pushVerifier)).Post("/v1/events/users", handleUserEvent(decoder, seen, handler, logger))
}

func getCurrentUserClaims(service claims.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := decodeCallable(r, nil); err != nil {
			writeCallableError(w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		resp, err := service.GetCurrentUserClaims(ctx, callerFromRequest(r))
		if err != nil {
			logRequestError(r.Context(), logger, "getCurrentUserClaims failed", err)
			writeCallableError(w, err)
			return
		}
		writeResult(w, resp)
	}
}

func createUser(service claims.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input claims.CreateUserInput
		if err := decodeCallable(r, &input); err != nil {
			writeCallableError(w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		resp, err := service.CreateUser(ctx, callerFromRequest(r), input)
		if err != nil {
			logRequestError(r.Context(), logger, "createUser failed", err)
			writeCallableError(w, err)
			return
		}
		writeResult(w, resp)
	}
}

func updateUserRole(service claims.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input claims.UpdateUserRoleInput
		if err := decodeCallable(r, &input); err != nil {
			writeCallableError(w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		resp, err := service.UpdateUserRole(ctx, callerFromRequest(r), input)
		if err != nil {
			logRequestError(r.Context(), logger, "updateUserRole failed", err)
			writeCallableError(w, err)
			return
		}
		writeResult(w, resp)
	}
}

// handleUserEvent acknowledges every decodable event; failures inside the
// synchronizer are terminal for the delivery and are only logged.
func handleUserEvent(decoder *trigger.Decoder, seen dedup.Store, handler ChangeHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.WithRequestID(logger, middleware.GetReqID(r.Context()))

		change, err := decoder.DecodeRequest(r)
		if errors.Is(err, trigger.ErrIgnored) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			reqLogger.Warn("rejecting undecodable event", slog.Any("error", err))
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), triggerTimeout)
		defer cancel()

		track := seen != nil && change.EventID != ""
		if track {
			dup, err := seen.Seen(ctx, change.EventID)
			if err != nil {
				reqLogger.Warn("event dedup unavailable, processing anyway", slog.String("eventId", change.EventID), slog.Any("error", err))
			} else if dup {
				reqLogger.Info("duplicate event delivery skipped", slog.String("eventId", change.EventID), slog.String("userId", change.Key))
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		outcome := handler.Handle(ctx, change)
		reqLogger.Debug("user event handled", slog.String("userId", change.Key), slog.String("outcome", string(outcome)))

		// Failed syncs are not remembered so a replay of the same event can retry them.
		if track && !outcome.Failed() {
			if err := seen.Remember(ctx, change.EventID); err != nil {
				reqLogger.Warn("failed to remember handled event", slog.String("eventId", change.EventID), slog.Any("error", err))
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func callerFromRequest(r *http.Request) *claims.Caller {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil
	}
	return &claims.Caller{UserID: user.UserID}
}

func logRequestError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	reqLogger := logging.WithRequestID(logger, middleware.GetReqID(ctx))
	attrs := []any{slog.Any("error", err)}
	if user, ok := auth.UserFromContext(ctx); ok {
		attrs = append(attrs, slog.String("userId", user.UserID))
	}
	reqLogger.Warn(msg, attrs...)
}
