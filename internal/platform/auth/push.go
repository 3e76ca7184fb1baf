package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var errUnexpectedInvoker = errors.New("push token was not issued to the trigger service account")

// PushTokenValidator validates Google-signed OIDC tokens. *idtoken.Validator satisfies it.
type PushTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// pushVerifier accepts the OIDC tokens Eventarc attaches to push deliveries.
type pushVerifier struct {
	tokens         PushTokenValidator
	audience       string
	serviceAccount string
}

// NewPushVerifier only admits tokens minted for audience on behalf of
// serviceAccount. Both are required: Google will mint a token for any
// audience to any account holder, so the audience alone proves nothing.
func NewPushVerifier(tokens PushTokenValidator, audience, serviceAccount string) (Verifier, error) {
	if tokens == nil {
		return nil, errors.New("push token validator is required")
	}
	if audience == "" || serviceAccount == "" {
		return nil, errors.New("push audience and service account are required")
	}
	return &pushVerifier{tokens: tokens, audience: audience, serviceAccount: serviceAccount}, nil
}

func (v *pushVerifier) Verify(ctx context.Context, token string) (AuthenticatedUser, error) {
	payload, err := v.tokens.Validate(ctx, token, v.audience)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("push token verification failed: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if !verified || !strings.EqualFold(email, v.serviceAccount) {
		return AuthenticatedUser{}, errUnexpectedInvoker
	}

	return AuthenticatedUser{
		UserID:    payload.Subject,
		ExpiresAt: payload.Expires,
		Claims:    payload.Claims,
		Token:     token,
	}, nil
}
