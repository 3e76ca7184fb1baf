package auth

import (
	"context"
	"errors"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"
)

var errMissingSubject = errors.New("token missing subject claim")

// IDTokenVerifier is the part of the Firebase Admin auth client the verifier needs.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// firebaseVerifier validates Firebase-issued ID tokens.
type firebaseVerifier struct {
	tokens IDTokenVerifier
}

func newFirebaseVerifier(tokens IDTokenVerifier) Verifier {
	return &firebaseVerifier{tokens: tokens}
}

func (v *firebaseVerifier) Verify(ctx context.Context, token string) (AuthenticatedUser, error) {
	t, err := v.tokens.VerifyIDToken(ctx, token)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("token verification failed: %w", err)
	}
	if t.UID == "" {
		return AuthenticatedUser{}, errMissingSubject
	}

	return AuthenticatedUser{
		UserID:    t.UID,
		ExpiresAt: t.Expires,
		Claims:    t.Claims,
		Token:     token,
	}, nil
}
