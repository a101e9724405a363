package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

const tracerName = "github.com/nyxus-portfolio/apiserver/internal/auth"

var tracer = otel.Tracer(tracerName)

// IdentityStore looks up users for authentication.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
}

// Authenticator checks an email/password pair against stored credentials.
type Authenticator struct {
	users  IdentityStore
	hasher PasswordHasher
	// dummyHash is verified when the email is unknown so both failure
	// paths cost one hash comparison.
	dummyHash string
}

func NewAuthenticator(users IdentityStore, hasher PasswordHasher) *Authenticator {
	dummy, _ := hasher.Hash("portfolio-dummy-password")
	return &Authenticator{users: users, hasher: hasher, dummyHash: dummy}
}

// Authenticate returns the user owning email when password matches.
// Unknown email and wrong password both return ErrInvalidCredentials.
// The active flag is not checked here.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticator.Authenticate")
	defer span.End()

	user, err := a.authenticate(ctx, email, password)
	span.SetAttributes(attribute.String("auth.outcome", Outcome(err)))
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("auth.user_id", user.ID))
		span.SetStatus(codes.Ok, "")
	case !errors.Is(err, ErrInvalidCredentials):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return user, err
}

func (a *Authenticator) authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_, _ = a.hasher.Verify(password, a.dummyHash)
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return types.User{}, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}
