package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

// Requirement is the access level a route demands.
type Requirement int

const (
	// RequireAuthenticated admits any user holding a valid token.
	RequireAuthenticated Requirement = iota
	// RequireActive additionally rejects disabled accounts.
	RequireActive
	// RequireAdmin admits only active admins.
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireAuthenticated:
		return "authenticated"
	case RequireActive:
		return "active"
	case RequireAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// TokenDecoder verifies access tokens.
type TokenDecoder interface {
	Decode(token string) (Claims, error)
}

// Gate resolves the bearer token of a request to a user and applies a Requirement.
// It keeps no state between requests.
type Gate struct {
	tokens TokenDecoder
	users  IdentityStore
}

func NewGate(tokens TokenDecoder, users IdentityStore) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Admit checks the raw Authorization header value against req.
func (g *Gate) Admit(ctx context.Context, authorization string, req Requirement) (types.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Gate.Admit")
	defer span.End()
	span.SetAttributes(attribute.String("auth.requirement", req.String()))

	user, err := g.admit(ctx, authorization, req)
	span.SetAttributes(attribute.String("auth.outcome", Outcome(err)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Outcome(err))
		return types.User{}, err
	}
	span.SetAttributes(attribute.Int("auth.user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (g *Gate) admit(ctx context.Context, authorization string, req Requirement) (types.User, error) {
	raw, ok := BearerToken(authorization)
	if !ok {
		return types.User{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	claims, err := g.tokens.Decode(raw)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := g.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: subject no longer exists", ErrUnauthenticated)
		}
		return types.User{}, fmt.Errorf("resolve token subject: %w", err)
	}

	if req >= RequireActive && !user.IsActive {
		return types.User{}, ErrInactiveUser
	}
	if req == RequireAdmin && !user.IsAdmin {
		return types.User{}, ErrInsufficientPrivilege
	}
	return user, nil
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Outcome names an auth error for metrics and traces.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInactiveUser):
		return "inactive"
	case errors.Is(err, ErrInsufficientPrivilege):
		return "forbidden"
	default:
		return "error"
	}
}
