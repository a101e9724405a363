package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	detailBadCredentials  = "Incorrect email or password"
	detailUnauthenticated = "Could not validate credentials"
	detailInactive        = "Inactive user"
	detailForbidden       = "The user doesn't have enough privileges"
)

// Authenticator verifies login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (types.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Encode(subject string, ttl time.Duration) (string, error)
}

// Admitter applies an access requirement to an Authorization header.
type Admitter interface {
	Admit(ctx context.Context, authorization string, req auth.Requirement) (types.User, error)
}

// AuthObserver records auth decisions. A nil observer is allowed.
type AuthObserver interface {
	ObserveAuth(event, outcome string)
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	authn    Authenticator
	tokens   TokenIssuer
	tokenTTL time.Duration
	observer AuthObserver
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authn Authenticator, tokens TokenIssuer, tokenTTL time.Duration, observer AuthObserver) *AuthHandler {
	return &AuthHandler{authn: authn, tokens: tokens, tokenTTL: tokenTTL, observer: observer}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler, gk *Gatekeeper) {
	r.Post("/login", h.Login)
	r.With(gk.Require(auth.RequireActive)).Get("/me", h.Me)
}

// Gatekeeper turns Gate decisions into HTTP responses.
type Gatekeeper struct {
	gate     Admitter
	observer AuthObserver
}

func NewGatekeeper(gate Admitter, observer AuthObserver) *Gatekeeper {
	return &Gatekeeper{gate: gate, observer: observer}
}

// Require admits requests meeting req and stores the user in the request context.
func (g *Gatekeeper) Require(req auth.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.gate.Admit(r.Context(), r.Header.Get("Authorization"), req)
			observe(g.observer, "gate", auth.Outcome(err))
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
		})
	}
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the login reply.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login verifies credentials and returns a JWT. It accepts a JSON body or an
// OAuth2 password-grant form (username/password).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	user, err := h.authn.Authenticate(r.Context(), req.Email, req.Password)
	observe(h.observer, "login", auth.Outcome(err))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}
		writeInternalError(w, r, err, "login failed")
		return
	}

	token, err := h.tokens.Encode(user.Email, h.tokenTTL)
	if err != nil {
		writeInternalError(w, r, err, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, detailUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		if err := r.ParseForm(); err != nil {
			return LoginRequest{}, err
		}
		email := r.PostForm.Get("username")
		if email == "" {
			email = r.PostForm.Get("email")
		}
		return LoginRequest{Email: email, Password: r.PostForm.Get("password")}, nil
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}

// writeAuthError maps gate errors to status codes. Causes are logged at
// debug level only.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	log := logutil.GetOrDefault(r.Context())
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		log.Debug().Err(err).Msg("request not authenticated")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, detailUnauthenticated)
	case errors.Is(err, auth.ErrInactiveUser):
		writeError(w, http.StatusBadRequest, detailInactive)
	case errors.Is(err, auth.ErrInsufficientPrivilege):
		writeError(w, http.StatusForbidden, detailForbidden)
	default:
		writeInternalError(w, r, err, "access check failed")
	}
}

func observe(o AuthObserver, event, outcome string) {
	if o != nil {
		o.ObserveAuth(event, outcome)
	}
}
