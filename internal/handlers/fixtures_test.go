package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	testSecret   = "handler-test-secret"
	testPassword = "correct horse"
	adminEmail   = "admin@x.com"
	memberEmail  = "a@x.com"
	idleEmail    = "idle@x.com"
)

type identityStore struct {
	mu    sync.Mutex
	users map[string]types.User
}

func (s *identityStore) GetByEmail(_ context.Context, email string) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveAuth(event, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event+":"+outcome)
}

type testEnv struct {
	identities *identityStore
	tokens     *auth.TokenCodec
	observer   *recordingObserver
	gk         *Gatekeeper
	auth       *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	identities := &identityStore{users: map[string]types.User{
		adminEmail:  {ID: 1, Email: adminEmail, PasswordHash: hash, IsActive: true, IsAdmin: true},
		memberEmail: {ID: 2, Email: memberEmail, PasswordHash: hash, IsActive: true},
		idleEmail:   {ID: 3, Email: idleEmail, PasswordHash: hash, IsActive: false},
	}}

	tokens, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)

	observer := &recordingObserver{}
	return &testEnv{
		identities: identities,
		tokens:     tokens,
		observer:   observer,
		gk:         NewGatekeeper(auth.NewGate(tokens, identities), observer),
		auth:       NewAuthHandler(auth.NewAuthenticator(identities, hasher), tokens, 30*time.Minute, observer),
	}
}

func (e *testEnv) bearer(t *testing.T, email string) string {
	t.Helper()
	token, err := e.tokens.Encode(email, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *testEnv) router(mount func(r chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, e.auth, e.gk)
	})
	mount(r)
	return r
}
