package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	detailUserNotFound = "User not found"
	detailEmailTaken   = "The user with this email already exists"
	detailDeleteSelf   = "Users cannot delete themselves"
)

type UserService interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, in services.UserCreate) (types.User, error)
	Update(ctx context.Context, id int, in services.UserUpdate) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserHandler provides admin endpoints for account management.
type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes. Every route requires an admin.
func UserRouter(r chi.Router, h *UserHandler, gk *Gatekeeper) {
	r.Use(gk.Require(auth.RequireAdmin))

	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Patch("/", h.UpdateUser)
		r.Delete("/", h.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.users.List(r.Context(), skip, limit)
	if err != nil {
		writeInternalError(w, r, err, "failed to list users")
		return
	}

	w.Header().Set(headerTotalCount, strconv.Itoa(total))
	writeJSON(w, http.StatusOK, items)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in services.UserCreate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in services.UserUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.users.Update(r.Context(), id, in)
	if err != nil {
		writeUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if current, ok := IdentityFromContext(r.Context()); ok && current.ID == id {
		writeError(w, http.StatusBadRequest, detailDeleteSelf)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeUserError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, detailEmailTaken)
		return
	}
	writeServiceError(w, r, err, detailUserNotFound)
}
