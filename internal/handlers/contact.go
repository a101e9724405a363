package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/types"
)

const detailContactReceived = "Message received successfully!"

type ContactService interface {
	Submit(ctx context.Context, in services.ContactInput) (types.ContactMessage, error)
	List(ctx context.Context, offset, limit int) ([]types.ContactMessage, int, error)
}

// ContactHandler serves the public contact form and its admin inbox.
type ContactHandler struct {
	contacts ContactService
}

func NewContactHandler(contacts ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// ContactRouter registers contact routes on the given router.
func ContactRouter(r chi.Router, h *ContactHandler, gk *Gatekeeper) {
	r.Post("/", h.SubmitMessage)
	r.With(gk.Require(auth.RequireAdmin)).Get("/", h.ListMessages)
}

func (h *ContactHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var in services.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.contacts.Submit(r.Context(), in); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: detailContactReceived})
}

func (h *ContactHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.contacts.List(r.Context(), skip, limit)
	if err != nil {
		writeInternalError(w, r, err, "failed to list contact messages")
		return
	}

	w.Header().Set(headerTotalCount, strconv.Itoa(total))
	writeJSON(w, http.StatusOK, items)
}
