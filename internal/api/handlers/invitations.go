package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/expense-orgs/internal/api/middleware"
	"github.com/narvanalabs/expense-orgs/internal/invitation"
)

// InvitationHandler handles invitation HTTP requests.
type InvitationHandler struct {
	svc  *invitation.Service
	resp *Responder
}

// NewInvitationHandler creates a new invitation handler.
func NewInvitationHandler(svc *invitation.Service, resp *Responder) *InvitationHandler {
	return &InvitationHandler{svc: svc, resp: resp}
}

// Invite handles POST /v1/orgs/{orgID}/invitations.
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var in invitation.InviteInput
	if err := decodeJSON(r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	inv, err := h.svc.Invite(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, inv)
}

// List handles GET /v1/orgs/{orgID}/invitations.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.svc.List(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, invitations)
}

// Cancel handles POST /v1/orgs/{orgID}/invitations/{invitationID}/cancel.
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Cancel(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "invitationID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Success(w)
}

// Accept handles POST /v1/invitations/{invitationID}/accept.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	membership, err := h.svc.Accept(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "invitationID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, membership)
}

// Mine handles GET /v1/invitations/mine.
func (h *InvitationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.svc.MyInvitations(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, invitations)
}
