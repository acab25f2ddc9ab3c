package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/expense-orgs/internal/api/middleware"
	"github.com/narvanalabs/expense-orgs/internal/membership"
	"github.com/narvanalabs/expense-orgs/internal/models"
)

// MemberHandler handles membership HTTP requests.
type MemberHandler struct {
	svc  *membership.Service
	resp *Responder
}

// NewMemberHandler creates a new membership handler.
func NewMemberHandler(svc *membership.Service, resp *Responder) *MemberHandler {
	return &MemberHandler{svc: svc, resp: resp}
}

// UpdateRoleRequest is the body of a role change.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// List handles GET /v1/orgs/{orgID}/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListByOrganization(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, members)
}

// UpdateRole handles PATCH /v1/orgs/{orgID}/members/{userID}.
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	role, err := models.ParseRole(req.Role, "")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	member, err := h.svc.UpdateRole(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "userID"), role)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, member)
}

// Remove handles DELETE /v1/orgs/{orgID}/members/{userID}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Remove(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "userID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Success(w)
}
