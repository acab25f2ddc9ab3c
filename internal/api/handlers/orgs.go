package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/expense-orgs/internal/api/middleware"
	"github.com/narvanalabs/expense-orgs/internal/organization"
)

// OrgHandler handles organization-related HTTP requests.
type OrgHandler struct {
	svc  *organization.Service
	resp *Responder
}

// NewOrgHandler creates a new organization handler.
func NewOrgHandler(svc *organization.Service, resp *Responder) *OrgHandler {
	return &OrgHandler{svc: svc, resp: resp}
}

// Create handles POST /v1/orgs.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in organization.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	org, err := h.svc.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, org)
}

// List handles GET /v1/orgs, returning the caller's memberships.
func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.svc.ListMine(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, memberships)
}

// Get handles GET /v1/orgs/{orgID}.
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.svc.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, org)
}

// Update handles PATCH /v1/orgs/{orgID}.
func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in organization.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	org, err := h.svc.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, org)
}

// Delete handles DELETE /v1/orgs/{orgID}.
func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Success(w)
}
