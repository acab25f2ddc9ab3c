package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/expense-orgs/internal/api/middleware"
	"github.com/narvanalabs/expense-orgs/internal/category"
)

// CategoryHandler handles expense category HTTP requests.
type CategoryHandler struct {
	svc  *category.Service
	resp *Responder
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(svc *category.Service, resp *Responder) *CategoryHandler {
	return &CategoryHandler{svc: svc, resp: resp}
}

// Create handles POST /v1/orgs/{orgID}/categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in category.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	c, err := h.svc.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, c)
}

// List handles GET /v1/orgs/{orgID}/categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.List(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "orgID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, categories)
}

// Get handles GET /v1/orgs/{orgID}/categories/{categoryID}.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "categoryID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, c)
}

// Update handles PUT /v1/orgs/{orgID}/categories/{categoryID}.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in category.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	c, err := h.svc.Update(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "categoryID"), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, c)
}

// Delete handles DELETE /v1/orgs/{orgID}/categories/{categoryID}.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "categoryID"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Success(w)
}
