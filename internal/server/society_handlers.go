package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/societies"
)

type joinRequest struct {
	SocietyID string `json:"society_id"`
	Role      string `json:"role"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type globalRoleRequest struct {
	GlobalRole string `json:"global_role"`
}

func (h *handlers) listSocieties(w http.ResponseWriter, r *http.Request) {
	list, err := h.societies.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, list)
}

func (h *handlers) createSociety(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in societies.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.societies.Create(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusCreated, s)
}

func (h *handlers) joinSociety(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.SocietyID == "" {
		h.fail(w, r, apperr.Invalid(apperr.FieldError{Field: "society_id", Message: "is required"}))
		return
	}
	m, err := h.memberships.Join(r.Context(), p, req.SocietyID, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusCreated, m)
}

func (h *handlers) setPrimary(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.memberships.SetPrimary(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listMemberships(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.memberships.ListBySociety(r.Context(), p, chi.URLParam(r, "id"), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, list)
}

func (h *handlers) approveMembership(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.memberships.Approve(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) rejectMembership(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.memberships.Reject(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.accounts.DeleteUser(r.Context(), p, chi.URLParam(r, "id"), r.URL.Query().Get("society_id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setGlobalRole(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req globalRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.accounts.SetGlobalRole(r.Context(), p, chi.URLParam(r, "id"), req.GlobalRole)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, newUserView(u))
}
