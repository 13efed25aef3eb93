package server

import (
	"net/http"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/accounts"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	*auth.TokenPair
	User *userView `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type signupResponse struct {
	User        *userView            `json:"user"`
	Memberships []*models.Membership `json:"memberships"`
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var in accounts.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, memberships, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusCreated, signupResponse{User: newUserView(user), Memberships: memberships})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, loginResponse{TokenPair: pair, User: newUserView(user)})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		h.fail(w, r, apperr.Invalid(apperr.FieldError{Field: "refresh_token", Message: "is required"}))
		return
	}
	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, pair)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.accounts.Logout(r.Context(), p, req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, newPrincipalView(p))
}
