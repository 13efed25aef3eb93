package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/issues"
)

func (h *handlers) createIssue(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in issues.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	issue, err := h.issues.Create(r.Context(), p, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusCreated, issue)
}

func (h *handlers) listIssues(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.issues.List(r.Context(), p, chi.URLParam(r, "id"), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, list)
}

func (h *handlers) getIssue(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	issue, err := h.issues.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, issue)
}

// updateIssue decodes into a map so an explicit null can be told apart from an absent key.
func (h *handlers) updateIssue(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	raw := map[string]any{}
	if err := decodeJSON(r, &raw); err != nil {
		h.fail(w, r, err)
		return
	}
	issue, err := h.issues.Update(r.Context(), p, chi.URLParam(r, "id"), raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, issue)
}

func (h *handlers) deleteIssue(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.issues.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
