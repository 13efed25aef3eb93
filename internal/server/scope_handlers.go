package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handlers) listScopes(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	listing, err := h.scopes.List(r.Context(), p, r.URL.Query().Get("society_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, listing)
}

func (h *handlers) upsertScope(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in scopes.UpsertInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, created, err := h.scopes.Upsert(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	appmw.WriteJSON(w, status, rec)
}

func auditQuery(r *http.Request) (audit.Query, error) {
	q := audit.Query{
		SocietyID:  chi.URLParam(r, "id"),
		EntityType: r.URL.Query().Get("entity_type"),
		Action:     r.URL.Query().Get("action"),
		UserID:     r.URL.Query().Get("user_id"),
	}
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *handlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := auditQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.audit.List(r.Context(), p, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	appmw.WriteJSON(w, http.StatusOK, page)
}

// exportAuditLogs buffers the workbook so a failure can still produce a JSON error.
func (h *handlers) exportAuditLogs(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := auditQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if _, err := h.audit.ExportXLSX(r.Context(), p, q, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", audit.ExportFilename(q.SocietyID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
