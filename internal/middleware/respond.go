package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
)

// statusByKind maps every apperr.Kind to its HTTP status.
var statusByKind = map[apperr.Kind]int{
	apperr.Internal:          http.StatusInternalServerError,
	apperr.Unauthenticated:   http.StatusUnauthorized,
	apperr.PrincipalNotFound: http.StatusUnauthorized,
	apperr.Forbidden:         http.StatusForbidden,
	apperr.NotFound:          http.StatusNotFound,
	apperr.AlreadyProcessed:  http.StatusConflict,
	apperr.Validation:        http.StatusBadRequest,
	apperr.Conflict:          http.StatusConflict,
}

// StatusFor returns the HTTP status for kind.
func StatusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string              `json:"error"`
	Errors []apperr.FieldError `json:"errors,omitempty"`
	Code   string              `json:"code,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err. Internal errors are logged and reported with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.Internal, err, "internal error")
	}

	body := ErrorBody{Error: ae.Message, Errors: ae.Fields, Code: ae.Code}
	if ae.Kind == apperr.Internal {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body = ErrorBody{Error: "internal server error"}
	}
	if ae.Kind == apperr.AlreadyProcessed && body.Code == "" {
		body.Code = apperr.AlreadyProcessed.String()
	}
	WriteJSON(w, StatusFor(ae.Kind), body)
}
