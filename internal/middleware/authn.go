// Package middleware holds the chi middleware that authenticates callers,
// gates pending accounts and captures client metadata for audit entries.
package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

// CodePendingApproval marks requests rejected because no membership is approved yet.
const CodePendingApproval = "pending_approval"

// Authn resolves the Authorization header into a Principal and stores it on the
// request context. Unresolvable callers get 401.
func Authn(resolver iam.PrincipalResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(iam.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireApprovedSociety rejects principals with no approved membership.
// Developers pass regardless. Must run after Authn.
func RequireApprovedSociety(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := iam.PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, r, logger, apperr.Unauthenticatedf("authentication required"))
				return
			}
			if !p.HasApprovedSociety && !p.IsDeveloper() {
				WriteError(w, r, logger, &apperr.Error{
					Kind:    apperr.Forbidden,
					Message: "your society membership is pending approval",
					Code:    CodePendingApproval,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMetadata records the client address and user agent for audit entries.
// Run it after chi's RealIP so proxied addresses are honored.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := auth.SetRequestMetadata(r.Context(), auth.RequestMetadata{
			IPAddress: ip,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
