package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/server/auth"
)

type ctxKey string

const ownerKey ctxKey = "owner"

// authMiddleware extracts the bearer access token, validates it and puts
// the principal into the request context. The principal is the only source
// of ownership scope for everything downstream.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		owner, err := auth.GetOwnerFromToken(strings.TrimPrefix(header, common.BearerPrefix), s.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

// ownerFromContext returns the authenticated principal placed there by
// authMiddleware.
func ownerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey).(string)
	return owner, ok && owner != ""
}
