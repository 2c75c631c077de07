package httpapi

import (
	"context"
	"net/http"
	"strings"

	"ranchcore/pkg/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// requireAuth resolves the bearer token to a known user and stores the
// acting user on the request context. Unknown or missing tokens get 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		username, ok := s.tokens[token]
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unknown token")
			return
		}
		user, ok := s.svc.FindUserByUsername(r.Context(), username)
		if !ok || !user.Active {
			s.writeError(w, http.StatusUnauthorized, "user not provisioned")
			return
		}
		actor := domain.UserRef{ID: user.ID, Username: user.Username}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// actorFrom returns the authenticated user stored by requireAuth.
func actorFrom(ctx context.Context) domain.UserRef {
	actor, _ := ctx.Value(actorKey).(domain.UserRef)
	return actor
}
