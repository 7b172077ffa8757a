package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/server/auth"
)

type ctxKey int

const userIDKey ctxKey = 0

// userID returns the authenticated user set by authMiddleware.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// authMiddleware validates the Bearer token and stores the user id in the
// request context. Expired tokens produce the exact message the client
// matches on before attempting a refresh.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, common.ErrUnauthorized)
			return
		}

		id, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}
