package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/warp/karma-engine/karma"
)

type contextKey string

const sessionKey = contextKey("session")

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// WithUserID marks ctx as authenticated for id without a token.
func WithUserID(ctx context.Context, id karma.UserID) context.Context {
	return WithSession(ctx, Session{UserID: id})
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok && s.UserID > 0
}

// UserIDFromContext returns the authenticated user, or false for anonymous
// requests.
func UserIDFromContext(ctx context.Context) (karma.UserID, bool) {
	s, ok := SessionFromContext(ctx)
	return s.UserID, ok
}

// Middleware puts the bearer token's session on the request context.
// Requests without a valid token pass through anonymously; RequireUser
// rejects them where a user is mandatory.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractTokenFromHeader(r.Header.Get("Authorization"))
		if tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := i.Authenticate(r.Context(), tokenStr)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				log.WithError(err).Warn("token check failed, treating request as anonymous")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireUser responds 401 when the request carries no authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractTokenFromHeader(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
