package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/billbatista/acasinha-ledger/session"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// AuthMiddleware checks if the request carries a valid session, either as a
// bearer token or as the session cookie. The username becomes the ledger actor.
func AuthMiddleware(sessionRepo session.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessionRepo.GetByToken(r.Context(), token)
			if err != nil {
				slog.Info("invalid/expired session", "error", err)
				if fromCookie {
					http.SetCookie(w, &http.Cookie{
						Name:   session.CookieName,
						Value:  "",
						Path:   "/",
						MaxAge: -1,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, sess.UserID)
			ctx = context.WithValue(ctx, UsernameKey, sess.Username)
			ctx = ledger.WithActor(ctx, sess.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 when the request is not authenticated.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest returns the session token of r, if any.
func TokenFromRequest(r *http.Request) string {
	token, _ := tokenFromRequest(r)
	return token
}

func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if bearer, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(bearer), false
		}
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}

// IsAuthenticated checks if user is authenticated
func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetUserID(ctx)
	return ok
}
