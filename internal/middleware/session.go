package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// SessionConfig controls the guest cart cookie
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// SessionMiddleware gives every visitor a cart session. An existing cookie is
// reused when it holds a valid id; otherwise a new id is issued. The cookie
// is refreshed on every request so the session slides with activity.
func SessionMiddleware(cfg SessionConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = id.String()
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				logger.Debug("Issued cart session", zap.String("session_id", sessionID))
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID extracts the cart session from request context
func GetSessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok && sessionID != ""
}
