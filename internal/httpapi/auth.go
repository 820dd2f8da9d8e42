package httpapi

import (
	"context"
	"net/http"
	"strings"

	"qms/token-queue/internal/auth"

	"github.com/go-chi/chi/v5/middleware"
)

type authContextKey struct{}

// requireAdmin lets a request through only with a valid admin session.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authDisabled {
			ctx := context.WithValue(r.Context(), authContextKey{}, auth.Session{Username: "anonymous", IsAdmin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		requestID := requestIDFromRequest(r)
		if h.auth == nil {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "authentication is not configured")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := h.auth.Verify(token)
		if err != nil {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "invalid session")
			return
		}
		if !session.IsAdmin {
			writeError(w, requestID, http.StatusForbidden, "access_denied", "admin access required")
			return
		}
		setRequestUser(r.Context(), session.Username)
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(authContextKey{}).(auth.Session)
	return session, ok
}

func requestIDFromRequest(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
