package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestInfo is filled in by handlers further down the chain so the access
// log line can name the caller.
type requestInfo struct {
	user string
}

type requestInfoKey struct{}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := requestIDFromRequest(r)
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}
		info := &requestInfo{user: "-"}
		writer := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(writer, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))
		status := writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf("request method=%s path=%s status=%d duration_ms=%d user=%s request_id=%s", r.Method, r.URL.Path, status, time.Since(start).Milliseconds(), info.user, requestID)
	})
}

func setRequestUser(ctx context.Context, user string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.user = user
	}
}
