package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/caretrail/accesscore"
)

type sessionContextKey struct{}

// withRequestContext stamps every request with its client IP and a
// request id before any handler runs; the engine keys rate limits and
// audit correlation on them.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = accesscore.WithRequestID(ctx, requestID)

		if ip := clientIP(r); ip != "" {
			ctx = accesscore.WithClientIP(ctx, ip)
		}

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession resolves the bearer credential into a SessionContext
// and rejects the request when none resolves.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential := bearerToken(r)
		if credential == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		sc, err := s.engine.ResolveSession(r.Context(), credential)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, sc)
		next(w, r.WithContext(ctx))
	}
}

func sessionFromRequest(r *http.Request) accesscore.SessionContext {
	sc, _ := r.Context().Value(sessionContextKey{}).(accesscore.SessionContext)
	return sc
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func clientIP(r *http.Request) string {
	// Leftmost X-Forwarded-For hop when present; the deployment fronts
	// this service with a trusted proxy.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
