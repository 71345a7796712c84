package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
)

// APIKeyAuthMiddleware protects the status API with a static admin key
type APIKeyAuthMiddleware struct {
	apiKey string
}

func NewAPIKeyAuthMiddleware(apiKey string) *APIKeyAuthMiddleware {
	return &APIKeyAuthMiddleware{apiKey: apiKey}
}

// Middleware rejects requests without a matching X-API-Key header. When no key
// is configured the whole API is disabled.
func (m *APIKeyAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" {
			log.Printf("⚠️ Status API request rejected - no admin API key configured")
			writeUnauthorized(w)
			return
		}

		provided := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.apiKey)) != 1 {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
