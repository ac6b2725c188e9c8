package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/ats/transfer-service/pkg/reassignclient"
	"github.com/ats/transfer-service/pkg/servicetoken"
)

// ServiceTokenMiddleware requires an HS256 bearer token signed with the shared
// internal API key. An empty key leaves the route open, for local development.
func ServiceTokenMiddleware(internalAPIKey string) func(http.Handler) http.Handler {
	key := strings.TrimSpace(internalAPIKey)
	if key == "" {
		log.Printf("level=warn component=api msg=\"INTERNAL_API_KEY not set; internal routes are unauthenticated\"")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Bearer token required")
				return
			}

			if err := servicetoken.Verify(key, reassignclient.Audience, tokenString); err != nil {
				log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_service_token err=%v", r.URL.Path, err)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
