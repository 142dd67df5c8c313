package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
)

// HeaderAPIKey carries the client API key.
const HeaderAPIKey = "X-API-Key"

// middlewareAPIKey rejects requests without a configured API key. With no
// keys configured every request passes.
func middlewareAPIKey(cfg config.Config, publicEndpoints map[string]map[string]struct{}) Middleware {
	var keys [][]byte
	if cfg != nil {
		for _, k := range cfg.GetArray("app.server.api_keys") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, []byte(k))
			}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if isPublic(publicEndpoints, r.Method, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			given := []byte(strings.TrimSpace(r.Header.Get(HeaderAPIKey)))
			if len(given) == 0 {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			for _, k := range keys {
				if subtle.ConstantTimeCompare(given, k) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, errorResponse{Message: "Invalid API key"}, http.StatusUnauthorized)
		})
	}
}
