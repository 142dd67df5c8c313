package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
)

// middlewareMaintenance answers 503 on the routes listed in
// app.maintenance.endpoints, or on every non-public route when
// app.maintenance.enabled is set.
func middlewareMaintenance(cfg config.Config, publicEndpoints map[string]map[string]struct{}) Middleware {
	var all bool
	blocked := make(map[string]struct{})
	if cfg != nil {
		all = cfg.GetBool("app.maintenance.enabled")
		for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				blocked[endpoint] = struct{}{}
			}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			_, listed := blocked[route]
			if listed || (all && !isPublic(publicEndpoints, r.Method, route)) {
				writeJSON(w, errorResponse{Message: "Service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(endpoints map[string]map[string]struct{}, method, route string) bool {
	_, ok := endpoints[method][route]
	return ok
}
