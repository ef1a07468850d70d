package httpapi

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Info("request handled", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		}
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := "*"
	if len(s.config.CORSOrigins) > 0 {
		origin = s.config.CORSOrigins[0]
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin wraps an admin-only handler, rejecting requests whose
// X-Admin-Key header doesn't match the configured admin key (§6).
func (s *Server) requireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get("X-Admin-Key")
		if s.config.AdminKey == "" || key != s.config.AdminKey {
			if s.logger != nil {
				s.logger.Warn("unauthorized admin access attempt", map[string]interface{}{"remote_addr": r.RemoteAddr, "path": r.URL.Path})
			}
			respondErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ps)
	}
}
