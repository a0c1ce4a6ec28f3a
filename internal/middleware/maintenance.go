package middleware

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

// MaintenanceMode blocks requests with a 503 while enabled reports true.
// API routes get a JSON error, pages get the maintenance template.
func MaintenanceMode(enabled func() bool, tmpl *template.Template) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "300")
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			if execErr := tmpl.ExecuteTemplate(w, "maintenance.html", nil); execErr != nil {
				slog.Error("maintenance: template error", "err", execErr)
			}
		})
	}
}
