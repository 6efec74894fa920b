package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// ValidateJSONContentType rejects POST/PUT/PATCH bodies that are not JSON
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			// bodiless calls such as verify-hospital
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				writeMessage(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs refuses query parameters carrying markup characters and
// paths with traversal segments.
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for key, values := range r.URL.Query() {
				for _, val := range values {
					if strings.ContainsAny(val, "<>\"'") {
						log.Warn("suspicious input detected",
							slog.String("path", r.URL.Path),
							slog.String("param", key),
						)
						writeMessage(w, http.StatusBadRequest, "invalid characters in query parameter "+key)
						return
					}
				}
			}

			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected", slog.String("path", r.URL.Path))
				writeMessage(w, http.StatusBadRequest, "invalid path")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
