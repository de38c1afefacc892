package kiosk

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type auditKey struct{}

// auditEntry returns the entry being built for r, so handlers can add the
// order they touched.
func auditEntry(r *http.Request) *AuditLogEntry {
	return auditEntryFrom(r.Context())
}

func auditEntryFrom(ctx context.Context) *AuditLogEntry {
	entry, _ := ctx.Value(auditKey{}).(*AuditLogEntry)
	return entry
}

// auditLogMiddleware records the route template rather than the path, which
// would contain the PIN.
func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		entry := &AuditLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			RemoteAddr: r.RemoteAddr,
			Handler:    "unknown",
		}
		if route := mux.CurrentRoute(r); route != nil {
			if name := route.GetName(); name != "" {
				entry.Handler = name
			}
			if tpl, err := route.GetPathTemplate(); err == nil {
				entry.Route = tpl
			}
		}

		wrw := newResponseWriterWrapper(w)
		next.ServeHTTP(wrw, r.WithContext(context.WithValue(r.Context(), auditKey{}, entry)))

		entry.StatusCode = wrw.GetStatusCode()
		entry.Duration = time.Since(start)
		if entry.Handler == "metrics" {
			return
		}
		s.AuditManager.LogEntry(*entry)
	})
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriterWrapper(w http.ResponseWriter) *responseWriterWrapper {
	return &responseWriterWrapper{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) GetStatusCode() int {
	return w.statusCode
}
