package server

import (
	"log/slog"
	"net/http"
	"time"

	"drivebridge/internal/logging"
)

// developmentOrigin is always allowed so the local frontend works without
// configuration.
const developmentOrigin = "http://localhost:3000"

// statusClientClosed labels requests whose handler aborted the connection
// mid-response.
const statusClientClosed = 499

// withCORS answers preflights and reflects allowed origins with credentials,
// matching the browser frontend's expectations.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := map[string]bool{developmentOrigin: true}
	if s.cfg != nil {
		for _, o := range s.cfg.CORSOrigins {
			allowed[o] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Range, X-File-Name, X-File-Type, X-Folder-Id")
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withObservability records a log line and HTTP metrics per request. The
// metric path label is the matched route pattern, not the raw URL, to keep
// cardinality bounded.
func (s *Server) withObservability(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}

		defer func() {
			duration := time.Since(start)

			if p := recover(); p != nil {
				// Aborted transfers never produced a final status; 499 is
				// the nginx code for a request closed without a response.
				s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, statusClientClosed, duration)
				s.logger.Warn("http request aborted",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Duration(logging.KeyDuration, duration),
				)
				panic(p)
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, status, duration)

			s.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration(logging.KeyDuration, duration),
			)
		}()

		mux.ServeHTTP(rec, r)
	})
}

// statusRecorder captures the response status while passing Flush through so
// streaming handlers keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
