package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code and
// the number of response bytes written, so Logging can report response
// size alongside latency without the handler cooperating.
type statusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
	headerSent   bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.headerSent {
		return
	}
	s.headerSent = true
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.headerSent {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytesWritten += int64(n)
	return n, err
}

func logLevelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Logging records method, path, status, latency, and response size for
// every request. The request ID is read back from the response header
// rather than the request context: RequestID runs deeper in the middleware
// chain than Logging, so a value it stashes in its own derived context
// never becomes visible on the context reference Logging already holds —
// only the shared ResponseWriter header map crosses that boundary.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := logLevelForStatus(rec.status)
		slog.Log(r.Context(), level, "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytesWritten,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", rec.Header().Get(RequestIDHeader),
			"remote_addr", r.RemoteAddr,
		)
	})
}
