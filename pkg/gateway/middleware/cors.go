package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"aegis-hq/aegis/pkg/config"
)

// originMatcher decides whether an Origin header is allowed to cross into
// the gateway, and reports the decision it reached (for audit logging) in
// the same step rather than leaving the caller to re-derive why a request
// was or wasn't granted CORS headers.
type originMatcher struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(allowed []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(allowed))}
	for _, entry := range allowed {
		switch {
		case entry == "*":
			m.allowAll = true
		case strings.HasPrefix(entry, "*."):
			m.suffixes = append(m.suffixes, strings.TrimPrefix(entry, "*"))
		default:
			m.exact[entry] = struct{}{}
		}
	}
	return m
}

// allows reports whether origin may be granted CORS headers. A "*."-prefixed
// entry in the configured allow list (e.g. "*.agents.internal") matches any
// subdomain of that suffix, not just an exact string — agent fleets in
// practice run behind many short-lived subdomains, and listing each one in
// the policy config would be unworkable.
func (m originMatcher) allows(origin string) bool {
	if m.allowAll {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// CORS applies the configured cross-origin policy to the admin and dispatch
// surfaces, and logs every rejected cross-origin request at debug level so
// a misconfigured allow list shows up in the same structured log stream as
// dispatch decisions, rather than as a silent browser-side console error.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	matcher := newOriginMatcher(cfg.AllowedOrigins)
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !matcher.allows(origin) {
				slog.DebugContext(r.Context(), "cors origin rejected", "origin", origin, "path", r.URL.Path)
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposedHeaders != "" {
				header.Set("Access-Control-Expose-Headers", exposedHeaders)
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if allowedMethods != "" {
				header.Set("Access-Control-Allow-Methods", allowedMethods)
			}
			if allowedHeaders != "" {
				header.Set("Access-Control-Allow-Headers", allowedHeaders)
			}
			if cfg.MaxAge > 0 {
				header.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
