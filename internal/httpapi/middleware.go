package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Atharva0177/NAS/internal/auth"
)

type ctxKey int

const ctxSession ctxKey = 1

// sessionFrom returns the authenticated session, or nil on public
// routes.
func sessionFrom(r *http.Request) *auth.Session {
	sess, _ := r.Context().Value(ctxSession).(*auth.Session)
	return sess
}

// publicPrefixes are reachable without a session.
var publicPrefixes = []string{
	"/auth/login",
	"/auth/logout",
	"/static/",
	"/favicon.ico",
	"/healthz",
}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// authGate decodes the session cookie for every request. Requests
// without a valid session get a JSON 401 on API routes and a redirect
// to the login page everywhere else, preserving the original location
// in the next parameter.
func (s *Server) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			// login page still wants to know who you are, if anyone
			if tok, ok := readSessionCookie(r); ok {
				if sess, err := s.Codec.Decode(tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxSession, sess))
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		tok, ok := readSessionCookie(r)
		if ok {
			sess, err := s.Codec.Decode(tok)
			if err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxSession, sess))
				next.ServeHTTP(w, r)
				return
			}
			s.clearSessionCookie(w)
		}

		// WebDAV clients cannot follow a login-page redirect, so the
		// mount gets the same JSON 401 the API does, whatever prefix
		// it is configured under.
		dav := s.davPrefix()
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == dav || strings.HasPrefix(r.URL.Path, dav+"/") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		target := r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, "/auth/login?next="+url.QueryEscape(target), http.StatusSeeOther)
	})
}

// withAdmin guards admin-only handlers. The auth gate has already run.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if !auth.Allowed(sess, auth.CapAdmin, auth.Toggles{}) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin required"})
			return
		}
		next(w, r)
	}
}

// withRecover guards handlers against panics and returns a 500 response.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.Logger.Error("panic", "panic", v, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)

		dur := time.Since(start)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"bytes", sr.bytes,
			"remote_ip", clientIP(r),
			"duration_ms", dur.Milliseconds(),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}
		s.Logger.Log(r.Context(), levelForStatus(sr.status), "http request", attrs...)
	})
}

func levelForStatus(code int) slog.Level {
	if code >= 500 {
		return slog.LevelError
	}
	if code >= 400 {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.Itoa(int(d.Seconds()))
}
