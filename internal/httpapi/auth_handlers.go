package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Atharva0177/NAS/internal/auth"
)

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

// handleLogin serves the login page on GET and authenticates on POST.
// Form posts redirect to the next parameter; JSON posts get a JSON
// reply. Attempts are rate limited per client IP.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if sessionFrom(r) != nil {
			http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
			return
		}
		s.servePage(w, "login.html")
	case http.MethodPost:
		s.doLogin(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) doLogin(w http.ResponseWriter, r *http.Request) {
	if ok, wait := s.loginLimiter.Allow("login:" + clientIP(r)); !ok {
		w.Header().Set("retry-after", retryAfterSeconds(wait))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts"})
		return
	}

	var username, password, next string
	wantJSON := strings.HasPrefix(r.Header.Get("content-type"), "application/json")
	if wantJSON {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		username, password = req.Username, req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
			return
		}
		username = r.PostFormValue("username")
		password = r.PostFormValue("password")
		next = r.PostFormValue("next")
	}
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing credentials"})
		return
	}

	u, ok, err := s.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	okPw, err := auth.VerifyPassword(password, u.PassHash)
	if err != nil || !okPw {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	tok, err := s.Codec.Encode(u.Username, u.Roles, u.Roots)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.setSessionCookie(w, tok)
	s.Logger.Info("login", "user", u.Username, "remote_ip", clientIP(r))

	if wantJSON {
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1", "username": u.Username})
		return
	}
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// handleLogout clears the session cookie. Works for both GET links and
// POST forms since the token is stateless.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	if strings.HasPrefix(r.Header.Get("accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
