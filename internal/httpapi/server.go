// Package httpapi serves the web UI and the JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/config"
	"github.com/Atharva0177/NAS/internal/drives"
	"github.com/Atharva0177/NAS/internal/fileops"
	"github.com/Atharva0177/NAS/internal/fsutil"
	"github.com/Atharva0177/NAS/internal/store"
	"github.com/Atharva0177/NAS/internal/thumbs"
	"github.com/Atharva0177/NAS/internal/webui"
)

type Server struct {
	Store   *store.Store
	Codec   *auth.Codec
	Scanner *drives.Scanner
	Thumbs  *thumbs.Thumber
	Cfg     *config.Config
	Logger  *slog.Logger

	started      time.Time
	loginLimiter *rateGate
	dav          http.Handler
}

// Handler builds the full middleware chain and routing table.
func (s *Server) Handler() (http.Handler, error) {
	if s.Store == nil || s.Codec == nil || s.Cfg == nil {
		return nil, errors.New("store, codec and config are required")
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Scanner == nil {
		s.Scanner = drives.NewScanner()
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.loginLimiter == nil {
		limit := s.Cfg.HTTP.LoginRatePerMinute
		if limit <= 0 {
			limit = 10
		}
		s.loginLimiter = newRateGate(limit, time.Minute)
	}

	mux := http.NewServeMux()
	staticFS, err := fs.Sub(webui.StaticFS, "static")
	if err != nil {
		return nil, err
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/favicon.ico", s.serveFavicon)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/admin", s.serveAdmin)

	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)

	mux.HandleFunc("/api/drives", s.handleDrives)
	mux.HandleFunc("/api/list", s.handleList)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/api/download", s.handleDownload)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/mkdir", s.handleMkdir)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/upload-multi", s.handleUploadMulti)
	mux.HandleFunc("/api/rename", s.handleRename)
	mux.HandleFunc("/api/delete", s.handleDelete)
	mux.HandleFunc("/api/trash", s.handleTrash)
	mux.HandleFunc("/api/restore", s.handleTrashRestore)
	mux.HandleFunc("/api/trash/purge", s.handleTrashPurge)
	mux.HandleFunc("/api/zip", s.handleZip)
	mux.HandleFunc("/api/thumb", s.handleThumb)
	mux.HandleFunc("/api/render_image", s.handleRenderImage)

	mux.HandleFunc("/api/admin/users", s.withAdmin(s.handleAdminUsers))
	mux.HandleFunc("/api/admin/users/", s.withAdmin(s.handleAdminUserByID))
	mux.HandleFunc("/api/admin/features", s.withAdmin(s.handleAdminFeatures))
	mux.HandleFunc("/api/admin/stats", s.withAdmin(s.handleAdminStats))
	mux.HandleFunc("/api/admin/ping", s.withAdmin(s.handleAdminPing))

	if s.Cfg.WebDAV.Enable {
		prefix := s.davPrefix()
		s.dav = s.webdavHandler(prefix)
		mux.Handle(prefix+"/", s.dav)
		mux.Handle(prefix, s.dav)
	}

	h := s.authGate(mux)
	h = s.withRecover(h)
	h = s.withRequestLog(h)
	h = withSecurityHeaders(h)
	return h, nil
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	h, err := s.Handler()
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.Cfg.HTTP.Bind, strconv.Itoa(s.Cfg.HTTP.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.Logger.Info("http server listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) servePage(w http.ResponseWriter, name string) {
	b, err := webui.StaticFS.ReadFile("static/" + name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "web ui missing"})
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.servePage(w, "index.html")
}

func (s *Server) serveAdmin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil || !sess.HasRole(auth.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.servePage(w, "admin.html")
}

func (s *Server) serveFavicon(w http.ResponseWriter, r *http.Request) {
	b, err := webui.StaticFS.ReadFile("static/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("content-type", "image/svg+xml")
	w.Header().Set("cache-control", "public, max-age=86400")
	_, _ = w.Write(b)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto HTTP statuses. Internal detail is
// only exposed in debug mode.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fsutil.ErrPathTraversal):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid path"})
	case errors.Is(err, drives.ErrDriveNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "drive not found"})
	case errors.Is(err, drives.ErrNoRoots):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "no accessible roots"})
	case errors.Is(err, fileops.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, fileops.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case errors.Is(err, fileops.ErrDirNotEmpty):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "directory not empty"})
	case errors.Is(err, fileops.ErrNotDir):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "not a directory"})
	default:
		s.Logger.Error("request failed", "path", r.URL.Path, "err", err)
		msg := "server error"
		if s.Cfg.HTTP.Debug {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-content-type-options", "nosniff")
		w.Header().Set("x-frame-options", "DENY")
		w.Header().Set("referrer-policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the remote IP without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cfg.HTTP.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.SessionMaxAge.Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cfg.HTTP.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(auth.SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// davPrefix returns the configured WebDAV mount prefix.
func (s *Server) davPrefix() string {
	if p := s.Cfg.WebDAV.Prefix; p != "" {
		return p
	}
	return "/dav"
}

// effectiveRoots computes what the session may browse. ErrNoRoots
// means the session is locked out of every root.
func (s *Server) effectiveRoots(sess *auth.Session) ([]string, error) {
	var sessionRoots []string
	if sess != nil {
		sessionRoots = sess.Roots
	}
	return drives.EffectiveRoots(sessionRoots, s.Cfg.Browse.AllowedRoots)
}

// resolveDrive validates a caller-supplied drive id against the
// session's effective roots.
func (s *Server) resolveDrive(driveID string, sess *auth.Session) (string, error) {
	roots, err := s.effectiveRoots(sess)
	if err != nil {
		return "", err
	}
	return s.Scanner.ResolveRoot(driveID, roots)
}

// resolveTarget turns drive_id + rel_path query params into a confined
// absolute path.
func (s *Server) resolveTarget(r *http.Request, sess *auth.Session) (root, abs, rel string, err error) {
	root, err = s.resolveDrive(r.URL.Query().Get("drive_id"), sess)
	if err != nil {
		return "", "", "", err
	}
	userPath := r.URL.Query().Get("rel_path")
	abs, err = fsutil.ResolveWithinRoot(root, userPath)
	if err != nil {
		return "", "", "", err
	}
	return root, abs, fsutil.CleanRelPath(userPath), nil
}
