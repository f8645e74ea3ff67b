package httpapi

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/drives"
	"github.com/Atharva0177/NAS/internal/store"
	"github.com/Atharva0177/NAS/internal/validate"
	"github.com/Atharva0177/NAS/internal/version"
)

type adminUserView struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	Roots     []string `json:"roots"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

func userView(u store.User) adminUserView {
	roots := u.Roots
	if roots == nil {
		roots = []string{}
	}
	return adminUserView{
		ID:        u.ID,
		Username:  u.Username,
		Roles:     u.Roles,
		Roots:     roots,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// checkRootsAllowed rejects per-user roots that fall outside the
// global allow-list. An empty list means the user inherits the global
// roots, which is always fine.
func (s *Server) checkRootsAllowed(roots []string) bool {
	global := s.Cfg.Browse.AllowedRoots
	if len(roots) == 0 || len(global) == 0 {
		return true
	}
	eff, err := drives.EffectiveRoots(roots, global)
	if err != nil {
		return false
	}
	return len(eff) == len(roots)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.Store.ListUsers(r.Context())
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		out := make([]adminUserView, 0, len(users))
		for _, u := range users {
			out = append(out, userView(u))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	case http.MethodPost:
		var req struct {
			Username string   `json:"username"`
			Password string   `json:"password"`
			Roles    []string `json:"roles"`
			Roots    []string `json:"roots"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := validate.Password(req.Password); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if !s.checkRootsAllowed(req.Roots) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "root outside allowed roots"})
			return
		}
		hash, err := auth.HashPassword(req.Password, auth.DefaultArgon2Params())
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		id, err := s.Store.CreateUser(r.Context(), req.Username, hash, req.Roles, req.Roots)
		if err != nil {
			if err == store.ErrUsernameTaken {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "username already exists"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		u, _, err := s.Store.GetUserByID(r.Context(), id)
		if err != nil || u == nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, userView(*u))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	if action == "password" && r.Method == http.MethodPost {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
			return
		}
		if err := validate.Password(req.Password); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		hash, err := auth.HashPassword(req.Password, auth.DefaultArgon2Params())
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		if err := s.Store.SetUserPasswordHash(r.Context(), id, hash); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Roles []string `json:"roles"`
			Roots []string `json:"roots"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if !s.checkRootsAllowed(req.Roots) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "root outside allowed roots"})
			return
		}
		if err := s.Store.UpdateUser(r.Context(), id, req.Roles, req.Roots); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		u, ok, err := s.Store.GetUserByID(r.Context(), id)
		if err != nil || !ok {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userView(*u))
	case http.MethodDelete:
		if err := s.Store.DeleteUser(r.Context(), id); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleAdminFeatures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		flags, err := s.Store.GetFeatureFlags(r.Context())
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, flags)
	case http.MethodPut, http.MethodPost:
		var flags store.FeatureFlags
		if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := s.Store.SetFeatureFlags(r.Context(), flags); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, flags)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

type rootStats struct {
	Root      string `json:"root"`
	Reachable bool   `json:"reachable"`
	Files     int64  `json:"files"`
	Dirs      int64  `json:"dirs"`
	Bytes     int64  `json:"bytes"`
	Partial   bool   `json:"partial"`
}

// probeRoot checks a root is stat-able within the timeout, so one dead
// network mount cannot hang the whole stats page.
func probeRoot(root string, timeout time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		st, err := os.Stat(root)
		done <- err == nil && st.IsDir()
	}()
	select {
	case ok := <-done:
		return ok
	case <-time.After(timeout):
		return false
	}
}

// scanRoot counts entries under a root until the entry cap or the
// shared deadline hits.
func scanRoot(ctx context.Context, root string, maxEntries int, deadline time.Time) rootStats {
	rs := rootStats{Root: root, Reachable: true}
	var scanned int
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			rs.Partial = true
			return filepath.SkipAll
		}
		scanned++
		if maxEntries > 0 && scanned > maxEntries {
			rs.Partial = true
			return filepath.SkipAll
		}
		if d.IsDir() {
			if p != root {
				rs.Dirs++
			}
			return nil
		}
		rs.Files++
		if info, err := d.Info(); err == nil {
			rs.Bytes += info.Size()
		}
		return nil
	})
	return rs
}

// handleAdminStats reports per-root usage under a strict time budget.
// Whatever cannot be finished in time is flagged partial rather than
// blocking the page.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	cfg := s.Cfg.Stats
	budget := time.Duration(cfg.TimeBudgetSeconds) * time.Second
	if budget <= 0 {
		budget = 3 * time.Second
	}
	deadline := time.Now().Add(budget)
	checkTimeout := time.Duration(cfg.RootCheckTimeoutMS) * time.Millisecond
	if checkTimeout <= 0 {
		checkTimeout = 500 * time.Millisecond
	}

	roots := s.Cfg.Browse.AllowedRoots
	perRoot := make([]rootStats, 0, len(roots))
	partial := false
	for _, root := range roots {
		if time.Now().After(deadline) {
			perRoot = append(perRoot, rootStats{Root: root, Partial: true})
			partial = true
			continue
		}
		if !probeRoot(root, checkTimeout) {
			perRoot = append(perRoot, rootStats{Root: root, Reachable: false})
			continue
		}
		rs := scanRoot(r.Context(), root, cfg.MaxEntriesPerRoot, deadline)
		if rs.Partial {
			partial = true
		}
		perRoot = append(perRoot, rs)
	}

	capacity := s.Scanner.ComputeCapacity(roots)

	out := map[string]any{
		"version":              version.Version,
		"uptime_seconds":       int64(time.Since(s.started).Seconds()),
		"roots":                perRoot,
		"partial":              partial,
		"capacity_total_bytes": capacity.TotalBytes,
		"capacity_used_bytes":  capacity.UsedBytes,
		"capacity_free_bytes":  capacity.FreeBytes,
		"capacity_per_root":    capacity.PerRoot,
	}
	if s.Thumbs != nil {
		// Cache sizing gets its own small budget so a cache on slow
		// storage cannot stall the stats response.
		thumbBudget := time.Duration(cfg.ThumbBudgetSeconds) * time.Second
		if thumbBudget <= 0 {
			thumbBudget = 2 * time.Second
		}
		type cacheInfo struct {
			size  int64
			count int
		}
		done := make(chan cacheInfo, 1)
		go func() {
			size, count := s.Thumbs.CacheSize()
			done <- cacheInfo{size, count}
		}()
		select {
		case ci := <-done:
			out["thumb_cache_bytes"] = ci.size
			out["thumb_cache_entries"] = ci.count
		case <-time.After(thumbBudget):
			out["thumb_cache_partial"] = true
		}
	}
	writeJSON(w, http.StatusOK, out)
}
