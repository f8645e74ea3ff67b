package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/drives"
	"github.com/Atharva0177/NAS/internal/fileops"
	"github.com/Atharva0177/NAS/internal/fsutil"
)

// toggles loads the runtime feature switches for capability checks.
func (s *Server) toggles(r *http.Request) auth.Toggles {
	flags, err := s.Store.GetFeatureFlags(r.Context())
	if err != nil {
		s.Logger.Warn("feature flags unavailable", "err", err)
		return auth.Toggles{}
	}
	return auth.Toggles{UploadsEnabled: flags.Uploads, DeleteEnabled: flags.Delete}
}

// require enforces a capability and replies 403 when denied.
func (s *Server) require(w http.ResponseWriter, r *http.Request, c auth.Capability) (*auth.Session, bool) {
	sess := sessionFrom(r)
	if !auth.Allowed(sess, c, s.toggles(r)) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "operation not permitted"})
		return nil, false
	}
	return sess, true
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	eff, err := s.effectiveRoots(sessionFrom(r))
	if err != nil {
		// Locked-out sessions see an empty drive list, not everything.
		writeJSON(w, http.StatusOK, map[string]any{"drives": []drives.Mount{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drives": s.Scanner.Discover(eff)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	_, abs, rel, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	res, err := fileops.List(abs, rel, page, pageSize)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     rel,
		"entries":  res.Entries,
		"has_more": res.HasMore,
		"total":    res.Total,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := fileops.Preview(abs, int64(s.Cfg.Browse.MaxPreviewBytes))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// serveFileInline streams a file with range support via ServeContent.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, abs string, attachment bool) {
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeErr(w, r, fileops.ErrNotFound)
			return
		}
		s.writeErr(w, r, err)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if st.IsDir() {
		s.writeErr(w, r, fileops.ErrNotDir)
		return
	}
	name := filepath.Base(abs)
	if ct := fileops.MimeFor(name); ct != "" {
		w.Header().Set("content-type", ct)
	}
	if attachment {
		w.Header().Set("content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	} else {
		w.Header().Set("content-disposition", fmt.Sprintf("inline; filename=%q", name))
	}
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.serveFile(w, r, abs, true)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.serveFile(w, r, abs, false)
}

// handleStream is the media endpoint; ServeContent answers single
// Range requests with 206 and ignores multi-range asks, which come
// back as a full 200 body.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if rng := r.Header.Get("range"); strings.Contains(rng, ",") {
		r.Header.Del("range")
	}
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("accept-ranges", "bytes")
	s.serveFile(w, r, abs, false)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	_, abs, rel, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	maxResults, _ := strconv.Atoi(q.Get("limit"))
	if maxResults <= 0 || maxResults > s.Cfg.Browse.MaxSearchResults {
		maxResults = s.Cfg.Browse.MaxSearchResults
	}
	depth, _ := strconv.Atoi(q.Get("depth"))
	if depth <= 0 {
		depth = s.Cfg.Browse.SearchDefaultDepth
	}
	budget := time.Duration(s.Cfg.Browse.SearchBudgetSeconds) * time.Second

	res, err := fileops.Search(r.Context(), abs, rel, q.Get("query"), maxResults, depth, budget)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapUpload)
	if !ok {
		return
	}
	_, abs, rel, err := s.resolveTarget(r, sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if err := fileops.Mkdir(abs); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1", "path": rel})
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.Cfg.HTTP.MaxUploadMB
	if mb <= 0 {
		mb = 512
	}
	return int64(mb) << 20
}

// handleUpload accepts multipart form uploads into the target
// directory. Every file keeps its client name; existing files are
// conflicts, not overwrites.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapUpload)
	if !ok {
		return
	}
	root, _, _, err := s.resolveTarget(r, sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	dirRel := fsutil.CleanRelPath(r.URL.Query().Get("rel_path"))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body required"})
		return
	}

	var saved []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.uploadFailed(w, r, err)
			return
		}
		name := path.Base(part.FileName())
		if name == "" || name == "." || name == "/" {
			_ = part.Close()
			continue
		}
		abs, err := fsutil.ResolveWithinRoot(root, path.Join(dirRel, name))
		if err != nil {
			_ = part.Close()
			s.writeErr(w, r, err)
			return
		}
		if _, err := fileops.SaveUpload(abs, part); err != nil {
			_ = part.Close()
			s.writeErr(w, r, err)
			return
		}
		_ = part.Close()
		saved = append(saved, name)
	}
	if len(saved) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files in request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": "1", "saved": saved})
}

// handleUploadMulti takes a raw body plus a relative path header, so
// folder uploads can recreate their directory structure.
func (s *Server) handleUploadMulti(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapUpload)
	if !ok {
		return
	}
	root, _, _, err := s.resolveTarget(r, sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	relHeader := r.Header.Get("X-File-Relative-Path")
	if relHeader == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-File-Relative-Path header is required"})
		return
	}
	dirRel := fsutil.CleanRelPath(r.URL.Query().Get("rel_path"))
	abs, err := fsutil.ResolveWithinRoot(root, path.Join(dirRel, relHeader))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	n, err := fileops.SaveUpload(abs, r.Body)
	if err != nil {
		s.uploadFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": "1", "bytes": n})
}

func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}
	s.writeErr(w, r, err)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapUpload)
	if !ok {
		return
	}
	var req struct {
		Drive   string `json:"drive_id"`
		Path    string `json:"rel_path"`
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.NewName == "" || strings.ContainsAny(req.NewName, "/\\\x00") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new name"})
		return
	}
	root, err := s.resolveDrive(req.Drive, sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	src, err := fsutil.ResolveWithinRoot(root, req.Path)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	rel := fsutil.CleanRelPath(req.Path)
	dstRel := path.Join(path.Dir(rel), req.NewName)
	dst, err := fsutil.ResolveWithinRoot(root, dstRel)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := fileops.Rename(src, dst); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1", "path": dstRel})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapDelete)
	if !ok {
		return
	}
	_, abs, rel, err := s.resolveTarget(r, sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot delete the root"})
		return
	}
	recursive := r.URL.Query().Get("recursive") == "1" || r.URL.Query().Get("recursive") == "true"
	if err := fileops.Delete(abs, recursive); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// handleTrash lists the trash on GET and moves a path into it on POST.
func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sess := sessionFrom(r)
		root, err := s.resolveDrive(r.URL.Query().Get("drive_id"), sess)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		entries, err := fileops.ListTrash(root)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case http.MethodPost:
		sess, ok := s.require(w, r, auth.CapDelete)
		if !ok {
			return
		}
		root, abs, rel, err := s.resolveTarget(r, sess)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		if rel == "" || rel == fileops.TrashDirName || strings.HasPrefix(rel, fileops.TrashDirName+"/") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid path"})
			return
		}
		token, err := fileops.TrashMove(root, abs)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1", "token": token})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleTrashRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapDelete)
	if !ok {
		return
	}
	root, err := s.resolveDrive(r.URL.Query().Get("drive_id"), sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	restored, err := fileops.Restore(root, r.URL.Query().Get("token"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	rel, err := filepath.Rel(root, restored)
	if err != nil {
		rel = filepath.Base(restored)
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1", "path": filepath.ToSlash(rel)})
}

func (s *Server) handleTrashPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess, ok := s.require(w, r, auth.CapDelete)
	if !ok {
		return
	}
	root, err := s.resolveDrive(r.URL.Query().Get("drive_id"), sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := fileops.Purge(root, r.URL.Query().Get("token")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// handleZip spools an archive of the requested paths and streams it
// with a known length.
func (s *Server) handleZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sess := sessionFrom(r)
	root, err := s.resolveDrive(r.URL.Query().Get("drive_id"), sess)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	paths := r.URL.Query()["p"]
	if len(paths) == 0 {
		if p := r.URL.Query().Get("rel_path"); p != "" {
			paths = []string{p}
		}
	}
	if len(paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no paths given"})
		return
	}

	items := make([]fileops.ZipItem, 0, len(paths))
	for _, p := range paths {
		abs, err := fsutil.ResolveWithinRoot(root, p)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		items = append(items, fileops.ZipItem{Abs: abs, Name: path.Base(fsutil.CleanRelPath(p))})
	}

	name := fileops.SanitizeZipBaseName(r.URL.Query().Get("name"))
	spool, size, err := fileops.BuildZip(r.Context(), items, "")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	defer os.Remove(spool)

	f, err := os.Open(spool)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("content-type", "application/zip")
	w.Header().Set("content-length", strconv.FormatInt(size, 10))
	w.Header().Set("content-disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	_, _ = io.Copy(w, f)
}
