// Package fileops implements directory listing, preview, search and
// mutation primitives over already-confined absolute paths. Callers
// resolve user input through fsutil before anything here runs.
package fileops

import (
	"errors"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound marks a path that does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrConflict marks a destination that already exists.
	ErrConflict = errors.New("destination already exists")
	// ErrDirNotEmpty marks a non-recursive delete of a non-empty dir.
	ErrDirNotEmpty = errors.New("directory not empty")
	// ErrNotDir marks a file where a directory was expected.
	ErrNotDir = errors.New("not a directory")
)

// Entry describes one filesystem node in API responses.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	Mtime int64  `json:"mtime"`
	Mime  string `json:"mime,omitempty"`
}

// ListResult is one page of a directory listing.
type ListResult struct {
	Entries []Entry `json:"entries"`
	HasMore bool    `json:"has_more"`
	Total   int     `json:"total"`
}

// MimeFor guesses a content type from the file extension, with
// fallbacks for systems with sparse mime tables.
func MimeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".log", ".md", ".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".go", ".js", ".ts", ".py", ".rs", ".java", ".c", ".h", ".cpp", ".sh", ".css", ".html":
		return "text/plain; charset=utf-8"
	case ".zip":
		return "application/zip"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	default:
		return ""
	}
}

func entryFor(rel string, info os.FileInfo) Entry {
	e := Entry{
		Name:  info.Name(),
		Path:  rel,
		IsDir: info.IsDir(),
		Mtime: info.ModTime().Unix(),
	}
	if !e.IsDir {
		e.Size = info.Size()
		e.Mime = MimeFor(e.Name)
	}
	return e
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// List reads one directory and returns a page of entries, directories
// first, each group sorted case-insensitively by name. Page numbers
// start at 1; pageSize <= 0 returns everything. Entries whose metadata
// cannot be read are skipped.
func List(absDir, relDir string, page, pageSize int) (ListResult, error) {
	st, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return ListResult{}, ErrNotFound
		}
		return ListResult{}, err
	}
	if !st.IsDir() {
		return ListResult{}, ErrNotDir
	}
	ents, err := os.ReadDir(absDir)
	if err != nil {
		return ListResult{}, err
	}

	entries := make([]Entry, 0, len(ents))
	for _, e := range ents {
		info, err := e.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entryFor(joinRel(relDir, e.Name()), info))
	}
	sortEntries(entries)

	res := ListResult{Total: len(entries)}
	if pageSize <= 0 {
		res.Entries = entries
		return res, nil
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		res.Entries = []Entry{}
		return res, nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	res.Entries = entries[start:end]
	res.HasMore = end < len(entries)
	return res, nil
}
