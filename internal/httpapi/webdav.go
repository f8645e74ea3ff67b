package httpapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/webdav"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/fsutil"
)

// davFS is a webdav.FileSystem that resolves every path through the
// same root confinement the JSON API uses, so symlinks pointing
// outside the root stay unreachable over WebDAV too.
type davFS struct {
	root string
}

func (d davFS) resolve(name string) (string, error) {
	return fsutil.ResolveWithinRoot(d.root, name)
}

func (d davFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}
	return os.Mkdir(p, perm)
}

func (d davFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(p, flag, perm)
}

func (d davFS) RemoveAll(ctx context.Context, name string) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}
	// Never let a DELETE on the share top level take the root with it.
	if p == filepath.Clean(d.root) {
		return os.ErrPermission
	}
	return os.RemoveAll(p)
}

func (d davFS) Rename(ctx context.Context, oldName, newName string) error {
	src, err := d.resolve(oldName)
	if err != nil {
		return err
	}
	dst, err := d.resolve(newName)
	if err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (d davFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

var _ webdav.FileSystem = davFS{}

// davMounts names each effective root by its base name so it shows up
// as a folder at the share top level. Duplicate base names get a
// numeric suffix.
func davMounts(roots []string) map[string]string {
	out := make(map[string]string, len(roots))
	for _, root := range roots {
		name := filepath.Base(root)
		if name == "" || name == "/" || name == "." {
			name = "root"
		}
		cand := name
		for i := 2; ; i++ {
			if _, taken := out[cand]; !taken {
				break
			}
			cand = name + "-" + strconv.Itoa(i)
		}
		out[cand] = root
	}
	return out
}

func davWriteMethod(method string) bool {
	switch method {
	case "PUT", "DELETE", "MKCOL", "MOVE", "COPY", "PROPPATCH", "LOCK", "UNLOCK":
		return true
	}
	return false
}

// webdavHandler exposes the caller's effective roots over WebDAV.
// Reads need only a session; writes additionally need the upload or
// delete capability.
func (s *Server) webdavHandler(prefix string) http.Handler {
	var mu sync.Mutex
	locks := map[string]webdav.LockSystem{}
	lockFor := func(root string) webdav.LockSystem {
		mu.Lock()
		defer mu.Unlock()
		ls, ok := locks[root]
		if !ok {
			ls = webdav.NewMemLS()
			locks[root] = ls
		}
		return ls
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if sess == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		if davWriteMethod(r.Method) {
			need := auth.CapUpload
			if r.Method == "DELETE" {
				need = auth.CapDelete
			}
			if !auth.Allowed(sess, need, s.toggles(r)) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		roots, err := s.effectiveRoots(sess)
		if err != nil {
			http.Error(w, "no shares", http.StatusNotFound)
			return
		}
		mounts := davMounts(roots)
		if len(mounts) == 0 {
			http.Error(w, "no shares", http.StatusNotFound)
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, prefix)
		rest = strings.TrimPrefix(rest, "/")
		seg, _, _ := strings.Cut(rest, "/")

		if seg == "" {
			// Top level: synthesize a listing of mount names for
			// clients that browse from the share root.
			if r.Method != "PROPFIND" && r.Method != http.MethodGet && r.Method != "OPTIONS" {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("content-type", "text/html; charset=utf-8")
			for name := range mounts {
				_, _ = w.Write([]byte(`<a href="` + prefix + "/" + name + `/">` + name + "</a>\n"))
			}
			return
		}

		root, ok := mounts[seg]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h := &webdav.Handler{
			Prefix:     prefix + "/" + seg,
			FileSystem: davFS{root: root},
			LockSystem: lockFor(root),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					s.Logger.Warn("webdav", "method", r.Method, "path", r.URL.Path, "err", err)
				}
			},
		}
		h.ServeHTTP(w, r)
	})
}
