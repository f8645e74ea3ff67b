package fileops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SearchResult carries matches plus flags describing why the scan
// stopped early.
type SearchResult struct {
	Entries   []Entry `json:"entries"`
	Truncated bool    `json:"truncated"`
	Partial   bool    `json:"partial"`
	Scanned   int     `json:"scanned"`
}

type searchNode struct {
	abs   string
	rel   string
	depth int
}

// Search walks a tree breadth-first matching entry names by
// case-insensitive substring. Within each directory, matching
// subdirectories are reported before matching files. Entries deeper
// than maxDepth levels below the start are neither reported nor
// descended into. The scan stops the moment maxResults matches exist,
// the budget elapses, or the context is canceled; early stops set
// Truncated or Partial.
func Search(ctx context.Context, absBase, relBase, query string, maxResults, maxDepth int, budget time.Duration) (SearchResult, error) {
	res := SearchResult{Entries: []Entry{}}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return res, nil
	}
	st, err := os.Stat(absBase)
	if err != nil {
		if os.IsNotExist(err) {
			return res, ErrNotFound
		}
		return res, err
	}
	if !st.IsDir() {
		return res, ErrNotDir
	}
	if maxResults <= 0 {
		maxResults = 500
	}

	// budget 0 means unbounded; a negative budget is already expired.
	var deadline time.Time
	if budget != 0 {
		deadline = time.Now().Add(budget)
	}
	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	queue := []searchNode{{abs: absBase, rel: relBase, depth: 0}}
	for len(queue) > 0 {
		if expired() {
			res.Partial = true
			return res, nil
		}
		n := queue[0]
		queue = queue[1:]

		ents, err := os.ReadDir(n.abs)
		if err != nil {
			continue
		}

		var dirs, files []os.DirEntry
		for _, e := range ents {
			if e.IsDir() {
				dirs = append(dirs, e)
			} else {
				files = append(files, e)
			}
		}

		childDepth := n.depth + 1
		for _, group := range [][]os.DirEntry{dirs, files} {
			for _, e := range group {
				res.Scanned++
				name := e.Name()
				if maxDepth > 0 && childDepth > maxDepth {
					continue
				}
				if strings.Contains(strings.ToLower(name), query) {
					info, err := e.Info()
					if err != nil {
						continue
					}
					res.Entries = append(res.Entries, entryFor(joinRel(n.rel, name), info))
					if len(res.Entries) >= maxResults {
						res.Truncated = true
						return res, nil
					}
				}
			}
		}
		// Queue subdirectories only when their children can still be
		// reported; symlinked dirs are skipped to avoid loops.
		if maxDepth <= 0 || childDepth < maxDepth {
			for _, e := range dirs {
				if e.Type()&os.ModeSymlink != 0 {
					continue
				}
				queue = append(queue, searchNode{
					abs:   filepath.Join(n.abs, e.Name()),
					rel:   joinRel(n.rel, e.Name()),
					depth: childDepth,
				})
			}
		}
	}
	return res, nil
}
