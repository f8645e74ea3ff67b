// Package validate checks operator-supplied account fields and browse
// roots before they reach the store.
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MinPasswordLen is the shortest password accepted for new accounts.
const MinPasswordLen = 8

// usernameRe keeps account names URL- and log-safe.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Username validates an account name for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// Password enforces the password policy for newly set passwords.
// Existing hashes are never re-checked, so tightening the policy does
// not lock anyone out.
func Password(s string) error {
	if len(s) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(s) > 1024 {
		return errors.New("password is too long")
	}
	if strings.ContainsRune(s, '\x00') {
		return errors.New("password contains invalid characters")
	}
	return nil
}

// RootPath validates and normalizes one browse root.
func RootPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("root path is required")
	}
	if strings.ContainsRune(p, '\x00') {
		return "", errors.New("root path contains invalid characters")
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) {
		return "", errors.New("root path must be absolute")
	}
	// Reject volume root ("/", "C:\\", etc.).
	if filepath.Dir(clean) == clean {
		return "", errors.New("root path cannot be filesystem root")
	}
	// Avoid trailing separators for stable comparisons.
	clean = strings.TrimRight(clean, string(filepath.Separator))
	if clean == "" {
		return "", errors.New("invalid root path")
	}
	return clean, nil
}

// RootPaths normalizes a per-user root list, dropping duplicates while
// keeping the caller's order. A nil result means no restriction.
func RootPaths(roots []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, r := range roots {
		p, err := RootPath(r)
		if err != nil {
			return nil, fmt.Errorf("root %q: %w", r, err)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}
