// Package config tests cover defaults and validation.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "nas.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

// TestLoadAppliesDefaults checks unset fields get populated.
func TestLoadAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "auth:\n  session_secret: '0123456789abcdef'\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTP.Port != 8080 {
		t.Fatalf("port default = %d", c.HTTP.Port)
	}
	if c.Browse.MaxPreviewBytes != 1_000_000 {
		t.Fatalf("preview default = %d", c.Browse.MaxPreviewBytes)
	}
	if c.Browse.SearchDefaultDepth != 6 {
		t.Fatalf("depth default = %d", c.Browse.SearchDefaultDepth)
	}
	if c.Thumbs.MaxDim != 256 {
		t.Fatalf("thumb default = %d", c.Thumbs.MaxDim)
	}
	if c.WebDAV.Prefix != "/dav" {
		t.Fatalf("webdav prefix = %q", c.WebDAV.Prefix)
	}
	if c.HTTP.LoginRatePerMinute != 10 {
		t.Fatalf("login rate default = %d", c.HTTP.LoginRatePerMinute)
	}
}

// TestLoadRejectsShortSecret requires a usable session secret.
func TestLoadRejectsShortSecret(t *testing.T) {
	p := writeConfig(t, "auth:\n  session_secret: 'short'\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

// TestLoadRejectsMissingRoot refuses allowed_roots that do not exist.
func TestLoadRejectsMissingRoot(t *testing.T) {
	p := writeConfig(t, "auth:\n  session_secret: '0123456789abcdef'\nbrowse:\n  allowed_roots:\n    - /definitely/not/a/real/dir\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

// TestLoadNormalizesRoots trims trailing separators from roots.
func TestLoadNormalizesRoots(t *testing.T) {
	root := t.TempDir()
	p := writeConfig(t, "auth:\n  session_secret: '0123456789abcdef'\nbrowse:\n  allowed_roots:\n    - "+root+string(os.PathSeparator)+"\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Browse.AllowedRoots[0] != root {
		t.Fatalf("root = %q, want %q", c.Browse.AllowedRoots[0], root)
	}
}
