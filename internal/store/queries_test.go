package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Atharva0177/NAS/internal/auth"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateUser(ctx, "alice", "hash1", []string{"admin", "uploader"}, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	u, ok, err := s.GetUserByUsername(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("get user: ok=%v err=%v", ok, err)
	}
	if !u.HasRole("admin") || !u.HasRole("uploader") {
		t.Fatalf("roles not persisted: %v", u.Roles)
	}
	if len(u.Roots) != 0 {
		t.Fatalf("expected no roots, got %v", u.Roots)
	}

	dir := t.TempDir()
	if err := s.UpdateUser(ctx, id, []string{"viewer"}, []string{dir}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	u, _, _ = s.GetUserByUsername(ctx, "alice")
	if len(u.Roots) != 1 || u.Roots[0] != filepath.Clean(dir) {
		t.Fatalf("roots not updated: %v", u.Roots)
	}
	if len(u.Roles) != 1 || u.Roles[0] != "viewer" {
		t.Fatalf("roles not updated: %v", u.Roles)
	}

	if err := s.SetUserPasswordHash(ctx, id, "hash2"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	u, _, _ = s.GetUserByUsername(ctx, "alice")
	if u.PassHash != "hash2" {
		t.Fatalf("password hash not updated")
	}

	if err := s.DeleteUser(ctx, id); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	_, ok, err = s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatalf("user still present after delete")
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateUser(context.Background(), "bob", "h", []string{"superuser"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestCreateUserUpgradesEmptyRolesToViewer(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.CreateUser(ctx, "carol", "h", nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, _, _ := s.GetUserByUsername(ctx, "carol")
	if len(u.Roles) != 1 || u.Roles[0] != auth.RoleViewer {
		t.Fatalf("expected viewer role, got %v", u.Roles)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.CreateUser(ctx, "dave", "h", nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.CreateUser(ctx, "dave", "h", nil, nil)
	if err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCreateUserRejectsRelativeRoot(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateUser(context.Background(), "erin", "h", nil, []string{"relative/path"})
	if err == nil {
		t.Fatalf("expected error for relative root")
	}
}

func TestFeatureFlags(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	flags, err := s.GetFeatureFlags(ctx)
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if flags.Uploads || flags.Delete || !flags.Thumbnails || !flags.HEIC {
		t.Fatalf("unexpected defaults: %+v", flags)
	}

	flags.Uploads = true
	flags.Thumbnails = false
	if err := s.SetFeatureFlags(ctx, flags); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	got, err := s.GetFeatureFlags(ctx)
	if err != nil {
		t.Fatalf("get flags: %v", err)
	}
	if !got.Uploads || got.Thumbnails {
		t.Fatalf("flags not persisted: %+v", got)
	}
}

func TestSeedAdminIfEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created, err := s.SeedAdminIfEmpty(ctx, "admin", "hash")
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}
	u, ok, _ := s.GetUserByUsername(ctx, "admin")
	if !ok || !u.HasRole(auth.RoleAdmin) {
		t.Fatalf("seeded admin missing or missing role: %+v", u)
	}

	created, err = s.SeedAdminIfEmpty(ctx, "admin2", "hash")
	if err != nil || created {
		t.Fatalf("second seed should be a no-op: created=%v err=%v", created, err)
	}
}
