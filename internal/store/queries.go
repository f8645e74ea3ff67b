package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/validate"
)

// ErrUsernameTaken is returned when creating a user whose name exists.
var ErrUsernameTaken = errors.New("username already exists")

// nowUnix returns the current Unix timestamp in seconds.
func nowUnix() int64 { return time.Now().Unix() }

// normalizeRoles validates and canonicalizes a role list. Unknown
// roles are a hard error. An empty list is upgraded to viewer so new
// accounts never depend on the legacy everything-allowed fallback.
func normalizeRoles(roles []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if !auth.ValidRole(r) {
			return nil, fmt.Errorf("unknown role %q", r)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = []string{auth.RoleViewer}
	}
	return out, nil
}

func normalizeRoots(roots []string) ([]string, error) {
	return validate.RootPaths(roots)
}

func encodeRoots(roots []string) (string, error) {
	if roots == nil {
		roots = []string{}
	}
	b, err := json.Marshal(roots)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeUser(u *User, rolesCSV, rootsJSON string) error {
	u.Roles = nil
	for _, r := range strings.Split(rolesCSV, ",") {
		if r = strings.TrimSpace(r); r != "" {
			u.Roles = append(u.Roles, r)
		}
	}
	if rootsJSON == "" {
		rootsJSON = "[]"
	}
	return json.Unmarshal([]byte(rootsJSON), &u.Roots)
}

// GetConfig fetches a single config key. The boolean indicates whether
// the key exists.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.sql.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return "", false, err
}

// SetConfig upserts a config key/value pair.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	_, err := s.sql.ExecContext(ctx, `
INSERT INTO config(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value, nowUnix())
	return err
}

const featureFlagsKey = "feature_flags"

// GetFeatureFlags loads the runtime toggles, falling back to defaults
// when none have been stored yet.
func (s *Store) GetFeatureFlags(ctx context.Context) (FeatureFlags, error) {
	flags := DefaultFeatureFlags()
	v, ok, err := s.GetConfig(ctx, featureFlagsKey)
	if err != nil || !ok {
		return flags, err
	}
	if err := json.Unmarshal([]byte(v), &flags); err != nil {
		return DefaultFeatureFlags(), fmt.Errorf("decode feature flags: %w", err)
	}
	return flags, nil
}

// SetFeatureFlags stores the runtime toggles.
func (s *Store) SetFeatureFlags(ctx context.Context, flags FeatureFlags) error {
	b, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return s.SetConfig(ctx, featureFlagsKey, string(b))
}

// CreateUser inserts a new account and returns its database ID. Roles
// and roots are validated and normalized before writing.
func (s *Store) CreateUser(ctx context.Context, username, passHash string, roles, roots []string) (int64, error) {
	if err := validate.Username(username); err != nil {
		return 0, err
	}
	if passHash == "" {
		return 0, errors.New("password hash is required")
	}
	roles, err := normalizeRoles(roles)
	if err != nil {
		return 0, err
	}
	roots, err = normalizeRoots(roots)
	if err != nil {
		return 0, err
	}
	rootsJSON, err := encodeRoots(roots)
	if err != nil {
		return 0, err
	}
	res, err := s.sql.ExecContext(ctx, `
INSERT INTO users(username, password_hash, roles, roots, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
`, username, passHash, strings.Join(roles, ","), rootsJSON, nowUnix(), nowUnix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateUser replaces a user's roles and roots.
func (s *Store) UpdateUser(ctx context.Context, id int64, roles, roots []string) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	roles, err := normalizeRoles(roles)
	if err != nil {
		return err
	}
	roots, err = normalizeRoots(roots)
	if err != nil {
		return err
	}
	rootsJSON, err := encodeRoots(roots)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx, `
UPDATE users SET roles=?, roots=?, updated_at=? WHERE id=?
`, strings.Join(roles, ","), rootsJSON, nowUnix(), id)
	return err
}

// SetUserPasswordHash updates a user's password hash.
func (s *Store) SetUserPasswordHash(ctx context.Context, id int64, passHash string) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	if passHash == "" {
		return errors.New("password hash is required")
	}
	_, err := s.sql.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, passHash, nowUnix(), id)
	return err
}

// DeleteUser removes a user by ID.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	_, err := s.sql.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	return err
}

// GetUserByUsername looks up a user by name. The boolean reports
// whether the user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	var u User
	var rolesCSV, rootsJSON string
	err := s.sql.QueryRowContext(ctx, `
SELECT id, username, password_hash, roles, roots, created_at, updated_at
FROM users WHERE username=?
`, username).Scan(&u.ID, &u.Username, &u.PassHash, &rolesCSV, &rootsJSON, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := decodeUser(&u, rolesCSV, rootsJSON); err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

// GetUserByID looks up a user by database ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, bool, error) {
	var u User
	var rolesCSV, rootsJSON string
	err := s.sql.QueryRowContext(ctx, `
SELECT id, username, password_hash, roles, roots, created_at, updated_at
FROM users WHERE id=?
`, id).Scan(&u.ID, &u.Username, &u.PassHash, &rolesCSV, &rootsJSON, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := decodeUser(&u, rolesCSV, rootsJSON); err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.sql.QueryContext(ctx, `
SELECT id, username, password_hash, roles, roots, created_at, updated_at
FROM users ORDER BY username
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var rolesCSV, rootsJSON string
		if err := rows.Scan(&u.ID, &u.Username, &u.PassHash, &rolesCSV, &rootsJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeUser(&u, rolesCSV, rootsJSON); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// SeedAdminIfEmpty creates an admin account when the users table is
// empty. Returns true when a user was created.
func (s *Store) SeedAdminIfEmpty(ctx context.Context, username, passHash string) (bool, error) {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.CreateUser(ctx, username, passHash, []string{auth.RoleAdmin}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}
