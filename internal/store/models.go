package store

// User is an account with browse roles and optional per-user roots.
// Roles are stored as a comma-separated list, roots as a JSON array of
// absolute paths. Empty roots mean the global allow-list applies.
type User struct {
	ID        int64
	Username  string
	PassHash  string
	Roles     []string
	Roots     []string
	CreatedAt int64
	UpdatedAt int64
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// FeatureFlags are runtime toggles held in the config table so admins
// can flip them without a restart.
type FeatureFlags struct {
	Uploads    bool `json:"uploads"`
	Delete     bool `json:"delete"`
	Thumbnails bool `json:"thumbnails"`
	HEIC       bool `json:"heic"`
}

// DefaultFeatureFlags is what a fresh install starts with: writes off,
// previews on.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{Uploads: false, Delete: false, Thumbnails: true, HEIC: true}
}
