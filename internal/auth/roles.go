package auth

// Role names are stored on user records and copied into sessions.
const (
	RoleAdmin    = "admin"
	RoleUploader = "uploader"
	RoleDeleter  = "deleter"
	RoleViewer   = "viewer"
)

// Roles lists every valid role name.
var Roles = []string{RoleAdmin, RoleUploader, RoleDeleter, RoleViewer}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	for _, r := range Roles {
		if r == s {
			return true
		}
	}
	return false
}

// Capability identifies a gated operation class.
type Capability int

const (
	CapUpload Capability = iota + 1
	CapDelete
	CapAdmin
)

// Toggles carries the global feature switches a capability check
// depends on.
type Toggles struct {
	UploadsEnabled bool
	DeleteEnabled  bool
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// Allowed is the single authorization predicate. It is pure and
// side-effect-free so middleware and handlers can both call it.
//
// A session with no roles at all is a legacy single-user session: it
// may upload/delete when the matching global toggle is on, but it is
// never an admin.
func Allowed(sess *Session, cap Capability, t Toggles) bool {
	if sess == nil {
		return false
	}
	switch cap {
	case CapUpload:
		if !t.UploadsEnabled {
			return false
		}
		if len(sess.Roles) == 0 {
			return true
		}
		return hasRole(sess.Roles, RoleAdmin) || hasRole(sess.Roles, RoleUploader)
	case CapDelete:
		if !t.DeleteEnabled {
			return false
		}
		if len(sess.Roles) == 0 {
			return true
		}
		return hasRole(sess.Roles, RoleAdmin) || hasRole(sess.Roles, RoleDeleter)
	case CapAdmin:
		return hasRole(sess.Roles, RoleAdmin)
	default:
		return false
	}
}
