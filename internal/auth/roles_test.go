package auth

import "testing"

// TestAllowed covers the capability matrix from the authorization
// model: feature toggles gate upload/delete, roles refine them, and
// admin never falls back to legacy mode.
func TestAllowed(t *testing.T) {
	on := Toggles{UploadsEnabled: true, DeleteEnabled: true}
	off := Toggles{}

	cases := []struct {
		name  string
		roles []string
		cap   Capability
		tog   Toggles
		want  bool
	}{
		{"viewer cannot upload", []string{RoleViewer}, CapUpload, on, false},
		{"viewer cannot delete", []string{RoleViewer}, CapDelete, on, false},
		{"uploader can upload", []string{RoleUploader}, CapUpload, on, true},
		{"uploader cannot delete", []string{RoleUploader}, CapDelete, on, false},
		{"deleter can delete", []string{RoleDeleter}, CapDelete, on, true},
		{"admin can upload", []string{RoleAdmin}, CapUpload, on, true},
		{"admin can delete", []string{RoleAdmin}, CapDelete, on, true},
		{"legacy no-roles can upload", nil, CapUpload, on, true},
		{"legacy no-roles can delete", nil, CapDelete, on, true},
		{"legacy no-roles is not admin", nil, CapAdmin, on, false},
		{"toggle off blocks uploader", []string{RoleUploader}, CapUpload, off, false},
		{"toggle off blocks admin delete", []string{RoleAdmin}, CapDelete, off, false},
		{"admin role required for admin", []string{RoleViewer, RoleDeleter}, CapAdmin, on, false},
		{"admin allowed", []string{RoleAdmin}, CapAdmin, off, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &Session{Username: "u", Roles: tc.roles}
			if got := Allowed(sess, tc.cap, tc.tog); got != tc.want {
				t.Fatalf("Allowed(%v, %v) = %v, want %v", tc.roles, tc.cap, got, tc.want)
			}
		})
	}
}

// TestAllowedNilSession denies everything without a session.
func TestAllowedNilSession(t *testing.T) {
	if Allowed(nil, CapAdmin, Toggles{}) {
		t.Fatalf("nil session must be denied")
	}
}

// TestValidRole accepts only the fixed enum.
func TestValidRole(t *testing.T) {
	for _, r := range Roles {
		if !ValidRole(r) {
			t.Fatalf("%s should be valid", r)
		}
	}
	if ValidRole("superuser") {
		t.Fatalf("unknown role accepted")
	}
}
