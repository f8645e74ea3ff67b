package validate

import "testing"

func TestPasswordPolicy(t *testing.T) {
	if err := Password("hunter22"); err != nil {
		t.Fatalf("Password: %v", err)
	}
	if err := Password("short"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if err := Password("longenough\x00"); err == nil {
		t.Fatalf("expected NUL in password to be rejected")
	}
}

func TestRootPathsNormalizesAndDedupes(t *testing.T) {
	got, err := RootPaths([]string{"/data/photos/", "/data/photos", "/data/docs"})
	if err != nil {
		t.Fatalf("RootPaths: %v", err)
	}
	if len(got) != 2 || got[0] != "/data/photos" || got[1] != "/data/docs" {
		t.Fatalf("RootPaths = %v", got)
	}
	if _, err := RootPaths([]string{"relative"}); err == nil {
		t.Fatalf("expected relative root to be rejected")
	}
	if _, err := RootPaths([]string{"/"}); err == nil {
		t.Fatalf("expected filesystem root to be rejected")
	}
}
