package platform

import (
	"path/filepath"
	"testing"
)

func TestDetectLibcWithRoot_Musl(t *testing.T) {
	root := filepath.Join("testdata", "libc", "musl")
	if got := DetectLibcWithRoot(root); got != "musl" {
		t.Errorf("DetectLibcWithRoot(%q) = %q, want %q", root, got, "musl")
	}
}

func TestDetectLibcWithRoot_Glibc(t *testing.T) {
	root := filepath.Join("testdata", "libc", "glibc")
	if got := DetectLibcWithRoot(root); got != "glibc" {
		t.Errorf("DetectLibcWithRoot(%q) = %q, want %q", root, got, "glibc")
	}
}

func TestDetectLibcWithRoot_EmptyRoot(t *testing.T) {
	root := filepath.Join("testdata", "libc", "empty")
	if got := DetectLibcWithRoot(root); got != "glibc" {
		t.Errorf("DetectLibcWithRoot(%q) = %q, want %q", root, got, "glibc")
	}
}

func TestDetectLibc(t *testing.T) {
	libc := DetectLibc()
	if libc != "glibc" && libc != "musl" {
		t.Errorf("DetectLibc() = %q, want either %q or %q", libc, "glibc", "musl")
	}
}

func TestValidLibcTypes(t *testing.T) {
	expected := []string{"glibc", "musl"}
	if len(ValidLibcTypes) != len(expected) {
		t.Fatalf("ValidLibcTypes has %d entries, want %d", len(ValidLibcTypes), len(expected))
	}
	for i, libc := range expected {
		if ValidLibcTypes[i] != libc {
			t.Errorf("ValidLibcTypes[%d] = %q, want %q", i, ValidLibcTypes[i], libc)
		}
	}
}
