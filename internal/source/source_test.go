package source

import (
	"testing"

	"github.com/a2-ai/rv/internal/rversion"
)

func TestFromRepository_String(t *testing.T) {
	s := FromRepository("cran", "https://cran.r-project.org", "dplyr", rversion.MustParse("1.1.0"))
	if got, want := s.String(), "cran/dplyr@1.1.0"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFromGit_AddressableURL(t *testing.T) {
	g, err := ParseGitURL("https://github.com/user/repo.git")
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}
	s := FromGit(g, Tag("v1.0.0"), "")

	addr, ok := s.AddressableURL()
	if !ok {
		t.Fatal("AddressableURL() ok = false, want true")
	}
	if addr != "https://github.com/user/repo.git" {
		t.Errorf("AddressableURL() = %q", addr)
	}
}

func TestFromURL_AddressableURL(t *testing.T) {
	s := FromURL("https://example.com/pkg.tar.gz", "deadbeef")
	addr, ok := s.AddressableURL()
	if !ok || addr != "https://example.com/pkg.tar.gz" {
		t.Errorf("AddressableURL() = (%q, %v)", addr, ok)
	}
}

func TestFromLocal_NotAddressable(t *testing.T) {
	s := FromLocal("/tmp/mypkg")
	if _, ok := s.AddressableURL(); ok {
		t.Error("local source should not be cache-addressable")
	}
}

func TestHash_Stable(t *testing.T) {
	a := Hash("https://example.com/repo")
	b := Hash("https://example.com/repo")
	if a != b {
		t.Errorf("Hash should be stable: %q != %q", a, b)
	}
	if Hash("https://example.com/other") == a {
		t.Error("different URLs should hash differently")
	}
}

func TestFromURLSigned(t *testing.T) {
	s := FromURLSigned("https://example.com/pkg.tar.gz", "deadbeef", "https://example.com/pkg.tar.gz.sig", "https://example.com/key.asc", "ABCD 1234")
	if s.Kind != KindURL {
		t.Errorf("Kind = %v, want KindURL", s.Kind)
	}
	if s.SHA != "deadbeef" {
		t.Errorf("SHA = %q", s.SHA)
	}
	if s.SigURL == "" || s.SigKeyURL == "" || s.SigKeyFingerprint == "" {
		t.Errorf("expected all three signature fields set, got %+v", s)
	}
}

func TestGitReference_Constructors(t *testing.T) {
	if Branch("main").Kind != RefBranch {
		t.Error("Branch should have RefBranch kind")
	}
	if Tag("v1").Kind != RefTag {
		t.Error("Tag should have RefTag kind")
	}
	if Commit("abc123").Kind != RefCommit {
		t.Error("Commit should have RefCommit kind")
	}
}
