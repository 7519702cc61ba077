package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/a2-ai/rv/internal/platform"
	"github.com/a2-ai/rv/internal/rversion"
	"github.com/a2-ai/rv/internal/source"
)

func TestMarkAsBinaryUnavailable_Downgrade(t *testing.T) {
	cases := []struct {
		in   InstallationStatus
		want InstallationStatus
	}{
		{Absent, Absent},
		{Source, Source},
		{BinaryNotBuilt, Absent},
		{BinaryBuilt, BinaryBuilt},
		{BothNotBuilt, Source},
		{BothBuilt, BothBuilt},
	}
	for _, c := range cases {
		if got := c.in.MarkAsBinaryUnavailable(); got != c.want {
			t.Errorf("%s.MarkAsBinaryUnavailable() = %s, want %s", c.in, got, c.want)
		}
	}
}

// Invariant 3 (spec.md §8): MarkAsBinaryUnavailable is idempotent.
func TestMarkAsBinaryUnavailable_Idempotent(t *testing.T) {
	for s := Absent; s <= BothBuilt; s++ {
		once := s.MarkAsBinaryUnavailable()
		twice := once.MarkAsBinaryUnavailable()
		if once != twice {
			t.Errorf("%s: not idempotent, once=%s twice=%s", s, once, twice)
		}
	}
}

func TestCacheStatus_MarkAsBinaryUnavailable_BothTiers(t *testing.T) {
	global := BothNotBuilt
	status := CacheStatus{Local: BinaryNotBuilt, Global: &global}

	got := status.MarkAsBinaryUnavailable()

	if got.Local != Absent {
		t.Errorf("local: got %s, want Absent", got.Local)
	}
	if got.Global == nil || *got.Global != Source {
		t.Errorf("global: got %v, want Source", got.Global)
	}
	// original is untouched
	if status.Local != BinaryNotBuilt || *status.Global != BothNotBuilt {
		t.Error("MarkAsBinaryUnavailable must not mutate the receiver")
	}
}

func TestCacheStatus_BinaryAndSourceAvailable_Union(t *testing.T) {
	global := BinaryBuilt
	status := CacheStatus{Local: Absent, Global: &global}

	if !status.BinaryAvailable() {
		t.Error("expected binary available via global tier")
	}
	if status.SourceAvailable() {
		t.Error("expected source unavailable: neither tier has source")
	}

	noGlobal := CacheStatus{Local: Source}
	if noGlobal.BinaryAvailable() {
		t.Error("expected no binary available")
	}
	if !noGlobal.SourceAvailable() {
		t.Error("expected source available via local tier")
	}
}

// Invariant 5 (spec.md §8): get_package_paths is a pure function of its
// inputs.
func TestGetPackagePaths_Pure(t *testing.T) {
	root := "/cache/4.3.1/linux-amd64"
	src := source.FromRepository("cran", "https://cran.r-project.org", "dplyr", rversion.MustParse("1.1.4"))

	a, err := GetPackagePaths(root, src, "dplyr", rversion.MustParse("1.1.4"))
	if err != nil {
		t.Fatalf("GetPackagePaths: %v", err)
	}
	b, err := GetPackagePaths(root, src, "dplyr", rversion.MustParse("1.1.4"))
	if err != nil {
		t.Fatalf("GetPackagePaths: %v", err)
	}
	if a != b {
		t.Errorf("same inputs produced different outputs: %+v vs %+v", a, b)
	}
}

func TestGetPackagePaths_RepositorySource(t *testing.T) {
	root := "/cache/4.3.1/linux-amd64"
	src := source.FromRepository("cran", "https://cran.r-project.org", "dplyr", rversion.MustParse("1.1.4"))

	paths, err := GetPackagePaths(root, src, "dplyr", rversion.MustParse("1.1.4"))
	if err != nil {
		t.Fatalf("GetPackagePaths: %v", err)
	}

	wantBase := filepath.Join(root, "repos", source.Hash("https://cran.r-project.org"))
	if paths.Source != filepath.Join(wantBase, "src", "dplyr_1.1.4.tar.gz") {
		t.Errorf("source path = %s", paths.Source)
	}
	if paths.Binary != filepath.Join(wantBase, "bin", "dplyr_1.1.4") {
		t.Errorf("binary path = %s", paths.Binary)
	}
}

func TestGetPackagePaths_RepositorySourceRequiresURL(t *testing.T) {
	src := source.FromRepository("cran", "", "dplyr", rversion.MustParse("1.1.4"))
	if _, err := GetPackagePaths("/cache", src, "dplyr", rversion.MustParse("1.1.4")); err == nil {
		t.Error("expected error for repository source with no URL")
	}
}

func TestGetPackagePaths_LocalSourceNeverCached(t *testing.T) {
	src := source.FromLocal("/home/user/mypkg")
	if _, err := GetPackagePaths("/cache", src, "mypkg", rversion.Version{}); err == nil {
		t.Error("expected error: local sources are never cached")
	}
}

func TestGetPackagePaths_GitSourceSanitizesRef(t *testing.T) {
	gitURL, err := source.ParseGitURL("https://github.com/tidyverse/dplyr.git")
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}
	src := source.FromGit(gitURL, source.Branch("feature/x"), "")

	paths, err := GetPackagePaths("/cache", src, "dplyr", rversion.Version{})
	if err != nil {
		t.Fatalf("GetPackagePaths: %v", err)
	}
	if filepath.Base(filepath.Dir(paths.Source)) == "feature/x" {
		t.Error("ref must be sanitized before use as a path segment")
	}
}

func TestPlatformSlug(t *testing.T) {
	target := platform.NewTarget("linux/amd64", "debian", "glibc")
	if got := PlatformSlug(target, "jammy"); got != "linux-amd64-jammy" {
		t.Errorf("PlatformSlug = %q", got)
	}
	if got := PlatformSlug(target, ""); got != "linux-amd64" {
		t.Errorf("PlatformSlug with no codename = %q", got)
	}
}

func TestLink_Copy(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "DESCRIPTION"), []byte("Package: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "lib", "x")

	if err := Link(src, dst, Copy); err != nil {
		t.Fatalf("Link: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "DESCRIPTION"))
	if err != nil {
		t.Fatalf("reading linked file: %v", err)
	}
	if string(got) != "Package: x\n" {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestLink_HardlinkSameDevice(t *testing.T) {
	// We cannot force an EXDEV in a unit test without a second filesystem,
	// so the cross-device fallback to Copy is not exercised here; this
	// checks that Hardlink on a same-device tree succeeds and produces
	// readable output (spec.md §4.6).
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.R"), []byte("1+1"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "lib", "x")

	if err := Link(src, dst, Hardlink); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "a.R")); err != nil {
		t.Errorf("expected linked file to exist: %v", err)
	}
}

func TestLink_SymlinkFallsBackToCopyOnWindows(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("fallback only triggers on windows")
	}
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.R"), []byte("1+1"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "lib", "x")

	if err := Link(src, dst, Symlink); err != nil {
		t.Fatalf("Link: %v", err)
	}
	info, err := os.Lstat(dst)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("expected a copied directory on windows, got a symlink")
	}
}

func TestParseLinkMode(t *testing.T) {
	cases := map[string]LinkMode{"copy": Copy, "": Copy, "hardlink": Hardlink, "symlink": Symlink}
	for in, want := range cases {
		got, err := ParseLinkMode(in)
		if err != nil {
			t.Fatalf("ParseLinkMode(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLinkMode(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseLinkMode("bogus"); err == nil {
		t.Error("expected error for unknown link mode")
	}
}

// Invariant 7 (spec.md §8): two concurrent builders for the same
// fingerprint execute the underlying build function at most once.
func TestBuilder_CoalescesConcurrentRequests(t *testing.T) {
	b := NewBuilder()
	fp := Fingerprint{SourceIdentity: "git:abc123", RVersion: "4.3.1", Platform: "linux-amd64"}

	var calls int64
	start := make(chan struct{})
	results := make(chan string, 8)

	for i := 0; i < 8; i++ {
		go func() {
			<-start
			path, _, err := b.Build(fp, func() (string, error) {
				atomic.AddInt64(&calls, 1)
				return "/cache/git/abc123/bin", nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			results <- path
		}()
	}
	close(start)

	for i := 0; i < 8; i++ {
		if got := <-results; got != "/cache/git/abc123/bin" {
			t.Errorf("result[%d] = %q", i, got)
		}
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("build function called %d times, want 1", n)
	}
}

func TestBuilder_DistinctFingerprintsRunIndependently(t *testing.T) {
	b := NewBuilder()
	fp1 := Fingerprint{SourceIdentity: "pkg-a"}
	fp2 := Fingerprint{SourceIdentity: "pkg-b"}

	var calls int64
	run := func(fp Fingerprint) {
		_, _, err := b.Build(fp, func() (string, error) {
			atomic.AddInt64(&calls, 1)
			return "ok", nil
		})
		if err != nil {
			t.Error(err)
		}
	}
	run(fp1)
	run(fp2)

	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Errorf("build function called %d times across distinct fingerprints, want 2", n)
	}
}
