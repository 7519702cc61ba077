package manifest

import "testing"

const sampleManifest = `
[project]
name = "myproject"
r_version = "4.3.1"
use_lockfile = true

[[project.repositories]]
alias = "cran"
url = "https://cran.r-project.org"

[[project.repositories]]
alias = "bioc"
url = "https://bioconductor.org/packages/release/bioc"
force_source = true

[[project.dependencies]]
name = "dplyr"
version = ">=1.1.0"

[[project.dependencies]]
name = "ggplot2"

[[project.dependencies]]
name = "mypkg"
git = "https://github.com/user/mypkg.git"
tag = "v1.0.0"
install_suggestions = true

[[project.dependencies]]
name = "signedpkg"
url = "https://example.com/signedpkg_1.0.0.tar.gz"
sha = "deadbeef"
sig_url = "https://example.com/signedpkg_1.0.0.tar.gz.sig"
sig_key_url = "https://example.com/key.asc"
sig_key_fingerprint = "ABCD1234"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Project.Name != "myproject" {
		t.Errorf("Name = %q", p.Project.Name)
	}
	if p.Project.RVersion != "4.3.1" {
		t.Errorf("RVersion = %q", p.Project.RVersion)
	}
	if !p.Project.UseLockfile {
		t.Error("UseLockfile should be true")
	}
	if len(p.Project.Repositories) != 2 {
		t.Fatalf("Repositories = %d, want 2", len(p.Project.Repositories))
	}
	if p.Project.Repositories[1].ForceSource != true {
		t.Error("bioc repository should have ForceSource = true")
	}

	if len(p.Project.Dependencies) != 4 {
		t.Fatalf("Dependencies = %d, want 4", len(p.Project.Dependencies))
	}
	if p.Project.Dependencies[0].Name != "dplyr" || p.Project.Dependencies[0].Version != ">=1.1.0" {
		t.Errorf("dependency[0] = %+v", p.Project.Dependencies[0])
	}
	if p.Project.Dependencies[2].Git != "https://github.com/user/mypkg.git" || p.Project.Dependencies[2].Tag != "v1.0.0" {
		t.Errorf("dependency[2] = %+v", p.Project.Dependencies[2])
	}
	if !p.Project.Dependencies[2].InstallSuggestions {
		t.Error("dependency[2].InstallSuggestions should be true")
	}

	signed := p.Project.Dependencies[3]
	if signed.Name != "signedpkg" || signed.URL != "https://example.com/signedpkg_1.0.0.tar.gz" {
		t.Errorf("dependency[3] = %+v", signed)
	}
	if signed.Sha != "deadbeef" {
		t.Errorf("dependency[3].Sha = %q, want %q", signed.Sha, "deadbeef")
	}
	if signed.SigURL != "https://example.com/signedpkg_1.0.0.tar.gz.sig" {
		t.Errorf("dependency[3].SigURL = %q", signed.SigURL)
	}
	if signed.SigKeyURL != "https://example.com/key.asc" {
		t.Errorf("dependency[3].SigKeyURL = %q", signed.SigKeyURL)
	}
	if signed.SigKeyFingerprint != "ABCD1234" {
		t.Errorf("dependency[3].SigKeyFingerprint = %q", signed.SigKeyFingerprint)
	}
}

func TestParse_DuplicateAlias(t *testing.T) {
	text := `
[project]
name = "x"

[[project.repositories]]
alias = "cran"
url = "https://cran.r-project.org"

[[project.repositories]]
alias = "cran"
url = "https://other.example.org"
`
	if _, err := Parse([]byte(text)); err == nil {
		t.Error("Parse should reject duplicate repository aliases")
	}
}

func TestParse_MissingName(t *testing.T) {
	text := `
[project]
r_version = "4.3.1"
`
	if _, err := Parse([]byte(text)); err == nil {
		t.Error("Parse should reject missing project.name")
	}
}

func TestProject_Encode_RoundTrips(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	p2, err := Parse(encoded)
	if err != nil {
		t.Fatalf("re-Parse of encoded manifest: %v\n%s", err, encoded)
	}

	if p2.Project.Name != p.Project.Name {
		t.Errorf("Name mismatch after round-trip: %q != %q", p2.Project.Name, p.Project.Name)
	}
	if len(p2.Project.Dependencies) != len(p.Project.Dependencies) {
		t.Fatalf("Dependencies count mismatch: %d != %d", len(p2.Project.Dependencies), len(p.Project.Dependencies))
	}

	signed := p2.Project.Dependencies[3]
	want := p.Project.Dependencies[3]
	if signed.Sha != want.Sha {
		t.Errorf("Sha mismatch after round-trip: %q != %q", signed.Sha, want.Sha)
	}
	if signed.SigURL != want.SigURL {
		t.Errorf("SigURL mismatch after round-trip: %q != %q", signed.SigURL, want.SigURL)
	}
	if signed.SigKeyURL != want.SigKeyURL {
		t.Errorf("SigKeyURL mismatch after round-trip: %q != %q", signed.SigKeyURL, want.SigKeyURL)
	}
	if signed.SigKeyFingerprint != want.SigKeyFingerprint {
		t.Errorf("SigKeyFingerprint mismatch after round-trip: %q != %q", signed.SigKeyFingerprint, want.SigKeyFingerprint)
	}
}
