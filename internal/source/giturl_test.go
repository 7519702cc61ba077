package source

import "testing"

func TestParseGitURL_SSHVerbatim(t *testing.T) {
	raw := "git@github.com:user/repo.git"
	g, err := ParseGitURL(raw)
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}
	if g.Kind != GitURLSSH {
		t.Fatalf("Kind = %v, want GitURLSSH", g.Kind)
	}
	if g.String() != raw {
		t.Errorf("String() = %q, want verbatim %q (no ssh:// normalization)", g.String(), raw)
	}
}

func TestParseGitURL_HTTP(t *testing.T) {
	g, err := ParseGitURL("https://github.com/user/repo.git")
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}
	if g.Kind != GitURLHTTP {
		t.Fatalf("Kind = %v, want GitURLHTTP", g.Kind)
	}
	if g.String() != "https://github.com/user/repo.git" {
		t.Errorf("String() = %q", g.String())
	}
}

func TestParseGitURL_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-url"} {
		if _, err := ParseGitURL(s); err == nil {
			t.Errorf("ParseGitURL(%q) should error", s)
		}
	}
}

func TestGitURL_MarshalUnmarshalBinary_SSH(t *testing.T) {
	raw := "ssh@example.com:org/repo.git"
	g, err := ParseGitURL(raw)
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}

	data, err := g.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var g2 GitURL
	if err := g2.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if g2.Kind != GitURLSSH || g2.String() != raw {
		t.Errorf("round-trip = %+v, want SSH %q verbatim", g2, raw)
	}
}

func TestGitURL_MarshalUnmarshalBinary_HTTP(t *testing.T) {
	g, err := ParseGitURL("https://github.com/user/repo.git")
	if err != nil {
		t.Fatalf("ParseGitURL: %v", err)
	}

	data, err := g.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var g2 GitURL
	if err := g2.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if g2.Kind != GitURLHTTP || g2.String() != g.String() {
		t.Errorf("round-trip = %+v, want %+v", g2, g)
	}
}

func TestGitURL_GitHubOwnerRepo(t *testing.T) {
	tests := []struct {
		raw       string
		wantOwner string
		wantRepo  string
		wantOK    bool
	}{
		{"https://github.com/tidyverse/dplyr.git", "tidyverse", "dplyr", true},
		{"https://github.com/tidyverse/dplyr", "tidyverse", "dplyr", true},
		{"https://GitHub.com/tidyverse/dplyr/", "tidyverse", "dplyr", true},
		{"https://gitlab.com/tidyverse/dplyr.git", "", "", false},
		{"git@github.com:tidyverse/dplyr.git", "", "", false},
		{"https://github.com/just-one-segment", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			g, err := ParseGitURL(tt.raw)
			if err != nil {
				t.Fatalf("ParseGitURL: %v", err)
			}
			owner, repo, ok := g.GitHubOwnerRepo()
			if ok != tt.wantOK || owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("GitHubOwnerRepo() = (%q, %q, %v), want (%q, %q, %v)", owner, repo, ok, tt.wantOwner, tt.wantRepo, tt.wantOK)
			}
		})
	}
}
