package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/a2-ai/rv/internal/rversion"
)

// GitRefKind discriminates the three ways a git source can pin a ref.
type GitRefKind uint8

const (
	RefBranch GitRefKind = iota
	RefTag
	RefCommit
)

// GitReference is one of Branch(name), Tag(name), or Commit(sha)
// (spec.md §3).
type GitReference struct {
	Kind  GitRefKind
	Value string
}

func Branch(name string) GitReference { return GitReference{Kind: RefBranch, Value: name} }
func Tag(name string) GitReference    { return GitReference{Kind: RefTag, Value: name} }
func Commit(sha string) GitReference  { return GitReference{Kind: RefCommit, Value: sha} }

func (r GitReference) String() string {
	switch r.Kind {
	case RefBranch:
		return "branch:" + r.Value
	case RefTag:
		return "tag:" + r.Value
	case RefCommit:
		return "commit:" + r.Value
	default:
		return "?"
	}
}

// Kind discriminates the four places a package can come from (spec.md §3).
type Kind uint8

const (
	KindRepository Kind = iota
	KindGit
	KindURL
	KindLocal
)

// Source is the tagged union describing where a resolved package's
// artifacts are fetched from.
type Source struct {
	Kind Kind

	// Repository fields, used when Kind == KindRepository.
	RepositoryAlias string
	RepositoryURL   string
	Name            string
	Version         rversion.Version

	// Git fields, used when Kind == KindGit.
	GitURL         GitURL
	GitReference   GitReference
	GitSubdir      string

	// Url fields, used when Kind == KindURL.
	URL string
	SHA string // optional sha256 hex digest; verified when present

	// Optional detached-PGP-signature verification, supplementing SHA.
	// SigKeyFingerprint pins the expected public key; all three fields
	// are set together, or none.
	SigURL            string
	SigKeyURL         string
	SigKeyFingerprint string

	// Local fields, used when Kind == KindLocal.
	Path string
}

// FromRepository builds a Source pointing at a named-repository index entry.
func FromRepository(alias, url, name string, version rversion.Version) Source {
	return Source{Kind: KindRepository, RepositoryAlias: alias, RepositoryURL: url, Name: name, Version: version}
}

// FromGit builds a Source pointing at a git remote.
func FromGit(url GitURL, ref GitReference, subdir string) Source {
	return Source{Kind: KindGit, GitURL: url, GitReference: ref, GitSubdir: subdir}
}

// FromURL builds a Source pointing at a direct archive download.
func FromURL(url, sha string) Source {
	return Source{Kind: KindURL, URL: url, SHA: sha}
}

// FromURLSigned builds a Source pointing at a direct archive download
// whose authenticity is further checked against a detached PGP signature.
func FromURLSigned(url, sha, sigURL, sigKeyURL, sigKeyFingerprint string) Source {
	return Source{
		Kind: KindURL, URL: url, SHA: sha,
		SigURL: sigURL, SigKeyURL: sigKeyURL, SigKeyFingerprint: sigKeyFingerprint,
	}
}

// FromLocal builds a Source pointing at an on-disk path.
func FromLocal(path string) Source {
	return Source{Kind: KindLocal, Path: path}
}

// AddressableURL returns the URL this source is cache-addressed by: the
// repository's own URL is supplied by the caller (repositories are keyed
// independently of any one package), git sources hash their GitURL's
// canonical string, and url sources hash the archive URL itself. Local
// sources have no cache address — they're never cached.
func (s Source) AddressableURL() (string, bool) {
	switch s.Kind {
	case KindRepository:
		return s.RepositoryURL, s.RepositoryURL != ""
	case KindGit:
		return s.GitURL.String(), true
	case KindURL:
		return s.URL, true
	default:
		return "", false
	}
}

// Hash returns the stable short hash of a canonical URL used to address
// per-repository and per-source cache directories (spec.md §4.1, §4.2:
// "hash(url) is a stable short hash of the canonical URL").
func Hash(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:16]
}

func (s Source) String() string {
	switch s.Kind {
	case KindRepository:
		return fmt.Sprintf("%s/%s@%s", s.RepositoryAlias, s.Name, s.Version)
	case KindGit:
		if s.GitSubdir != "" {
			return fmt.Sprintf("git:%s#%s:%s", s.GitURL, s.GitReference, s.GitSubdir)
		}
		return fmt.Sprintf("git:%s#%s", s.GitURL, s.GitReference)
	case KindURL:
		return "url:" + s.URL
	case KindLocal:
		return "local:" + s.Path
	default:
		return "?"
	}
}
