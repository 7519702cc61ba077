package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a2-ai/rv/internal/manifest"
	"github.com/a2-ai/rv/internal/source"
)

func TestFromManifest_URLOverridePropagatesSHA(t *testing.T) {
	d := manifest.Dependency{
		Name: "mypkg",
		URL:  "https://example.com/mypkg_1.0.0.tar.gz",
		Sha:  "deadbeef",
	}

	decl, err := FromManifest(d)
	require.NoError(t, err)
	require.NotNil(t, decl.Override)
	require.Equal(t, source.KindURL, decl.Override.Kind)
	require.Equal(t, "deadbeef", decl.Override.SHA, "manifest sha must reach the Source override, not be dropped")
	require.Empty(t, decl.Override.SigURL)
}

func TestFromManifest_URLOverridePropagatesSignatureFields(t *testing.T) {
	d := manifest.Dependency{
		Name:              "mypkg",
		URL:               "https://example.com/mypkg_1.0.0.tar.gz",
		Sha:               "deadbeef",
		SigURL:            "https://example.com/mypkg_1.0.0.tar.gz.sig",
		SigKeyURL:         "https://example.com/key.asc",
		SigKeyFingerprint: "ABCD1234",
	}

	decl, err := FromManifest(d)
	require.NoError(t, err)
	require.NotNil(t, decl.Override)
	require.Equal(t, "deadbeef", decl.Override.SHA)
	require.Equal(t, d.SigURL, decl.Override.SigURL)
	require.Equal(t, d.SigKeyURL, decl.Override.SigKeyURL)
	require.Equal(t, d.SigKeyFingerprint, decl.Override.SigKeyFingerprint)
}

func TestFromManifest_GitOverride(t *testing.T) {
	d := manifest.Dependency{
		Name: "mypkg",
		Git:  "https://github.com/user/mypkg.git",
		Tag:  "v1.0.0",
	}

	decl, err := FromManifest(d)
	require.NoError(t, err)
	require.NotNil(t, decl.Override)
	require.Equal(t, source.KindGit, decl.Override.Kind)
	require.Equal(t, source.Tag("v1.0.0"), decl.Override.GitReference)
}

func TestFromManifest_NoOverride(t *testing.T) {
	d := manifest.Dependency{Name: "mypkg", Version: ">=1.0.0"}

	decl, err := FromManifest(d)
	require.NoError(t, err)
	require.Nil(t, decl.Override)
}
