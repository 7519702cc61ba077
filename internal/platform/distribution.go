package platform

import "fmt"

// Distribution is a named shorthand for a full Target tuple, so callers of
// the CLI's --distribution flag don't have to spell out os/arch/family/libc
// by hand. Adapted from the original rv tool's Distribution enum
// (original_source/src/plan.rs), which offers the same five presets.
type Distribution string

const (
	DistributionMac     Distribution = "mac"
	DistributionWindows Distribution = "windows"
	DistributionFocal   Distribution = "focal"  // Ubuntu 20.04
	DistributionJammy   Distribution = "jammy"  // Ubuntu 22.04
	DistributionNoble   Distribution = "noble"  // Ubuntu 24.04
)

// ValidDistributions lists the recognized --distribution values, in the
// order they should be presented in CLI help text.
var ValidDistributions = []Distribution{
	DistributionMac,
	DistributionWindows,
	DistributionFocal,
	DistributionJammy,
	DistributionNoble,
}

// ubuntuCodenames maps each Ubuntu preset to its VERSION_ID and codename, as
// they'd appear in /etc/os-release on that release.
var ubuntuCodenames = map[Distribution]struct {
	versionID string
	codename  string
}{
	DistributionFocal: {versionID: "20.04", codename: "focal"},
	DistributionJammy: {versionID: "22.04", codename: "jammy"},
	DistributionNoble: {versionID: "24.04", codename: "noble"},
}

// Target resolves a Distribution preset to a concrete Target tuple. Ubuntu
// presets always resolve to amd64/debian/glibc; Mac and Windows carry no
// linux_family or libc. Architecture selection beyond amd64 is left to the
// caller via NewTarget for presets this table doesn't cover.
func (d Distribution) Target() (Target, error) {
	switch d {
	case DistributionMac:
		return NewTarget("darwin/arm64", "", ""), nil
	case DistributionWindows:
		return NewTarget("windows/amd64", "", ""), nil
	case DistributionFocal, DistributionJammy, DistributionNoble:
		return NewTarget("linux/amd64", "debian", "glibc"), nil
	default:
		return Target{}, fmt.Errorf("unknown distribution preset: %q", d)
	}
}

// Codename returns the /etc/os-release VERSION_CODENAME this preset
// impersonates, or "" for non-Ubuntu presets.
func (d Distribution) Codename() string {
	if c, ok := ubuntuCodenames[d]; ok {
		return c.codename
	}
	return ""
}

// VersionID returns the /etc/os-release VERSION_ID this preset impersonates,
// or "" for non-Ubuntu presets.
func (d Distribution) VersionID() string {
	if c, ok := ubuntuCodenames[d]; ok {
		return c.versionID
	}
	return ""
}

// ParseDistribution validates a --distribution flag value.
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(s)
	for _, v := range ValidDistributions {
		if v == d {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid distribution %q, want one of %v", s, ValidDistributions)
}
