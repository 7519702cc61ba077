package platform

import "testing"

func TestDistribution_Target(t *testing.T) {
	tests := []struct {
		dist     Distribution
		platform string
		family   string
		libc     string
	}{
		{DistributionMac, "darwin/arm64", "", ""},
		{DistributionWindows, "windows/amd64", "", ""},
		{DistributionFocal, "linux/amd64", "debian", "glibc"},
		{DistributionJammy, "linux/amd64", "debian", "glibc"},
		{DistributionNoble, "linux/amd64", "debian", "glibc"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dist), func(t *testing.T) {
			target, err := tt.dist.Target()
			if err != nil {
				t.Fatalf("Target() error: %v", err)
			}
			if target.Platform != tt.platform {
				t.Errorf("Platform = %q, want %q", target.Platform, tt.platform)
			}
			if target.LinuxFamily() != tt.family {
				t.Errorf("LinuxFamily() = %q, want %q", target.LinuxFamily(), tt.family)
			}
			if target.Libc() != tt.libc {
				t.Errorf("Libc() = %q, want %q", target.Libc(), tt.libc)
			}
		})
	}
}

func TestDistribution_Codename(t *testing.T) {
	if got := DistributionJammy.Codename(); got != "jammy" {
		t.Errorf("Codename() = %q, want %q", got, "jammy")
	}
	if got := DistributionMac.Codename(); got != "" {
		t.Errorf("Codename() = %q, want empty", got)
	}
}

func TestParseDistribution(t *testing.T) {
	if _, err := ParseDistribution("jammy"); err != nil {
		t.Errorf("ParseDistribution(jammy) error: %v", err)
	}
	if _, err := ParseDistribution("bullseye"); err == nil {
		t.Error("ParseDistribution(bullseye) should error")
	}
}
