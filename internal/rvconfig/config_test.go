package rvconfig

import (
	"testing"
	"time"
)

func TestCacheRoot_EnvOverride(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/rv-cache-test")

	got, err := CacheRoot()
	if err != nil {
		t.Fatalf("CacheRoot: %v", err)
	}
	if got != "/tmp/rv-cache-test" {
		t.Errorf("CacheRoot() = %q, want %q", got, "/tmp/rv-cache-test")
	}
}

func TestCacheRoot_DefaultUsesProductName(t *testing.T) {
	t.Setenv(EnvCacheDir, "")

	got, err := CacheRoot()
	if err != nil {
		t.Fatalf("CacheRoot: %v", err)
	}
	if got == "" {
		t.Fatal("CacheRoot() returned empty string")
	}
}

func TestHTTPTimeout_Default(t *testing.T) {
	t.Setenv(EnvHTTPTimeout, "")
	if got := HTTPTimeout(); got != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout() = %v, want %v", got, DefaultHTTPTimeout)
	}
}

func TestHTTPTimeout_Override(t *testing.T) {
	t.Setenv(EnvHTTPTimeout, "5s")
	if got := HTTPTimeout(); got != 5*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 5s", got)
	}
}

func TestHTTPTimeout_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvHTTPTimeout, "not-a-duration")
	if got := HTTPTimeout(); got != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout() = %v, want %v", got, DefaultHTTPTimeout)
	}
}

func TestCompileTimeout_UnsetIsZero(t *testing.T) {
	t.Setenv(EnvCompileTimeout, "")
	if got := CompileTimeout(); got != 0 {
		t.Errorf("CompileTimeout() = %v, want 0", got)
	}
}

func TestCompileJobs_Fallback(t *testing.T) {
	if got := CompileJobs("RV_TEST_JOBS_UNSET", 4); got != 4 {
		t.Errorf("CompileJobs() = %d, want 4", got)
	}
}

func TestCompileJobs_Override(t *testing.T) {
	t.Setenv("RV_TEST_JOBS", "8")
	if got := CompileJobs("RV_TEST_JOBS", 4); got != 8 {
		t.Errorf("CompileJobs() = %d, want 8", got)
	}
}
