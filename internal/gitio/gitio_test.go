package gitio

import (
	"context"
	"errors"
	"testing"
)

func TestFake_RevParseShortHEAD(t *testing.T) {
	f := NewFake()
	f.Responses["rev-parse --short HEAD"] = "abc1234"

	sha, err := RevParseShortHEAD(context.Background(), f, "/repo")
	if err != nil {
		t.Fatalf("RevParseShortHEAD: %v", err)
	}
	if sha != "abc1234" {
		t.Errorf("sha = %q, want %q", sha, "abc1234")
	}
	if len(f.Calls) != 1 || f.Calls[0].Dir != "/repo" {
		t.Errorf("call not recorded correctly: %+v", f.Calls)
	}
}

func TestFake_TagsAtHEAD_Empty(t *testing.T) {
	f := NewFake()
	f.Responses["tag --points-at HEAD"] = ""

	tags, err := TagsAtHEAD(context.Background(), f, "/repo")
	if err != nil {
		t.Fatalf("TagsAtHEAD: %v", err)
	}
	if tags != nil {
		t.Errorf("tags = %v, want nil", tags)
	}
}

func TestFake_TagsAtHEAD_Multiple(t *testing.T) {
	f := NewFake()
	f.Responses["tag --points-at HEAD"] = "v1.0.0\nv1.0.0-alias"

	tags, err := TagsAtHEAD(context.Background(), f, "/repo")
	if err != nil {
		t.Fatalf("TagsAtHEAD: %v", err)
	}
	if len(tags) != 2 || tags[0] != "v1.0.0" || tags[1] != "v1.0.0-alias" {
		t.Errorf("tags = %v", tags)
	}
}

func TestFake_IsClean(t *testing.T) {
	f := NewFake()
	f.Responses["status --porcelain"] = ""

	clean, err := IsClean(context.Background(), f, "/repo")
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("expected clean working tree")
	}
}

func TestFake_UnregisteredCommandErrors(t *testing.T) {
	f := NewFake()
	_, err := RevParseShortHEAD(context.Background(), f, "/repo")
	if err == nil {
		t.Fatal("expected error for unregistered command")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("expected *CommandError, got %T", err)
	}
}

func TestFake_RegisteredError(t *testing.T) {
	f := NewFake()
	f.Errors["clone https://example.com/repo.git /tmp/x"] = errors.New("repository not found")

	err := Clone(context.Background(), f, "https://example.com/repo.git", "/tmp/x")
	if err == nil || err.Error() != "repository not found" {
		t.Errorf("err = %v, want %q", err, "repository not found")
	}
}
