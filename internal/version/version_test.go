package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if BuildTime == "" || GitCommit == "" {
		t.Error("build info should be initialized")
	}
}

func TestSoftware(t *testing.T) {
	got := Software()
	if !strings.HasPrefix(got, "warcbuilder ") {
		t.Errorf("Software() = %q, want warcbuilder prefix", got)
	}
	if !strings.HasSuffix(got, Version) {
		t.Errorf("Software() = %q, want version suffix %q", got, Version)
	}
}
