package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestBuilderError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BuilderError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load config"),
			expected: "config (fatal): failed to load config: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := test.err.Error(); result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestBuilderError_WithContext(t *testing.T) {
	err := New(CategoryManifest, SeverityFatal, "binding").
		WithContext("row", "index.html").
		WithContext("file", "/tmp/a/index.html")

	if err.Context["row"] != "index.html" {
		t.Errorf("Context[row] = %v, want index.html", err.Context["row"])
	}
	if err.Context["file"] != "/tmp/a/index.html" {
		t.Errorf("Context[file] = %v", err.Context["file"])
	}
}

func TestIsCategory_Wrapped(t *testing.T) {
	conflict := ManifestBindingConflict("index.html", "/x/index.html", stdErrors.New("second match"))
	wrapped := fmt.Errorf("resolve: %w", conflict)

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"direct match", conflict, CategoryManifest, true},
		{"wrapped match", wrapped, CategoryManifest, true},
		{"other category", wrapped, CategoryInput, false},
		{"standard error", fmt.Errorf("plain"), CategoryManifest, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsCategory(test.err, test.category); got != test.expected {
				t.Errorf("IsCategory() = %v, want %v", got, test.expected)
			}
		})
	}

	if GetCategory(fmt.Errorf("plain")) != CategoryInternal {
		t.Error("plain errors should classify as internal")
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("InputNotFound", func(t *testing.T) {
		cause := fmt.Errorf("missing")
		err := InputNotFound("./foo", cause)
		if err.Category != CategoryInput || err.Severity != SeverityWarning {
			t.Errorf("unexpected classification %s/%s", err.Category, err.Severity)
		}
		if err.Fatal() {
			t.Error("invalid inputs must not be fatal")
		}
		if !stdErrors.Is(err, cause) {
			t.Error("cause should be reachable via errors.Is")
		}
	})

	t.Run("DetectorUnavailable", func(t *testing.T) {
		err := DetectorUnavailable("analysis", fmt.Errorf("connection refused"))
		if !err.Fatal() {
			t.Error("detector unavailability is fatal")
		}
		if err.Context["detector"] != "analysis" {
			t.Errorf("Context[detector] = %v", err.Context["detector"])
		}
	})

	t.Run("ValidationFailed", func(t *testing.T) {
		err := ValidationFailed("url_prefix", "required")
		if err.Category != CategoryValidation {
			t.Errorf("Category = %v, want %v", err.Category, CategoryValidation)
		}
		if err.Context["reason"] != "required" {
			t.Errorf("Context[reason] = %v", err.Context["reason"])
		}
	})
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{fmt.Errorf("plain"), 1},
		{ValidationFailed("x", "y"), 2},
		{ManifestBindingConflict("a", "b", nil), 4},
		{DetectorUnavailable("magic", nil), 5},
		{ConfigNotFound("c.yaml"), 7},
		{OutputExists("out.warc.gz", nil), 11},
		{fmt.Errorf("wrapped: %w", DetectorUnavailable("analysis", nil)), 5},
	}

	for _, tt := range tests {
		if got := a.ExitCodeFor(tt.err); got != tt.code {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logBuf, outBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	a := NewCLIErrorAdapter(false, logger)
	a.out = &outBuf

	code := a.Report(ManifestBindingConflict("index.html", "/b/index.html", fmt.Errorf("already bound")))
	if code != 4 {
		t.Errorf("Report() = %d, want 4", code)
	}
	if got := outBuf.String(); got != "manifest: manifest row matched more than one file: already bound\n" {
		t.Errorf("unexpected output %q", got)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("row=index.html")) {
		t.Errorf("expected row context in log, got %q", logBuf.String())
	}
}
