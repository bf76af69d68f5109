package config

import (
	"fmt"
	"strings"
)

// MimeOverride maps a URL pattern (exact or wildcard) to a content type.
type MimeOverride struct {
	Pattern     string
	ContentType string
}

// ParseMimeOverrides parses "pattern=mime" entries, keeping their order.
// The first '=' separates the two halves so the content type may carry
// parameters.
func ParseMimeOverrides(entries []string) ([]MimeOverride, error) {
	out := make([]MimeOverride, 0, len(entries))
	for _, e := range entries {
		pattern, mime, ok := strings.Cut(e, "=")
		pattern, mime = strings.TrimSpace(pattern), strings.TrimSpace(mime)
		if !ok || pattern == "" || mime == "" {
			return nil, fmt.Errorf("override %q is not of the form pattern=mime", e)
		}
		out = append(out, MimeOverride{Pattern: pattern, ContentType: mime})
	}
	return out, nil
}

// SplitList splits a comma separated flag value, dropping empty elements.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
