package config

import (
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

// Validate checks the merged configuration. It returns a validation
// BuilderError naming the first offending field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URLPrefix) == "" {
		return derrors.ValidationFailed("url_prefix", "required")
	}
	if len(c.Inputs) == 0 {
		return derrors.ValidationFailed("inputs", "at least one input is required")
	}
	for i, in := range c.Inputs {
		if strings.TrimSpace(in) == "" {
			return derrors.ValidationFailed("inputs", "input "+strconv.Itoa(i)+" is empty")
		}
	}

	if _, err := writeModeNormalizer.NormalizeWithError(string(c.Output.Mode)); err != nil {
		return derrors.ValidationFailed("output.mode", err.Error())
	}
	if _, err := detectorNormalizer.NormalizeWithError(string(c.Detection.Detector)); err != nil {
		return derrors.ValidationFailed("detection.detector", err.Error())
	}

	if _, err := ParseMimeOverrides(c.Detection.MimeOverrides); err != nil {
		return derrors.ValidationFailed("detection.mime_overrides", err.Error())
	}
	for _, p := range append(append([]string(nil), c.Filtering.Include...), c.Filtering.Exclude...) {
		if _, err := glob.Compile(strings.ToLower(p)); err != nil {
			return derrors.ValidationFailed("filtering", "bad pattern "+p+": "+err.Error())
		}
	}

	if c.FixedDate != "" {
		if _, err := ParseTimestamp(c.FixedDate); err != nil {
			return derrors.ValidationFailed("fixed_date", err.Error())
		}
	}

	if c.Detection.UsesAnalysis() && c.Detection.AnalysisURL == "" {
		return derrors.ValidationFailed("detection.analysis_url", "required when the analysis service is used")
	}
	return nil
}
