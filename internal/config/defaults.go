package config

import (
	"fmt"
	"strings"
	"time"
)

// Default values.
const (
	DefaultAnalysisURL     = "http://localhost:9998"
	DefaultAnalysisTimeout = 30 * time.Second
	DefaultAnalysisCache   = 256
	DefaultRetryDelay      = time.Second
	DefaultRetryMaxDelay   = 30 * time.Second
)

// DefaultIndexFiles are the filenames that get an index revisit record when
// the configuration does not name any.
var DefaultIndexFiles = []string{"index.html", "index.htm"}

// ApplyDefaults fills unset fields and canonicalizes enumerated values.
// Unknown enum spellings are reported as errors.
func (c *Config) ApplyDefaults() error {
	var err error

	if strings.TrimSpace(string(c.Output.Mode)) == "" {
		c.Output.Mode = WriteModeCreate
	} else if c.Output.Mode, err = writeModeNormalizer.NormalizeWithError(string(c.Output.Mode)); err != nil {
		return fmt.Errorf("output.mode: %w", err)
	}

	if strings.TrimSpace(string(c.Detection.Detector)) == "" {
		c.Detection.Detector = DetectorFilename
	} else if c.Detection.Detector, err = detectorNormalizer.NormalizeWithError(string(c.Detection.Detector)); err != nil {
		return fmt.Errorf("detection.detector: %w", err)
	}

	if c.Derivation.IndexFiles == nil {
		c.Derivation.IndexFiles = append([]string(nil), DefaultIndexFiles...)
	}

	if c.Detection.UsesAnalysis() && c.Detection.AnalysisURL == "" {
		c.Detection.AnalysisURL = DefaultAnalysisURL
	}
	if c.Detection.AnalysisTimeout <= 0 {
		c.Detection.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if c.Detection.AnalysisCache <= 0 {
		c.Detection.AnalysisCache = DefaultAnalysisCache
	}

	r := &c.Detection.AnalysisRetry
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	r.Backoff = NormalizeRetryBackoff(string(r.Backoff))
	if r.InitialDelay <= 0 {
		r.InitialDelay = DefaultRetryDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultRetryMaxDelay
	}

	c.Log.Level = NormalizeLogLevel(string(c.Log.Level))
	c.Log.Format = NormalizeLogFormat(string(c.Log.Format))
	return nil
}
