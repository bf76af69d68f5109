// Package detect provides the pluggable content-type and charset detectors.
package detect

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrDetectorUnavailable indicates a detector could not be initialized.
	ErrDetectorUnavailable = errors.New("detector unavailable")

	// ErrAnalysisFailed indicates the analysis service returned an error for one item.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Opener opens the bytes to inspect. It may be called more than once.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// Input is what a detector sees of an item.
type Input struct {
	URL    string
	Key    string // stable identity, used for caching (the source path)
	Source Opener
}

// TypeDetector guesses a media type. An empty result means no opinion.
type TypeDetector interface {
	Name() string
	DetectType(ctx context.Context, in Input) (string, error)
}

// Charset is a statistical charset guess.
type Charset struct {
	Name       string
	Confidence float64
}

// CharsetDetector guesses the charset of text content.
type CharsetDetector interface {
	DetectCharset(ctx context.Context, in Input, mediaType string) (Charset, error)
}

// MediaType strips parameters and lowercases a content type value.
func MediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func readPrefix(in Input, limit int64) ([]byte, error) {
	rc, err := in.Source.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit))
}
