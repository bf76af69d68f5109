// Package resolve determines the target URL, date, content type and charset
// of each item.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/detect"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/filter"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
	"git.home.luguber.info/inful/warcbuilder/internal/manifest"
	"git.home.luguber.info/inful/warcbuilder/internal/source"
)

// DefaultMediaType is used when nothing else yields a type.
const DefaultMediaType = "text/html"

// Options configures a Resolver. Zero values disable the corresponding source.
type Options struct {
	Manifest     *manifest.Manifest
	Overrides    []config.MimeOverride
	Detector     detect.TypeDetector
	NoXHTML      bool
	CharsetMode  config.CharsetMode
	FixedCharset string
	Charset      detect.CharsetDetector // used with config.CharsetDetect
	Analyzer     *detect.Analyzer       // used with config.CharsetAnalysis
	FixedDate    *time.Time
}

// Resolution is the outcome of resolving one item.
type Resolution struct {
	TargetURL string
	Date      time.Time
	MediaType string
	Charset   string
	Row       *manifest.Row
}

// ContentType returns the WARC Content-Type value: the media type plus a
// charset parameter when one was resolved.
func (r Resolution) ContentType() string {
	if r.Charset == "" {
		return r.MediaType
	}
	return r.MediaType + "; charset=" + r.Charset
}

// Resolver applies the precedence rules. It is not safe for concurrent use:
// manifest binding is stateful.
type Resolver struct {
	opts      Options
	overrides *filter.Patterns
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	patterns := make([]string, len(opts.Overrides))
	for i, o := range opts.Overrides {
		patterns[i] = o.Pattern
	}
	compiled, err := filter.Compile(patterns, false)
	if err != nil {
		return nil, derrors.ValidationFailed("mime_overrides", err.Error())
	}
	if opts.Detector == nil {
		opts.Detector = detect.FilenameDetector{}
	}
	return &Resolver{opts: opts, overrides: compiled}, nil
}

// Resolve binds the item to its manifest row and resolves its metadata. The
// item's ResolvedType, ResolvedCharset and ManifestOverride are updated. A
// manifest row matching a second item is a fatal ManifestBindingConflict.
func (r *Resolver) Resolve(ctx context.Context, item *source.FileItem) (Resolution, error) {
	row, err := r.opts.Manifest.Bind(item.SourcePath())
	if err != nil {
		if errors.Is(err, manifest.ErrBindingConflict) {
			return Resolution{}, derrors.ManifestBindingConflict(row.File, item.SourcePath(), err)
		}
		return Resolution{}, err
	}
	item.ManifestOverride = row

	in := detect.Input{URL: item.URL, Key: item.SourcePath(), Source: item}

	res := Resolution{TargetURL: item.URL, Row: row}
	res.MediaType = r.mediaType(ctx, in, row)
	res.Charset = r.charset(ctx, in, row, res.MediaType)
	res.Date = r.date(item, row)
	if row != nil && row.URL != "" {
		res.TargetURL = row.URL
	}

	item.ResolvedType = res.MediaType
	item.ResolvedCharset = res.Charset
	return res, nil
}

// Unbound returns the manifest rows that matched no item so far.
func (r *Resolver) Unbound() []manifest.Row {
	return r.opts.Manifest.Unbound()
}

func (r *Resolver) mediaType(ctx context.Context, in detect.Input, row *manifest.Row) string {
	mt := r.rawMediaType(ctx, in, row)
	if r.opts.NoXHTML && mt == "application/xhtml+xml" {
		mt = "text/html"
	}
	return mt
}

func (r *Resolver) rawMediaType(ctx context.Context, in detect.Input, row *manifest.Row) string {
	if mt, _ := row.MediaType(); mt != "" {
		return mt
	}
	if i := r.overrides.Match(in.URL); i >= 0 {
		return r.opts.Overrides[i].ContentType
	}
	mt, err := r.opts.Detector.DetectType(ctx, in)
	if err != nil {
		slog.Warn("Content type detection failed", logfields.URL(in.URL),
			logfields.Detector(r.opts.Detector.Name()), logfields.Error(err))
	}
	if mt == "" {
		return DefaultMediaType
	}
	return mt
}

func (r *Resolver) charset(ctx context.Context, in detect.Input, row *manifest.Row, mediaType string) string {
	if !strings.HasPrefix(mediaType, "text/") {
		return ""
	}
	if _, cs := row.MediaType(); cs != "" {
		return cs
	}

	switch r.opts.CharsetMode {
	case config.CharsetFixed:
		return r.opts.FixedCharset

	case config.CharsetDetect:
		if r.opts.Charset == nil {
			return ""
		}
		cs, err := r.opts.Charset.DetectCharset(ctx, in, mediaType)
		if err != nil {
			slog.Warn("Charset detection failed", logfields.URL(in.URL), logfields.Error(err))
			return ""
		}
		// Plain ASCII usually means no charset was declared; leave it to the reader.
		if strings.EqualFold(cs.Name, detect.ASCII) {
			return ""
		}
		return cs.Name

	case config.CharsetAnalysis:
		if r.opts.Analyzer == nil {
			return ""
		}
		res, err := r.opts.Analyzer.Analyze(ctx, in)
		if err != nil {
			slog.Debug("Charset analysis failed", logfields.URL(in.URL), logfields.Error(err))
			return ""
		}
		// These are the service's fallbacks for undeclared 8-bit text.
		if isDefaultEncoding(res.Encoding) && !res.HasTypeHint {
			return ""
		}
		return res.Encoding
	}
	return ""
}

func isDefaultEncoding(enc string) bool {
	return strings.EqualFold(enc, "windows-1252") || strings.EqualFold(enc, "ISO-8859-1")
}

func (r *Resolver) date(item *source.FileItem, row *manifest.Row) time.Time {
	if row != nil && row.Timestamp != "" {
		ts, err := config.ParseTimestamp(row.Timestamp)
		if err == nil {
			return ts
		}
		slog.Warn("Ignoring invalid manifest timestamp", logfields.File(item.SourcePath()),
			logfields.Timestamp(row.Timestamp), logfields.Error(err))
	}
	if r.opts.FixedDate != nil {
		return *r.opts.FixedDate
	}
	return item.ModifiedAt.UTC()
}
