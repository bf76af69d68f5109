// Package derive produces the secondary records of a primary record: index
// revisits, conversions and transclusion metadata.
package derive

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
	"git.home.luguber.info/inful/warcbuilder/internal/record"
	"git.home.luguber.info/inful/warcbuilder/internal/source"
	"git.home.luguber.info/inful/warcbuilder/internal/warc"
)

// TransclusionContentType is the content type of transclusion metadata records.
const TransclusionContentType = "application/vnd.youtube-dl_formats+json"

// EmbedsScheme prefixes the target URI of transclusion metadata records.
const EmbedsScheme = "urn:embeds:"

// Primary is a written primary record.
type Primary struct {
	Handle      *record.Handle
	ContentType string // full WARC Content-Type of the primary
	SourcePath  string
}

// Sink writes derived records. Conversions go through WriteItem so they get
// the same filtering and resolution as enumerated files, and refer to the
// primary through ref.
type Sink interface {
	WriteDerived(ctx context.Context, r record.Record, ref *record.Handle, sourcePath string) (*record.Handle, error)
	WriteRecord(ctx context.Context, r record.Record, sourcePath string) (*record.Handle, error)
	WriteItem(ctx context.Context, item *source.FileItem, kind record.Kind, headers []record.Header, ref *record.Handle) (*record.Handle, error)
}

// Options configures an Engine. Every rule is optional.
type Options struct {
	IndexFiles    []string
	Conversions   *ConversionIndex
	Transclusions *TransclusionIndex
	Now           func() time.Time
}

// Engine applies the derivation rules in a fixed order: index revisit,
// conversions, transclusions.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}
}

// Derive writes the derived records of p through sink.
func (e *Engine) Derive(ctx context.Context, p Primary, sink Sink) error {
	if err := e.indexRevisit(ctx, p, sink); err != nil {
		return err
	}
	if err := e.conversions(ctx, p, sink); err != nil {
		return err
	}
	return e.transclusions(ctx, p, sink)
}

// IndexURL returns the directory URL of u when its last path segment is
// one of the index filenames (case-insensitive).
func (e *Engine) IndexURL(u string) (string, bool) {
	i := strings.LastIndexByte(u, '/')
	if i < 0 {
		return "", false
	}
	last := u[i+1:]
	for _, name := range e.opts.IndexFiles {
		if strings.EqualFold(last, name) {
			return u[:i+1], true
		}
	}
	return "", false
}

func (e *Engine) indexRevisit(ctx context.Context, p Primary, sink Sink) error {
	indexURL, ok := e.IndexURL(p.Handle.TargetURI)
	if !ok {
		return nil
	}
	slog.Debug("Adding index revisit", logfields.URL(indexURL), slog.String("refers_to", p.Handle.TargetURI))

	r := record.Record{
		Kind:      record.KindRevisit,
		TargetURI: indexURL,
		Date:      p.Handle.Date,
	}
	if p.Handle.SourceURI != "" {
		r.Headers = append(r.Headers, record.Header{Name: record.HeaderSourceURI, Value: p.Handle.SourceURI})
	}
	if p.Handle.CreationDate != "" {
		r.Headers = append(r.Headers, record.Header{Name: record.HeaderCreationDate, Value: p.Handle.CreationDate})
	}
	_, err := sink.WriteDerived(ctx, r, p.Handle, p.SourcePath)
	return err
}

// successful returns the successful conversions for url, optionally
// warning about the others.
func (e *Engine) successful(url string, warn bool) []Conversion {
	var out []Conversion
	for _, c := range e.opts.Conversions.Lookup(url) {
		if !c.Success {
			if warn {
				slog.Warn("Skipping unsuccessful conversion", logfields.URL(url), logfields.File(c.Output))
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (e *Engine) conversions(ctx context.Context, p Primary, sink Sink) error {
	for _, c := range e.successful(p.Handle.TargetURI, true) {
		item, err := source.NewItem(c.URL, c.Output)
		if err != nil {
			slog.Warn("Skipping conversion without output", logfields.URL(c.URL), logfields.File(c.Output), logfields.Error(err))
			continue
		}
		var headers []record.Header
		if len(c.Metadata) > 0 {
			meta, err := json.Marshal(c.Metadata)
			if err != nil {
				return err
			}
			headers = append(headers, record.Header{Name: record.HeaderJSONMetadata, Value: string(meta)})
		}
		kind := record.KindConversion
		if c.Type != "" {
			kind = record.Kind(c.Type)
		}
		if _, err := sink.WriteItem(ctx, item, kind, headers, p.Handle); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) transclusions(ctx context.Context, p Primary, sink Sink) error {
	url := p.Handle.TargetURI
	for _, tc := range e.opts.Transclusions.Lookup(url) {
		if tc.URL == "" {
			slog.Warn("Skipping transclusion without url", logfields.URL(url))
			continue
		}

		ts := string(tc.Timestamp)
		if ts == "" {
			ts = e.opts.Now().UTC().Format("20060102150405")
		}
		date, err := config.ParseTimestamp(ts)
		if err != nil {
			slog.Warn("Invalid transclusion timestamp, using now", logfields.URL(tc.URL), logfields.Timestamp(ts))
			date = e.opts.Now().UTC().Truncate(time.Second)
		}

		payload, err := e.transclusionPayload(tc, ts, p)
		if err != nil {
			slog.Warn("Skipping transclusion", logfields.URL(tc.URL), logfields.Error(err))
			continue
		}

		r := record.Record{
			Kind:        record.KindResource,
			TargetURI:   EmbedsScheme + tc.URL,
			Date:        date,
			ContentType: TransclusionContentType,
			Headers: []record.Header{
				{Name: record.HeaderCreationDate, Value: e.opts.Now().UTC().Format(warc.DateFormat)},
			},
			Payload: record.Bytes(payload),
		}
		slog.Debug("Writing transclusion metadata", logfields.URL(r.TargetURI))
		if _, err := sink.WriteRecord(ctx, r, ""); err != nil {
			return err
		}
	}
	return nil
}

// transclusionPayload builds the formats document:
//
//	{webpage_url, webpage_timestamp, selector?, formats}
//
// where formats lists the successful conversions followed by the original.
func (e *Engine) transclusionPayload(tc Transclusion, ts string, p Primary) ([]byte, error) {
	if tc.MetadataFile != "" {
		return os.ReadFile(tc.MetadataFile)
	}

	url := p.Handle.TargetURI
	formats := make([]map[string]any, 0)
	for _, c := range e.successful(url, false) {
		f := make(map[string]any, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			f[k] = v
		}
		f["url"] = c.URL
		f["original_url"] = url
		formats = append(formats, f)
	}
	orig := map[string]any{
		"url":      url,
		"ext":      url[strings.LastIndexByte(url, '.')+1:],
		"original": true,
	}
	if p.ContentType != "" {
		orig["mime"] = p.ContentType
	}
	formats = append(formats, orig)

	doc := map[string]any{
		"webpage_url":       tc.URL,
		"webpage_timestamp": ts,
		"formats":           formats,
	}
	if tc.Selector != "" {
		doc["selector"] = tc.Selector
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
