package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/derive"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/filter"
	"git.home.luguber.info/inful/warcbuilder/internal/itemlog"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
	"git.home.luguber.info/inful/warcbuilder/internal/metrics"
	"git.home.luguber.info/inful/warcbuilder/internal/record"
	"git.home.luguber.info/inful/warcbuilder/internal/resolve"
	"git.home.luguber.info/inful/warcbuilder/internal/source"
	"git.home.luguber.info/inful/warcbuilder/internal/warc"
)

// AssemblerOptions holds the collaborators of an Assembler. Nil fields get
// neutral defaults: no filtering, filename detection only, no derivation,
// no item log and no metrics.
type AssemblerOptions struct {
	Filter   *filter.Chain
	Resolver *resolve.Resolver
	Engine   *derive.Engine
	ItemLog  *itemlog.Log
	Recorder metrics.Recorder
	Now      func() time.Time
}

// AssembleRequest describes one assembly.
type AssembleRequest struct {
	URLPrefix string
	Inputs    []string
	Archive   string       // used for the summary
	Info      *record.Info // nil skips the warcinfo record
}

// Assembler writes the records of a run in enumeration order. It is not
// reentrant: one Assembler writes one archive.
type Assembler struct {
	writer   record.Writer
	filter   *filter.Chain
	resolver *resolve.Resolver
	engine   *derive.Engine
	itemLog  *itemlog.Log
	recorder metrics.Recorder
	now      func() time.Time

	records int
	items   int
	skipped int
}

var _ derive.Sink = (*Assembler)(nil)

// NewAssembler creates an Assembler writing to w.
func NewAssembler(w record.Writer, opts AssemblerOptions) *Assembler {
	a := &Assembler{
		writer:   w,
		filter:   opts.Filter,
		resolver: opts.Resolver,
		engine:   opts.Engine,
		itemLog:  opts.ItemLog,
		recorder: opts.Recorder,
		now:      opts.Now,
	}
	if a.resolver == nil {
		// Without overrides New cannot fail.
		a.resolver, _ = resolve.New(resolve.Options{})
	}
	if a.engine == nil {
		a.engine = derive.NewEngine(derive.Options{})
	}
	if a.recorder == nil {
		a.recorder = metrics.NoopRecorder{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run executes Init, the optional warcinfo record, the per-item loop and
// Finalize. Invalid inputs are reported in the Result; a manifest binding
// conflict or a write failure aborts the run. Cancellation is honoured at
// item boundaries.
func (a *Assembler) Run(ctx context.Context, req AssembleRequest) (*Result, error) {
	start := time.Now()
	res := &Result{Archive: req.Archive, StartTime: start}

	finish := func(status Status, err error) (*Result, error) {
		res.Status = status
		res.Records = a.records
		res.Items = a.items
		res.Skipped = a.skipped
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(start)
		a.recorder.ObserveRunDuration(res.Duration)
		a.recorder.IncRunOutcome(outcomeFor(status))
		return res, err
	}

	if req.Info != nil {
		if _, err := a.writer.BeginArchive(ctx, *req.Info); err != nil {
			return finish(statusFor(ctx), derrors.ArchiveWriteFailed("warcinfo", err))
		}
		a.recorder.IncRecord(string(record.KindWarcinfo))
	}

	enum := source.NewEnumerator(req.URLPrefix)
	for item := range enum.Items(ctx, req.Inputs) {
		if ctx.Err() != nil {
			break
		}
		itemStart := time.Now()
		err := a.processItem(ctx, item)
		a.recorder.ObserveItemDuration(time.Since(itemStart))
		if err != nil {
			res.Invalid = enum.Invalid()
			return finish(statusFor(ctx), err)
		}
	}

	res.Invalid = enum.Invalid()
	for range res.Invalid {
		a.recorder.IncInvalidInput()
	}
	if err := ctx.Err(); err != nil {
		slog.Warn("Assembly cancelled", logfields.Count(a.records), logfields.Archive(req.Archive))
		return finish(StatusCancelled, err)
	}

	slog.Info(fmt.Sprintf("Wrote %d resources to %s", a.records, req.Archive),
		logfields.Count(a.records), logfields.Archive(req.Archive),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	if len(res.Invalid) > 0 {
		return finish(StatusWarning, nil)
	}
	return finish(StatusSuccess, nil)
}

// processItem writes the primary record of item and its derived records.
func (a *Assembler) processItem(ctx context.Context, item *source.FileItem) error {
	h, ct, err := a.writeItem(ctx, item, record.KindResource, nil, nil)
	if err != nil || h == nil {
		return err
	}
	a.items++
	return a.engine.Derive(ctx, derive.Primary{Handle: h, ContentType: ct, SourcePath: item.SourcePath()}, a)
}

// WriteItem filters, resolves and writes item as a record of the given kind.
// A non-nil ref makes it a derived record referring to ref. It returns a nil
// handle when the filter chain rejects the item.
func (a *Assembler) WriteItem(ctx context.Context, item *source.FileItem, kind record.Kind, headers []record.Header, ref *record.Handle) (*record.Handle, error) {
	h, _, err := a.writeItem(ctx, item, kind, headers, ref)
	return h, err
}

func (a *Assembler) writeItem(ctx context.Context, item *source.FileItem, kind record.Kind, headers []record.Header, ref *record.Handle) (*record.Handle, string, error) {
	sourcePath := item.SourcePath()
	if reason := a.filter.Check(sourcePath); reason != filter.Accepted {
		slog.Debug("Skipping item", logfields.URL(item.URL), logfields.File(sourcePath), logfields.Reason(string(reason)))
		a.skipped++
		a.recorder.IncSkipped(string(reason))
		return nil, "", nil
	}

	res, err := a.resolver.Resolve(ctx, item)
	if err != nil {
		return nil, "", err
	}

	r := record.Record{
		Kind:        kind,
		TargetURI:   res.TargetURL,
		Date:        res.Date,
		ContentType: res.ContentType(),
		Headers: append([]record.Header{
			{Name: record.HeaderSourceURI, Value: "file://" + sourcePath},
			{Name: record.HeaderCreationDate, Value: a.now().UTC().Format(warc.DateFormat)},
		}, headers...),
		Payload: item,
	}
	var h *record.Handle
	if ref != nil {
		h, err = a.writer.WriteDerivedRecord(ctx, r, ref)
	} else {
		h, err = a.writer.WriteRecord(ctx, r)
	}
	if err != nil {
		return nil, "", a.writeFailed(ctx, r.TargetURI, err)
	}
	slog.Debug("Wrote record",
		logfields.URL(h.TargetURI),
		logfields.RecordID(h.RecordID),
		logfields.RecordType(string(kind)),
		logfields.ContentType(r.ContentType),
		logfields.Charset(res.Charset),
		logfields.Timestamp(h.Date.Format(warc.DateFormat)),
		logfields.File(sourcePath))

	err = a.written(h, itemlog.Row{
		File:        sourcePath,
		RecordType:  string(kind),
		URL:         h.TargetURI,
		Timestamp:   h.Date.Format(warc.DateFormat),
		ContentType: r.ContentType,
		Mime:        res.MediaType,
		Charset:     res.Charset,
	})
	return h, r.ContentType, err
}

// WriteDerived writes a record referring to ref, such as an index revisit.
func (a *Assembler) WriteDerived(ctx context.Context, r record.Record, ref *record.Handle, sourcePath string) (*record.Handle, error) {
	h, err := a.writer.WriteDerivedRecord(ctx, r, ref)
	if err != nil {
		return nil, a.writeFailed(ctx, r.TargetURI, err)
	}
	slog.Debug("Wrote derived record", logfields.URL(h.TargetURI), logfields.RecordType(string(h.Kind)),
		slog.String("refers_to", ref.TargetURI))
	return h, a.written(h, itemlog.Row{
		File:       sourcePath,
		RecordType: string(h.Kind),
		URL:        h.TargetURI,
		Timestamp:  h.Date.Format(warc.DateFormat),
	})
}

// WriteRecord writes a record that has no source file of its own.
func (a *Assembler) WriteRecord(ctx context.Context, r record.Record, sourcePath string) (*record.Handle, error) {
	h, err := a.writer.WriteRecord(ctx, r)
	if err != nil {
		return nil, a.writeFailed(ctx, r.TargetURI, err)
	}
	if sourcePath == "" {
		sourcePath = "-"
	}
	slog.Debug("Wrote record", logfields.URL(h.TargetURI), logfields.RecordType(string(h.Kind)),
		logfields.ContentType(r.ContentType), logfields.File(sourcePath))
	return h, a.written(h, itemlog.Row{
		File:        sourcePath,
		RecordType:  string(h.Kind),
		URL:         h.TargetURI,
		Timestamp:   h.Date.Format(warc.DateFormat),
		ContentType: r.ContentType,
	})
}

// written counts a record and appends its item log row.
func (a *Assembler) written(h *record.Handle, row itemlog.Row) error {
	a.records++
	a.recorder.IncRecord(string(h.Kind))
	if err := a.itemLog.Write(row); err != nil {
		return derrors.FileSystemError("write item log", err)
	}
	return nil
}

func (a *Assembler) writeFailed(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return derrors.ArchiveWriteFailed(url, err)
}

func statusFor(ctx context.Context) Status {
	if ctx.Err() != nil {
		return StatusCancelled
	}
	return StatusFailed
}

func outcomeFor(s Status) metrics.OutcomeLabel {
	switch s {
	case StatusSuccess:
		return metrics.OutcomeSuccess
	case StatusWarning:
		return metrics.OutcomeWarning
	case StatusCancelled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}
