package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/derive"
	"git.home.luguber.info/inful/warcbuilder/internal/detect"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/filter"
	"git.home.luguber.info/inful/warcbuilder/internal/itemlog"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
	"git.home.luguber.info/inful/warcbuilder/internal/manifest"
	"git.home.luguber.info/inful/warcbuilder/internal/metrics"
	"git.home.luguber.info/inful/warcbuilder/internal/record"
	"git.home.luguber.info/inful/warcbuilder/internal/resolve"
	"git.home.luguber.info/inful/warcbuilder/internal/retry"
	"git.home.luguber.info/inful/warcbuilder/internal/version"
	"git.home.luguber.info/inful/warcbuilder/internal/warc"
)

// WarcFormat is the format field of warcinfo records.
const WarcFormat = "WARC File Format 1.0"

// WriterFactory creates the record writer for an opened archive.
type WriterFactory func(out io.Writer, compress bool) record.Writer

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	writerFactory WriterFactory
	recorder      metrics.Recorder
	now           func() time.Time
}

// NewService creates a DefaultService writing WARC files.
func NewService() *DefaultService {
	s := &DefaultService{now: time.Now}
	s.writerFactory = func(out io.Writer, compress bool) record.Writer {
		return warc.NewWriter(out, compress, warc.WithClock(s.now))
	}
	return s
}

// WithWriterFactory allows injecting a custom record writer (for testing).
func (s *DefaultService) WithWriterFactory(f WriterFactory) *DefaultService {
	s.writerFactory = f
	return s
}

// WithRecorder sets the metrics recorder. When none is set and a metrics
// textfile is configured, a Prometheus recorder is created per run.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	s.recorder = r
	return s
}

// WithClock sets the clock used for creation dates.
func (s *DefaultService) WithClock(now func() time.Time) *DefaultService {
	s.now = now
	return s
}

// Run validates the configuration, prepares every collaborator and runs an
// Assembler. Detector and index failures are reported before the archive is
// opened, so no partial archive is left behind.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, derrors.ConfigInvalid(errors.New("config required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	recorder := s.recorder
	var prom *metrics.PrometheusRecorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
		if cfg.Metrics.Textfile != "" {
			prom = metrics.NewPrometheusRecorder(nil)
			recorder = prom
		}
	}

	opts, err := s.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts.Recorder = recorder
	opts.Now = s.now

	name := warc.ArchiveName(cfg.Output.Name, cfg.Inputs[0], cfg.Output.GzipEnabled())

	if cfg.Log.ItemLog != "" {
		l, err := itemlog.Create(cfg.Log.ItemLog)
		if err != nil {
			return nil, err
		}
		opts.ItemLog = l
		defer func() {
			if cerr := l.Close(); cerr != nil {
				slog.Warn("Failed to close item log", logfields.Path(cfg.Log.ItemLog), logfields.Error(cerr))
			}
		}()
	}

	f, err := warc.OpenArchive(name, cfg.Output.Mode)
	if err != nil {
		return nil, err
	}

	asm := NewAssembler(s.writerFactory(f, cfg.Output.GzipEnabled()), opts)
	areq := AssembleRequest{URLPrefix: cfg.URLPrefix, Inputs: cfg.Inputs, Archive: name}
	if cfg.Output.WarcinfoEnabled() {
		areq.Info = &record.Info{
			Filename: name,
			Software: version.Software(),
			Format:   WarcFormat,
			Fields:   []record.Header{{Name: "cmdline", Value: strings.Join(req.Args, " ")}},
		}
	}

	res, runErr := asm.Run(ctx, areq)
	if cerr := f.Close(); cerr != nil && runErr == nil {
		runErr = derrors.FileSystemError("close "+name, cerr)
		res.Status = StatusFailed
	}

	for _, row := range opts.Resolver.Unbound() {
		slog.Warn("Manifest row matched no file", logfields.File(row.File), slog.Int("row", row.Index))
	}

	if prom != nil {
		if err := prom.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
		}
	}
	return res, runErr
}

// prepare loads tables and initializes detectors.
func (s *DefaultService) prepare(ctx context.Context, cfg *config.Config) (AssemblerOptions, error) {
	var opts AssemblerOptions

	chain, err := filter.NewChain(cfg.Filtering.Include, cfg.Filtering.Exclude)
	if err != nil {
		return opts, derrors.ValidationFailed("filtering", err.Error())
	}
	opts.Filter = chain

	ropts, err := resolverOptions(ctx, cfg)
	if err != nil {
		return opts, err
	}
	if opts.Resolver, err = resolve.New(ropts); err != nil {
		return opts, err
	}

	dopts := derive.Options{IndexFiles: cfg.Derivation.IndexFiles, Now: s.now}
	if path := cfg.Derivation.Conversions; path != "" {
		if dopts.Conversions, err = derive.LoadConversions(path); err != nil {
			return opts, derrors.DerivationIndexFailed(path, err)
		}
	}
	if path := cfg.Derivation.Transclusions; path != "" {
		if dopts.Transclusions, err = derive.LoadTransclusions(path); err != nil {
			return opts, derrors.DerivationIndexFailed(path, err)
		}
	}
	opts.Engine = derive.NewEngine(dopts)
	return opts, nil
}

// resolverOptions builds the detector collaborators. The analysis service is
// probed once here; an unreachable service is fatal.
func resolverOptions(ctx context.Context, cfg *config.Config) (resolve.Options, error) {
	det := cfg.Detection
	opts := resolve.Options{NoXHTML: det.NoXHTML}

	var err error
	if opts.Overrides, err = config.ParseMimeOverrides(det.MimeOverrides); err != nil {
		return opts, derrors.ValidationFailed("detection.mime_overrides", err.Error())
	}

	if cfg.Manifest != "" {
		if opts.Manifest, err = manifest.Load(cfg.Manifest); err != nil {
			return opts, derrors.ManifestLoadFailed(cfg.Manifest, err)
		}
		slog.Debug("Loaded manifest", logfields.Path(cfg.Manifest), logfields.Count(opts.Manifest.Len()))
	}

	if cfg.FixedDate != "" {
		ts, err := config.ParseTimestamp(cfg.FixedDate)
		if err != nil {
			return opts, derrors.ValidationFailed("fixed_date", err.Error())
		}
		opts.FixedDate = &ts
	}

	if det.UsesAnalysis() {
		opts.Analyzer, err = detect.NewAnalyzer(ctx, det.AnalysisURL, det.AnalysisTimeout, det.AnalysisCache,
			detect.WithRetry(retry.FromConfig(det.AnalysisRetry)))
		if err != nil {
			return opts, derrors.DetectorUnavailable(string(config.DetectorAnalysis), err)
		}
	}

	switch det.Detector {
	case config.DetectorMagic:
		opts.Detector = detect.MagicDetector{}
	case config.DetectorAnalysis:
		opts.Detector = detect.AnalysisDetector{Analyzer: opts.Analyzer}
	default:
		opts.Detector = detect.FilenameDetector{}
	}
	slog.Debug("Type detector selected", logfields.Detector(opts.Detector.Name()))

	opts.CharsetMode, opts.FixedCharset = det.CharsetSetting()
	if opts.CharsetMode == config.CharsetDetect {
		opts.Charset = detect.StatisticalCharset{}
	}
	return opts, nil
}
