package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/warcbuilder/internal/build"
	"git.home.luguber.info/inful/warcbuilder/internal/config"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
)

// BuildCmd implements the 'build' command. Flags override the configuration
// file; list flags take comma separated values.
type BuildCmd struct {
	URLPrefix string   `arg:"" optional:"" name:"url-prefix" help:"URL prefix prepended to every archived path"`
	Inputs    []string `arg:"" optional:"" name:"inputs" help:"Files, directories or zip files (use archive.zip/path to select a prefix)"`

	Name       string `short:"n" help:"Base name of the WARC file (default: name of the first input)"`
	Append     bool   `short:"a" help:"Append to an existing WARC file" xor:"mode"`
	Overwrite  bool   `short:"o" help:"Overwrite an existing WARC file" xor:"mode"`
	NoGzip     bool   `name:"no-gzip" help:"Write an uncompressed WARC"`
	NoWarcinfo bool   `name:"no-warcinfo" help:"Do not write a warcinfo record"`
	FixedDT    string `name:"fixed-dt" help:"Timestamp for all records, as digits padded to YYYYMMDDhhmmss"`

	IndexFiles    string `name:"index-files" help:"Filenames that also get a revisit at the directory URL" placeholder:"index.html,index.htm"`
	NoIndexFiles  bool   `name:"no-index-files" help:"Disable directory index revisits"`
	MimeOverrides string `name:"mime-overrides" help:"URL glob to content type overrides, as pattern=type pairs"`
	Include       string `help:"Only archive source paths matching these globs"`
	Exclude       string `help:"Skip source paths matching these globs"`
	Charset       string `help:"Charset of text records: none, auto, analysis or an encoding name"`
	Detector      string `help:"Content type detector: filename, magic or analysis"`
	NoXHTML       bool   `name:"no-xhtml" help:"Write application/xhtml+xml as text/html"`
	AnalysisURL   string `name:"analysis-url" help:"Base URL of the document analysis service"`

	Manifest      string `help:"CSV or TSV file with file, URL, timestamp and Content-Type overrides" type:"path"`
	Log           string `name:"log" help:"Write one CSV row per record to this file" type:"path"`
	Conversions   string `help:"Conversion results file (YAML or JSON)" type:"path"`
	Transclusions string `help:"Transclusions file (YAML or JSON)" type:"path"`
	MetricsFile   string `name:"metrics-file" help:"Write Prometheus metrics to this textfile after the run" type:"path"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if err := b.Apply(cfg); err != nil {
		return err
	}

	// Flags and the environment still win over the configured logging.
	format := cfg.Log.Format
	if root.LogFormat != "" {
		format = config.NormalizeLogFormat(root.LogFormat)
	}
	SetupLogging(parseLogLevel(root.Verbose, root.Quiet, cfg.Log.Level), format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := build.NewService().Run(ctx, build.Request{Config: cfg, Args: os.Args})
	if res != nil {
		for _, inv := range res.Invalid {
			slog.Warn("Input produced no records", logfields.Input(inv.Input))
		}
	}
	return err
}

// Apply merges the flags into cfg and re-applies defaults.
func (b *BuildCmd) Apply(cfg *config.Config) error {
	if b.URLPrefix != "" {
		cfg.URLPrefix = b.URLPrefix
	}
	if len(b.Inputs) > 0 {
		cfg.Inputs = b.Inputs
	}

	if b.Name != "" {
		cfg.Output.Name = b.Name
	}
	switch {
	case b.Append:
		cfg.Output.Mode = config.WriteModeAppend
	case b.Overwrite:
		cfg.Output.Mode = config.WriteModeOverwrite
	}
	if b.NoGzip {
		off := false
		cfg.Output.Gzip = &off
	}
	if b.NoWarcinfo {
		off := false
		cfg.Output.Warcinfo = &off
	}
	if b.FixedDT != "" {
		cfg.FixedDate = b.FixedDT
	}

	switch {
	case b.NoIndexFiles:
		cfg.Derivation.IndexFiles = []string{}
	case b.IndexFiles != "":
		cfg.Derivation.IndexFiles = config.SplitList(b.IndexFiles)
	}
	if b.MimeOverrides != "" {
		cfg.Detection.MimeOverrides = config.SplitList(b.MimeOverrides)
	}
	if b.Include != "" {
		cfg.Filtering.Include = config.SplitList(b.Include)
	}
	if b.Exclude != "" {
		cfg.Filtering.Exclude = config.SplitList(b.Exclude)
	}
	if b.Charset != "" {
		cfg.Detection.Charset = b.Charset
	}
	if b.Detector != "" {
		cfg.Detection.Detector = config.DetectorKind(b.Detector)
	}
	if b.NoXHTML {
		cfg.Detection.NoXHTML = true
	}
	if b.AnalysisURL != "" {
		cfg.Detection.AnalysisURL = b.AnalysisURL
	}

	if b.Manifest != "" {
		cfg.Manifest = b.Manifest
	}
	if b.Log != "" {
		cfg.Log.ItemLog = b.Log
	}
	if b.Conversions != "" {
		cfg.Derivation.Conversions = b.Conversions
	}
	if b.Transclusions != "" {
		cfg.Derivation.Transclusions = b.Transclusions
	}
	if b.MetricsFile != "" {
		cfg.Metrics.Textfile = b.MetricsFile
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return derrors.ValidationFailed("flags", err.Error())
	}
	return nil
}
