package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path (optional)" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging" xor:"verbosity"`
	Quiet     bool             `short:"q" help:"Only log errors" xor:"verbosity"`
	LogFormat string           `name:"log-format" help:"Log format (text|json)" env:"WARCBUILDER_LOG_FORMAT"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Create a WARC archive from files, directories and zip files"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Inspect InspectCmd `cmd:"" help:"List the records of a WARC file"`
	Info    VersionCmd `cmd:"" name:"version" help:"Print version and build information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	SetupLogging(parseLogLevel(c.Verbose, c.Quiet, ""), config.NormalizeLogFormat(c.LogFormat))
	return nil
}

// SetupLogging installs the default slog logger on stderr.
func SetupLogging(level slog.Level, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// parseLogLevel picks the log level: --verbose and --quiet win, then the
// WARCBUILDER_LOG_LEVEL environment variable, then the configured level.
func parseLogLevel(verbose, quiet bool, configured config.LogLevel) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	}
	if env := os.Getenv(config.EnvPrefix + "LOG_LEVEL"); env != "" {
		return config.NormalizeLogLevel(env).SlogLevel()
	}
	if configured != "" {
		return configured.SlogLevel()
	}
	return slog.LevelInfo
}

// loadConfig reads the configuration file when one is given, otherwise it
// starts from the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, derrors.ConfigNotFound(path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, derrors.ConfigInvalid(err)
	}
	return cfg, nil
}
