package config

import (
	"log/slog"

	"git.home.luguber.info/inful/warcbuilder/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo).WithAliases(map[string]LogLevel{"warning": LogLevelWarn})

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// SlogLevel converts the level for slog.HandlerOptions.
func (l LogLevel) SlogLevel() slog.Level {
	switch NormalizeLogLevel(string(l)) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// WriteMode controls what happens when the archive file already exists.
type WriteMode string

const (
	WriteModeCreate    WriteMode = "create"
	WriteModeAppend    WriteMode = "append"
	WriteModeOverwrite WriteMode = "overwrite"
)

var writeModeNormalizer = normalization.NewNormalizer(map[string]WriteMode{
	"create":    WriteModeCreate,
	"append":    WriteModeAppend,
	"overwrite": WriteModeOverwrite,
}, WriteModeCreate).WithAliases(map[string]WriteMode{"x": WriteModeCreate, "a": WriteModeAppend, "w": WriteModeOverwrite})

// DetectorKind names the single active content-type detector.
type DetectorKind string

const (
	DetectorFilename DetectorKind = "filename"
	DetectorMagic    DetectorKind = "magic"
	DetectorAnalysis DetectorKind = "analysis"
)

var detectorNormalizer = normalization.NewNormalizer(map[string]DetectorKind{
	"filename": DetectorFilename,
	"magic":    DetectorMagic,
	"analysis": DetectorAnalysis,
}, DetectorFilename).WithAliases(map[string]DetectorKind{"mimetypes": DetectorFilename, "tika": DetectorAnalysis})

// CharsetMode selects the charset resolution source below the manifest.
type CharsetMode string

const (
	CharsetNone     CharsetMode = "none"
	CharsetDetect   CharsetMode = "auto"
	CharsetAnalysis CharsetMode = "analysis"
	CharsetFixed    CharsetMode = "fixed"
)

var charsetModeNormalizer = normalization.NewNormalizer(map[string]CharsetMode{
	"none":     CharsetNone,
	"auto":     CharsetDetect,
	"analysis": CharsetAnalysis,
}, CharsetNone).WithAliases(map[string]CharsetMode{"": CharsetNone, "cchardet": CharsetDetect, "tika": CharsetAnalysis})

// RetryBackoffMode enumerates backoff strategies for analysis service retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}
