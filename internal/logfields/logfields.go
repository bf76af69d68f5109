package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyURL         = "url"
	KeyFile        = "file"
	KeyInput       = "input"
	KeyRoot        = "root"
	KeyPath        = "path"
	KeyRecordType  = "record_type"
	KeyRecordID    = "record_id"
	KeyContentType = "content_type"
	KeyCharset     = "charset"
	KeyTimestamp   = "timestamp"
	KeyDetector    = "detector"
	KeyCount       = "count"
	KeyArchive     = "archive"
	KeyReason      = "reason"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Input(i string) slog.Attr        { return slog.String(KeyInput, i) }
func Root(r string) slog.Attr         { return slog.String(KeyRoot, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func RecordType(t string) slog.Attr   { return slog.String(KeyRecordType, t) }
func RecordID(id string) slog.Attr    { return slog.String(KeyRecordID, id) }
func ContentType(ct string) slog.Attr { return slog.String(KeyContentType, ct) }
func Charset(cs string) slog.Attr     { return slog.String(KeyCharset, cs) }
func Timestamp(ts string) slog.Attr   { return slog.String(KeyTimestamp, ts) }
func Detector(d string) slog.Attr     { return slog.String(KeyDetector, d) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Archive(name string) slog.Attr   { return slog.String(KeyArchive, name) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
