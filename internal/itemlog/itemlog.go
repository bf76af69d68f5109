// Package itemlog writes the optional per-record CSV log of a run.
package itemlog

import (
	"encoding/csv"
	"io"
	"os"

	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

// Columns is the header row of the log.
var Columns = []string{"file", "Record-Type", "URL", "timestamp", "Content-Type", "mime", "charset"}

// Row is one written record. Derived records leave the type columns empty.
type Row struct {
	File        string
	RecordType  string
	URL         string
	Timestamp   string
	ContentType string
	Mime        string
	Charset     string
}

func (r Row) fields() []string {
	return []string{r.File, r.RecordType, r.URL, r.Timestamp, r.ContentType, r.Mime, r.Charset}
}

// Log appends rows to a CSV stream. A nil *Log discards rows.
type Log struct {
	w      *csv.Writer
	closer io.Closer
}

// Create truncates path and writes the header row.
func Create(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, derrors.FileSystemError("create item log", err).WithContext("path", path)
	}
	l, err := New(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// New writes the header row to w.
func New(w io.Writer) (*Log, error) {
	l := &Log{w: csv.NewWriter(w)}
	if err := l.w.Write(Columns); err != nil {
		return nil, err
	}
	return l, nil
}

// Write appends a row. Rows are flushed immediately so the log is usable
// when a run aborts.
func (l *Log) Write(r Row) error {
	if l == nil {
		return nil
	}
	if err := l.w.Write(r.fields()); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes the log and closes the underlying file, if any.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.w.Flush()
	err := l.w.Error()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
