// Package manifest loads the per-file override table (CSV or TSV) and binds
// its rows to source files.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
)

// Column names accepted in the header row.
const (
	ColumnFile        = "file"
	ColumnURL         = "URL"
	ColumnTimestamp   = "timestamp"
	ColumnContentType = "Content-Type"
)

var (
	// ErrUnknownColumn indicates a header column other than the four supported ones.
	ErrUnknownColumn = errors.New("unknown column in manifest")

	// ErrMissingFileColumn indicates the header has no "file" column.
	ErrMissingFileColumn = errors.New(`missing "file" column in manifest`)

	// ErrNoOverrideColumn indicates a header with only the "file" column.
	ErrNoOverrideColumn = errors.New(`manifest needs one other column in addition to "file"`)

	// ErrBindingConflict indicates a row matched a second source file.
	ErrBindingConflict = errors.New("manifest row matched a second file")
)

// Row is one manifest entry. Empty cells are treated as absent.
type Row struct {
	Index       int // 1-based data row number
	File        string
	URL         string
	Timestamp   string
	ContentType string
}

// MediaType splits ContentType into its media type and charset parameter.
// For unparseable values the text before the first ';' is the media type
// and no charset is reported.
func (r *Row) MediaType() (mediaType, charset string) {
	if r == nil || r.ContentType == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		mt, _, _ = strings.Cut(r.ContentType, ";")
		return strings.ToLower(strings.TrimSpace(mt)), ""
	}
	return mt, params["charset"]
}

// Manifest holds the loaded rows and which of them are already bound.
type Manifest struct {
	Path  string
	rows  []Row
	bound []bool
}

// Load reads a manifest file. Files ending in .tsv (any case) are tab
// separated, everything else is comma separated.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f, strings.HasSuffix(strings.ToLower(path), ".tsv"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse reads a manifest from r.
func Parse(r io.Reader, tsv bool) (*Manifest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if tsv {
		cr.Comma = '\t'
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	hasFile := false
	for _, col := range header {
		switch col {
		case ColumnFile:
			hasFile = true
		case ColumnURL, ColumnTimestamp, ColumnContentType:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
	}
	if !hasFile {
		return nil, ErrMissingFileColumn
	}
	if len(header) < 2 {
		return nil, ErrNoOverrideColumn
	}

	m := &Manifest{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(m.rows)+1, err)
		}
		row := Row{Index: len(m.rows) + 1}
		for i, col := range header {
			if i >= len(rec) {
				break
			}
			v := strings.TrimSpace(rec[i])
			switch col {
			case ColumnFile:
				row.File = v
			case ColumnURL:
				row.URL = v
			case ColumnTimestamp:
				row.Timestamp = v
			case ColumnContentType:
				row.ContentType = v
			}
		}
		if row.File == "" {
			continue
		}
		m.rows = append(m.rows, row)
	}
	m.bound = make([]bool, len(m.rows))
	return m, nil
}

// Len returns the number of rows.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Bind returns the first row whose file column is a suffix of sourcePath and
// marks it bound. It returns nil when no row matches. Matching a row that is
// already bound returns ErrBindingConflict.
func (m *Manifest) Bind(sourcePath string) (*Row, error) {
	if m == nil {
		return nil, nil
	}
	for i := range m.rows {
		row := &m.rows[i]
		if !strings.HasSuffix(sourcePath, row.File) {
			continue
		}
		if m.bound[i] {
			return row, fmt.Errorf("%w: row %d (%q) and %q", ErrBindingConflict, row.Index, row.File, sourcePath)
		}
		m.bound[i] = true
		return row, nil
	}
	return nil, nil
}

// Unbound returns the rows that never matched a file.
func (m *Manifest) Unbound() []Row {
	if m == nil {
		return nil
	}
	var out []Row
	for i, b := range m.bound {
		if !b {
			out = append(out, m.rows[i])
		}
	}
	return out
}
