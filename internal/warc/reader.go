package warc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/warcbuilder/internal/record"
)

// ErrMalformed indicates input that is not a WARC record stream.
var ErrMalformed = errors.New("malformed WARC")

// ReadRecord is a record read back from an archive.
type ReadRecord struct {
	Version string
	Headers []record.Header
	Body    []byte // nil when the reader skips bodies
	Length  int64
}

// Get returns the first header with the given name (case-insensitive).
func (r *ReadRecord) Get(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Type returns WARC-Type.
func (r *ReadRecord) Type() record.Kind { return record.Kind(r.Get("WARC-Type")) }

// Reader iterates the records of a plain or gzip compressed WARC stream.
type Reader struct {
	br         *bufio.Reader
	gz         *gzip.Reader
	SkipBodies bool
}

// NewReader detects gzip compression from the first bytes of r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	rd := &Reader{br: br}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		rd.gz = gz
		rd.br = bufio.NewReader(gz)
	}
	return rd, nil
}

// Close releases the decompressor.
func (r *Reader) Close() error {
	if r.gz != nil {
		return r.gz.Close()
	}
	return nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*ReadRecord, error) {
	line, err := r.readLine()
	for err == nil && line == "" {
		line, err = r.readLine()
	}
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "WARC/") {
		return nil, fmt.Errorf("%w: unexpected version line %q", ErrMalformed, line)
	}

	rec := &ReadRecord{Version: line}
	for {
		line, err = r.readLine()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header: %w", ErrMalformed, err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformed, line)
		}
		rec.Headers = append(rec.Headers, record.Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	rec.Length, err = strconv.ParseInt(rec.Get("Content-Length"), 10, 64)
	if err != nil || rec.Length < 0 {
		return nil, fmt.Errorf("%w: bad Content-Length %q", ErrMalformed, rec.Get("Content-Length"))
	}
	if r.SkipBodies {
		_, err = io.CopyN(io.Discard, r.br, rec.Length)
	} else {
		var buf bytes.Buffer
		_, err = io.CopyN(&buf, r.br, rec.Length)
		rec.Body = buf.Bytes()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: truncated body: %w", ErrMalformed, err)
	}

	trailer := make([]byte, 4)
	if _, err := io.ReadFull(r.br, trailer); err != nil || string(trailer) != "\r\n\r\n" {
		return nil, fmt.Errorf("%w: missing record trailer", ErrMalformed)
	}
	return rec, nil
}

// All iterates the remaining records. Iteration stops after the first error.
func (r *Reader) All() iter.Seq2[*ReadRecord, error] {
	return func(yield func(*ReadRecord, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
