// Package warc writes and reads WARC/1.0 files.
package warc

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/warcbuilder/internal/record"
)

// Version is the record version line written for every record.
const Version = "WARC/1.0"

// DateFormat is the WARC-Date layout.
const DateFormat = "2006-01-02T15:04:05Z"

// ErrPayloadChanged indicates the payload length differed between the
// digest pass and the write pass.
var ErrPayloadChanged = errors.New("payload changed while writing")

// Writer writes records to an io.Writer. With compression enabled every
// record is its own gzip member. Writer implements record.Writer.
type Writer struct {
	out   io.Writer
	gzip  bool
	now   func() time.Time
	newID func() string
	count int
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock sets the clock used for warcinfo dates.
func WithClock(now func() time.Time) Option { return func(w *Writer) { w.now = now } }

// WithIDGenerator replaces the uuid based record id generator.
func WithIDGenerator(f func() string) Option { return func(w *Writer) { w.newID = f } }

// NewWriter creates a Writer.
func NewWriter(out io.Writer, compress bool, opts ...Option) *Writer {
	w := &Writer{
		out:   out,
		gzip:  compress,
		now:   time.Now,
		newID: func() string { return "<urn:uuid:" + uuid.NewString() + ">" },
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Count returns the number of records written so far, warcinfo included.
func (w *Writer) Count() int { return w.count }

// BeginArchive writes the warcinfo record.
func (w *Writer) BeginArchive(ctx context.Context, info record.Info) (*record.Handle, error) {
	var b strings.Builder
	if info.Software != "" {
		fmt.Fprintf(&b, "software: %s\r\n", info.Software)
	}
	if info.Format != "" {
		fmt.Fprintf(&b, "format: %s\r\n", info.Format)
	}
	for _, f := range info.Fields {
		fmt.Fprintf(&b, "%s: %s\r\n", f.Name, clean(f.Value))
	}

	r := record.Record{
		Kind:        record.KindWarcinfo,
		Date:        w.now(),
		ContentType: "application/warc-fields",
		Payload:     record.Bytes(b.String()),
	}
	if info.Filename != "" {
		r.Headers = append(r.Headers, record.Header{Name: "WARC-Filename", Value: info.Filename})
	}
	return w.write(ctx, r, nil)
}

// WriteRecord writes a record with a payload.
func (w *Writer) WriteRecord(ctx context.Context, r record.Record) (*record.Handle, error) {
	return w.write(ctx, r, nil)
}

// WriteDerivedRecord writes a record that refers to ref. Revisits carry no
// payload; their payload digest is ref's digest.
func (w *Writer) WriteDerivedRecord(ctx context.Context, r record.Record, ref *record.Handle) (*record.Handle, error) {
	if ref == nil {
		return nil, errors.New("derived record without reference")
	}
	refs := []record.Header{
		{Name: record.HeaderRefersTo, Value: ref.RecordID},
		{Name: record.HeaderRefersToTargetURI, Value: ref.TargetURI},
		{Name: record.HeaderRefersToDate, Value: ref.Date.UTC().Format(DateFormat)},
	}
	for _, h := range refs {
		if _, ok := r.Get(h.Name); !ok {
			r.Headers = append(r.Headers, h)
		}
	}
	if r.Kind == record.KindRevisit {
		if _, ok := r.Get(record.HeaderProfile); !ok {
			r.Headers = append(r.Headers, record.Header{Name: record.HeaderProfile, Value: record.ProfileIdenticalPayload})
		}
		r.Payload = nil
	}
	return w.write(ctx, r, ref)
}

func (w *Writer) write(ctx context.Context, r record.Record, ref *record.Handle) (*record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		length int64
		digest string
		err    error
	)
	if r.Payload != nil {
		if length, digest, err = measure(r.Payload); err != nil {
			return nil, fmt.Errorf("digest %s: %w", r.TargetURI, err)
		}
	} else {
		digest = emptyDigest
	}

	h := &record.Handle{
		RecordID:  w.newID(),
		Kind:      r.Kind,
		TargetURI: r.TargetURI,
		Date:      r.Date.UTC(),
		Digest:    digest,
	}
	if r.Kind == record.KindRevisit && ref != nil {
		h.Digest = ref.Digest
	}
	h.SourceURI, _ = r.Get(record.HeaderSourceURI)
	h.CreationDate, _ = r.Get(record.HeaderCreationDate)

	headers := []record.Header{
		{Name: "WARC-Type", Value: string(r.Kind)},
		{Name: "WARC-Record-ID", Value: h.RecordID},
	}
	if r.TargetURI != "" {
		headers = append(headers, record.Header{Name: "WARC-Target-URI", Value: r.TargetURI})
	}
	headers = append(headers, record.Header{Name: "WARC-Date", Value: h.Date.Format(DateFormat)})
	if r.Kind != record.KindWarcinfo {
		headers = append(headers, record.Header{Name: "WARC-Payload-Digest", Value: h.Digest})
	}
	headers = append(headers, record.Header{Name: "WARC-Block-Digest", Value: digest})
	headers = append(headers, r.Headers...)
	if r.ContentType != "" {
		headers = append(headers, record.Header{Name: "Content-Type", Value: r.ContentType})
	}
	headers = append(headers, record.Header{Name: "Content-Length", Value: strconv.FormatInt(length, 10)})

	if err := w.emit(headers, r.Payload, length); err != nil {
		return nil, err
	}
	w.count++
	return h, nil
}

func (w *Writer) emit(headers []record.Header, payload record.Payload, length int64) error {
	var (
		dst io.Writer = w.out
		gz  *gzip.Writer
	)
	if w.gzip {
		gz = gzip.NewWriter(w.out)
		dst = gz
	}
	bw := bufio.NewWriter(dst)

	bw.WriteString(Version + "\r\n")
	for _, h := range headers {
		bw.WriteString(h.Name + ": " + clean(h.Value) + "\r\n")
	}
	bw.WriteString("\r\n")

	if payload != nil {
		rc, err := payload.Open()
		if err != nil {
			return err
		}
		n, err := io.Copy(bw, rc)
		rc.Close()
		if err != nil {
			return err
		}
		if n != length {
			return fmt.Errorf("%w: expected %d bytes, got %d", ErrPayloadChanged, length, n)
		}
	}
	bw.WriteString("\r\n\r\n")

	if err := bw.Flush(); err != nil {
		return err
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}

var emptyDigest = formatDigest(sha1.New().Sum(nil))

// measure reads the payload once to compute its length and sha1 digest.
func measure(p record.Payload) (int64, string, error) {
	rc, err := p.Open()
	if err != nil {
		return 0, "", err
	}
	defer rc.Close()
	hash := sha1.New()
	n, err := io.Copy(hash, rc)
	if err != nil {
		return 0, "", err
	}
	return n, formatDigest(hash.Sum(nil)), nil
}

func formatDigest(sum []byte) string {
	return "sha1:" + base32.StdEncoding.EncodeToString(sum)
}

// Digest returns the WARC digest of b.
func Digest(b []byte) string {
	sum := sha1.Sum(b)
	return formatDigest(sum[:])
}

// clean keeps header values on one line.
func clean(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
}
