// Package record defines the records produced by the assembly pipeline and
// the writer collaborator that serializes them.
package record

import (
	"bytes"
	"context"
	"io"
	"time"
)

// Kind is the WARC-Type of a record.
type Kind string

const (
	KindWarcinfo   Kind = "warcinfo"
	KindResource   Kind = "resource"
	KindRevisit    Kind = "revisit"
	KindConversion Kind = "conversion"
	KindMetadata   Kind = "metadata"
)

// Standard header names used across the pipeline.
const (
	HeaderRefersTo          = "WARC-Refers-To"
	HeaderRefersToTargetURI = "WARC-Refers-To-Target-URI"
	HeaderRefersToDate      = "WARC-Refers-To-Date"
	HeaderSourceURI         = "WARC-Source-URI"
	HeaderCreationDate      = "WARC-Creation-Date"
	HeaderJSONMetadata      = "WARC-JSON-Metadata"
	HeaderProfile           = "WARC-Profile"
)

// ProfileIdenticalPayload is the revisit profile used for index revisits.
const ProfileIdenticalPayload = "http://netpreserve.org/warc/1.0/revisit/identical-payload-digest"

// Payload opens the record body. Writers may call Open more than once.
type Payload interface {
	Open() (io.ReadCloser, error)
}

// PayloadFunc adapts a function to Payload.
type PayloadFunc func() (io.ReadCloser, error)

func (f PayloadFunc) Open() (io.ReadCloser, error) { return f() }

// Bytes is an in-memory payload.
type Bytes []byte

func (b Bytes) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Header is a single extra WARC header. Order is preserved on write.
type Header struct {
	Name  string
	Value string
}

// Record is a record to be written.
type Record struct {
	Kind        Kind
	TargetURI   string
	Date        time.Time
	ContentType string // full value, including any charset parameter
	Headers     []Header
	Payload     Payload // nil for records without a body
}

// Get returns the value of the named extra header.
func (r Record) Get(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Handle identifies a record after it was written.
type Handle struct {
	RecordID     string
	Kind         Kind
	TargetURI    string
	Date         time.Time
	Digest       string // payload digest, "sha1:<base32>"
	SourceURI    string
	CreationDate string
}

// Info describes the archive for the warcinfo record.
type Info struct {
	Filename string
	Software string
	Format   string
	Fields   []Header
}

// Writer serializes records in call order.
type Writer interface {
	BeginArchive(ctx context.Context, info Info) (*Handle, error)
	WriteRecord(ctx context.Context, r Record) (*Handle, error)
	// WriteDerivedRecord writes a record referring to ref (revisits).
	WriteDerivedRecord(ctx context.Context, r Record, ref *Handle) (*Handle, error)
}
