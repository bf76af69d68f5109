// Package source turns directories, files and zip entries into FileItems.
package source

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/manifest"
)

// Locator opens the bytes of an item. Open may be called repeatedly while
// the item is being resolved and written.
type Locator interface {
	Open() (io.ReadCloser, error)
	// SourcePath is the path used for filtering and manifest matching:
	// the file path, or "<zip path>/<entry name>" for zip entries.
	SourcePath() string
}

// FileItem is a single file to archive.
type FileItem struct {
	URL         string
	Locator     Locator
	ModifiedAt  time.Time // UTC
	Size        int64
	RootContext string // the input the item was discovered under

	// Set during resolution.
	ResolvedType     string
	ResolvedCharset  string
	ManifestOverride *manifest.Row
}

// SourcePath returns the locator's source path.
func (f *FileItem) SourcePath() string { return f.Locator.SourcePath() }

// Open opens the item payload.
func (f *FileItem) Open() (io.ReadCloser, error) { return f.Locator.Open() }

func (f *FileItem) String() string {
	return fmt.Sprintf("%s (%s)", f.URL, f.SourcePath())
}

type fileLocator struct {
	path string
}

func (l fileLocator) Open() (io.ReadCloser, error) { return os.Open(l.path) }
func (l fileLocator) SourcePath() string           { return l.path }

// zipArchive shares one open zip reader between the items of an input while
// it is being enumerated.
type zipArchive struct {
	path string
	mu   sync.Mutex
	rc   *zip.ReadCloser
}

func (z *zipArchive) close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.rc == nil {
		return nil
	}
	err := z.rc.Close()
	z.rc = nil
	return err
}

// zipLocator reads an entry through the shared reader; once that is closed
// each Open reopens the archive.
type zipLocator struct {
	archive *zipArchive
	file    *zip.File
}

func (l zipLocator) Open() (io.ReadCloser, error) {
	l.archive.mu.Lock()
	defer l.archive.mu.Unlock()
	if l.archive.rc != nil {
		return l.file.Open()
	}
	return openZipEntry(l.archive.path, l.file.Name)
}

func (l zipLocator) SourcePath() string { return l.archive.path + "/" + l.file.Name }

func openZipEntry(path, name string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = zr.Close()
			return nil, err
		}
		return &zipEntryReader{ReadCloser: rc, zr: zr}, nil
	}
	_ = zr.Close()
	return nil, fmt.Errorf("%s: entry %q: %w", path, name, fs.ErrNotExist)
}

// zipEntryReader closes the reopened archive together with the entry.
type zipEntryReader struct {
	io.ReadCloser
	zr *zip.ReadCloser
}

func (r *zipEntryReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.zr.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewFileItem builds an item for a file on disk; rel is the path relative to
// the input root and becomes the URL suffix.
func NewFileItem(prefix, root, rel, path string, info os.FileInfo) *FileItem {
	return &FileItem{
		URL:         prefix + EscapePath(NormalizePath(rel)),
		Locator:     fileLocator{path: path},
		ModifiedAt:  info.ModTime().UTC(),
		Size:        info.Size(),
		RootContext: root,
	}
}

// NewItem builds an item for a file produced outside the enumerated inputs
// (conversion outputs). The URL is used verbatim.
func NewItem(url, path string) (*FileItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidInput)
	}
	return &FileItem{
		URL:         url,
		Locator:     fileLocator{path: path},
		ModifiedAt:  info.ModTime().UTC(),
		Size:        info.Size(),
		RootContext: path,
	}, nil
}

// NormalizePath converts separators to '/' and drops leading "./" and "/".
func NormalizePath(rel string) string {
	rel = strings.ReplaceAll(rel, string(os.PathSeparator), "/")
	for {
		switch {
		case strings.HasPrefix(rel, "./"):
			rel = rel[2:]
		case strings.HasPrefix(rel, "/"):
			rel = rel[1:]
		default:
			return rel
		}
	}
}

const escapedChars = "#;?:@&=+$, "

// EscapePath percent-escapes the reserved characters #;?:@&=+$, and space
// as lowercase %xx. Other bytes are left alone.
func EscapePath(p string) string {
	if !strings.ContainsAny(p, escapedChars) {
		return p
	}
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		if strings.IndexByte(escapedChars, c) >= 0 {
			fmt.Fprintf(&b, "%%%x", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
