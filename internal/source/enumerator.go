package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
)

// InvalidInput records an input (or part of one) that produced no items.
type InvalidInput struct {
	Input string
	Err   error
}

// Enumerator yields FileItems for a list of inputs.
type Enumerator struct {
	prefix  string
	invalid []InvalidInput
	zips    []*zipArchive // shared readers of the current iteration
}

// NewEnumerator creates an enumerator that prepends prefix to every URL.
func NewEnumerator(prefix string) *Enumerator {
	return &Enumerator{prefix: prefix}
}

// Invalid returns the diagnostics collected by the last iteration.
func (e *Enumerator) Invalid() []InvalidInput {
	return e.invalid
}

// Items lazily enumerates the inputs in order. Directories are walked in
// lexical order; zip entries are yielded in central directory order.
// Invalid inputs are logged, recorded and skipped. Iteration stops early when
// ctx is cancelled. Zip readers are shared while the sequence runs and closed
// when it ends; zip items reopen their archive after that.
func (e *Enumerator) Items(ctx context.Context, inputs []string) iter.Seq[*FileItem] {
	return func(yield func(*FileItem) bool) {
		e.invalid = nil
		defer e.closeZips()
		for _, input := range inputs {
			if ctx.Err() != nil {
				return
			}
			if !e.input(ctx, input, yield) {
				return
			}
		}
	}
}

// input enumerates one input and reports whether iteration should continue.
func (e *Enumerator) input(ctx context.Context, input string, yield func(*FileItem) bool) bool {
	info, err := os.Stat(input)
	if err == nil && info.IsDir() {
		return e.walkDir(ctx, input, yield)
	}

	file, inner, ok := splitZipPath(input)
	if !ok {
		e.reject(input, ErrInvalidInput)
		return true
	}

	zr, zerr := zip.OpenReader(file)
	if zerr != nil {
		if inner != "" {
			e.reject(input, ErrInvalidInput)
			return true
		}
		fi, err := os.Stat(file)
		if err != nil {
			e.reject(input, err)
			return true
		}
		return yield(NewFileItem(e.prefix, input, filepath.Base(file), file, fi))
	}
	archive := &zipArchive{path: file, rc: zr}
	e.zips = append(e.zips, archive)

	slog.Debug("Enumerating zip input", logfields.Input(input), slog.String("zip_prefix", inner))
	for _, f := range zr.File {
		if ctx.Err() != nil {
			return false
		}
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if inner != "" && !strings.HasPrefix(f.Name, inner) {
			continue
		}
		item := &FileItem{
			URL:         e.prefix + EscapePath(NormalizePath(strings.TrimPrefix(f.Name, inner))),
			Locator:     zipLocator{archive: archive, file: f},
			ModifiedAt:  f.Modified.UTC(),
			Size:        int64(f.UncompressedSize64),
			RootContext: input,
		}
		if !yield(item) {
			return false
		}
	}
	return true
}

func (e *Enumerator) walkDir(ctx context.Context, root string, yield func(*FileItem) bool) bool {
	slog.Debug("Enumerating directory input", logfields.Root(root))
	stopped := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.reject(path, fmt.Errorf("%w: %w", ErrWalkFailed, err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			stopped = true
			return fs.SkipAll
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			e.reject(path, fmt.Errorf("%w: %w", ErrWalkFailed, err))
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		if !yield(NewFileItem(e.prefix, root, rel, path, info)) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		e.reject(root, fmt.Errorf("%w: %w", ErrWalkFailed, err))
	}
	return !stopped
}

func (e *Enumerator) closeZips() {
	for _, z := range e.zips {
		if err := z.close(); err != nil {
			slog.Warn("Failed to close zip input", logfields.Path(z.path), logfields.Error(err))
		}
	}
	e.zips = nil
}

func (e *Enumerator) reject(input string, cause error) {
	berr := derrors.InputNotFound(input, cause)
	slog.Warn("Skipping input: "+berr.Message, logfields.Input(input), logfields.Error(cause))
	e.invalid = append(e.invalid, InvalidInput{Input: input, Err: berr})
}

// splitZipPath walks input from its end towards its start until a segment
// names an existing regular file. It returns that file and the remainder as
// a '/' joined internal prefix. A trailing slash is kept on the prefix.
// ok is false when no segment is a file or a directory is reached first.
func splitZipPath(input string) (file, inner string, ok bool) {
	name := filepath.ToSlash(input)
	var rest []string
	for name != "" {
		if info, err := os.Stat(filepath.FromSlash(name)); err == nil {
			if !info.Mode().IsRegular() {
				return "", "", false
			}
			return filepath.FromSlash(name), strings.Join(rest, "/"), true
		}
		i := strings.LastIndexByte(name, '/')
		rest = append([]string{name[i+1:]}, rest...)
		if i <= 0 {
			break
		}
		name = name[:i]
	}
	return "", "", false
}
