package build

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/derive"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/filter"
	"git.home.luguber.info/inful/warcbuilder/internal/itemlog"
	"git.home.luguber.info/inful/warcbuilder/internal/manifest"
	"git.home.luguber.info/inful/warcbuilder/internal/record"
	"git.home.luguber.info/inful/warcbuilder/internal/resolve"
	"git.home.luguber.info/inful/warcbuilder/internal/warc"
)

// recordingWriter keeps every record in memory, in call order.
type recordingWriter struct {
	info    *record.Info
	records []record.Record
	handles []*record.Handle
	refs    []*record.Handle
	bodies  [][]byte
}

func (w *recordingWriter) BeginArchive(ctx context.Context, info record.Info) (*record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.info = &info
	return &record.Handle{RecordID: "<urn:uuid:info>", Kind: record.KindWarcinfo}, nil
}

func (w *recordingWriter) WriteRecord(ctx context.Context, r record.Record) (*record.Handle, error) {
	return w.write(ctx, r, nil)
}

func (w *recordingWriter) WriteDerivedRecord(ctx context.Context, r record.Record, ref *record.Handle) (*record.Handle, error) {
	return w.write(ctx, r, ref)
}

func (w *recordingWriter) write(ctx context.Context, r record.Record, ref *record.Handle) (*record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body []byte
	if r.Payload != nil {
		rc, err := r.Payload.Open()
		if err != nil {
			return nil, err
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	h := &record.Handle{
		RecordID:  fmt.Sprintf("<urn:uuid:%d>", len(w.records)+1),
		Kind:      r.Kind,
		TargetURI: r.TargetURI,
		Date:      r.Date.UTC(),
		Digest:    warc.Digest(body),
	}
	if ref != nil && r.Kind == record.KindRevisit {
		h.Digest = ref.Digest
	}
	h.SourceURI, _ = r.Get(record.HeaderSourceURI)
	h.CreationDate, _ = r.Get(record.HeaderCreationDate)
	w.records = append(w.records, r)
	w.handles = append(w.handles, h)
	w.refs = append(w.refs, ref)
	w.bodies = append(w.bodies, body)
	return h, nil
}

func (w *recordingWriter) targets() []string {
	out := make([]string, len(w.handles))
	for i, h := range w.handles {
		out[i] = string(h.Kind) + " " + h.TargetURI
	}
	return out
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

var testNow = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }

func indexEngine() *derive.Engine {
	return derive.NewEngine(derive.Options{IndexFiles: config.DefaultIndexFiles, Now: testNow})
}

func TestAssembler_IndexRevisits(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":       "<html>home</html>",
		"about/index.html": "<html>about</html>",
	})

	w := &recordingWriter{}
	asm := NewAssembler(w, AssemblerOptions{Engine: indexEngine(), Now: testNow})
	res, err := asm.Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
		Archive:   "site.warc.gz",
		Info:      &record.Info{Filename: "site.warc.gz", Software: "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 4, res.Records, "warcinfo is not counted")
	assert.Equal(t, 2, res.Items)
	require.NotNil(t, w.info)

	// Lexical walk order: "about" sorts before "index.html".
	assert.Equal(t, []string{
		"resource http://example.org/about/index.html",
		"revisit http://example.org/about/",
		"resource http://example.org/index.html",
		"revisit http://example.org/",
	}, w.targets())

	assert.Equal(t, w.handles[0].Digest, w.handles[1].Digest)
	assert.Equal(t, w.handles[2].Digest, w.handles[3].Digest)
	assert.NotEqual(t, w.handles[0].Digest, w.handles[2].Digest)
	assert.Equal(t, w.handles[2].Date, w.handles[3].Date)

	primary := w.records[2]
	assert.Equal(t, "text/html", primary.ContentType)
	src, _ := primary.Get(record.HeaderSourceURI)
	assert.Equal(t, "file://"+filepath.Join(root, "index.html"), src)
	created, _ := primary.Get(record.HeaderCreationDate)
	assert.Equal(t, "2024-03-04T05:06:07Z", created)

	revisitSrc, _ := w.records[3].Get(record.HeaderSourceURI)
	assert.Equal(t, src, revisitSrc)
}

func TestAssembler_PrimaryCountMatchesFilteredFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.html":          "a",
		"b.css":           "b",
		"img/logo.PNG":    "png",
		"img/photo.png":   "png",
		"deep/x/y/z.html": "z",
	})

	chain, err := filter.NewChain(nil, []string{"*.png"})
	require.NoError(t, err)

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{Filter: chain}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 2, res.Skipped)
	for _, h := range w.handles {
		assert.NotContains(t, h.TargetURI, ".png")
		assert.NotContains(t, h.TargetURI, ".PNG")
	}
}

func TestAssembler_MimeOverride(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":      "home",
		"docs/index.html": "docs",
		"docs/page.html":  "page",
	})

	r, err := resolve.New(resolve.Options{Overrides: []config.MimeOverride{{Pattern: "*/index.html", ContentType: "custom/mime"}}})
	require.NoError(t, err)

	w := &recordingWriter{}
	_, err = NewAssembler(w, AssemblerOptions{Resolver: r}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
	})
	require.NoError(t, err)
	require.Len(t, w.records, 3)
	for _, rec := range w.records {
		if filepath.Base(rec.TargetURI) == "index.html" {
			assert.Equal(t, "custom/mime", rec.ContentType, rec.TargetURI)
		} else {
			assert.Equal(t, "text/html", rec.ContentType, rec.TargetURI)
		}
	}
}

func TestAssembler_BindingConflictAborts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"about/index.html": "about",
		"index.html":       "home",
		"later.html":       "later",
	})
	mpath := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(mpath, []byte("file,Content-Type\nindex.html,text/plain\n"), 0o600))
	m, err := manifest.Load(mpath)
	require.NoError(t, err)

	r, err := resolve.New(resolve.Options{Manifest: m})
	require.NoError(t, err)

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{Resolver: r, Engine: indexEngine()}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
	})
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryManifest))
	assert.ErrorIs(t, err, manifest.ErrBindingConflict)
	assert.Equal(t, StatusFailed, res.Status)

	// Only the first binding and its revisit were written.
	assert.Equal(t, []string{
		"resource http://example.org/about/index.html",
		"revisit http://example.org/about/",
	}, w.targets())
	assert.Equal(t, "text/plain", w.records[0].ContentType)
	assert.Equal(t, 2, res.Records)
}

func TestAssembler_InvalidInputsContinue(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"page.html": "p"})

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{filepath.Join(root, "missing"), root},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, res.Status)
	assert.True(t, res.Status.IsSuccess())
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 1, res.Records)
}

func TestAssembler_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.html": "a", "b.html": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{}).Run(ctx, AssembleRequest{Inputs: []string{root}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Empty(t, w.records)
}

func TestAssembler_ConversionsAndTransclusions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"video.flv": "flv"})
	outDir := t.TempDir()
	writeTree(t, outDir, map[string]string{"video.webm": "webm"})

	src := "http://example.org/video.flv"
	engine := derive.NewEngine(derive.Options{
		Now: testNow,
		Conversions: &derive.ConversionIndex{Conversions: map[string][]derive.Conversion{src: {
			{URL: "http://example.org/video.webm", Output: filepath.Join(outDir, "video.webm"), Success: true, Metadata: map[string]any{"ext": "webm"}},
			{URL: "http://example.org/video.mp4", Output: filepath.Join(outDir, "video.mp4"), Success: false},
		}}},
		Transclusions: &derive.TransclusionIndex{Transclusions: map[string][]derive.Transclusion{src: {
			{URL: "http://example.org/watch.html", Timestamp: "2017"},
		}}},
	})

	var logBuf bytes.Buffer
	log, err := itemlog.New(&logBuf)
	require.NoError(t, err)

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{Engine: engine, ItemLog: log, Now: testNow}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	assert.Equal(t, []string{
		"resource http://example.org/video.flv",
		"conversion http://example.org/video.webm",
		"resource urn:embeds:http://example.org/watch.html",
	}, w.targets())
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 1, res.Items)

	conv := w.records[1]
	assert.Equal(t, "video/webm", conv.ContentType)
	assert.Same(t, w.handles[0], w.refs[1], "conversion is written as a derived record")
	assert.Nil(t, w.refs[2])
	assert.Equal(t, []byte("webm"), w.bodies[1])

	trans := w.records[2]
	assert.Equal(t, derive.TransclusionContentType, trans.ContentType)
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), trans.Date)

	rows, err := csv.NewReader(&logBuf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, itemlog.Columns, rows[0])
	assert.Equal(t, "conversion", rows[2][1])
	assert.Equal(t, "-", rows[3][0])
	assert.Equal(t, "urn:embeds:http://example.org/watch.html", rows[3][2])
}

func TestAssembler_ConversionFilteredOut(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"doc.pdf": "pdf"})
	outDir := t.TempDir()
	writeTree(t, outDir, map[string]string{"doc.txt": "text"})

	chain, err := filter.NewChain(nil, []string{"*.txt"})
	require.NoError(t, err)
	engine := derive.NewEngine(derive.Options{Conversions: &derive.ConversionIndex{Conversions: map[string][]derive.Conversion{
		"http://example.org/doc.pdf": {{URL: "http://example.org/doc.txt", Output: filepath.Join(outDir, "doc.txt"), Success: true}},
	}}})

	w := &recordingWriter{}
	res, err := NewAssembler(w, AssemblerOptions{Filter: chain, Engine: engine}).Run(context.Background(), AssembleRequest{
		URLPrefix: "http://example.org/",
		Inputs:    []string{root},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"resource http://example.org/doc.pdf"}, w.targets())
	assert.Equal(t, 1, res.Skipped)
}
