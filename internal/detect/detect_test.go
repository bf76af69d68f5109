package detect

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/retry"
)

type bytesOpener []byte

func (b bytesOpener) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func input(url string, body []byte) Input {
	return Input{URL: url, Key: url, Source: bytesOpener(body)}
}

func TestTypeByURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/index.html", "text/html"},
		{"http://example.com/INDEX.HTM", "text/html"},
		{"http://example.com/app.js?v=3.css", "application/javascript"},
		{"http://example.com/favicon.ico", "image/x-icon"},
		{"http://example.com/page.xhtml", "application/xhtml+xml"},
		{"http://example.com/noext", ""},
		{"http://example.com/x.unknownext", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := FilenameDetector{}.DetectType(context.Background(), input(tt.url, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMagicDetector(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	got, err := MagicDetector{}.DetectType(context.Background(), input("http://h/no-extension", png))
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)

	got, err = MagicDetector{}.DetectType(context.Background(), input("http://h/a", []byte("<!DOCTYPE html><html><body>x</body></html>")))
	require.NoError(t, err)
	assert.Equal(t, "text/html", got)
}

func TestStatisticalCharset(t *testing.T) {
	d := StatisticalCharset{}
	ctx := context.Background()

	cs, err := d.DetectCharset(ctx, input("a", []byte("plain english text")), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, ASCII, cs.Name)

	cs, err = d.DetectCharset(ctx, input("b", []byte("caf\xc3\xa9 au lait")), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", cs.Name)

	cs, err = d.DetectCharset(ctx, input("c", []byte("\xef\xbb\xbfcaf\xc3\xa9")), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", cs.Name)
	assert.Equal(t, 1.0, cs.Confidence)

	cs, err = d.DetectCharset(ctx, input("d", []byte("caf\xe9")), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", cs.Name)
	assert.Equal(t, 0.5, cs.Confidence)
}

func TestStatisticalCharset_UTF8(t *testing.T) {
	d := StatisticalCharset{}
	ctx := context.Background()
	longHead := "<html><head><title>" + strings.Repeat("a", 1100) + "</title></head><body>"

	tests := []struct {
		name string
		body string
		mime string
		want string
	}{
		{"multibyte after first KiB", longHead + "caf\xc3\xa9 cr\xc3\xa8me</body></html>", "text/html", "utf-8"},
		{"trailing multibyte rune", "caf\xc3\xa9", "text/plain", "utf-8"},
		{"multibyte after 1 MiB", strings.Repeat("a", 1<<20) + "caf\xc3\xa9", "text/plain", "utf-8"},
		{"latin1 after first KiB", longHead + "caf\xe9</body></html>", "text/html", "windows-1252"},
		{"meta declaration with 8-bit bytes", `<meta charset="iso-8859-2">` + "\xb1", "text/html", "iso-8859-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := d.DetectCharset(ctx, input(tt.name, []byte(tt.body)), tt.mime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cs.Name)
		})
	}
}

func TestNormalizeMetadata(t *testing.T) {
	got := NormalizeMetadata(map[string]any{
		"Content-Type":      []any{"text/html; charset=ISO-8859-1", "text/plain"},
		"Content-Encoding":  "ISO-8859-1",
		"Content-Type-Hint": "text/html; charset=ISO-8859-1",
	})
	assert.Equal(t, Analysis{ContentType: "text/html", Encoding: "ISO-8859-1", HasTypeHint: true}, got)

	assert.Equal(t, Analysis{}, NormalizeMetadata(map[string]any{"Content-Type": 42}))
}

func newAnalysisServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/version":
			_, _ = io.WriteString(w, "Apache Tika 2.9.1")
		case r.Method == http.MethodPut && r.URL.Path == "/meta":
			calls.Add(1)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			if bytes.HasPrefix(body, []byte("<html")) {
				_, _ = io.WriteString(w, `{"Content-Type":"text/html; charset=windows-1252","Content-Encoding":"windows-1252"}`)
				return
			}
			if bytes.Equal(body, []byte("fail")) {
				http.Error(w, "boom", http.StatusUnprocessableEntity)
				return
			}
			_, _ = io.WriteString(w, `{"Content-Type":["application/pdf"]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzer(t *testing.T) {
	var calls atomic.Int32
	srv := newAnalysisServer(t, &calls)
	ctx := context.Background()

	a, err := NewAnalyzer(ctx, srv.URL+"/", 5*time.Second, 8)
	require.NoError(t, err)

	in := input("http://h/page", []byte("<html>caf\xe9</html>"))
	res, err := a.Analyze(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.ContentType)
	assert.Equal(t, "windows-1252", res.Encoding)
	assert.False(t, res.HasTypeHint)

	// Second lookup for the same key is served from cache.
	got, err := AnalysisDetector{Analyzer: a}.DetectType(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "text/html", got)
	assert.Equal(t, int32(1), calls.Load())

	got, err = AnalysisDetector{Analyzer: a}.DetectType(ctx, input("http://h/doc", []byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", got)

	_, err = a.Analyze(ctx, input("http://h/bad", []byte("fail")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisFailed))

	got, err = AnalysisDetector{Analyzer: a}.DetectType(ctx, input("http://h/bad2", []byte("fail")))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewAnalyzer_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAnalyzer(context.Background(), url, time.Second, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetectorUnavailable))
}

func TestAnalyzer_Retry(t *testing.T) {
	var probes, metas atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/version":
			if probes.Add(1) == 1 {
				http.Error(w, "starting", http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, "Apache Tika 2.9.1")
		case "/meta":
			n := metas.Add(1)
			body, _ := io.ReadAll(r.Body)
			if bytes.Equal(body, []byte("fail")) {
				http.Error(w, "bad", http.StatusUnprocessableEntity)
				return
			}
			if n == 1 {
				http.Error(w, "busy", http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, `{"Content-Type":"text/plain"}`)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	policy := retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	a, err := NewAnalyzer(ctx, srv.URL, time.Second, 0, WithRetry(policy))
	require.NoError(t, err)
	assert.Equal(t, int32(2), probes.Load())

	res, err := a.Analyze(ctx, input("http://h/a.txt", []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, int32(2), metas.Load(), "payload is resent after a 502")

	_, err = a.Analyze(ctx, input("http://h/b", []byte("fail")))
	require.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Equal(t, int32(3), metas.Load(), "client errors are not retried")
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/html", MediaType(" Text/HTML; charset=utf-8"))
	assert.Equal(t, "", MediaType(""))
}
