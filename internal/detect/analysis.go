package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/warcbuilder/internal/logfields"
	"git.home.luguber.info/inful/warcbuilder/internal/retry"
)

// Metadata keys reported by the analysis service.
const (
	MetaContentType     = "Content-Type"
	MetaContentEncoding = "Content-Encoding"
	MetaContentTypeHint = "Content-Type-Hint"
)

// Analysis is the normalized result of analysing one payload.
type Analysis struct {
	ContentType string // media type without parameters
	Encoding    string
	HasTypeHint bool
}

// Analyzer is a client for a Tika compatible analysis service
// (GET /version, PUT /meta). Results are cached by input key so that type
// and charset resolution share one request.
type Analyzer struct {
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, Analysis]
	policy  retry.Policy
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithRetry retries failed requests according to p. Responses with a 4xx
// status are not retried.
func WithRetry(p retry.Policy) AnalyzerOption {
	return func(a *Analyzer) { a.policy = p }
}

// NewAnalyzer creates a client and probes the service. A failing probe is
// reported as ErrDetectorUnavailable.
func NewAnalyzer(ctx context.Context, baseURL string, timeout time.Duration, cacheSize int, opts ...AnalyzerOption) (*Analyzer, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, Analysis](cacheSize)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		policy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(a)
	}
	var version string
	err = a.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying analysis service probe", slog.String("url", a.baseURL), slog.Int("attempt", attempt))
		}
		var perr error
		version, perr = a.probe(ctx)
		return perr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDetectorUnavailable, a.baseURL, err)
	}
	slog.Debug("Analysis service available", slog.String("url", a.baseURL), slog.String("version", version))
	return a, nil
}

func (a *Analyzer) probe(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	return strings.TrimSpace(string(body)), nil
}

// Analyze returns the analysis for in, from cache when available.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (Analysis, error) {
	if in.Key != "" {
		if res, ok := a.cache.Get(in.Key); ok {
			return res, nil
		}
	}

	var meta map[string]any
	err := a.policy.Do(ctx, func(int) error {
		var merr error
		meta, merr = a.meta(ctx, in)
		return merr
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	res := NormalizeMetadata(meta)
	if in.Key != "" {
		a.cache.Add(in.Key, res)
	}
	return res, nil
}

// meta sends one PUT /meta request. The payload is reopened per attempt.
func (a *Analyzer) meta(ctx context.Context, in Input) (map[string]any, error) {
	rc, err := in.Source.Open()
	if err != nil {
		return nil, retry.Permanent(err)
	}
	defer rc.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.baseURL+"/meta", rc)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var meta map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode: %w", err))
	}
	return meta, nil
}

// statusError reports an unexpected response. Client errors are permanent.
func statusError(resp *http.Response) error {
	err := fmt.Errorf("unexpected status %s", resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

// NormalizeMetadata reduces raw service metadata to an Analysis. Values may
// be missing, strings or lists; for lists the first element is used.
func NormalizeMetadata(meta map[string]any) Analysis {
	_, hint := meta[MetaContentTypeHint]
	return Analysis{
		ContentType: MediaType(firstString(meta[MetaContentType])),
		Encoding:    strings.TrimSpace(firstString(meta[MetaContentEncoding])),
		HasTypeHint: hint,
	}
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// AnalysisDetector is the TypeDetector backed by the analysis service.
// Per-item failures are logged and reported as no opinion.
type AnalysisDetector struct {
	Analyzer *Analyzer
}

func (AnalysisDetector) Name() string { return "analysis" }

func (d AnalysisDetector) DetectType(ctx context.Context, in Input) (string, error) {
	res, err := d.Analyzer.Analyze(ctx, in)
	if err != nil {
		slog.Debug("Analysis failed", logfields.URL(in.URL), logfields.Error(err))
		return "", nil
	}
	return res.ContentType, nil
}
