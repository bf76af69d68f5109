package detect

import (
	"context"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// ASCII is reported for content without any byte above 0x7f.
const ASCII = "ascii"

// StatisticalCharset guesses the charset from the whole payload: pure ASCII,
// BOMs and declared charsets, UTF-8 validity, then meta declarations and the
// windows-1252 fallback.
type StatisticalCharset struct{}

func (StatisticalCharset) DetectCharset(_ context.Context, in Input, mediaType string) (Charset, error) {
	rc, err := in.Source.Open()
	if err != nil {
		return Charset{}, err
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return Charset{}, err
	}
	if isASCII(body) {
		return Charset{Name: ASCII, Confidence: 1}, nil
	}

	// DetermineEncoding only prescans the first KiB and treats a trailing
	// partial rune as truncation, so UTF-8 validity is checked here.
	enc, name, certain := charset.DetermineEncoding(body, mediaType)
	if !certain && utf8.Valid(body) {
		return Charset{Name: "utf-8", Confidence: 0.9}, nil
	}
	if enc != nil {
		if canonical, err := htmlindex.Name(enc); err == nil {
			name = canonical
		}
	}
	conf := 0.5
	if certain {
		conf = 1
	}
	return Charset{Name: name, Confidence: conf}, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
