package itemlog

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

func TestLog_Rows(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf)
	require.NoError(t, err)

	require.NoError(t, l.Write(Row{
		File:        "/site/index.html",
		RecordType:  "resource",
		URL:         "http://example.com/index.html",
		Timestamp:   "2019-07-01T00:00:00Z",
		ContentType: "text/html; charset=utf-8",
		Mime:        "text/html",
		Charset:     "utf-8",
	}))
	require.NoError(t, l.Write(Row{File: "/site/index.html", RecordType: "revisit", URL: "http://example.com/", Timestamp: "2019-07-01T00:00:00Z"}))
	require.NoError(t, l.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "text/html; charset=utf-8", rows[1][4])
	assert.Equal(t, []string{"/site/index.html", "revisit", "http://example.com/", "2019-07-01T00:00:00Z", "", "", ""}, rows[2])
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	l, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, l.Write(Row{File: "-", RecordType: "resource", URL: "urn:embeds:http://example.com/p.html"}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file,Record-Type,URL,timestamp,Content-Type,mime,charset\n-,resource,urn:embeds:http://example.com/p.html,,,,\n", string(data))

	_, err = Create(filepath.Join(t.TempDir(), "missing", "items.csv"))
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryFileSystem))
}

func TestLog_NilDiscards(t *testing.T) {
	var l *Log
	require.NoError(t, l.Write(Row{URL: "x"}))
	require.NoError(t, l.Close())
}
