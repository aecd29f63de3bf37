package adapter

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"LundaSync/internal/adapter/s3source"
	"LundaSync/internal/config"
	"LundaSync/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `{"tournaments": {"a": {"tournament": {"location": "Court A"}, "start_datetime": "2025-06-12T18:00"}}}`

func TestSchemeOf(t *testing.T) {
	assert.Equal(t, "file", SchemeOf("/data/tournaments.json"))
	assert.Equal(t, "file", SchemeOf("file:///data/tournaments.json"))
	assert.Equal(t, "s3", SchemeOf("s3://bucket/key.json"))
	assert.Equal(t, "https", SchemeOf("HTTPS://example.com/t.json"))
	assert.Equal(t, []string{"file", "http", "https", "s3"}, ListSchemes())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournaments.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	src, err := Open(path, &config.Config{}, testutils.Logger())
	require.NoError(t, err)
	assert.Equal(t, "file", src.Scheme())
	assert.Equal(t, path, src.Location())

	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, string(snap.Data))
	require.NotNil(t, snap.ModTime)

	missing, err := Open(filepath.Join(t.TempDir(), "nope.json"), nil, testutils.Logger())
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background())
	assert.Error(t, err)
}

func TestOpenHTTPWithGzip(t *testing.T) {
	lastModified := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tournaments.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Accept-Encoding") == "gzip" {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			defer gz.Close()
			_, _ = gz.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := &config.Config{HTTP: config.SnapshotHTTP{Timeout: 5}}
	src, err := Open(srv.URL+"/tournaments.json", cfg, testutils.Logger())
	require.NoError(t, err)

	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, string(snap.Data))
	require.NotNil(t, snap.ModTime)
	assert.True(t, snap.ModTime.Equal(lastModified))

	notFound, err := Open(srv.URL+"/missing.json", cfg, testutils.Logger())
	require.NoError(t, err)
	_, err = notFound.Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestOpenRejectsUnknown(t *testing.T) {
	_, err := Open("ftp://host/file.json", nil, testutils.Logger())
	assert.ErrorContains(t, err, "ftp")

	_, err = Open("  ", nil, testutils.Logger())
	assert.Error(t, err)
}

func TestS3ParseLocation(t *testing.T) {
	bucket, key, err := s3source.ParseLocation("s3://lunda/snapshots/tournaments.json")
	require.NoError(t, err)
	assert.Equal(t, "lunda", bucket)
	assert.Equal(t, "snapshots/tournaments.json", key)

	_, _, err = s3source.ParseLocation("s3://lunda")
	assert.Error(t, err)
	_, _, err = s3source.ParseLocation("https://lunda/x")
	assert.Error(t, err)
}
