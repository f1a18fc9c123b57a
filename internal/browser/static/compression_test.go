// internal/browser/static/compression_test.go
package static

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
)

const compressedPage = `<html><body><h1>Compressed</h1><p>Hello, Mr. Server Side Rendering!</p></body></html>`

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "br":
		w = brotli.NewWriter(&buf)
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "raw-deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	default:
		t.Fatalf("unknown encoding %s", encoding)
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDriver_DecodesCompressedResponses(t *testing.T) {
	var gotAccept string
	bodies := map[string][]byte{
		"/br":          compress(t, "br", []byte(compressedPage)),
		"/gzip":        compress(t, "gzip", []byte(compressedPage)),
		"/zlib":        compress(t, "zlib", []byte(compressedPage)),
		"/raw-deflate": compress(t, "raw-deflate", []byte(compressedPage)),
		// Brotli applied over gzip.
		"/layered": compress(t, "br", compress(t, "gzip", []byte(compressedPage))),
	}
	encodings := map[string]string{
		"/br": "br", "/gzip": "gzip", "/zlib": "deflate", "/raw-deflate": "deflate", "/layered": "gzip, br",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept-Encoding")
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Encoding", "zstd")
			w.Write([]byte("not really zstd"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", encodings[r.URL.Path])
		w.Write(body)
	}))
	defer server.Close()

	d, err := New(config.BrowserConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer d.Close(context.Background())
	ctx := context.Background()

	for path := range bodies {
		t.Run(path, func(t *testing.T) {
			status, err := d.Navigate(ctx, server.URL+path)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, acceptEncoding, gotAccept)

			els, err := d.Find(ctx, harness.Query{CSS: "h1"})
			require.NoError(t, err)
			require.Len(t, els, 1)
			assert.Equal(t, "Compressed", els[0].Text)
		})
	}

	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := d.Navigate(ctx, server.URL+"/zstd")
		assert.ErrorContains(t, err, `unsupported Content-Encoding "zstd"`)
	})
}

func TestIsZlibHeader(t *testing.T) {
	z := compress(t, "zlib", []byte("x"))
	assert.True(t, isZlibHeader(z[0], z[1]))
	assert.False(t, isZlibHeader('<', 'h'))
}
