// internal/browser/static/compression.go
package static

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip, deflate"

// decodingTransport advertises the encodings a browser accepts and decodes
// the response body before it reaches the parser.
type decodingTransport struct {
	base *http.Transport
}

func newDecodingTransport() *decodingTransport {
	return &decodingTransport{base: http.DefaultTransport.(*http.Transport).Clone()}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response from '%s': %w", req.URL, err)
	}
	return resp, nil
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the pool.
func (t *decodingTransport) CloseIdleConnections() {
	t.base.CloseIdleConnections()
}

type layeredBody struct {
	io.Reader
	closers []io.Closer
}

func (b *layeredBody) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// decodeBody unwraps every Content-Encoding layer, last applied first.
func decodeBody(resp *http.Response) error {
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 || resp.Body == nil {
		return nil
	}
	var layers []string
	for _, v := range encodings {
		for _, e := range strings.Split(v, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(e)))
		}
	}

	body := &layeredBody{Reader: resp.Body, closers: []io.Closer{resp.Body}}
	for i := len(layers) - 1; i >= 0; i-- {
		switch layers[i] {
		case "", "identity":
			continue
		case "br":
			body.Reader = brotli.NewReader(body.Reader)
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(body.Reader)
			if err != nil {
				return fmt.Errorf("gzip: %w", err)
			}
			body.Reader = zr
			body.closers = append(body.closers, zr)
		case "deflate":
			fr, err := deflateReader(body.Reader)
			if err != nil {
				return fmt.Errorf("deflate: %w", err)
			}
			body.Reader = fr
			body.closers = append(body.closers, fr)
		default:
			return fmt.Errorf("unsupported Content-Encoding %q", layers[i])
		}
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// deflateReader accepts zlib-wrapped and raw deflate streams.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr[0], hdr[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader checks the CMF/FLG pair from RFC 1950.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
