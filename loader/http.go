package loader

/*
 This file defines the HTTP implementation of Fetcher.
*/

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/mogiioin/hlsengine/config"
	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/internal/observability"
)

const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderRange           = "Range"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"

	// DefaultAcceptEncoding lists the encodings HTTPFetcher decodes.
	DefaultAcceptEncoding = "gzip, deflate, br"
)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsTimeout reports whether err comes from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPFetcher fetches resources over HTTP with transparent decompression.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	logger    *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher using http.DefaultTransport. Timeouts come
// from the request context.
func NewHTTPFetcher(cfg config.LoaderConfig, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Transport: http.DefaultTransport},
		UserAgent: cfg.UserAgent,
		logger:    observability.WithComponent(observability.OrDefault(logger), "http-fetcher"),
	}
}

// Fetch performs a GET request. The response URL is the final URL after
// redirects.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.UserAgent != "" {
		httpReq.Header.Set(HeaderUserAgent, f.UserAgent)
	}
	httpReq.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncoding)
	if req.HasRange() {
		httpReq.Header.Set(HeaderRange, fmt.Sprintf("bytes=%d-%d", req.RangeStart, req.RangeEnd-1))
	}

	stats := event.LoadStats{Requested: time.Now()}
	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	stats.FirstByte = time.Now()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL, Code: resp.StatusCode}
	}

	body, err := f.wrapDecompression(resp)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	stats.Loaded = time.Now()
	stats.Bytes = int64(len(data))

	f.logger.Debug("fetched",
		slog.String("url", req.URL),
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", stats.Bytes),
		slog.Duration("elapsed", stats.Loaded.Sub(stats.Requested)),
	)
	return &Response{URL: resp.Request.URL.String(), Data: data, Stats: stats}, nil
}

// wrapDecompression wraps the response body according to its content
// encoding. Unknown encodings are returned as is.
func (f *HTTPFetcher) wrapDecompression(resp *http.Response) (io.Reader, error) {
	encoding := resp.Header.Get(HeaderContentEncoding)
	switch strings.ToLower(encoding) {
	case "":
		return resp.Body, nil
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return reader, nil
	case EncodingDeflate:
		return flate.NewReader(resp.Body), nil
	case EncodingBrotli:
		return brotli.NewReader(resp.Body), nil
	default:
		f.logger.Debug("unknown content encoding, returning raw body", slog.String("encoding", encoding))
		return resp.Body, nil
	}
}
