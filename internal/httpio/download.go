package httpio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a2-ai/rv/internal/rvconfig"
)

// DefaultTimeout is the default deadline for a single download (spec.md §5, §6).
const DefaultTimeout = 20 * time.Second

// Header is a single request header to attach to a download.
type Header struct {
	Name  string
	Value string
}

// Downloader is the pluggable HTTP collaborator (spec.md §1, §6). Production
// code uses Client; tests substitute an in-memory fake.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer, headers []Header) (int64, error)
}

// Client is the production Downloader, backed by a Go http.Client hardened
// against SSRF and decompression-bomb attacks (adapted from the teacher's
// internal/httputil, originally built for the version resolver's registry
// fetches).
type Client struct {
	http    *http.Client
	Timeout time.Duration
}

// NewClient creates a Client with SSRF-hardened defaults and the download
// timeout from rvconfig.HTTPTimeout: the 20-second default spec.md §6
// names for download(), unless RV_HTTP_TIMEOUT overrides it.
func NewClient() *Client {
	timeout := rvconfig.HTTPTimeout()
	opts := DefaultOptions()
	opts.Timeout = timeout
	return &Client{
		http:    NewSecureClient(opts),
		Timeout: timeout,
	}
}

// Download streams url's body into w and returns bytes written.
//
// Per spec.md §6's HTTP contract: status 200 streams the body; 404 is a
// soft miss that returns (0, nil) rather than an error (callers use this
// during repository/package discovery, where "not present" is expected);
// any other non-2xx status is a hard error carrying the response body.
func (c *Client) Download(ctx context.Context, url string, w io.Writer, headers []Header) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request for %s: %w", url, err)
	}
	for _, h := range headers {
		req.Header.Set(h.Name, h.Value)
	}
	// Defense in depth: the transport already disables compression, but ask
	// explicitly so a misconfigured proxy in front of the origin can't hand
	// us a gzip bomb under our back.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		n, err := io.Copy(w, resp.Body)
		if err != nil {
			return n, fmt.Errorf("reading body from %s: %w", url, err)
		}
		return n, nil
	case resp.StatusCode == http.StatusNotFound:
		return 0, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return 0, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, body)
	}
}

// Fake is an in-memory Downloader for tests (DESIGN NOTES §9: "trait
// objects for HTTP/Git I/O" become an interface with a production
// implementation and an in-memory test implementation).
type Fake struct {
	// Responses maps url to a canned body. A missing entry behaves like a
	// 404 soft miss. An entry in Errors takes precedence over Responses.
	Responses map[string][]byte
	Errors    map[string]error
	// Requests records every call for assertions.
	Requests []FakeRequest
}

// FakeRequest captures one Download call observed by Fake.
type FakeRequest struct {
	URL     string
	Headers []Header
}

// NewFake creates an empty Fake downloader.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string][]byte),
		Errors:    make(map[string]error),
	}
}

// Download implements Downloader.
func (f *Fake) Download(_ context.Context, url string, w io.Writer, headers []Header) (int64, error) {
	f.Requests = append(f.Requests, FakeRequest{URL: url, Headers: headers})

	if err, ok := f.Errors[url]; ok {
		return 0, err
	}
	body, ok := f.Responses[url]
	if !ok {
		return 0, nil // soft miss, same as a real 404
	}
	n, err := w.Write(body)
	return int64(n), err
}
