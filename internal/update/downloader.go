package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every remote request.
const DefaultTimeout = 5 * time.Second

const userAgent = "addonup"

// HTTPFetcher retrieves remote resources over HTTP
type HTTPFetcher struct {
	client  *http.Client
	headers map[string]string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client for the fetcher.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout. A client passed through
// WithHTTPClient is copied, never modified.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		client := *f.client
		client.Timeout = timeout
		f.client = &client
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers[key] = value
	}
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: map[string]string{"User-Agent": userAgent},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBytes downloads the resource at url.
// Timeouts, connection errors and non-2xx responses all return ErrNetworkFailure.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrNetworkFailure, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNetworkFailure, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetworkFailure, err)
	}
	return data, nil
}

// FetchArchive downloads url and opens it as an archive.
func (f *HTTPFetcher) FetchArchive(ctx context.Context, url string) (*Archive, error) {
	data, err := f.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return OpenArchive(data)
}
