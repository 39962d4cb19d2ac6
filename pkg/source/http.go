package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
)

// HTTPFetcher downloads documents with a GET request
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates an HTTP fetcher. A nil client gets a default one
// with a 30 second timeout.
func NewHTTPFetcher(client *http.Client, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{
		client:   client,
		maxBytes: maxBytes,
	}
}

// Type returns the fetcher type
func (f *HTTPFetcher) Type() string {
	return TypeHTTP
}

// Fetch downloads the document at the URL ref
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", ref, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", ref, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", ref, err)
	}
	if f.maxBytes > 0 && int64(len(content)) > f.maxBytes {
		return nil, fmt.Errorf("document at %s exceeds %d bytes", ref, f.maxBytes)
	}

	format := FormatFromContentType(resp.Header.Get("Content-Type"))
	if format == "" {
		format = FormatFromName(req.URL.Path)
	}

	return &FetchResult{
		Content: content,
		Digest:  fmt.Sprintf("http:%x", xxhash.Sum64(content)),
		Source:  ref,
		Format:  format,
	}, nil
}
