package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// FileFetcher reads documents from the local filesystem
type FileFetcher struct {
	// maxBytes bounds the size of a document, 0 means no limit
	maxBytes int64
}

// NewFileFetcher creates a new file fetcher
func NewFileFetcher(maxBytes int64) *FileFetcher {
	return &FileFetcher{maxBytes: maxBytes}
}

// Type returns the fetcher type
func (f *FileFetcher) Type() string {
	return TypeFile
}

// Fetch reads the file at ref
func (f *FileFetcher) Fetch(_ context.Context, ref string) (*FetchResult, error) {
	if ref == "" {
		return nil, fmt.Errorf("file path is empty")
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", ref, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", ref)
	}
	if f.maxBytes > 0 && info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", ref, info.Size(), f.maxBytes)
	}

	content, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		abs = ref
	}

	return &FetchResult{
		Content: content,
		Digest:  fmt.Sprintf("file:%x", xxhash.Sum64(content)),
		Source:  "file://" + abs,
		Format:  FormatFromName(ref),
	}, nil
}
